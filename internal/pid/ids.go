package pid

import (
	"strconv"

	"github.com/google/uuid"
)

// NewID returns a random UUID string. It is the default IDFunc.
func NewID() string {
	return uuid.NewString()
}

// SequentialIDs returns an IDFunc yielding prefix-1, prefix-2, ... in order.
func SequentialIDs(prefix string) IDFunc {
	n := 0
	return func() string {
		n++
		return prefix + "-" + strconv.Itoa(n)
	}
}
