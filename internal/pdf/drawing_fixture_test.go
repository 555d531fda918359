package pdf

import (
	"testing"

	"github.com/a3tai/mcp-pid-tagger/internal/pdf/pdftest"
)

func instrumentSheet(t *testing.T, dir string) string {
	t.Helper()
	return pdftest.InstrumentSheet(t, dir)
}
