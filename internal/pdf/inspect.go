package pdf

import (
	"os"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pkg/errors"
)

// DocumentInfo is the structural summary of a drawing file
type DocumentInfo struct {
	Path      string `json:"path"`
	Size      int64  `json:"size"`
	PageCount int    `json:"pageCount"`
	Version   string `json:"version,omitempty"`
	Encrypted bool   `json:"encrypted"`
}

// Inspect reads the cross-reference structure of a PDF in relaxed validation
// mode and reports its page count.
func Inspect(path string) (DocumentInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return DocumentInfo{}, errors.Wrap(err, "failed to open file")
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return DocumentInfo{}, errors.Wrap(err, "failed to stat file")
	}

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	ctx, err := api.ReadContext(f, conf)
	if err != nil {
		return DocumentInfo{}, errors.Wrap(err, "failed to read PDF structure")
	}
	if err := ctx.EnsurePageCount(); err != nil {
		return DocumentInfo{}, errors.Wrap(err, "failed to determine page count")
	}

	doc := DocumentInfo{
		Path:      path,
		Size:      info.Size(),
		PageCount: ctx.PageCount,
		Encrypted: ctx.Encrypt != nil,
	}
	if ctx.HeaderVersion != nil {
		doc.Version = ctx.HeaderVersion.String()
	}
	return doc, nil
}
