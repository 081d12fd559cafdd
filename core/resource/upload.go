package resource

import (
	"path"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/trezcool/sdoims/core"
)

// MaxDocumentSize is the largest accepted PDF attachment, in bytes.
const MaxDocumentSize = 10 << 20

// PDF is a validation rule accepting a nil upload or a PDF of at most MaxDocumentSize bytes.
var PDF = validation.By(func(value interface{}) error {
	up, _ := value.(*core.Upload)
	if up == nil {
		return nil
	}
	if !strings.EqualFold(path.Ext(up.Filename), ".pdf") && up.ContentType != "application/pdf" {
		return validation.NewError("validation_pdf", "must be a PDF file")
	}
	if up.Size > MaxDocumentSize {
		return validation.NewError("validation_pdf_size", "must not be larger than 10MB")
	}
	return nil
})
