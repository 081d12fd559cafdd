package echoapi

import (
	"io"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/trezcool/sdoims/core"
)

const (
	// HeaderSocketID identifies the realtime connection of the client sending a mutation.
	HeaderSocketID = "X-Socket-ID"

	uploadField = "document"
)

type uploadSetter interface {
	SetUpload(up *core.Upload)
}

// bindInput binds the JSON or form body to in, attaching the `document` part of multipart requests.
func bindInput(ctx echo.Context, in interface{}) error {
	if err := ctx.Bind(in); err != nil {
		return err
	}

	us, ok := in.(uploadSetter)
	if !ok || !strings.HasPrefix(ctx.Request().Header.Get(echo.HeaderContentType), echo.MIMEMultipartForm) {
		return nil
	}
	fh, err := ctx.FormFile(uploadField)
	if err != nil {
		if err == http.ErrMissingFile {
			return nil
		}
		return core.NewValidationError(err, core.FieldError{Field: uploadField, Error: "the file could not be read"})
	}
	us.SetUpload(&core.Upload{
		Filename:    fh.Filename,
		ContentType: fh.Header.Get(echo.HeaderContentType),
		Size:        fh.Size,
		Open: func() (io.ReadCloser, error) {
			return fh.Open()
		},
	})
	return nil
}
