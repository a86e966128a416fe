// Package pdfdoc inspects, decrypts, rasterizes and reads PDF documents.
package pdfdoc

import (
	"bytes"
	"errors"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// IsPasswordProtected reports whether data is a PDF that cannot be opened
// without a user password. Failures that are not recognisably about
// encryption report false so that damaged files reach the rasterizer and
// fail there with a clearer error.
func IsPasswordProtected(data []byte) bool {
	if len(data) == 0 {
		return false
	}
	_, err := api.PageCount(bytes.NewReader(data), newConfiguration(""))
	if err == nil {
		return false
	}
	if isPasswordError(err) {
		return true
	}
	return openWithReaderNeedsPassword(data)
}

// openWithReaderNeedsPassword asks a second parser, which pdfcpu's validation
// failures can mask.
func openWithReaderNeedsPassword(data []byte) (protected bool) {
	defer func() {
		if recover() != nil {
			protected = false
		}
	}()
	_, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	return errors.Is(err, pdf.ErrInvalidPassword)
}

func newConfiguration(password string) *model.Configuration {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	conf.UserPW = password
	conf.OwnerPW = password
	return conf
}

func isPasswordError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	if isNotEncrypted(err) {
		return false
	}
	return strings.Contains(msg, "password") || strings.Contains(msg, "encrypt")
}

func isNotEncrypted(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "not encrypted")
}
