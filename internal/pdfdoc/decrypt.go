package pdfdoc

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/pdfcpu/pdfcpu/pkg/api"
)

// ErrInvalidPassword is returned when the supplied password does not open the
// document. Callers re-prompt on it.
var ErrInvalidPassword = errors.New("pdfdoc: invalid password")

// Decrypt returns an unencrypted copy of data. Documents that are not
// encrypted are returned unchanged.
func Decrypt(data []byte, password string) ([]byte, error) {
	var out bytes.Buffer
	err := api.Decrypt(bytes.NewReader(data), &out, newConfiguration(password))
	switch {
	case err == nil:
		return out.Bytes(), nil
	case isNotEncrypted(err):
		return data, nil
	case isPasswordError(err):
		return nil, ErrInvalidPassword
	default:
		return nil, fmt.Errorf("decrypt pdf: %w", err)
	}
}

// PageCount returns the number of pages of an unencrypted document.
func PageCount(data []byte) (int, error) {
	count, err := api.PageCount(bytes.NewReader(data), newConfiguration(""))
	if err != nil {
		if isPasswordError(err) {
			return 0, ErrInvalidPassword
		}
		return 0, fmt.Errorf("count pages: %w", err)
	}
	return count, nil
}
