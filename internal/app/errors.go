package app

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/ragavi-632007/visionx/internal/analysis"
	"github.com/ragavi-632007/visionx/internal/document"
	"github.com/ragavi-632007/visionx/internal/export"
	"github.com/ragavi-632007/visionx/internal/pdfdoc"
	"github.com/ragavi-632007/visionx/internal/pipeline"
)

type DomainError struct {
	Status  int
	Code    string
	Message string
	Details any
}

func (e *DomainError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func domainError(status int, code, message string, details any) *DomainError {
	return &DomainError{
		Status:  status,
		Code:    code,
		Message: message,
		Details: details,
	}
}

const messagePasswordRequired = "This PDF is password protected. Enter its password to continue."

// analysisError turns pipeline, loader and analysis failures into the
// response the client sees. Text always comes from analysis.UserMessage so
// provider messages never reach the caller.
func analysisError(err error) error {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	switch {
	case errors.Is(err, pipeline.ErrPasswordRequired):
		return domainError(http.StatusLocked, "PASSWORD_REQUIRED", messagePasswordRequired, nil)
	case errors.Is(err, pdfdoc.ErrInvalidPassword):
		return domainError(http.StatusUnprocessableEntity, "INVALID_PASSWORD", analysis.UserMessage(err), nil)
	case errors.Is(err, document.ErrEmptyFile), errors.Is(err, analysis.ErrNoFiles), errors.Is(err, analysis.ErrEmptyFile):
		return domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", analysis.MessageNoFiles, nil)
	case errors.Is(err, document.ErrTooLarge):
		return domainError(http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE", "The file is larger than the upload limit.", nil)
	case errors.Is(err, document.ErrUnsupportedType), errors.Is(err, analysis.ErrUnsupportedMedia):
		return domainError(http.StatusUnsupportedMediaType, "UNSUPPORTED_MEDIA", analysis.MessageUnsupportedMedia, nil)
	case errors.Is(err, analysis.ErrServiceUnavailable):
		return domainError(http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", analysis.UserMessage(err), nil)
	case errors.Is(err, analysis.ErrRateLimited):
		return domainError(http.StatusTooManyRequests, "RATE_LIMITED", analysis.UserMessage(err), nil)
	case errors.Is(err, analysis.ErrPasswordProtectedOrCorrupt),
		errors.Is(err, pdfdoc.ErrNoPagesRendered),
		errors.Is(err, pdfdoc.ErrUnreadable):
		return domainError(http.StatusUnprocessableEntity, "PASSWORD_PROTECTED_OR_CORRUPT", analysis.MessagePasswordProtectedOrCorrupt, nil)
	case errors.Is(err, analysis.ErrEmptyQuestion):
		return domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Question is required", nil)
	default:
		return domainError(http.StatusBadGateway, "ANALYSIS_FAILED", analysis.UserMessage(err), nil)
	}
}

func exportError(err error) error {
	switch {
	case errors.Is(err, export.ErrUnsupportedFormat):
		return domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "format must be pdf or docx", nil)
	case errors.Is(err, export.ErrPDFDependencyMissing), errors.Is(err, export.ErrDOCXDependencyMissing):
		return domainError(http.StatusServiceUnavailable, "EXPORT_UNAVAILABLE", "Export is not available on this server", nil)
	default:
		return err
	}
}
