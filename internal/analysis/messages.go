package analysis

import (
	"errors"

	"github.com/ragavi-632007/visionx/internal/pdfdoc"
)

const (
	MessageInvalidPassword            = "The password you entered is incorrect. Please try again."
	MessageServiceUnavailable         = "The analysis service is temporarily unavailable. Please try again later."
	MessageRateLimited                = "Too many analysis requests right now. Please wait a moment and try again."
	MessageUnsupportedMedia           = "This file type cannot be analyzed. Please upload a PDF, an image, or a Word document."
	MessagePasswordProtectedOrCorrupt = "This document appears to be password protected or damaged. Please check the file and try again."
	MessageAnalysisFailed             = "We could not analyze this document. Please try again."
	MessageNoFiles                    = "Please select a document to analyze."
)

// UserMessage is the only place errors are turned into text shown to users.
// Provider messages never reach the caller.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, pdfdoc.ErrInvalidPassword):
		return MessageInvalidPassword
	case errors.Is(err, ErrServiceUnavailable):
		return MessageServiceUnavailable
	case errors.Is(err, ErrRateLimited):
		return MessageRateLimited
	case errors.Is(err, ErrUnsupportedMedia):
		return MessageUnsupportedMedia
	case errors.Is(err, ErrPasswordProtectedOrCorrupt):
		return MessagePasswordProtectedOrCorrupt
	case errors.Is(err, ErrNoFiles), errors.Is(err, ErrEmptyFile):
		return MessageNoFiles
	default:
		return MessageAnalysisFailed
	}
}
