package analysis

import (
	"context"
	"errors"
	"regexp"
	"strings"
)

var (
	ErrNoFiles   = errors.New("analysis: no files to analyze")
	ErrEmptyFile = errors.New("analysis: file is empty")

	ErrServiceUnavailable         = errors.New("analysis service unavailable")
	ErrRateLimited                = errors.New("analysis rate limited")
	ErrUnsupportedMedia           = errors.New("analysis unsupported media")
	ErrPasswordProtectedOrCorrupt = errors.New("analysis password protected or corrupt")
	ErrAnalysisFailed             = errors.New("analysis failed")

	errMissingAPIKey = errors.New("no API key configured")
)

// Error carries one of the taxonomy sentinels as Kind plus the underlying
// cause. errors.Is matches both.
type Error struct {
	Kind  error
	Cause error
}

func (e *Error) Error() string {
	if e.Cause == nil {
		return e.Kind.Error()
	}
	return e.Kind.Error() + ": " + e.Cause.Error()
}

func (e *Error) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Cause}
}

func newError(kind, cause error) *Error {
	return &Error{Kind: kind, Cause: cause}
}

var rateLimitMarkers = []string{"rate limit", "ratelimit", "quota", "resource_exhausted", "resource exhausted", "too many requests"}

var credentialMarkers = []string{"api key", "api_key", "apikey", "permission_denied", "permission denied", "unauthenticated", "unauthorized"}

var mediaMarkers = []string{"unsupported mime", "mime type", "unsupported media", "unsupported file", "invalid image", "unable to process input image", "image format"}

var documentMarkers = []string{"password", "encrypted", "corrupt", "document has no pages", "no pages", "unable to process the document", "could not process document"}

// Status codes only count when they read as an HTTP status, as in "Error 429",
// "status code: 429" or a message starting with "429". Numbers that merely
// contain the digits do not match.
var (
	rateLimitStatus  = statusPattern("429")
	credentialStatus = statusPattern("401|403")
)

func statusPattern(codes string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)(?:^|error|status|code|http)[\s:=]*(?:` + codes + `)\b`)
}

func isRateLimited(err error) bool {
	return containsAny(err, rateLimitMarkers) || matches(err, rateLimitStatus)
}

// classify maps a provider failure onto the taxonomy. Context errors pass
// through unchanged. Anything not recognised, outages included, is
// ErrAnalysisFailed; ErrServiceUnavailable is reserved for credentials.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	var typed *Error
	if errors.As(err, &typed) {
		return typed
	}
	switch {
	case isRateLimited(err):
		return newError(ErrRateLimited, err)
	case containsAny(err, credentialMarkers), matches(err, credentialStatus):
		return newError(ErrServiceUnavailable, err)
	case containsAny(err, mediaMarkers):
		return newError(ErrUnsupportedMedia, err)
	case containsAny(err, documentMarkers):
		return newError(ErrPasswordProtectedOrCorrupt, err)
	default:
		return newError(ErrAnalysisFailed, err)
	}
}

func matches(err error, pattern *regexp.Regexp) bool {
	return err != nil && pattern.MatchString(err.Error())
}

func containsAny(err error, markers []string) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range markers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
