package analysis

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

type Authenticity string

const (
	AuthenticityReal    Authenticity = "real"
	AuthenticityFake    Authenticity = "fake"
	AuthenticityUnknown Authenticity = "unknown"
)

// ParseAuthenticity accepts the three known values case-insensitively.
func ParseAuthenticity(value string) (Authenticity, bool) {
	switch Authenticity(strings.ToLower(strings.TrimSpace(value))) {
	case AuthenticityReal:
		return AuthenticityReal, true
	case AuthenticityFake:
		return AuthenticityFake, true
	case AuthenticityUnknown:
		return AuthenticityUnknown, true
	default:
		return "", false
	}
}

// Result is the structured analysis of one document.
type Result struct {
	Summary             string        `json:"summary"`
	Pros                []string      `json:"pros"`
	Cons                []string      `json:"cons"`
	PotentialLoopholes  []string      `json:"potentialLoopholes"`
	PotentialChallenges []string      `json:"potentialChallenges"`
	IsLegal             *bool         `json:"isLegal,omitempty"`
	Authenticity        *Authenticity `json:"authenticity,omitempty"`
}

type wireResult struct {
	Summary             *string   `json:"summary"`
	Pros                *[]string `json:"pros"`
	Cons                *[]string `json:"cons"`
	PotentialLoopholes  *[]string `json:"potentialLoopholes"`
	PotentialChallenges *[]string `json:"potentialChallenges"`
	IsLegal             *bool     `json:"isLegal"`
	Authenticity        *string   `json:"authenticity"`
}

var fencePattern = regexp.MustCompile("(?s)^```[a-zA-Z]*\\s*(.*?)\\s*```$")

// StripFences removes a Markdown code fence wrapped around the whole reply.
func StripFences(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if match := fencePattern.FindStringSubmatch(trimmed); match != nil {
		return strings.TrimSpace(match[1])
	}
	return trimmed
}

// ParseResult decodes a model reply and checks that every required field is
// present. Unknown authenticity values are dropped.
func ParseResult(raw string) (Result, error) {
	body := StripFences(raw)
	if body == "" {
		return Result{}, newError(ErrAnalysisFailed, fmt.Errorf("empty response"))
	}

	var wire wireResult
	if err := json.Unmarshal([]byte(body), &wire); err != nil {
		return Result{}, newError(ErrAnalysisFailed, fmt.Errorf("decode response: %w", err))
	}

	if wire.Summary == nil || strings.TrimSpace(*wire.Summary) == "" {
		return Result{}, missingField("summary")
	}
	lists := []struct {
		name  string
		value *[]string
	}{
		{"pros", wire.Pros},
		{"cons", wire.Cons},
		{"potentialLoopholes", wire.PotentialLoopholes},
		{"potentialChallenges", wire.PotentialChallenges},
	}
	for _, list := range lists {
		if list.value == nil {
			return Result{}, missingField(list.name)
		}
	}

	result := Result{
		Summary:             strings.TrimSpace(*wire.Summary),
		Pros:                cleanList(*wire.Pros),
		Cons:                cleanList(*wire.Cons),
		PotentialLoopholes:  cleanList(*wire.PotentialLoopholes),
		PotentialChallenges: cleanList(*wire.PotentialChallenges),
		IsLegal:             wire.IsLegal,
	}
	if wire.Authenticity != nil {
		if value, ok := ParseAuthenticity(*wire.Authenticity); ok {
			result.Authenticity = &value
		}
	}
	return result, nil
}

func missingField(name string) error {
	return newError(ErrAnalysisFailed, fmt.Errorf("response missing required field %q", name))
}

func cleanList(values []string) []string {
	out := make([]string, 0, len(values))
	for _, value := range values {
		value = strings.TrimSpace(value)
		if value != "" {
			out = append(out, value)
		}
	}
	return out
}
