// Package classify derives isLegal and authenticity when the model does not
// report them.
package classify

import (
	"sort"
	"strings"

	"github.com/ragavi-632007/visionx/internal/analysis"
)

const (
	SourceModel      = "model"
	SourceClassifier = "classifier"
)

// Insights is the classification of one document with the evidence used.
type Insights struct {
	IsLegal      bool                  `json:"isLegal"`
	Authenticity analysis.Authenticity `json:"authenticity"`
	Source       string                `json:"source"`
	Signals      []string              `json:"signals"`
}

// Classifier inspects the analysis text and optional extracted document text.
type Classifier interface {
	Classify(result analysis.Result, documentText string) Insights
}

// Resolve prefers values reported by the model and asks c only for missing
// ones.
func Resolve(c Classifier, result analysis.Result, documentText string) Insights {
	if result.IsLegal != nil && result.Authenticity != nil {
		return Insights{
			IsLegal:      *result.IsLegal,
			Authenticity: *result.Authenticity,
			Source:       SourceModel,
			Signals:      []string{},
		}
	}
	insights := c.Classify(result, documentText)
	if result.IsLegal != nil {
		insights.IsLegal = *result.IsLegal
	}
	if result.Authenticity != nil {
		insights.Authenticity = *result.Authenticity
	}
	insights.Source = SourceClassifier
	return insights
}

// Fill returns result with missing optional fields set from c.
func Fill(c Classifier, result analysis.Result, documentText string) analysis.Result {
	insights := Resolve(c, result, documentText)
	if result.IsLegal == nil {
		isLegal := insights.IsLegal
		result.IsLegal = &isLegal
	}
	if result.Authenticity == nil {
		authenticity := insights.Authenticity
		result.Authenticity = &authenticity
	}
	return result
}

// Keywords is a term-matching Classifier.
type Keywords struct {
	Legal        []string
	Genuine      []string
	Suspicious   []string
	MinLegalHits int
}

var DefaultKeywords = Keywords{
	Legal: []string{
		"agreement", "contract", "clause", "hereby", "whereas", "party", "parties",
		"lease", "deed", "affidavit", "court", "jurisdiction", "indemn", "liabilit",
		"terminat", "plaintiff", "defendant", "notary", "statute", "licens", "tenant",
		"landlord", "employer", "employee", "arbitration", "governing law", "obligation",
	},
	Genuine: []string{
		"signed", "signature", "seal", "stamp", "notarized", "notarised", "registered",
		"witnessed", "authentic", "genuine", "letterhead",
	},
	Suspicious: []string{
		"fake", "forged", "forgery", "fabricated", "tampered", "fraud", "counterfeit",
		"not authentic", "inconsistent", "suspicious", "altered",
	},
	MinLegalHits: 3,
}

func (k Keywords) Classify(result analysis.Result, documentText string) Insights {
	corpus := strings.ToLower(strings.Join([]string{
		result.Summary,
		strings.Join(result.Pros, " "),
		strings.Join(result.Cons, " "),
		strings.Join(result.PotentialLoopholes, " "),
		strings.Join(result.PotentialChallenges, " "),
		documentText,
	}, " "))

	legal := matches(corpus, k.Legal)
	genuine := matches(corpus, k.Genuine)
	suspicious := matches(corpus, k.Suspicious)

	minHits := k.MinLegalHits
	if minHits <= 0 {
		minHits = 1
	}

	authenticity := analysis.AuthenticityUnknown
	switch {
	case len(suspicious) > 0 && len(suspicious) >= len(genuine):
		authenticity = analysis.AuthenticityFake
	case len(genuine) >= 2 && len(suspicious) == 0:
		authenticity = analysis.AuthenticityReal
	}

	signals := make([]string, 0, len(legal)+len(genuine)+len(suspicious))
	for _, term := range legal {
		signals = append(signals, "legal:"+term)
	}
	for _, term := range genuine {
		signals = append(signals, "genuine:"+term)
	}
	for _, term := range suspicious {
		signals = append(signals, "suspicious:"+term)
	}

	return Insights{
		IsLegal:      len(legal) >= minHits,
		Authenticity: authenticity,
		Source:       SourceClassifier,
		Signals:      signals,
	}
}

func matches(corpus string, terms []string) []string {
	var found []string
	for _, term := range terms {
		if strings.Contains(corpus, term) {
			found = append(found, term)
		}
	}
	sort.Strings(found)
	return found
}
