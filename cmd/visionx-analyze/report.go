package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/ragavi-632007/visionx/internal/analysis"
	"github.com/ragavi-632007/visionx/internal/classify"
	"github.com/ragavi-632007/visionx/internal/pipeline"
)

type report struct {
	File          string            `json:"file"`
	Language      string            `json:"language"`
	Protected     bool              `json:"protected"`
	RenderedPages int               `json:"renderedPages,omitempty"`
	Analysis      analysis.Result   `json:"analysis"`
	Insights      classify.Insights `json:"insights"`
}

func reportFromOutcome(outcome pipeline.Outcome, language string) report {
	return report{
		File:          outcome.File.Name,
		Language:      analysis.LanguageName(language),
		Protected:     outcome.Protected,
		RenderedPages: outcome.RenderedPages,
		Analysis:      outcome.Result,
		Insights:      outcome.Insights,
	}
}

func writeReport(w io.Writer, r report) {
	colorCyan.Fprintf(w, "%s (%s)\n", r.File, r.Language)
	if r.Protected {
		fmt.Fprintf(w, "Protected PDF, %d page(s) rendered\n", r.RenderedPages)
	}
	fmt.Fprintln(w)

	colorCyan.Fprintln(w, "Summary")
	fmt.Fprintln(w, strings.TrimSpace(r.Analysis.Summary))

	writeSection(w, "Pros", r.Analysis.Pros)
	writeSection(w, "Cons", r.Analysis.Cons)
	writeSection(w, "Potential loopholes", r.Analysis.PotentialLoopholes)
	writeSection(w, "Potential challenges", r.Analysis.PotentialChallenges)

	fmt.Fprintln(w)
	if r.Insights.IsLegal {
		colorGreen.Fprintln(w, "Legal document: yes")
	} else {
		colorYellow.Fprintln(w, "Legal document: no")
	}
	authenticityColor(r.Insights.Authenticity).Fprintf(w, "Authenticity: %s", r.Insights.Authenticity)
	fmt.Fprintf(w, " (%s)\n", r.Insights.Source)
}

func writeSection(w io.Writer, title string, items []string) {
	fmt.Fprintln(w)
	colorCyan.Fprintln(w, title)
	if len(items) == 0 {
		fmt.Fprintln(w, "  none")
		return
	}
	for _, item := range items {
		fmt.Fprintf(w, "  - %s\n", item)
	}
}

func authenticityColor(value analysis.Authenticity) *color.Color {
	switch value {
	case analysis.AuthenticityReal:
		return colorGreen
	case analysis.AuthenticityFake:
		return colorRed
	default:
		return colorYellow
	}
}
