package analysis

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/tmc/langchaingo/llms"
)

var ErrEmptyQuestion = errors.New("analysis: question is empty")

// MaxHistoryTurns bounds the conversation replayed to the model.
const MaxHistoryTurns = 20

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type ChatTurn struct {
	Role    string
	Content string
}

// ChatRequest asks a follow-up question about an analyzed document.
// DocumentText is optional extracted text of the original file.
type ChatRequest struct {
	DocumentName string
	DocumentText string
	Analysis     Result
	History      []ChatTurn
	Question     string
	Language     string
}

const chatSystemPrompt = `You are a legal assistant answering questions about one document the user uploaded.
Answer in %s. Base every answer on the analysis and document text below. If the answer is not in the document, say so.
This is general information, not legal advice; recommend a qualified lawyer for decisions.

Document: %s

Analysis:
%s`

// Answer replies to a question about a previously analyzed document. It uses
// the same credential, retry policy and error taxonomy as AnalyzeDocument.
func (c *Client) Answer(ctx context.Context, req ChatRequest) (string, error) {
	question := strings.TrimSpace(req.Question)
	if question == "" {
		return "", ErrEmptyQuestion
	}
	model, err := c.getModel(ctx, false)
	if err != nil {
		return "", err
	}

	language := LanguageName(req.Language)
	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, fmt.Sprintf(chatSystemPrompt, language, req.DocumentName, describeAnalysis(req.Analysis, req.DocumentText))),
	}
	history := req.History
	if len(history) > MaxHistoryTurns {
		history = history[len(history)-MaxHistoryTurns:]
	}
	for _, turn := range history {
		role := llms.ChatMessageTypeHuman
		if turn.Role == RoleAssistant {
			role = llms.ChatMessageTypeAI
		}
		messages = append(messages, llms.TextParts(role, turn.Content))
	}
	messages = append(messages, llms.TextParts(llms.ChatMessageTypeHuman, question))

	logger := c.logger.WithFields(logrus.Fields{
		"provider": c.Provider(),
		"model":    c.Model(),
		"history":  len(history),
	})
	answer, err := c.generate(ctx, logger, model, messages, c.callOptions())
	if err != nil {
		return "", err
	}
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return "", newError(ErrAnalysisFailed, errors.New("empty answer"))
	}
	return answer, nil
}

func describeAnalysis(result Result, text string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Summary: %s\n", result.Summary)
	writeList(&b, "Pros", result.Pros)
	writeList(&b, "Cons", result.Cons)
	writeList(&b, "Potential loopholes", result.PotentialLoopholes)
	writeList(&b, "Potential challenges", result.PotentialChallenges)
	if text = strings.TrimSpace(text); text != "" {
		b.WriteString("\nDocument text:\n")
		b.WriteString(text)
		b.WriteString("\n")
	}
	return b.String()
}

func writeList(b *strings.Builder, title string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(b, "%s:\n", title)
	for _, item := range items {
		fmt.Fprintf(b, "- %s\n", item)
	}
}
