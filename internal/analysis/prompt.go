package analysis

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"

	"github.com/ragavi-632007/visionx/internal/document"
)

// ResponseSchema is the JSON schema every analysis reply must satisfy.
const ResponseSchema = `{
  "type": "object",
  "properties": {
    "summary": {"type": "string"},
    "pros": {"type": "array", "items": {"type": "string"}},
    "cons": {"type": "array", "items": {"type": "string"}},
    "potentialLoopholes": {"type": "array", "items": {"type": "string"}},
    "potentialChallenges": {"type": "array", "items": {"type": "string"}},
    "isLegal": {"type": "boolean"},
    "authenticity": {"type": "string", "enum": ["real", "fake", "unknown"]}
  },
  "required": ["summary", "pros", "cons", "potentialLoopholes", "potentialChallenges"]
}`

const analysisPrompt = `You are an experienced legal analyst reviewing a document for a non-lawyer.
Read every attached page and reply with one JSON object matching this JSON schema:

%s

Guidance:
- Write every string value in %s.
- "summary": a short plain-language overview of what the document is and what it commits the parties to.
- "pros": terms that favour or protect the reader.
- "cons": terms that disadvantage the reader or carry risk.
- "potentialLoopholes": vague wording, missing definitions or gaps that another party could exploit.
- "potentialChallenges": practical obstacles to enforcing or complying with the document.
- "isLegal": true only if the document is a legal instrument such as a contract, agreement, deed, notice, affidavit, court filing, will or licence.
- "authenticity": "real", "fake" or "unknown", judged from formatting, signatures, seals, dates and internal consistency.
- Use an empty array when nothing applies.
- Reply with the JSON object only, without Markdown fences or commentary.`

// Request is a provider-neutral analysis request. Messages renders it for a
// specific provider.
type Request struct {
	Prompt   string
	Language string
	Files    []document.File
}

// BuildRequest validates the inputs and assembles the prompt. It never
// touches the network.
func BuildRequest(files []document.File, language string) (Request, error) {
	if len(files) == 0 {
		return Request{}, ErrNoFiles
	}
	for _, file := range files {
		if len(file.Data) == 0 {
			return Request{}, fmt.Errorf("%w: %s", ErrEmptyFile, file.Name)
		}
	}
	name := LanguageName(language)
	return Request{
		Prompt:   fmt.Sprintf(analysisPrompt, ResponseSchema, name),
		Language: name,
		Files:    files,
	}, nil
}

// Messages returns one human message holding the prompt followed by one
// part per file in input order.
func (r Request) Messages(provider string) []llms.MessageContent {
	parts := make([]llms.ContentPart, 0, len(r.Files)+1)
	parts = append(parts, llms.TextPart(r.Prompt))
	for _, file := range r.Files {
		parts = append(parts, filePart(provider, file))
	}
	return []llms.MessageContent{{Role: llms.ChatMessageTypeHuman, Parts: parts}}
}

// inlineImageTypes are the image types the OpenAI and Anthropic chat APIs
// accept as inline content.
var inlineImageTypes = map[string]bool{
	document.MIMEPNG:  true,
	document.MIMEJPEG: true,
	document.MIMEWEBP: true,
	"image/gif":       true,
}

// RequireImages fails with ErrUnsupportedMedia unless every file is an image
// type that image-only providers accept.
func (r Request) RequireImages() error {
	for _, file := range r.Files {
		if !inlineImageTypes[file.MIMEType] {
			return newError(ErrUnsupportedMedia, fmt.Errorf("%s: %s is not sent as an image", file.Name, file.MIMEType))
		}
	}
	return nil
}

func filePart(provider string, file document.File) llms.ContentPart {
	mimeType := file.MIMEType
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	if usesDataURL(provider) {
		return llms.ImageURLPart("data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(file.Data))
	}
	return llms.BinaryPart(mimeType, file.Data)
}

func usesDataURL(provider string) bool {
	return strings.EqualFold(provider, ProviderOpenAI)
}
