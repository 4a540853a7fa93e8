package screen

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	log "log/slog"
)

const (
	summaryLines = 6
	summaryChars = 600

	emptyContextMsg = "I could not read any text on the screen."
	summaryPrefix   = "Here is what I can read from the screen:\n"
)

var summaryPhrases = []string{
	"what is on my screen",
	"what's on my screen",
	"read my screen",
	"read the screen",
	"what is on the screen",
	"what is on screen",
}

// first match wins
var keywordPatterns = []*regexp.Regexp{
	regexp.MustCompile(`do you see\s+(?:(?:a|an|the)\s+)?(.+)`),
	regexp.MustCompile(`is there\s+(?:(?:a|an|the)\s+)?(.+)`),
	regexp.MustCompile(`does it contain\s+(?:(?:a|an|the)\s+)?(.+)`),
}

const answerSystemPrompt = `You answer questions about the text currently visible on the user's screen.
Use only the screen text provided. Answer in one or two short spoken sentences.
If the screen text does not contain the answer, say so plainly.`

type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

type QnA struct {
	model Completer
}

// NewQnA returns the heuristic answerer; model may be nil.
func NewQnA(model Completer) *QnA {
	return &QnA{model: model}
}

func (q *QnA) Answer(ctx context.Context, question, screenText string) string {
	if strings.TrimSpace(screenText) == "" {
		return emptyContextMsg
	}

	if q.model != nil {
		prompt := fmt.Sprintf("Screen text:\n%s\n\nQuestion: %s", screenText, question)
		out, err := q.model.Complete(ctx, answerSystemPrompt, prompt)
		if err == nil && strings.TrimSpace(out) != "" {
			return strings.TrimSpace(out)
		}
		log.Warn("Screen answer model failed, using heuristic", "err", err)
	}

	return answerHeuristic(question, screenText)
}

func answerHeuristic(question, screenText string) string {
	lower := strings.ToLower(strings.TrimSpace(question))

	for _, phrase := range summaryPhrases {
		if strings.Contains(lower, phrase) {
			return summaryPrefix + Summarize(screenText)
		}
	}

	keyword := extractKeyword(lower)
	if keyword == "" {
		return summaryPrefix + Summarize(screenText)
	}

	if strings.Contains(strings.ToLower(screenText), keyword) {
		return fmt.Sprintf("Yes, I can see %s on the screen.", keyword)
	}
	return fmt.Sprintf("I do not see %s on the screen.", keyword)
}

func extractKeyword(lowerQuestion string) string {
	for _, re := range keywordPatterns {
		m := re.FindStringSubmatch(lowerQuestion)
		if m == nil {
			continue
		}
		if kw := strings.Trim(m[1], " .?!"); kw != "" {
			return kw
		}
	}
	return ""
}

// Summarize keeps the first lines of text and caps the result length,
// marking a cut with "...".
func Summarize(text string) string {
	lines := strings.Split(text, "\n")
	if len(lines) > summaryLines {
		lines = lines[:summaryLines]
	}
	summary := strings.Join(lines, "\n")

	if utf8.RuneCountInString(summary) > summaryChars {
		runes := []rune(summary)
		summary = strings.TrimRight(string(runes[:summaryChars]), " \t\r\n") + "..."
	}
	return summary
}
