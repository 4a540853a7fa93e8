package agent

import (
	"regexp"
	"strings"

	"lull/internal/translate"
)

type TranslationRequest struct {
	Sentence string
	// Target is a language name from translate.Languages, empty when the
	// utterance names none.
	Target string
}

var (
	quotedRe    = regexp.MustCompile(`"([^"]+)"`)
	translateRe = regexp.MustCompile(`(?i)\btranslate\b`)
	targetRes   = map[string][]*regexp.Regexp{}
	languageRes = map[string]*regexp.Regexp{}
)

func init() {
	for _, l := range translate.Languages {
		name := regexp.QuoteMeta(l.Name)
		languageRes[l.Name] = regexp.MustCompile(`\b` + name + `\b`)
		targetRes[l.Name] = []*regexp.Regexp{
			regexp.MustCompile(`(?i)\bto\s+` + name + `\b`),
			regexp.MustCompile(`(?i)\bin\s+` + name + `\b`),
		}
	}
}

// ParseTranslation splits a translate command into the sentence and the
// target language. A double-quoted sentence is taken verbatim.
func ParseTranslation(text string) TranslationRequest {
	var req TranslationRequest

	lower := strings.ToLower(text)
	for _, l := range translate.Languages {
		if languageRes[l.Name].MatchString(lower) {
			req.Target = l.Name
			break
		}
	}

	if m := quotedRe.FindStringSubmatch(text); m != nil {
		req.Sentence = m[1]
		return req
	}

	sentence := translateRe.ReplaceAllString(text, "")
	if req.Target != "" {
		for _, re := range targetRes[req.Target] {
			sentence = re.ReplaceAllString(sentence, "")
		}
	}
	sentence = strings.ReplaceAll(sentence, ":", " ")
	req.Sentence = strings.Trim(sentence, " -")

	return req
}
