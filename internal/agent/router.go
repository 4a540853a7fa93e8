// Package agent classifies utterances and routes them to the capability
// providers.
package agent

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	log "log/slog"

	"lull/internal/apperrors"
	"lull/internal/capability"
	"lull/internal/metrics"
	"lull/internal/screen"
)

type Intent int

const (
	Unknown Intent = iota
	Greeting
	Stop
	Translate
	ScreenQuery
	ObjectQuery
)

func (i Intent) String() string {
	switch i {
	case Greeting:
		return "greeting"
	case Stop:
		return "stop"
	case Translate:
		return "translate"
	case ScreenQuery:
		return "screen_query"
	case ObjectQuery:
		return "object_query"
	default:
		return "unknown"
	}
}

const (
	StoppedReply       = "Stopped."
	ClarifyTargetReply = "Please specify a target language: Hindi, Marathi, or French."
	noObjectsReply     = "I could not identify any objects in your hand."
	fallbackReply      = "I can help with screen reading, object detection, or translations to Hindi, Marathi, and French."

	screenUnavailableReply    = "Screen OCR dependencies are not available."
	translateUnavailableReply = "Translation is not available."
	visionUnavailableReply    = "Camera is not available."
)

var objectPhrases = []string{"hand", "holding", "object", "camera", "see what i have"}

type Speaker interface {
	SpeakAsync(text string)
	Stop()
}

type ScreenReader interface {
	CaptureText(ctx context.Context) (string, error)
}

type ScreenAnswerer interface {
	Answer(ctx context.Context, question, screenText string) string
}

type Translator interface {
	Translate(ctx context.Context, text, language string) (string, error)
}

type Vision interface {
	DetectObjects(ctx context.Context) ([]string, error)
}

// Providers may be partly nil; a nil provider behaves as unavailable and
// a nil Answerer falls back to the screen heuristics.
type Providers struct {
	Speaker    Speaker
	Screen     ScreenReader
	Answerer   ScreenAnswerer
	Translator Translator
	Vision     Vision
}

type Config struct {
	AgentName string
	UserName  string
	// Caps is required. Its zero value marks every provider Unavailable;
	// pass the result of capability.Probe, or capability.All in tests.
	Caps capability.Set
}

type Reply struct {
	Intent Intent
	Text   string
}

type rule struct {
	intent Intent
	match  func(lower string) bool
	handle func(ctx context.Context, text string) string
}

type Router struct {
	mu    sync.Mutex
	cfg   Config
	p     Providers
	rules []rule
}

func New(cfg Config, p Providers) *Router {
	if p.Answerer == nil {
		p.Answerer = screen.NewQnA(nil)
	}
	if cfg.Caps == (capability.Set{}) {
		log.Warn("No capabilities set, screen, translation and vision are disabled")
	}
	r := &Router{cfg: cfg, p: p}

	greet := "hi " + strings.ToLower(cfg.AgentName)

	// order is the tie-break: first match wins
	r.rules = []rule{
		{Greeting, func(l string) bool { return strings.Contains(l, greet) }, r.onGreet},
		{Stop, func(l string) bool { return strings.TrimSpace(l) == "stop" }, r.onStop},
		{Translate, func(l string) bool { return strings.Contains(l, "translate") }, r.onTranslate},
		{ScreenQuery, func(l string) bool { return strings.Contains(l, "screen") }, r.onScreen},
		{ObjectQuery, containsAny(objectPhrases), r.onObjects},
	}

	return r
}

func containsAny(phrases []string) func(string) bool {
	return func(l string) bool {
		for _, p := range phrases {
			if strings.Contains(l, p) {
				return true
			}
		}
		return false
	}
}

func (r *Router) Greeting() string {
	return fmt.Sprintf("Hi %s, how may I help you?", r.cfg.UserName)
}

// Ready is spoken once when a shell starts.
func (r *Router) Ready() string {
	return fmt.Sprintf("%s is ready. Say 'Hi %s'.", r.cfg.AgentName, r.cfg.AgentName)
}

func (r *Router) Classify(text string) Intent {
	if rl := r.match(text); rl != nil {
		return rl.intent
	}
	return Unknown
}

func (r *Router) match(text string) *rule {
	lower := strings.ToLower(text)
	for i := range r.rules {
		if r.rules[i].match(lower) {
			return &r.rules[i]
		}
	}
	return nil
}

// HandleCommand returns the reply text for one utterance. Provider failures
// come back as their user-facing message, never as an error.
func (r *Router) HandleCommand(ctx context.Context, text string) string {
	return r.Respond(ctx, text).Text
}

func (r *Router) Respond(ctx context.Context, text string) Reply {
	if strings.TrimSpace(text) == "" {
		return Reply{Intent: Unknown}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	rl := r.match(text)
	if rl == nil {
		metrics.IntentsTotal.WithLabelValues(Unknown.String()).Inc()
		return Reply{Intent: Unknown, Text: fallbackReply}
	}

	metrics.IntentsTotal.WithLabelValues(rl.intent.String()).Inc()
	log.Debug("Routed", "intent", rl.intent, "text", text)

	return Reply{Intent: rl.intent, Text: rl.handle(ctx, text)}
}

func (r *Router) onGreet(context.Context, string) string {
	return r.Greeting()
}

func (r *Router) onStop(context.Context, string) string {
	if r.p.Speaker != nil {
		r.p.Speaker.Stop()
	}
	return StoppedReply
}

func (r *Router) onTranslate(ctx context.Context, text string) string {
	req := ParseTranslation(text)
	if req.Target == "" {
		return ClarifyTargetReply
	}
	if r.p.Translator == nil || r.cfg.Caps.Translation == capability.Unavailable {
		return translateUnavailableReply
	}

	out, err := observe("translate", func() (string, error) {
		return r.p.Translator.Translate(ctx, req.Sentence, req.Target)
	})
	if err != nil {
		return apperrors.PublicMessage(err)
	}
	return out
}

func (r *Router) onScreen(ctx context.Context, text string) string {
	if r.p.Screen == nil || r.cfg.Caps.ScreenText == capability.Unavailable {
		return screenUnavailableReply
	}

	screenText, err := observe("screen", func() (string, error) {
		return r.p.Screen.CaptureText(ctx)
	})
	if err != nil {
		return apperrors.PublicMessage(err)
	}

	return r.p.Answerer.Answer(ctx, text, screenText)
}

func (r *Router) onObjects(ctx context.Context, _ string) string {
	if r.p.Vision == nil || r.cfg.Caps.Vision == capability.Unavailable {
		return visionUnavailableReply
	}

	labels, err := observe("vision", func() ([]string, error) {
		return r.p.Vision.DetectObjects(ctx)
	})
	if err != nil {
		return apperrors.PublicMessage(err)
	}
	return DescribeObjects(labels)
}

// DescribeObjects renders detected labels as a spoken sentence.
func DescribeObjects(labels []string) string {
	if len(labels) == 0 {
		return noObjectsReply
	}
	return "I see: " + strings.Join(labels, ", ") + "."
}

func observe[T any](provider string, call func() (T, error)) (T, error) {
	start := time.Now()
	out, err := call()
	metrics.ProviderDuration.WithLabelValues(provider).Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.ProviderFailuresTotal.WithLabelValues(provider).Inc()
		log.Warn("Provider failed", "provider", provider, "err", err)
	}
	return out, err
}
