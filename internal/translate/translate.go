package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	log "log/slog"

	"lull/internal/apperrors"
)

const (
	DefaultTimeout   = 10 * time.Second
	maxResponseBytes = 1 << 20
	sourceLanguage   = "en"
)

type Language struct {
	Name string
	Code string
}

// Languages is ordered; callers scanning text for a target take the first hit.
var Languages = []Language{
	{Name: "hindi", Code: "hi"},
	{Name: "marathi", Code: "mr"},
	{Name: "french", Code: "fr"},
}

// Lookup resolves a language name case-insensitively.
func Lookup(name string) (Language, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, l := range Languages {
		if l.Name == name {
			return l, true
		}
	}
	return Language{}, false
}

type Client struct {
	endpoint string
	apiKey   string
	timeout  time.Duration
	http     *http.Client
}

type Option func(*Client)

func WithAPIKey(key string) Option {
	return func(c *Client) { c.apiKey = key }
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

func NewClient(endpoint string, opts ...Option) *Client {
	c := &Client{
		endpoint: endpoint,
		timeout:  DefaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.http == nil {
		// the per-request context carries the deadline
		c.http = &http.Client{}
	}
	return c
}

type request struct {
	Q      string `json:"q"`
	Source string `json:"source"`
	Target string `json:"target"`
	Format string `json:"format"`
	APIKey string `json:"api_key,omitempty"`
}

type response struct {
	TranslatedText string `json:"translatedText"`
}

// Translate sends text to the LibreTranslate endpoint. language is a name
// from Languages, not a code.
func (c *Client) Translate(ctx context.Context, text, language string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", apperrors.Clarification("Please provide a sentence to translate.")
	}

	lang, ok := Lookup(language)
	if !ok {
		return "", apperrors.Clarification("I can translate to Hindi, Marathi, or French.")
	}

	body, err := json.Marshal(request{
		Q:      text,
		Source: sourceLanguage,
		Target: lang.Code,
		Format: "text",
		APIKey: c.apiKey,
	})
	if err != nil {
		return "", apperrors.NetworkFailed("Translation failed", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", apperrors.NetworkFailed("Translation failed", err)
	}
	req.Header.Set("Content-Type", "application/json")

	log.Debug("Translating", "target", lang.Code, "chars", len(text))

	resp, err := c.http.Do(req)
	if err != nil {
		return "", apperrors.NetworkFailed("Translation failed", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", apperrors.NetworkFailed("Translation failed", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", apperrors.NetworkFailed("Translation failed",
			fmt.Errorf("%d %s", resp.StatusCode, http.StatusText(resp.StatusCode)))
	}

	var out response
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", apperrors.NetworkFailed("Translation failed", fmt.Errorf("decode response: %w", err))
	}

	if strings.TrimSpace(out.TranslatedText) == "" {
		return "", apperrors.NetworkFailed("Translation failed.", nil)
	}

	return out.TranslatedText, nil
}
