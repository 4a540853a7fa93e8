package screen

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"regexp"
	"strings"

	log "log/slog"

	"lull/internal/apperrors"
)

const unavailableMsg = "Screen OCR dependencies are not available."

var blankRunRe = regexp.MustCompile(`[ \t]+`)

// Runner executes name with args, feeding stdin when it is non-nil, and
// returns stdout.
type Runner func(ctx context.Context, stdin []byte, name string, args ...string) ([]byte, error)

func ExecRunner(ctx context.Context, stdin []byte, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	if stdin != nil {
		cmd.Stdin = bytes.NewReader(stdin)
	}

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("%s: %w: %s", name, err, msg)
		}
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return out, nil
}

type Reader struct {
	capture   []string
	ocr       []string
	available bool
	run       Runner
}

type ReaderOption func(*Reader)

func WithRunner(run Runner) ReaderOption {
	return func(r *Reader) { r.run = run }
}

// NewReader builds a reader that screenshots with captureCmd and reads the
// PNG with tesseract. available=false short-circuits every call.
func NewReader(captureCmd []string, available bool, opts ...ReaderOption) *Reader {
	r := &Reader{
		capture:   captureCmd,
		ocr:       []string{"tesseract", "stdin", "stdout"},
		available: available && len(captureCmd) > 0,
		run:       ExecRunner,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// CaptureText takes a fresh screenshot and returns its text. Nothing is
// cached between calls.
func (r *Reader) CaptureText(ctx context.Context) (string, error) {
	if !r.available {
		return "", apperrors.Unavailable(unavailableMsg)
	}

	img, err := r.run(ctx, nil, r.capture[0], r.capture[1:]...)
	if err != nil {
		return "", apperrors.CaptureFailed("Screen capture failed", err)
	}
	if len(img) == 0 {
		return "", apperrors.CaptureFailed("Screen capture failed", errors.New("empty screenshot"))
	}

	log.Debug("Captured screen", "bytes", len(img))

	return r.ExtractText(ctx, img)
}

// ExtractText runs OCR over an already captured image.
func (r *Reader) ExtractText(ctx context.Context, img []byte) (string, error) {
	if !r.available {
		return "", apperrors.Unavailable(unavailableMsg)
	}
	if len(img) == 0 {
		return "", apperrors.CaptureFailed("Screen capture failed", errors.New("empty image"))
	}

	out, err := r.run(ctx, img, r.ocr[0], r.ocr[1:]...)
	if err != nil {
		return "", apperrors.CaptureFailed("Screen capture failed", err)
	}

	return NormalizeWhitespace(string(out)), nil
}

// NormalizeWhitespace collapses runs of spaces and tabs, trims every line and
// drops the empty ones.
func NormalizeWhitespace(text string) string {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	out := lines[:0]
	for _, line := range lines {
		line = strings.TrimSpace(blankRunRe.ReplaceAllString(line, " "))
		if line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}
