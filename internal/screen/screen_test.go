package screen

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lull/internal/apperrors"
)

type call struct {
	name  string
	args  []string
	stdin []byte
}

func fakeRunner(calls *[]call, outputs map[string][]byte, errs map[string]error) Runner {
	return func(ctx context.Context, stdin []byte, name string, args ...string) ([]byte, error) {
		*calls = append(*calls, call{name: name, args: args, stdin: stdin})
		if err := errs[name]; err != nil {
			return nil, err
		}
		return outputs[name], nil
	}
}

func TestCaptureText_Pipeline(t *testing.T) {
	var calls []call
	run := fakeRunner(&calls, map[string][]byte{
		"grim":      []byte("PNG"),
		"tesseract": []byte("  Invoice\t\t 42 \n\n\n   Total:   10 USD  \n"),
	}, nil)

	r := NewReader([]string{"grim", "-"}, true, WithRunner(run))
	text, err := r.CaptureText(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "Invoice 42\nTotal: 10 USD", text)

	require.Len(t, calls, 2)
	assert.Equal(t, []string{"-"}, calls[0].args)
	assert.Equal(t, []string{"stdin", "stdout"}, calls[1].args)
	assert.Equal(t, []byte("PNG"), calls[1].stdin)
}

func TestCaptureText_Unavailable(t *testing.T) {
	var calls []call
	r := NewReader([]string{"grim", "-"}, false, WithRunner(fakeRunner(&calls, nil, nil)))

	_, err := r.CaptureText(context.Background())
	require.Error(t, err)

	kind, _ := apperrors.KindOf(err)
	assert.Equal(t, apperrors.KindUnavailable, kind)
	assert.Equal(t, "Screen OCR dependencies are not available.", apperrors.PublicMessage(err))
	assert.Empty(t, calls)
}

func TestCaptureText_Failure(t *testing.T) {
	var calls []call
	run := fakeRunner(&calls, nil, map[string]error{"grim": errors.New("no wayland display")})

	_, err := NewReader([]string{"grim", "-"}, true, WithRunner(run)).CaptureText(context.Background())
	require.Error(t, err)
	assert.Equal(t, "Screen capture failed: no wayland display", apperrors.PublicMessage(err))
}

func TestExtractText_OCRFailure(t *testing.T) {
	var calls []call
	run := fakeRunner(&calls, nil, map[string]error{"tesseract": errors.New("exit status 1")})

	_, err := NewReader([]string{"grim", "-"}, true, WithRunner(run)).ExtractText(context.Background(), []byte("PNG"))
	require.Error(t, err)

	kind, _ := apperrors.KindOf(err)
	assert.Equal(t, apperrors.KindCapture, kind)
}

func TestNormalizeWhitespace(t *testing.T) {
	assert.Equal(t, "a b\nc", NormalizeWhitespace("a    b\r\n\t\n  c  "))
	assert.Equal(t, "", NormalizeWhitespace(" \n\t\n"))
}

type stubModel struct {
	out string
	err error
	got string
}

func (s *stubModel) Complete(ctx context.Context, system, user string) (string, error) {
	s.got = user
	return s.out, s.err
}

func TestAnswer(t *testing.T) {
	screenText := "Invoice 42\nTotal: 10 USD\nPay by Friday"

	tests := []struct {
		name     string
		question string
		context  string
		want     string
	}{
		{"empty context", "what is on my screen", "  ", "I could not read any text on the screen."},
		{"summary phrase", "Hey, what's on my screen?", screenText, summaryPrefix + screenText},
		{"keyword present", "do you see the invoice?", screenText, "Yes, I can see invoice on the screen."},
		{"keyword absent", "is there a receipt", screenText, "I do not see receipt on the screen."},
		{"contain", "does it contain total!", screenText, "Yes, I can see total on the screen."},
		{"article kept inside word", "do you see another page", screenText, "I do not see another page on the screen."},
		{"no keyword", "tell me about the screen", screenText, summaryPrefix + screenText},
		{"empty capture tries next pattern", "is there a cat, do you see ?", screenText, "I do not see cat, do you see on the screen."},
	}

	q := NewQnA(nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, q.Answer(context.Background(), tt.question, tt.context))
		})
	}
}

func TestAnswer_ModelFirst(t *testing.T) {
	m := &stubModel{out: "The total is 10 USD."}
	q := NewQnA(m)

	got := q.Answer(context.Background(), "what is the total", "Total: 10 USD")

	assert.Equal(t, "The total is 10 USD.", got)
	assert.Contains(t, m.got, "Total: 10 USD")
	assert.Contains(t, m.got, "what is the total")
}

func TestAnswer_ModelFailureFallsBack(t *testing.T) {
	q := NewQnA(&stubModel{err: errors.New("rate limited")})
	got := q.Answer(context.Background(), "is there a total", "Total: 10 USD")
	assert.Equal(t, "Yes, I can see total on the screen.", got)

	q = NewQnA(&stubModel{out: "   "})
	got = q.Answer(context.Background(), "is there a total", "Total: 10 USD")
	assert.Equal(t, "Yes, I can see total on the screen.", got)
}

func TestAnswer_EmptyContextSkipsModel(t *testing.T) {
	m := &stubModel{out: "hallucinated"}
	assert.Equal(t, emptyContextMsg, NewQnA(m).Answer(context.Background(), "anything", ""))
	assert.Empty(t, m.got)
}

func TestSummarize(t *testing.T) {
	t.Run("first six lines", func(t *testing.T) {
		text := "1\n2\n3\n4\n5\n6\n7\n8"
		assert.Equal(t, "1\n2\n3\n4\n5\n6", Summarize(text))
	})

	t.Run("length cap", func(t *testing.T) {
		text := strings.Repeat("a", 599) + " " + strings.Repeat("b", 100)
		got := Summarize(text)
		assert.Equal(t, strings.Repeat("a", 599)+"...", got)
	})

	t.Run("exactly at cap", func(t *testing.T) {
		text := strings.Repeat("x", 600)
		assert.Equal(t, text, Summarize(text))
	})

	t.Run("counts characters not bytes", func(t *testing.T) {
		text := strings.Repeat("é", 600)
		assert.Equal(t, text, Summarize(text))
	})
}
