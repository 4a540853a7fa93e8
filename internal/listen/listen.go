// Package listen holds the typed-input listener and the Listener contract
// shared with the voice listeners.
package listen

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
)

const Prompt = "You: "

type Listener interface {
	// Listen blocks for one utterance. It returns io.EOF once the input
	// has ended; a blank utterance is "" with a nil error.
	Listen(ctx context.Context) (string, error)
}

type lineResult struct {
	text string
	err  error
}

// TextListener reads one line per call from an input stream.
type TextListener struct {
	out    io.Writer
	prompt string

	once  sync.Once
	lines chan lineResult
	in    *bufio.Scanner
}

func NewTextListener(in io.Reader, out io.Writer) *TextListener {
	return &TextListener{
		out:    out,
		prompt: Prompt,
		in:     bufio.NewScanner(in),
		lines:  make(chan lineResult),
	}
}

func (l *TextListener) Listen(ctx context.Context) (string, error) {
	l.once.Do(func() { go l.scan() })

	if l.out != nil && l.prompt != "" {
		fmt.Fprint(l.out, l.prompt)
	}

	select {
	case r, ok := <-l.lines:
		if !ok {
			return "", io.EOF
		}
		return r.text, r.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// scan feeds lines until EOF. A blocked stdin read cannot be interrupted, so
// it runs apart from Listen and outlives a cancelled caller.
func (l *TextListener) scan() {
	defer close(l.lines)
	for l.in.Scan() {
		l.lines <- lineResult{text: strings.TrimSpace(l.in.Text())}
	}
	if err := l.in.Err(); err != nil && !errors.Is(err, io.EOF) {
		l.lines <- lineResult{err: fmt.Errorf("read input: %w", err)}
	}
}
