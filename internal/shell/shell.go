// Package shell runs the interactive assistant loop on a terminal.
package shell

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	log "log/slog"

	"lull/internal/agent"
	"lull/internal/listen"
)

const (
	DefaultPoll = 200 * time.Millisecond
	queueSize   = 64
	retryDelay  = time.Second
)

type Entry struct {
	Role string
	Text string
}

type Responder interface {
	Respond(ctx context.Context, text string) agent.Reply
	Ready() string
}

type Speaker interface {
	SpeakAsync(text string)
}

type Config struct {
	AgentName string
	// EchoUser repeats what was heard; off for typed input, which the
	// terminal already shows.
	EchoUser bool
	Poll     time.Duration
}

type Shell struct {
	cfg      Config
	listener listen.Listener
	router   Responder
	speaker  Speaker
	out      io.Writer
}

func New(cfg Config, l listen.Listener, r Responder, sp Speaker, out io.Writer) *Shell {
	if cfg.Poll <= 0 {
		cfg.Poll = DefaultPoll
	}
	return &Shell{cfg: cfg, listener: l, router: r, speaker: sp, out: out}
}

// Run listens on a background goroutine and prints the conversation every
// poll tick. It returns when the input ends or ctx is cancelled.
func (s *Shell) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	queue := make(chan Entry, queueSize)
	done := make(chan struct{})

	ready := s.router.Ready()
	s.print(Entry{Role: s.cfg.AgentName, Text: ready})
	s.speaker.SpeakAsync(ready)

	go func() {
		defer close(done)
		defer close(queue)
		s.listenLoop(ctx, queue)
	}()

	ticker := time.NewTicker(s.cfg.Poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			<-done
			s.drain(queue)
			return nil
		case <-ticker.C:
			if !s.drain(queue) {
				return nil
			}
		}
	}
}

// drain prints every queued entry and reports whether the queue is still open.
func (s *Shell) drain(queue <-chan Entry) bool {
	for {
		select {
		case e, ok := <-queue:
			if !ok {
				return false
			}
			s.print(e)
		default:
			return true
		}
	}
}

func (s *Shell) print(e Entry) {
	fmt.Fprintf(s.out, "%s: %s\n", e.Role, e.Text)
}

func (s *Shell) listenLoop(ctx context.Context, queue chan<- Entry) {
	for {
		text, err := s.listener.Listen(ctx)
		switch {
		case errors.Is(err, io.EOF):
			return
		case ctx.Err() != nil:
			return
		case err != nil:
			log.Warn("Listen failed", "err", err)
			select {
			case <-time.After(retryDelay):
				continue
			case <-ctx.Done():
				return
			}
		}

		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}

		if s.cfg.EchoUser && !push(ctx, queue, Entry{Role: "You", Text: text}) {
			return
		}

		reply := s.router.Respond(ctx, text)
		if reply.Text == "" {
			continue
		}
		if !push(ctx, queue, Entry{Role: s.cfg.AgentName, Text: reply.Text}) {
			return
		}

		if reply.Intent != agent.Stop {
			s.speaker.SpeakAsync(reply.Text)
		}
	}
}

func push(ctx context.Context, queue chan<- Entry, e Entry) bool {
	select {
	case queue <- e:
		return true
	case <-ctx.Done():
		return false
	}
}
