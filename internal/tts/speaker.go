package tts

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
	"time"

	log "log/slog"
)

type Engine interface {
	Speak(ctx context.Context, text string) error
}

// Ducker lowers other audio streams while the assistant talks.
type Ducker interface {
	DuckOthers(ctx context.Context, factor float64, duration time.Duration) error
	UnduckOthers(ctx context.Context, duration time.Duration) error
}

// Espeak speaks through the espeak-ng binary. Cancelling ctx kills the
// process mid-utterance.
type Espeak struct {
	Voice string
	Rate  int
}

func (e Espeak) Speak(ctx context.Context, text string) error {
	args := []string{}
	if e.Voice != "" {
		args = append(args, "-v", e.Voice)
	}
	if e.Rate > 0 {
		args = append(args, "-s", fmt.Sprint(e.Rate))
	}
	args = append(args, "--", text)

	cmd := exec.CommandContext(ctx, "espeak-ng", args...)
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("espeak-ng: %w", err)
	}
	return nil
}

// Printer is the no-audio fallback: it writes each utterance on its own line.
type Printer struct {
	W io.Writer
}

func (p Printer) Speak(ctx context.Context, text string) error {
	_, err := fmt.Fprintln(p.W, text)
	return err
}

type playback struct {
	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

// Speaker plays one utterance at a time. Starting a new one cancels the
// utterance in flight; nothing is queued.
type Speaker struct {
	engine Engine
	ducker Ducker

	mu  sync.Mutex
	cur *playback
}

func NewSpeaker(engine Engine, ducker Ducker) *Speaker {
	return &Speaker{engine: engine, ducker: ducker}
}

func (s *Speaker) SpeakAsync(text string) {
	if strings.TrimSpace(text) == "" {
		return
	}
	s.start(context.Background(), text)
}

// Speak blocks until the utterance finishes, is replaced, or ctx is done.
func (s *Speaker) Speak(ctx context.Context, text string) error {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	p := s.start(ctx, text)
	<-p.done
	return p.err
}

func (s *Speaker) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
}

// Wait blocks until the current utterance, if any, is over.
func (s *Speaker) Wait() {
	s.mu.Lock()
	p := s.cur
	s.mu.Unlock()

	if p != nil {
		<-p.done
	}
}

func (s *Speaker) start(parent context.Context, text string) *playback {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopLocked()

	ctx, cancel := context.WithCancel(parent)
	p := &playback{cancel: cancel, done: make(chan struct{})}
	s.cur = p

	go func() {
		defer close(p.done)
		defer cancel()
		p.err = s.play(ctx, text)
	}()

	return p
}

func (s *Speaker) stopLocked() {
	if s.cur == nil {
		return
	}
	s.cur.cancel()
	<-s.cur.done
	s.cur = nil
}

func (s *Speaker) play(ctx context.Context, text string) error {
	if s.ducker != nil {
		if err := s.ducker.DuckOthers(ctx, 0.3, 150*time.Millisecond); err != nil {
			log.Debug("Duck failed", "err", err)
		}
		defer func() {
			// restore even when playback was cancelled
			uctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := s.ducker.UnduckOthers(uctx, 300*time.Millisecond); err != nil {
				log.Debug("Unduck failed", "err", err)
			}
		}()
	}

	err := s.engine.Speak(ctx, text)
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Error("Failed to voice out", "err", err)
	}
	return err
}
