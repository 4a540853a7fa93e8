// Package voice turns microphone input or audio files into utterances.
package voice

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	log "log/slog"

	"lull/internal/notify"
	"lull/pkg/audioconv"
)

const transcribeTimeout = 60 * time.Second

type Transcriber interface {
	Transcribe(ctx context.Context, pcm16k []float32) (string, error)
}

// UtteranceRecorder is satisfied by *Recorder.
type UtteranceRecorder interface {
	RecordUtterance(ctx context.Context) ([]float32, error)
}

// Listener beeps, records one utterance and transcribes it.
type Listener struct {
	rec      UtteranceRecorder
	tr       Transcriber
	beepPath string
}

func NewListener(rec UtteranceRecorder, tr Transcriber, beepPath string) *Listener {
	return &Listener{rec: rec, tr: tr, beepPath: beepPath}
}

func (l *Listener) Listen(ctx context.Context) (string, error) {
	if l.beepPath != "" {
		if err := notify.Beep(ctx, l.beepPath); err != nil {
			log.Debug("Beep failed", "err", err)
		}
	}

	log.Info("Starting listening")

	pcm, err := l.rec.RecordUtterance(ctx)
	if errors.Is(err, ErrNoSpeech) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("record: %w", err)
	}

	log.Info("Recorded", "samples", len(pcm))

	return transcribe(ctx, l.tr, pcm)
}

// FileListener yields the transcript of one audio file, then io.EOF.
type FileListener struct {
	path string
	tr   Transcriber
	done bool
}

func NewFileListener(path string, tr Transcriber) *FileListener {
	return &FileListener{path: path, tr: tr}
}

func (l *FileListener) Listen(ctx context.Context) (string, error) {
	if l.done {
		return "", io.EOF
	}
	l.done = true

	pcm, err := audioconv.DecodeFile(ctx, l.path, audioconv.Options{})
	if err != nil {
		return "", fmt.Errorf("decode %s: %w", l.path, err)
	}

	return transcribe(ctx, l.tr, pcm)
}

func transcribe(ctx context.Context, tr Transcriber, pcm []float32) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, transcribeTimeout)
	defer cancel()

	text, err := tr.Transcribe(ctx, pcm)
	if err != nil {
		return "", fmt.Errorf("transcribe: %w", err)
	}

	log.Info("Transcribed", "text", text)
	return text, nil
}
