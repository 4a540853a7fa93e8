// Package shard answers dashboard requests arriving over the bus.
package shard

import (
	"context"
	"errors"
	"fmt"
	"strings"

	log "log/slog"

	"lull/internal/agent"
	"lull/internal/apperrors"
	"lull/internal/bus"
	"lull/internal/metrics"
	"lull/pkg/audioconv"
)

const summaryQuestion = "what is on my screen"

type Router interface {
	Respond(ctx context.Context, text string) agent.Reply
}

type ImageReader interface {
	ExtractText(ctx context.Context, img []byte) (string, error)
}

type FrameDetector interface {
	DetectObjectsInFrame(ctx context.Context, frame []byte) ([]string, error)
}

type Transcriber interface {
	Transcribe(ctx context.Context, pcm16k []float32) (string, error)
}

type Conn interface {
	Read(ctx context.Context) (*bus.Message, error)
	Write(m *bus.Message) error
}

// Deps are the providers behind each message kind. Any of them may be nil,
// which turns the matching kind into an error reply.
type Deps struct {
	Router      Router
	Screen      ImageReader
	Answerer    agent.ScreenAnswerer
	Vision      FrameDetector
	Translator  agent.Translator
	Transcriber Transcriber
}

type Handler struct {
	name string
	d    Deps
}

func New(name string, d Deps) *Handler {
	return &Handler{name: name, d: d}
}

// Run serves the bus until ctx is done or the bus is closed.
func (h *Handler) Run(ctx context.Context, conn Conn) error {
	log.Info("Shard ready", "name", h.name)

	for {
		msg, err := conn.Read(ctx)
		if err != nil {
			if errors.Is(err, bus.ErrClosed) || ctx.Err() != nil {
				return nil
			}
			log.Error("Bus read failed", "err", err)
			continue
		}

		reply := h.Handle(ctx, msg)
		if reply == nil {
			continue
		}
		if err := conn.Write(reply); err != nil {
			log.Error("Failed to send response", "err", err)
		}
	}
}

// Handle answers one message. It returns nil for messages addressed to
// someone else, our own messages, and replies.
func (h *Handler) Handle(ctx context.Context, m *bus.Message) *bus.Message {
	if m == nil || m.From == h.name || (m.To != "" && m.To != h.name) {
		return nil
	}
	if m.Kind == bus.KindReply || m.Kind == bus.KindError {
		return nil
	}

	metrics.BusMessagesTotal.WithLabelValues(m.Kind).Inc()

	text, err := h.dispatch(ctx, m)
	if err != nil {
		log.Warn("Request failed", "kind", m.Kind, "id", m.ID, "err", err)
		return m.Reply(h.name, bus.KindError, apperrors.PublicMessage(err))
	}
	return m.Reply(h.name, bus.KindReply, text)
}

func (h *Handler) dispatch(ctx context.Context, m *bus.Message) (string, error) {
	switch m.Kind {
	case bus.KindCommand:
		return h.command(ctx, m)
	case bus.KindOCR:
		return h.ocr(ctx, m)
	case bus.KindDetect:
		return h.detect(ctx, m)
	case bus.KindTranslate:
		return h.translate(ctx, m)
	default:
		return "", fmt.Errorf("unsupported message kind %q", m.Kind)
	}
}

func (h *Handler) command(ctx context.Context, m *bus.Message) (string, error) {
	if h.d.Router == nil {
		return "", apperrors.Unavailable("The assistant is not available.")
	}

	text := m.Content
	if len(m.Audio) > 0 {
		if h.d.Transcriber == nil {
			return "", apperrors.Unavailable("Speech recognition is not available.")
		}
		pcm, err := audioconv.DecodeBytes(ctx, m.Audio, audioconv.Options{})
		if err != nil {
			return "", apperrors.CaptureFailed("Could not decode the audio", err)
		}
		if text, err = h.d.Transcriber.Transcribe(ctx, pcm); err != nil {
			return "", apperrors.CaptureFailed("Transcription failed", err)
		}
	}

	if strings.TrimSpace(text) == "" {
		return "", apperrors.Clarification("I did not catch that.")
	}
	return h.d.Router.Respond(ctx, text).Text, nil
}

func (h *Handler) ocr(ctx context.Context, m *bus.Message) (string, error) {
	if h.d.Screen == nil {
		return "", apperrors.Unavailable("Screen OCR dependencies are not available.")
	}

	text, err := h.d.Screen.ExtractText(ctx, m.Image)
	if err != nil {
		return "", err
	}
	if h.d.Answerer == nil {
		return text, nil
	}

	question := strings.TrimSpace(m.Content)
	if question == "" {
		question = summaryQuestion
	}
	return h.d.Answerer.Answer(ctx, question, text), nil
}

func (h *Handler) detect(ctx context.Context, m *bus.Message) (string, error) {
	if h.d.Vision == nil {
		return "", apperrors.Unavailable("Camera is not available.")
	}

	labels, err := h.d.Vision.DetectObjectsInFrame(ctx, m.Image)
	if err != nil {
		return "", err
	}
	return agent.DescribeObjects(labels), nil
}

// translate takes the target from Lang, or parses the whole command the
// same way the voice shell does.
func (h *Handler) translate(ctx context.Context, m *bus.Message) (string, error) {
	if h.d.Translator == nil {
		return "", apperrors.Unavailable("Translation is not available.")
	}

	sentence, target := m.Content, m.Lang
	if target == "" {
		req := agent.ParseTranslation(m.Content)
		sentence, target = req.Sentence, req.Target
	}
	if target == "" {
		return "", apperrors.Clarification(agent.ClarifyTargetReply)
	}

	return h.d.Translator.Translate(ctx, sentence, target)
}
