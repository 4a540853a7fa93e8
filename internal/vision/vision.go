package vision

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"lull/internal/apperrors"
	"lull/internal/llm"
)

const detectSystemPrompt = `You are an object detector for a desktop assistant.
List the physical objects the person in front of the camera is holding or showing.
Reply with JSON only, no prose:
{"objects":[{"label":"<lowercase noun>","confidence":<0..1>}]}
Order by confidence, highest first. Reply {"objects":[]} when nothing is held.`

const detectPrompt = "What objects are in this frame?"

type Detection struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

type FrameSource interface {
	Capture(ctx context.Context) ([]byte, error)
}

type ImageCompleter interface {
	CompleteImage(ctx context.Context, system, prompt string, image []byte, mime string) (string, error)
}

type Service struct {
	camera FrameSource
	model  ImageCompleter

	mu   sync.Mutex
	last []Detection
}

func NewService(camera FrameSource, model ImageCompleter) *Service {
	return &Service{camera: camera, model: model}
}

// DetectObjects grabs one frame from the camera and returns the labels found
// in it.
func (s *Service) DetectObjects(ctx context.Context) ([]string, error) {
	if s.camera == nil {
		return nil, apperrors.Unavailable("Camera is not available.")
	}

	frame, err := s.camera.Capture(ctx)
	if err != nil {
		return nil, apperrors.CaptureFailed("Unable to read from the camera.", err)
	}

	return s.DetectObjectsInFrame(ctx, frame)
}

func (s *Service) DetectObjectsInFrame(ctx context.Context, frame []byte) ([]string, error) {
	if s.model == nil {
		return nil, apperrors.Unavailable("Object detection failed: no detection model configured")
	}
	if len(frame) == 0 {
		return nil, apperrors.CaptureFailed("Unable to read from the camera.", errors.New("empty frame"))
	}

	content, err := s.model.CompleteImage(ctx, detectSystemPrompt, detectPrompt, frame, "image/jpeg")
	if err != nil {
		return nil, apperrors.NetworkFailed("Object detection failed", err)
	}

	var out struct {
		Objects []Detection `json:"objects"`
	}
	if err := llm.DecodeJSON(content, &out); err != nil {
		return nil, apperrors.NetworkFailed("Object detection failed", err)
	}

	dets := Dedupe(out.Objects)

	s.mu.Lock()
	s.last = dets
	s.mu.Unlock()

	labels := make([]string, 0, len(dets))
	for _, d := range dets {
		labels = append(labels, d.Label)
	}
	return labels, nil
}

// LastDetections returns the detections of the most recent successful call.
func (s *Service) LastDetections() []Detection {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Detection(nil), s.last...)
}

// FormatTop renders the n most confident detections, e.g. "cup 0.91, phone 0.80".
func (s *Service) FormatTop(n int) string {
	dets := s.LastDetections()
	sort.SliceStable(dets, func(i, j int) bool {
		return dets[i].Confidence > dets[j].Confidence
	})
	if n >= 0 && len(dets) > n {
		dets = dets[:n]
	}

	parts := make([]string, 0, len(dets))
	for _, d := range dets {
		parts = append(parts, fmt.Sprintf("%s %.2f", d.Label, d.Confidence))
	}
	return strings.Join(parts, ", ")
}

// Dedupe keeps the first detection per case-insensitive label. Blank labels
// are dropped.
func Dedupe(dets []Detection) []Detection {
	seen := make(map[string]struct{}, len(dets))
	out := make([]Detection, 0, len(dets))
	for _, d := range dets {
		d.Label = strings.TrimSpace(d.Label)
		key := strings.ToLower(d.Label)
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, d)
	}
	return out
}
