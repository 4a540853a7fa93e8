// Package capability decides once at startup which assistant backends can
// be used on this machine.
package capability

import (
	"fmt"
	"os"
	"os/exec"
	"runtime"

	"lull/internal/config"
)

type Level int

const (
	Unavailable Level = iota
	// Fallback means the provider works in a degraded mode
	// (stdout instead of speech, typed input instead of voice, heuristics
	// instead of a model).
	Fallback
	Available
)

func (l Level) String() string {
	switch l {
	case Available:
		return "available"
	case Fallback:
		return "fallback"
	default:
		return "unavailable"
	}
}

type Set struct {
	SpeechOutput Level
	SpeechInput  Level
	ScreenText   Level
	ScreenAnswer Level
	Translation  Level
	Vision       Level
}

// All marks every provider as fully available.
func All() Set {
	return Set{
		SpeechOutput: Available,
		SpeechInput:  Available,
		ScreenText:   Available,
		ScreenAnswer: Available,
		Translation:  Available,
		Vision:       Available,
	}
}

// LogAttrs flattens the set into slog key/value pairs.
func (s Set) LogAttrs() []any {
	return []any{
		"speech_output", s.SpeechOutput.String(),
		"speech_input", s.SpeechInput.String(),
		"screen_text", s.ScreenText.String(),
		"screen_answer", s.ScreenAnswer.String(),
		"translation", s.Translation.String(),
		"vision", s.Vision.String(),
	}
}

type Prober struct {
	LookPath func(string) (string, error)
	Stat     func(string) (os.FileInfo, error)
	GOOS     string
}

func NewProber() *Prober {
	return &Prober{
		LookPath: exec.LookPath,
		Stat:     os.Stat,
		GOOS:     runtime.GOOS,
	}
}

func Probe(cfg *config.Config) Set {
	return NewProber().Probe(cfg)
}

func (p *Prober) Probe(cfg *config.Config) Set {
	var s Set

	s.SpeechOutput = Fallback
	if p.has("espeak-ng") {
		s.SpeechOutput = Available
	}

	s.SpeechInput = Fallback
	if cfg.WhisperModelPath != "" && p.exists(cfg.WhisperModelPath) {
		s.SpeechInput = Available
	}

	if len(cfg.ScreenCaptureCmd) > 0 && p.has(cfg.ScreenCaptureCmd[0]) && p.has("tesseract") {
		s.ScreenText = Available
	}

	s.ScreenAnswer = Fallback
	if cfg.OpenAIKey != "" {
		s.ScreenAnswer = Available
	}

	if cfg.TranslateEndpoint != "" {
		s.Translation = Available
	}

	if cfg.OpenAIKey != "" && p.has("ffmpeg") {
		s.Vision = Available
	}

	return s
}

// CameraFormat returns the ffmpeg input format for the current platform.
func (p *Prober) CameraFormat() (string, error) {
	switch p.GOOS {
	case "linux":
		return "v4l2", nil
	case "darwin":
		return "avfoundation", nil
	case "windows":
		return "dshow", nil
	default:
		return "", fmt.Errorf("no camera input format for %s", p.GOOS)
	}
}

func (p *Prober) has(bin string) bool {
	_, err := p.LookPath(bin)
	return err == nil
}

func (p *Prober) exists(path string) bool {
	info, err := p.Stat(path)
	return err == nil && !info.IsDir()
}
