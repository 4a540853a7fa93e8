// Package app turns a loaded config into the providers both binaries share.
package app

import (
	"fmt"
	"os"
	"time"

	"github.com/lmittmann/tint"
	log "log/slog"

	"lull/internal/agent"
	"lull/internal/capability"
	"lull/internal/config"
	"lull/internal/llm"
	"lull/internal/proxy"
	"lull/internal/screen"
	"lull/internal/shard"
	"lull/internal/translate"
	"lull/internal/vision"
)

const modelTimeout = 2 * time.Minute

var logLevelMap = map[string]log.Level{
	"debug": log.LevelDebug,
	"info":  log.LevelInfo,
	"warn":  log.LevelWarn,
	"error": log.LevelError,
}

// SetupLogger installs the tint handler at the given level.
func SetupLogger(level string) {
	log.SetDefault(log.New(tint.NewHandler(os.Stdout, &tint.Options{
		Level: logLevelMap[level],
	})))
}

// Providers holds the concrete clients. A field is nil when its capability
// is unavailable.
type Providers struct {
	QA         *llm.Client
	VisionLLM  *llm.Client
	Screen     *screen.Reader
	Answerer   *screen.QnA
	Vision     *vision.Service
	Translator *translate.Client
}

func Build(cfg *config.Config, caps capability.Set) (*Providers, error) {
	hc, err := proxy.NewHTTPClient(cfg.ProxyAddr, modelTimeout)
	if err != nil {
		return nil, fmt.Errorf("proxy: %w", err)
	}

	p := &Providers{}

	if cfg.OpenAIKey != "" {
		p.QA = llm.New(llm.Config{
			APIKey:     cfg.OpenAIKey,
			BaseURL:    cfg.OpenAIBaseURL,
			Model:      cfg.QAModel,
			HTTPClient: hc,
		})
		p.VisionLLM = llm.New(llm.Config{
			APIKey:     cfg.OpenAIKey,
			BaseURL:    cfg.OpenAIBaseURL,
			Model:      cfg.VisionModel,
			HTTPClient: hc,
		})
		p.Answerer = screen.NewQnA(p.QA)
	} else {
		p.Answerer = screen.NewQnA(nil)
	}

	if caps.ScreenText != capability.Unavailable {
		p.Screen = screen.NewReader(cfg.ScreenCaptureCmd, true)
	}

	if caps.Vision != capability.Unavailable && p.VisionLLM != nil {
		format, err := capability.NewProber().CameraFormat()
		if err != nil {
			log.Warn("Camera disabled", "err", err)
			p.Vision = vision.NewService(nil, p.VisionLLM)
		} else {
			p.Vision = vision.NewService(vision.NewCamera(format, cfg.CameraDevice, screen.ExecRunner), p.VisionLLM)
		}
	}

	if caps.Translation != capability.Unavailable {
		p.Translator = translate.NewClient(cfg.TranslateEndpoint,
			translate.WithAPIKey(cfg.TranslateAPIKey),
			translate.WithHTTPClient(hc),
			translate.WithTimeout(cfg.TranslateTimeout),
		)
	}

	return p, nil
}

// Agent converts the set to router providers, leaving missing ones as nil
// interfaces.
func (p *Providers) Agent(sp agent.Speaker) agent.Providers {
	out := agent.Providers{Speaker: sp, Answerer: p.Answerer}
	if p.Screen != nil {
		out.Screen = p.Screen
	}
	if p.Translator != nil {
		out.Translator = p.Translator
	}
	if p.Vision != nil {
		out.Vision = p.Vision
	}
	return out
}

func (p *Providers) Shard(router shard.Router, tr shard.Transcriber) shard.Deps {
	d := shard.Deps{Router: router, Answerer: p.Answerer, Transcriber: tr}
	if p.Screen != nil {
		d.Screen = p.Screen
	}
	if p.Translator != nil {
		d.Translator = p.Translator
	}
	if p.Vision != nil {
		d.Vision = p.Vision
	}
	return d
}
