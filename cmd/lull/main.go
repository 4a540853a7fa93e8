package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	cli "github.com/spf13/pflag"

	log "log/slog"

	"lull/internal/agent"
	"lull/internal/app"
	"lull/internal/bus"
	"lull/internal/capability"
	"lull/internal/config"
	"lull/internal/shard"
	"lull/pkg/stt"
)

const (
	shardName = "lull"
	reconnect = 2 * time.Second
)

func main() {
	envFile := cli.StringP("env", "e", ".env", "Env file path")
	cli.StringP("log", "l", "info", "Log level")
	cli.StringP("proxy", "p", "", "Socks Proxy Address")
	cli.String("model", "", "Whisper model path")
	cli.String("bus", config.DefaultBusURL, "Url of hub")
	cli.Parse()

	cfg, err := config.Load(cli.CommandLine, *envFile)
	if err != nil {
		log.Error("Failed to load config", "err", err)
		os.Exit(1)
	}

	app.SetupLogger(cfg.LogLevel)

	log.Info("Starting Lull shard")

	caps := capability.Probe(cfg)
	log.Info("Capabilities", caps.LogAttrs()...)

	prov, err := app.Build(cfg, caps)
	if err != nil {
		log.Error("Failed to build providers", "err", err)
		os.Exit(1)
	}

	router := agent.New(agent.Config{
		AgentName: cfg.AgentName,
		UserName:  cfg.UserName,
		Caps:      caps,
	}, prov.Agent(nil))

	var tr shard.Transcriber
	if caps.SpeechInput == capability.Available {
		whisper, err := stt.NewTranscriber(cfg.WhisperModelPath, stt.Options{Language: cfg.STTLanguage})
		if err != nil {
			log.Error("Failed to init whisper", "err", err)
			os.Exit(1)
		}
		defer whisper.Close()
		tr = whisper
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conn, err := bus.Dial(ctx, cfg.BusURL, reconnect)
	if err != nil {
		log.Error("Failed to connect to bus", "err", err)
		os.Exit(1)
	}
	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	if err := shard.New(shardName, prov.Shard(router, tr)).Run(ctx, conn); err != nil {
		log.Error("Shard stopped", "err", err)
		os.Exit(1)
	}
}
