package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	cli "github.com/spf13/pflag"

	log "log/slog"

	"lull/internal/agent"
	"lull/internal/app"
	"lull/internal/audio"
	"lull/internal/capability"
	"lull/internal/config"
	"lull/internal/ipc"
	"lull/internal/listen"
	"lull/internal/metrics"
	"lull/internal/notify"
	"lull/internal/shell"
	"lull/internal/tts"
	"lull/internal/voice"
	"lull/pkg/stt"
)

const duckVolume = 20

func main() {
	envFile := cli.StringP("env", "e", ".env", "Env file path")
	cli.StringP("log", "l", "info", "Log level")
	cli.Bool("text", false, "Type commands instead of speaking them")
	cli.StringP("proxy", "p", "", "Socks Proxy Address")
	cli.String("model", "", "Whisper model path")
	cli.String("audio", "", "Transcribe and answer one audio file, then exit")
	cli.String("socket", config.DefaultSocketPath, "Control socket path")
	cli.String("metrics", "", "Serve Prometheus metrics on this address")
	cli.Bool("duck", false, "Lower other audio while speaking")
	cli.Parse()

	cfg, err := config.Load(cli.CommandLine, *envFile)
	if err != nil {
		log.Error("Failed to load config", "err", err)
		os.Exit(1)
	}

	app.SetupLogger(cfg.LogLevel)

	log.Info("Booting up")

	caps := capability.Probe(cfg)
	log.Info("Capabilities", caps.LogAttrs()...)

	prov, err := app.Build(cfg, caps)
	if err != nil {
		log.Error("Failed to build providers", "err", err)
		os.Exit(1)
	}

	var engine tts.Engine = tts.Printer{W: os.Stdout}
	if caps.SpeechOutput == capability.Available {
		engine = tts.Espeak{}
	}
	var ducker tts.Ducker
	if cfg.DuckAudio {
		ducker = audio.NewDucker([]string{"espeak-ng", "espeak"}, duckVolume)
	}
	speaker := tts.NewSpeaker(engine, ducker)
	defer speaker.Stop()

	router := agent.New(agent.Config{
		AgentName: cfg.AgentName,
		UserName:  cfg.UserName,
		Caps:      caps,
	}, prov.Agent(speaker))

	var whisper *stt.Transcriber
	if caps.SpeechInput == capability.Available {
		whisper, err = stt.NewTranscriber(cfg.WhisperModelPath, stt.Options{Language: cfg.STTLanguage})
		if err != nil {
			log.Error("Failed to init whisper", "err", err)
			os.Exit(1)
		}
		defer whisper.Close()

		log.Debug("Loaded whisper")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	in, mic, err := newListener(cfg, whisper)
	if err != nil {
		log.Error("Failed to init listener", "err", err)
		os.Exit(1)
	}
	if mic != nil {
		defer mic.rec.Close()
	}

	if cfg.AudioFile == "" {
		srv, err := ipc.Listen(cfg.SocketPath, controlHandler(router, speaker, mic))
		if err != nil {
			log.Error("Failed ipc server", "err", err)
			os.Exit(1)
		}
		defer srv.Close()
	}

	if cfg.MetricsAddr != "" {
		go serveMetrics(ctx, cfg.MetricsAddr)
	}

	log.Info("Boot up - successful")

	sh := shell.New(shell.Config{
		AgentName: cfg.AgentName,
		EchoUser:  !cfg.TextInput,
	}, in, router, speaker, os.Stdout)

	if err := sh.Run(ctx); err != nil {
		log.Error("Shell stopped", "err", err)
	}
	speaker.Wait()
}

// microphone is the on-demand voice path used by the trigger command. busy
// is set when the shell itself listens on the microphone.
type microphone struct {
	mu       sync.Mutex
	rec      *voice.Recorder
	listener *voice.Listener
	busy     bool
}

func newListener(cfg *config.Config, whisper *stt.Transcriber) (listen.Listener, *microphone, error) {
	if cfg.AudioFile != "" {
		if whisper == nil {
			return nil, nil, errors.New("--audio needs a whisper model")
		}
		return voice.NewFileListener(cfg.AudioFile, whisper), nil, nil
	}

	text := listen.NewTextListener(os.Stdin, os.Stdout)
	if whisper == nil {
		if !cfg.TextInput {
			log.Warn("No whisper model, falling back to text input", "path", cfg.WhisperModelPath)
		}
		return text, nil, nil
	}

	rec, err := voice.NewRecorder()
	if err != nil {
		return nil, nil, fmt.Errorf("audio: %w", err)
	}
	mic := &microphone{rec: rec, listener: voice.NewListener(rec, whisper, cfg.BeepPath)}

	if cfg.TextInput {
		return text, mic, nil
	}
	mic.busy = true
	return mic.listener, mic, nil
}

func controlHandler(router *agent.Router, speaker *tts.Speaker, mic *microphone) ipc.Handler {
	respond := func(ctx context.Context, text string) ipc.Reply {
		reply := router.Respond(ctx, text)
		if reply.Text != "" && reply.Intent != agent.Stop {
			speaker.SpeakAsync(reply.Text)
		}
		return ipc.Reply{Text: reply.Text}
	}

	return func(ctx context.Context, msg ipc.ControlMessage) ipc.Reply {
		log.Info("Control command", "cmd", msg.Cmd)

		switch msg.Cmd {
		case ipc.CmdSay:
			return respond(ctx, msg.Text)
		case ipc.CmdStop:
			speaker.Stop()
			return ipc.Reply{Text: agent.StoppedReply}
		case ipc.CmdTrigger:
			text, err := mic.listen(ctx)
			if err != nil {
				return ipc.Reply{Error: err.Error()}
			}
			log.Info("Transcribed", "text", text)
			return respond(ctx, text)
		default:
			log.Warn("Unknown command", "cmd", msg.Cmd)
			return ipc.Reply{Error: fmt.Sprintf("unknown command %q", msg.Cmd)}
		}
	}
}

func (m *microphone) listen(ctx context.Context) (string, error) {
	if m == nil {
		return "", errors.New("speech recognition is not available")
	}
	if m.busy {
		return "", errors.New("already listening on the microphone")
	}
	if !m.mu.TryLock() {
		return "", errors.New("a recording is already in progress")
	}
	defer m.mu.Unlock()

	if err := notify.Desktop(ctx, "Lull", "Listening..."); err != nil {
		log.Debug("Notification failed", "err", err)
	}
	return m.listener.Listen(ctx)
}

func serveMetrics(ctx context.Context, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		srv.Close()
	}()

	log.Info("Serving metrics", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("Metrics server failed", "err", err)
	}
}
