package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	cli "github.com/spf13/pflag"
	log "log/slog"

	"github.com/raihanakbr/voice-chat-relay/internal/host"
	"github.com/raihanakbr/voice-chat-relay/internal/transport"
	"github.com/raihanakbr/voice-chat-relay/internal/voice"
)

var logLevelMap = map[string]log.Level{
	"debug": log.LevelDebug,
	"info":  log.LevelInfo,
	"warn":  log.LevelWarn,
	"error": log.LevelError,
}

const usage = `commands:
  /mic        toggle listening (stops any reply being spoken)
  /voices     list voices
  /voice N    select voice N
  /status     show relay, listening and playback state
  /help       show this help
  /quit       exit
while listening, type what you say:
  text        final transcript
  ~text       interim transcript (interrupts a reply)
  !speech     speech started (interrupts a reply)
  !deny       microphone permission denied
  !error code recognition error, e.g. !error network
  !end        recognition ended`

func main() {
	envFile := cli.StringP("env", "e", ".env", "Env file path")
	url := cli.StringP("url", "u", "", "Relay WebSocket URL (default $RELAY_URL or ws://localhost:3000/ws)")
	lang := cli.String("lang", voice.DefaultLang, "Recognition locale and preferred voice locale")
	espeakPath := cli.String("espeak", "espeak-ng", "espeak-ng binary")
	logLevel := cli.StringP("log", "l", "warn", "Log level")
	cli.Parse()

	// stdout belongs to the conversation.
	log.SetDefault(log.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      logLevelMap[*logLevel],
		TimeFormat: time.TimeOnly,
	})))

	if err := godotenv.Load(*envFile); err != nil {
		log.Info("No .env file found; using system environment variables", "path", *envFile)
	}
	if *url == "" {
		*url = os.Getenv("RELAY_URL")
	}
	if *url == "" {
		*url = "ws://localhost:3000/ws"
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	loop := voice.NewLoop()
	ui := host.NewConsoleUI(os.Stdout)
	rec := host.NewLineRecognizer(loop, log.Default())

	tts := host.NewEspeak(*espeakPath, loop, log.Default())
	var synth voice.Synthesizer
	if tts.Available() {
		synth = tts
	}

	var coord *voice.Coordinator
	ch := transport.New(*url,
		transport.WithLogger(log.Default()),
		transport.OnFrame(func(f transport.Frame) {
			loop.Post(func() { coord.HandleFrame(f) })
		}),
		transport.OnOpen(func() { log.Info("Connected to relay", "url", *url) }),
	)

	cfg := voice.DefaultConfig()
	cfg.Lang = *lang
	cfg.PreferredLang = *lang

	coord, err := voice.NewCoordinator(voice.Host{
		Recognizer:  rec,
		Synthesizer: synth,
		Sender:      ch,
		UI:          ui,
		Clock:       loop.Clock(),
	}, cfg)
	if errors.Is(err, voice.ErrUnsupported) {
		ui.Alert("Speech synthesis is not supported here: install espeak-ng or pass --espeak.")
		os.Exit(1)
	}
	if err != nil {
		log.Error("Failed to start voice loop", "err", err)
		os.Exit(1)
	}

	go ch.Run(ctx)

	go func() {
		if err := tts.LoadVoices(ctx); err != nil {
			log.Warn("Failed to load voices", "err", err)
			return
		}
		loop.Post(coord.VoicesChanged)
	}()

	go func() {
		readConsole(ctx, os.Stdin, loop, rec, coord, ui, ch.IsOpen)
		cancel()
	}()

	ui.Alert("type /mic to start talking, /help for commands")

	loop.Run(ctx)
	ch.Close()
	tts.Cancel()
}

// readConsole routes stdin: slash commands drive the coordinator, other
// lines go to the recognizer. It returns on EOF or /quit.
func readConsole(ctx context.Context, in io.Reader, loop *voice.Loop, rec *host.LineRecognizer, coord *voice.Coordinator, ui *host.ConsoleUI, connected func() bool) {
	sc := bufio.NewScanner(in)
	for sc.Scan() {
		if ctx.Err() != nil {
			return
		}
		line := sc.Text()
		cmd, arg, _ := strings.Cut(strings.TrimSpace(line), " ")

		switch cmd {
		case "/quit":
			return
		case "/help":
			ui.Alert(usage)
		case "/status":
			var sess voice.Session
			if err := loop.Do(ctx, func() { sess = coord.Session() }); err != nil {
				return
			}
			ui.Alert(statusLine(sess, rec.Listening(), connected()))
		case "/mic":
			loop.Post(func() {
				if err := coord.Toggle(); err != nil {
					log.Warn("Failed to start listening", "err", err)
				}
			})
		case "/voices":
			loop.Post(func() {
				voices := coord.Voices()
				ui.ListVoices(voices.List(), voices.SelectedIndex())
			})
		case "/voice":
			i, err := strconv.Atoi(strings.TrimSpace(arg))
			if err != nil {
				ui.Alert("usage: /voice N")
				continue
			}
			loop.Post(func() {
				if err := coord.Voices().Select(i); err != nil {
					ui.Alert(err.Error())
				}
			})
		default:
			if strings.HasPrefix(cmd, "/") {
				ui.Alert("unknown command " + cmd)
				continue
			}
			if !rec.Feed(line) && strings.TrimSpace(line) != "" {
				ui.Alert("mic is off, type /mic")
			}
		}
	}
}

func statusLine(sess voice.Session, recognizing, connected bool) string {
	onOff := func(b bool) string {
		if b {
			return "on"
		}
		return "off"
	}
	line := fmt.Sprintf("relay: %s, listening: %s, recognizer: %s, speaking: %s",
		onOff(connected), onOff(sess.Listening), onOff(recognizing), onOff(sess.Speaking))
	if sess.ManualStop {
		line += " (stopped by you)"
	}
	return line
}
