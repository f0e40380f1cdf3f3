package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/dustyfingers/synthy/config"
	"github.com/dustyfingers/synthy/synth"
	"golang.org/x/sync/errgroup"
)

var errQuit = errors.New("quit requested")

func main() {
	sampleRate := flag.Int("sample-rate", 0, "Output sample rate in Hz (0 = config value)")
	configPath := flag.String("config", "", "Engine config JSON path (optional)")
	paramsPath := flag.String("params", "", "Parameter JSON file applied live whenever it changes (optional)")
	midiIn := flag.String("midi-in", "", "MIDI input port name substring (optional)")
	keyboard := flag.Bool("keyboard", true, "Play from the terminal keyboard")
	debug := flag.Bool("debug", false, "Enable debug logging (adds source location)")
	flag.Parse()

	logger := initLogger(*debug)

	cfg := synth.DefaultConfig()
	if *configPath != "" {
		loaded, _, err := config.LoadJSON(*configPath)
		if err != nil {
			die("load config: %v", err)
		}
		cfg = loaded
	}
	if *sampleRate > 0 {
		cfg.SampleRate = float64(*sampleRate)
	}
	cfg.Logger = logger

	engine, err := synth.NewEngine(cfg)
	if err != nil {
		die("create engine: %v", err)
	}
	queue := engine.EnableQueue()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := play(ctx, engine, queue, *paramsPath, *midiIn, *keyboard, logger); err != nil && !errors.Is(err, errQuit) {
		die("%v", err)
	}
	logger.Info("synthy-play stopped", "dropped_events", engine.Dropped())
}

func initLogger(debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	h := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level:     level,
		AddSource: debug,
	})
	logger := slog.New(h)
	slog.SetDefault(logger)
	return logger
}

func die(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

// play wires every input to the engine and blocks until ctx is cancelled or
// the user quits. Only the audio device's goroutine calls engine.Process; note
// events reach it through queue, which is fed solely by the funnel goroutine.
func play(
	ctx context.Context,
	engine *synth.Engine,
	queue *synth.EventQueue,
	paramsPath string,
	midiIn string,
	useKeyboard bool,
	logger *slog.Logger,
) error {
	out, err := openOutput(engine)
	if err != nil {
		return fmt.Errorf("open audio output: %w", err)
	}
	defer out.Close()

	g, ctx := errgroup.WithContext(ctx)

	keys := make(chan byte, 16)
	midiMsgs := make(chan []byte, 64)

	if useKeyboard {
		restore, err := readKeys(ctx, keys, logger)
		if err != nil {
			return err
		}
		defer restore()
		fmt.Fprint(os.Stderr, keyHelp)
	}
	if midiIn != "" {
		closeMIDI, err := listenMIDI(midiIn, midiMsgs, logger)
		if err != nil {
			return err
		}
		defer closeMIDI()
	}
	if paramsPath != "" {
		g.Go(func() error {
			return config.Watch(ctx, paramsPath, engine.Params(), logger)
		})
	}

	g.Go(func() error {
		kb := newKeyboard(engine.Params())
		for {
			select {
			case <-ctx.Done():
				return nil
			case b := <-keys:
				evs, quit := kb.press(b)
				if quit {
					return errQuit
				}
				for _, ev := range evs {
					if !queue.Push(ev) {
						logger.Warn("event queue full, dropping", "event", ev.String())
					}
				}
			case msg := <-midiMsgs:
				if !queue.PushMIDI(msg) {
					logger.Debug("ignored MIDI message", "bytes", fmt.Sprintf("% X", msg))
				}
			}
		}
	})

	return g.Wait()
}
