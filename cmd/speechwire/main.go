// Command speechwire transcribes or translates speech from a WAV file or the
// default microphone using the speechwire SDK.
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

	"github.com/varenko/speechwire/internal/telemetry"
	"github.com/varenko/speechwire/pkg/audio"
	"github.com/varenko/speechwire/pkg/audio/microphone"
	"github.com/varenko/speechwire/pkg/speech"
)

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	file := flag.String("file", "", "WAV file to recognize; empty means the default microphone")
	translate := flag.Bool("translate", false, "translate instead of transcribe (config needs target_languages)")
	continuous := flag.Bool("continuous", false, "recognize every utterance until the source ends or Ctrl+C")
	metrics := flag.Bool("metrics", false, "record OpenTelemetry recognition metrics")
	verbose := flag.Bool("v", false, "enable debug logging")
	flag.Parse()

	// ── Logger ────────────────────────────────────────────────────────────────
	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry (optional) ──────────────────────────────────────────────────
	var opts []speech.Option
	opts = append(opts, speech.WithLogger(logger))
	if *metrics {
		shutdown, err := telemetry.InitProvider(ctx, telemetry.ProviderConfig{})
		if err != nil {
			slog.Error("failed to initialise telemetry", "err", err)
			return 1
		}
		defer shutdown(context.Background())
		opts = append(opts, speech.WithMetrics())
	}

	// ── Audio source ──────────────────────────────────────────────────────────
	source, err := openSource(*file)
	if err != nil {
		slog.Error("failed to open audio source", "err", err)
		return 1
	}
	defer source.Close()

	// ── Recognize ─────────────────────────────────────────────────────────────
	if *translate {
		err = runTranslation(ctx, *configPath, source, *continuous, opts)
	} else {
		err = runRecognition(ctx, *configPath, source, *continuous, opts)
	}
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "speechwire: config file %q not found\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "speechwire: %v\n", err)
		}
		return 1
	}
	return 0
}

func openSource(file string) (audio.Source, error) {
	if file != "" {
		return audio.NewFileStream(file)
	}
	slog.Info("recording from default microphone", "sample_rate_hz", 16000)
	return microphone.New(16000)
}

func runRecognition(ctx context.Context, configPath string, source audio.Source, continuous bool, opts []speech.Option) error {
	cfg, err := speech.ConfigFromFile(configPath)
	if err != nil {
		return err
	}

	rec, err := speech.NewRecognizer(cfg, source, opts...)
	if err != nil {
		return err
	}
	defer rec.Close()

	if !continuous {
		result, err := rec.RecognizeOnce(ctx)
		if err != nil {
			return err
		}
		printResult(result)
		return nil
	}

	stopped := make(chan struct{})
	rec.Recognizing = func(args speech.RecognitionResultEventArgs) {
		slog.Debug("recognizing", "session_id", args.SessionID, "text", args.Result.Text)
	}
	rec.Recognized = func(args speech.RecognitionResultEventArgs) {
		printResult(args.Result)
	}
	rec.Canceled = func(args speech.RecognitionCanceledEventArgs) {
		if args.Reason == speech.CancellationReasonError {
			slog.Error("recognition canceled", "code", args.ErrorCode, "details", args.ErrorDetails)
		}
	}
	rec.SessionStopped = func(speech.SessionEventArgs) { close(stopped) }

	if err := rec.StartContinuousRecognition(ctx); err != nil {
		return err
	}
	select {
	case <-ctx.Done():
	case <-stopped:
	}
	return rec.StopContinuousRecognition()
}

func runTranslation(ctx context.Context, configPath string, source audio.Source, continuous bool, opts []speech.Option) error {
	cfg, err := speech.TranslationConfigFromFile(configPath)
	if err != nil {
		return err
	}

	rec, err := speech.NewTranslationRecognizer(cfg, source, opts...)
	if err != nil {
		return err
	}
	defer rec.Close()

	if !continuous {
		result, err := rec.RecognizeOnce(ctx)
		if err != nil {
			return err
		}
		printResult(result)
		return nil
	}

	stopped := make(chan struct{})
	rec.Recognized = func(args speech.RecognitionResultEventArgs) {
		printResult(args.Result)
	}
	rec.Canceled = func(args speech.RecognitionCanceledEventArgs) {
		if args.Reason == speech.CancellationReasonError {
			slog.Error("translation canceled", "code", args.ErrorCode, "details", args.ErrorDetails)
		}
	}
	rec.SessionStopped = func(speech.SessionEventArgs) { close(stopped) }

	if err := rec.StartContinuousRecognition(ctx); err != nil {
		return err
	}
	select {
	case <-ctx.Done():
	case <-stopped:
	}
	return rec.StopContinuousRecognition()
}

func printResult(r *speech.RecognitionResult) {
	switch r.Reason {
	case speech.ReasonNoMatch:
		details, err := speech.NoMatchDetailsFromResult(r)
		if err != nil {
			fmt.Println("NOMATCH")
			return
		}
		fmt.Printf("NOMATCH (%s)\n", details.Reason)
	case speech.ReasonRecognizedIntent:
		fmt.Printf("%s\n  intent: %s\n", r.Text, r.IntentID)
	default:
		fmt.Println(r.Text)
		for lang, text := range r.Translations {
			fmt.Printf("  %s: %s\n", lang, text)
		}
	}
}
