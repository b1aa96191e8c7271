package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/n4ldr/smcontrol/internal/capture"
	"github.com/n4ldr/smcontrol/internal/config"
	"github.com/n4ldr/smcontrol/internal/protocol"
	"github.com/n4ldr/smcontrol/internal/radio"
	"github.com/n4ldr/smcontrol/internal/session"
)

const statusPollInterval = 5 * time.Second

func runCmd() *cobra.Command {
	var (
		configPath string
		radioIP    string
		verbose    bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Connect to the radio and poll its status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath, radioIP)
			if err != nil {
				return err
			}
			log := newLogger(cfg.Log.Level, verbose)
			return run(cfg, log)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to smcontrol.toml (defaults apply when omitted)")
	cmd.Flags().StringVar(&radioIP, "radio-ip", "", "radio IP address (overrides config)")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	return cmd
}

func loadConfig(path, radioIP string) (config.Config, error) {
	cfg := config.Default()
	if path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return config.Config{}, err
		}
		cfg = loaded
	}
	if radioIP != "" {
		cfg.Radio.Address = radioIP
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func newLogger(level string, verbose bool) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	if verbose {
		lvl = zerolog.DebugLevel
	}
	writer := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	return zerolog.New(writer).Level(lvl).With().Timestamp().Logger()
}

// openCaptureStore opens the accepted-pair store when capture is enabled.
// The returned cleanup is always safe to call.
func openCaptureStore(cfg config.Config, log zerolog.Logger) (*capture.Repository, func(), error) {
	if !cfg.Capture.Enabled {
		return nil, func() {}, nil
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Capture.Path), 0o755); err != nil {
		return nil, nil, fmt.Errorf("create capture directory: %w", err)
	}
	db, err := capture.NewDB(capture.Config{Path: cfg.Capture.Path}, log)
	if err != nil {
		return nil, nil, fmt.Errorf("open capture store: %w", err)
	}
	return capture.NewRepository(db), func() { db.Close() }, nil
}

func run(cfg config.Config, log zerolog.Logger) error {
	captures, closeStore, err := openCaptureStore(cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	notify := func(cmd protocol.Command) {
		log.Info().Stringer("cmd", &cmd).Msg("broadcast from radio")
	}
	controller := radio.NewController(cfg, captures, notify, log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info().Str("radio", cfg.Radio.Address).Msg("connecting")
	if err := controller.Connect(ctx); err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer controller.Disconnect()
	log.Info().Msg("connected")

	ticker := time.NewTicker(statusPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("shutting down")
			return nil
		case <-ticker.C:
			state := controller.SessionState()
			if state == session.StateLost {
				return fmt.Errorf("session lost")
			}

			freq, err := controller.ReadFrequency(ctx)
			if err != nil {
				log.Warn().Err(err).Msg("frequency poll failed")
				continue
			}
			mode, err := controller.ReadMode(ctx)
			if err != nil {
				log.Warn().Err(err).Msg("mode poll failed")
				continue
			}
			log.Info().
				Uint64("frequency_hz", freq).
				Stringer("mode", mode).
				Stringer("session", state).
				Msg("radio status")
		}
	}
}
