package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/n4ldr/smcontrol/internal/protocol"
	"github.com/n4ldr/smcontrol/internal/radio"
)

// One-shot commands: connect, perform a single CI-V transaction, disconnect.

func freqCmd() *cobra.Command {
	var (
		configPath string
		radioIP    string
	)

	cmd := &cobra.Command{
		Use:   "freq [hz]",
		Short: "Read or set the operating frequency",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withController(configPath, radioIP, func(ctx context.Context, c *radio.Controller) error {
				if len(args) == 0 {
					hz, err := c.ReadFrequency(ctx)
					if err != nil {
						return err
					}
					fmt.Printf("%d\n", hz)
					return nil
				}
				hz, err := strconv.ParseUint(args[0], 10, 64)
				if err != nil {
					return fmt.Errorf("invalid frequency %q: %w", args[0], err)
				}
				return c.SetFrequency(ctx, hz)
			})
		},
	}

	addConnectionFlags(cmd, &configPath, &radioIP)
	return cmd
}

func modeCmd() *cobra.Command {
	var (
		configPath string
		radioIP    string
	)

	cmd := &cobra.Command{
		Use:   "mode [name]",
		Short: "Read or set the operating mode (LSB, USB, AM, CW, RTTY, FM, WFM, CW-R, RTTY-R, DV)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withController(configPath, radioIP, func(ctx context.Context, c *radio.Controller) error {
				if len(args) == 0 {
					mode, err := c.ReadMode(ctx)
					if err != nil {
						return err
					}
					fmt.Println(mode)
					return nil
				}
				mode, ok := protocol.ParseMode(args[0])
				if !ok {
					return fmt.Errorf("unknown mode %q", args[0])
				}
				return c.SetMode(ctx, mode)
			})
		},
	}

	addConnectionFlags(cmd, &configPath, &radioIP)
	return cmd
}

func pttCmd() *cobra.Command {
	var (
		configPath string
		radioIP    string
	)

	cmd := &cobra.Command{
		Use:   "ptt on|off",
		Short: "Key or unkey the transmitter",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var transmit bool
			switch args[0] {
			case "on":
				transmit = true
			case "off":
				transmit = false
			default:
				return fmt.Errorf("argument must be on or off, got %q", args[0])
			}
			return withController(configPath, radioIP, func(ctx context.Context, c *radio.Controller) error {
				return c.SetPTT(ctx, transmit)
			})
		},
	}

	addConnectionFlags(cmd, &configPath, &radioIP)
	return cmd
}

func addConnectionFlags(cmd *cobra.Command, configPath, radioIP *string) {
	cmd.Flags().StringVarP(configPath, "config", "c", "", "path to smcontrol.toml (defaults apply when omitted)")
	cmd.Flags().StringVar(radioIP, "radio-ip", "", "radio IP address (overrides config)")
}

// withController establishes a session, runs op, and tears the session down.
func withController(configPath, radioIP string, op func(context.Context, *radio.Controller) error) error {
	cfg, err := loadConfig(configPath, radioIP)
	if err != nil {
		return err
	}
	log := newLogger(cfg.Log.Level, false)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	captures, closeStore, err := openCaptureStore(cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	controller := radio.NewController(cfg, captures, nil, log)
	if err := controller.Connect(ctx); err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer controller.Disconnect()

	return op(ctx, controller)
}
