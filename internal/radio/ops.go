package radio

import (
	"context"
	"fmt"
	"time"

	"github.com/n4ldr/smcontrol/internal/protocol"
)

// Operations on top of the command exchange, one per CI-V transaction the
// controller supports. All of them address the radio from the controller and
// run under the configured command timeout.

func (c *Controller) commandTimeout() time.Duration {
	return time.Duration(c.cfg.Session.CommandTimeoutMS) * time.Millisecond
}

func (c *Controller) request(ctx context.Context, op uint8, data []byte) (protocol.Command, error) {
	cmd := protocol.Command{
		To:   protocol.RadioAddr,
		From: protocol.ControllerAddr,
		Op:   op,
		Data: data,
	}
	return c.Submit(ctx, cmd, c.commandTimeout())
}

// ReadFrequency returns the current operating frequency in Hz.
func (c *Controller) ReadFrequency(ctx context.Context) (uint64, error) {
	resp, err := c.request(ctx, protocol.OpReadFrequency, nil)
	if err != nil {
		return 0, err
	}
	if len(resp.Data) < 5 {
		return 0, fmt.Errorf("read frequency: short response (%d bytes)", len(resp.Data))
	}
	return protocol.BCDToUint(resp.Data[:5]), nil
}

// SetFrequency tunes the radio to hz.
func (c *Controller) SetFrequency(ctx context.Context, hz uint64) error {
	resp, err := c.request(ctx, protocol.OpSetFrequency, protocol.UintToBCD(hz, 5))
	if err != nil {
		return err
	}
	if !resp.IsACK() {
		return fmt.Errorf("set frequency: radio refused (%s)", resp.String())
	}
	return nil
}

// ReadMode returns the current operating mode.
func (c *Controller) ReadMode(ctx context.Context) (protocol.OperatingMode, error) {
	resp, err := c.request(ctx, protocol.OpReadMode, nil)
	if err != nil {
		return 0, err
	}
	if len(resp.Data) < 1 {
		return 0, fmt.Errorf("read mode: empty response")
	}
	if !protocol.ValidMode(resp.Data[0]) {
		return 0, fmt.Errorf("read mode: unknown mode code 0x%02X", resp.Data[0])
	}
	return protocol.OperatingMode(resp.Data[0]), nil
}

// SetMode switches the operating mode, selecting the radio's default filter.
func (c *Controller) SetMode(ctx context.Context, mode protocol.OperatingMode) error {
	resp, err := c.request(ctx, protocol.OpSetMode, []byte{uint8(mode), 0x01})
	if err != nil {
		return err
	}
	if !resp.IsACK() {
		return fmt.Errorf("set mode %s: radio refused (%s)", mode, resp.String())
	}
	return nil
}

// SetPTT keys or unkeys the transmitter.
func (c *Controller) SetPTT(ctx context.Context, transmit bool) error {
	state := byte(0x00)
	if transmit {
		state = 0x01
	}
	resp, err := c.request(ctx, protocol.OpPTT, []byte{0x00, state})
	if err != nil {
		return err
	}
	if !resp.IsACK() {
		return fmt.Errorf("ptt: radio refused (%s)", resp.String())
	}
	return nil
}
