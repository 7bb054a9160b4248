//go:build rp2040 || rp2350

package serialio

import (
	"context"
	"io"
)

func init() {
	RegisterTransport("uart", newUARTTransport)
}

// UARTDial is injected by platform bring-up code (board init), mirroring
// the teacher's services/bridge.UARTDial injection point: it must open
// and return an io.ReadWriteCloser over the configured UART pins using
// github.com/jangala-dev/tinygo-uartx. Board bring-up (pin/clock setup)
// is platform code outside this module's scope, so the dial itself stays
// an injection point here exactly as it does in the teacher tree, rather
// than this package guessing at board-specific pin wiring.
var UARTDial func(ctx context.Context, cfg DialConfig) (io.ReadWriteCloser, error)

type uartTransport struct {
	cfg DialConfig
}

func newUARTTransport(cfg DialConfig) (Transport, error) {
	return &uartTransport{cfg: cfg}, nil
}

func (t *uartTransport) Open(ctx context.Context) (io.ReadWriteCloser, error) {
	if UARTDial == nil {
		return nil, errNoDial
	}
	return UARTDial(ctx, t.cfg)
}

func (t *uartTransport) String() string { return "uart" }
