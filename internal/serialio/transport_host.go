//go:build !(rp2040 || rp2350)

package serialio

import (
	"context"
	"io"

	"github.com/tarm/serial"
)

func init() {
	RegisterTransport("serial", newSerialTransport)
}

// serialTransport opens the BMS line on a host build via tarm/serial
// (grounded on the retrieval pack's serebryakov7-j1708-stats manifest,
// which dials its own serial-line logger the same way).
type serialTransport struct {
	cfg DialConfig
}

func newSerialTransport(cfg DialConfig) (Transport, error) {
	return &serialTransport{cfg: cfg}, nil
}

func (t *serialTransport) Open(ctx context.Context) (io.ReadWriteCloser, error) {
	readTimeout := timeoutOr(t.cfg.ReadTimeoutMS, 0)
	c := &serial.Config{
		Name:        t.cfg.Device,
		Baud:        t.cfg.Baud,
		ReadTimeout: readTimeout,
	}
	return serial.OpenPort(c)
}

func (t *serialTransport) String() string { return "serial:" + t.cfg.Device }
