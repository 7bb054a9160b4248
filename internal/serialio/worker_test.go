package serialio

import (
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/jangala-dev/tinybms-gateway/drivers/tinybms"
)

// pipeTransport hands out one end of an in-memory net.Pipe as the link;
// the test drives the other end as a fake BMS.
type pipeTransport struct {
	client net.Conn
}

func (p *pipeTransport) Open(ctx context.Context) (io.ReadWriteCloser, error) {
	return p.client, nil
}
func (p *pipeTransport) String() string { return "pipe" }

func TestWorker_DoRoundTrip(t *testing.T) {
	client, bmsSide := net.Pipe()
	RegisterTransport("test-pipe", func(cfg DialConfig) (Transport, error) {
		return &pipeTransport{client: client}, nil
	})

	// Fake BMS: read the request, answer with a read-response frame.
	go func() {
		buf := make([]byte, 8)
		_, _ = io.ReadFull(bmsSide, buf)
		resp := tinybms.AppendCRC([]byte{0xAA, tinybms.FnRead, 0x02, 0x00, 0x2A})
		_, _ = bmsSide.Write(resp)
	}()

	w := NewWorker(nil, DialConfig{Type: "test-pipe"}, 200*time.Millisecond, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	req := tinybms.BuildReadRequest(50, 1)
	resp, err := w.Do(ctx, "read", req, nil)
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	payload, err := tinybms.ParseReadResponse("read", resp)
	if err != nil {
		t.Fatalf("ParseReadResponse: %v", err)
	}
	if payload[0] != 0x00 || payload[1] != 0x2A {
		t.Fatalf("payload = % X, want {0x00, 0x2A}", payload)
	}
}

func TestWorker_DoHonoursContextCancellation(t *testing.T) {
	client, _ := net.Pipe()
	RegisterTransport("test-pipe-stall", func(cfg DialConfig) (Transport, error) {
		return &pipeTransport{client: client}, nil
	})
	w := NewWorker(nil, DialConfig{Type: "test-pipe-stall"}, time.Hour, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	go w.Run(ctx)

	reqCtx, reqCancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer reqCancel()
	_, err := w.Do(reqCtx, "read", tinybms.BuildReadRequest(0, 1), nil)
	if err == nil {
		t.Fatalf("expected a DeliveryTimeout-class error on context cancellation")
	}
	cancel()
}
