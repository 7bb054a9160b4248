package serialio

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/jangala-dev/tinybms-gateway/bus"
	"github.com/jangala-dev/tinybms-gateway/drivers/tinybms"
	"github.com/jangala-dev/tinybms-gateway/errcode"
	"github.com/jangala-dev/tinybms-gateway/internal/obslog"
)

type request struct {
	op       string
	frame    []byte
	validate func([]byte) error
	resp     chan result
}

type result struct {
	frame []byte
	err   error
}

// Worker is the serial I/O worker of §5: it is the sole owner of the BMS
// line and of the tinybms exchange engine. Every other component issues
// exchanges through Do, which enqueues onto a request channel rather
// than touching the line directly.
type Worker struct {
	conn       *bus.Connection
	stateTopic bus.Topic
	dial       DialConfig
	perAttempt time.Duration
	quiet      time.Duration
	log        *obslog.Logger

	reqCh chan request
}

// NewWorker builds a Worker. perAttempt bounds one write+read round trip;
// quiet is the idle threshold after which the engine applies the
// sleep-wake retry (§4.3).
func NewWorker(conn *bus.Connection, dial DialConfig, perAttempt, quiet time.Duration) *Worker {
	return &Worker{
		conn:       conn,
		stateTopic: bus.Topic{"serial", "state"},
		dial:       dial,
		perAttempt: perAttempt,
		quiet:      quiet,
		log:        obslog.New("serialio"),
		reqCh:      make(chan request, 32),
	}
}

// Do enqueues one request/response exchange and waits for its result,
// honouring ctx cancellation while queued.
func (w *Worker) Do(ctx context.Context, op string, frame []byte, validate func([]byte) error) ([]byte, error) {
	req := request{op: op, frame: frame, validate: validate, resp: make(chan result, 1)}
	select {
	case w.reqCh <- req:
	case <-ctx.Done():
		return nil, &errcode.E{C: errcode.DeliveryTimeout, Op: op, Err: ctx.Err()}
	}
	select {
	case r := <-req.resp:
		return r.frame, r.err
	case <-ctx.Done():
		return nil, &errcode.E{C: errcode.DeliveryTimeout, Op: op, Err: ctx.Err()}
	}
}

// Run owns the transport lifecycle: open, serve requests, and on link
// loss reconnect with exponential backoff, until ctx is cancelled
// (grounded on services/bridge's runLink/handleLink supervision loop).
func (w *Worker) Run(ctx context.Context) {
	tr, err := newTransport(w.dial)
	if err != nil {
		w.publishState("error", "transport_init_failed", err)
		return
	}

	backoff := backoffSeq(250*time.Millisecond, 5*time.Second)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		rwc, err := tr.Open(ctx)
		if err != nil {
			delay := backoff()
			w.publishState("degraded", "dial_failed_retrying", fmt.Errorf("%v (retry in %s)", err, delay))
			if !sleepCtx(ctx, delay) {
				return
			}
			continue
		}

		w.publishState("up", "link_established", nil)
		if err := w.handleLink(ctx, rwc); err != nil {
			_ = rwc.Close()
			delay := backoff()
			w.publishState("degraded", "link_lost_retrying", fmt.Errorf("%v (retry in %s)", err, delay))
			if !sleepCtx(ctx, delay) {
				return
			}
			continue
		}
		return
	}
}

// handleLink drains requests against one open transport until ctx is
// cancelled or the transport itself fails (a write error, as opposed to
// a protocol-level timeout/NACK/CRC mismatch, which are not link faults).
func (w *Worker) handleLink(ctx context.Context, rwc io.ReadWriteCloser) error {
	tx := newFrameTransceiver(rwc)
	engine := tinybms.NewEngine(tx, w.perAttempt, w.quiet)

	for {
		select {
		case <-ctx.Done():
			return nil
		case req := <-w.reqCh:
			resp, err := engine.Exchange(req.op, req.frame, req.validate)
			req.resp <- result{frame: resp, err: err}
			if err != nil && errcode.Of(err) == errcode.Io {
				return err
			}
		}
	}
}

func (w *Worker) publishState(level, status string, err error) {
	if err != nil {
		w.log.Println(level, " ", status, ": ", err)
	} else {
		w.log.Println(level, " ", status)
	}
	if w.conn == nil {
		return
	}
	payload := map[string]any{
		"level":  level,
		"status": status,
		"ts_ms":  time.Now().UnixMilli(),
	}
	if err != nil {
		payload["error"] = err.Error()
	}
	w.conn.Publish(w.conn.NewMessage(w.stateTopic, payload, true))
}
