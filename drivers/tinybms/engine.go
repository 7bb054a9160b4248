package tinybms

import (
	"sync"
	"time"

	"github.com/jangala-dev/tinybms-gateway/errcode"
)

// Transceiver is the minimal serial-line contract the exchange state
// machine needs: write one framed request, then block for one framed
// response or a timeout. internal/serialio's worker implements this over
// the owned line; tests implement it over an in-memory queue.
type Transceiver interface {
	WriteFrame(frame []byte) error
	ReadFrame(timeout time.Duration) ([]byte, error)
}

// ExchangeState names one state of the per-exchange state machine (§4.3).
type ExchangeState uint8

const (
	Idle ExchangeState = iota
	TxIssued
	AwaitResponse
	Ok
	Nack
	CrcMismatch
	Timeout
	MaybeWakeRetry
)

// Engine drives one request/response exchange at a time over a
// Transceiver, implementing the sleep-wake retry and the "CRC mismatch /
// frame-shape violations retried once, NACK never retried, timeouts go
// through wake-retry" failure semantics of §4.3.
type Engine struct {
	tx             Transceiver
	perAttempt     time.Duration
	quietThreshold time.Duration

	mu          sync.Mutex
	lastSuccess time.Time
	lastState   ExchangeState
}

// NewEngine builds an Engine. perAttempt bounds a single write+read
// round-trip; quietThreshold is the idle duration after which the first
// command is treated as "after a quiet interval" and gets the wake-retry
// (§4.3 "Sleep-mode handling").
func NewEngine(tx Transceiver, perAttempt, quietThreshold time.Duration) *Engine {
	return &Engine{tx: tx, perAttempt: perAttempt, quietThreshold: quietThreshold}
}

// State returns the state the most recent exchange finished in.
func (e *Engine) State() ExchangeState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastState
}

// Exchange sends frame and returns the validated response, or a typed
// error. op names the operation for error context (e.g. "read", "write",
// "op:0x14").
func (e *Engine) Exchange(op string, frame []byte, validate func([]byte) error) ([]byte, error) {
	e.mu.Lock()
	quiet := e.lastSuccess.IsZero() || time.Since(e.lastSuccess) >= e.quietThreshold
	e.mu.Unlock()

	resp, err := e.attempt(op, frame, validate)
	if err == nil {
		e.markSuccess(Ok)
		return resp, nil
	}

	switch errcode.Of(err) {
	case errcode.SerialNack:
		// Never retried at this layer (§4.3).
		e.markFailure(Nack)
		return nil, err

	case errcode.SerialCrcMismatch, errcode.InvalidSize:
		// CRC mismatch / frame-shape violations retried once (§4.3).
		e.setState(CrcMismatch)
		resp, err2 := e.attempt(op, frame, validate)
		if err2 == nil {
			e.markSuccess(Ok)
			return resp, nil
		}
		e.markFailure(e.classify(err2))
		return nil, err2

	case errcode.SerialTimeout:
		e.setState(Timeout)
		if !quiet {
			e.markFailure(Timeout)
			return nil, err
		}
		// Sleep-wake retry: resend the same command once (§4.3).
		e.setState(MaybeWakeRetry)
		resp2, err2 := e.attempt(op, frame, validate)
		if err2 == nil {
			e.markSuccess(Ok)
			return resp2, nil
		}
		if errcode.Of(err2) == errcode.SerialTimeout {
			e.markFailure(Timeout)
			return nil, &errcode.E{C: errcode.BmsAsleep, Op: op, Err: err2}
		}
		e.markFailure(e.classify(err2))
		return nil, err2

	default:
		e.markFailure(e.classify(err))
		return nil, err
	}
}

func (e *Engine) classify(err error) ExchangeState {
	switch errcode.Of(err) {
	case errcode.SerialNack:
		return Nack
	case errcode.SerialCrcMismatch:
		return CrcMismatch
	case errcode.SerialTimeout:
		return Timeout
	default:
		return Timeout
	}
}

func (e *Engine) attempt(op string, frame []byte, validate func([]byte) error) ([]byte, error) {
	e.setState(TxIssued)
	if err := e.tx.WriteFrame(frame); err != nil {
		return nil, &errcode.E{C: errcode.Io, Op: op, Err: err}
	}
	e.setState(AwaitResponse)
	resp, err := e.tx.ReadFrame(e.perAttempt)
	if err != nil {
		return nil, &errcode.E{C: errcode.SerialTimeout, Op: op, Err: err}
	}
	if err := CheckFrame(op, resp); err != nil {
		return nil, err
	}
	if validate != nil {
		if err := validate(resp); err != nil {
			return nil, err
		}
	}
	return resp, nil
}

func (e *Engine) setState(s ExchangeState) {
	e.mu.Lock()
	e.lastState = s
	e.mu.Unlock()
}

func (e *Engine) markSuccess(s ExchangeState) {
	e.mu.Lock()
	e.lastState = s
	e.lastSuccess = time.Now()
	e.mu.Unlock()
}

func (e *Engine) markFailure(s ExchangeState) {
	e.setState(s)
}
