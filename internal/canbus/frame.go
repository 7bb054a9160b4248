// Package canbus synthesizes the Victron PGN frame family from a BMS
// snapshot, CVL runtime state, and energy counters, and drives it onto
// the CAN bus at each PGN's prescribed cadence through a resilience
// layer (token bucket, circuit breaker, content-hash frame cache, and
// metrics) (§4.6, §4.8).
package canbus

import "github.com/jangala-dev/tinybms-gateway/errcode"

// Frame is the wire-level CAN frame the driver collaborator transmits;
// it mirrors github.com/brutella/can's Frame field shape (ID/Length/Data)
// so socketCANDriver.Transmit's conversion is a pure field copy with no
// decoding logic of its own.
type Frame struct {
	ID      uint32
	DLC     uint8
	Data    [8]byte
}

// Driver is the CAN transport collaborator (§6 "CAN driver collaborator
// ... owns TX queueing"). transmit_linux.go binds one over SocketCAN via
// github.com/brutella/can; tests use an in-memory fake.
type Driver interface {
	Transmit(f Frame) error
}

func busErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &errcode.E{C: errcode.CanFailure, Op: op, Err: err}
}
