// Package nvs is the gateway's persistence layer: an atomic key/value
// store for per-register raw values, poll interval, MQTT/topics, energy
// counters, and the AP secret (§4.4, §6 "Persisted state layout").
package nvs

import "github.com/jangala-dev/tinybms-gateway/errcode"

// Namespace is the single bucket/prefix all gateway keys live under.
const Namespace = "gateway_cfg"

// Store is the persistence contract. Concrete stores are bbolt-backed on
// builds with a filesystem and in-memory otherwise (tinygo builds, tests).
type Store interface {
	Get(key string) ([]byte, bool, error)
	Set(key string, value []byte) error
	Delete(key string) error
	ForEach(prefix string, fn func(key string, value []byte) error) error
	Close() error
}

// wrapErr maps a concrete store's error into the gateway's NvsFailure
// kind, preserving the cause.
func wrapErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &errcode.E{C: errcode.NvsFailure, Op: op, Err: err}
}
