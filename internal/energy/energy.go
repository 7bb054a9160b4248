// Package energy integrates pack power into cumulative charged/discharged
// watt-hour counters and debounces their persistence (§4.7).
package energy

import (
	"math"
	"sync"
	"time"

	"github.com/jangala-dev/tinybms-gateway/internal/nvs"
	"github.com/jangala-dev/tinybms-gateway/types"
)

const (
	dirtyThresholdWh  = 10
	persistIntervalMs = 60_000
	gapThresholdMs    = 60_000

	nvsKeyCharged    = "energy_charged_wh"
	nvsKeyDischarged = "energy_discharged_wh"
)

// GapLogger is called whenever a sample arrives more than 60s after the
// previous one (§4.7 "log a gap but still integrate").
type GapLogger func(gapMs int64)

// Integrator holds the four persisted counters behind one lock (§9
// "integration must be a single critical section", replacing the
// source's fragile double-locked read-then-write). All reads and
// writes of the counters occur under this one mutex (§4.7).
type Integrator struct {
	mu    sync.Mutex
	state types.EnergyCounters
	store nvs.Store
	onGap GapLogger
}

func New(store nvs.Store, onGap GapLogger) *Integrator {
	return &Integrator{store: store, onGap: onGap}
}

// Load restores persisted counters, defaulting to zero if absent or
// malformed.
func (e *Integrator) Load() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if v, ok, err := e.store.Get(nvsKeyCharged); err == nil && ok {
		if f, err := decodeFloat64(v); err == nil {
			e.state.ChargedWh = f
			e.state.LastPersistedChargedWh = f
		}
	}
	if v, ok, err := e.store.Get(nvsKeyDischarged); err == nil && ok {
		if f, err := decodeFloat64(v); err == nil {
			e.state.DischargedWh = f
			e.state.LastPersistedDischargedWh = f
		}
	}
}

// Sample integrates one V/I reading at wall-clock time nowMs into the
// counters (§4.7). A voltage at or below 0.1V, or a non-finite current,
// is not integrated (no valid power reading to accumulate). The very
// first sample only anchors the clock.
func (e *Integrator) Sample(nowMs int64, voltageV, currentA float64) {
	if voltageV <= 0.1 || math.IsNaN(currentA) || math.IsInf(currentA, 0) {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state.LastSampleTSMs == 0 {
		e.state.LastSampleTSMs = nowMs
		return
	}

	deltaMs := nowMs - e.state.LastSampleTSMs
	e.state.LastSampleTSMs = nowMs
	if deltaMs <= 0 {
		return
	}
	if deltaMs > gapThresholdMs && e.onGap != nil {
		e.onGap(deltaMs)
	}

	watts := voltageV * currentA
	wh := math.Abs(watts) * float64(deltaMs) / 3_600_000

	if watts >= 0 {
		e.state.ChargedWh += wh
	} else {
		e.state.DischargedWh += wh
	}
	if e.state.ChargedWh < 0 {
		e.state.ChargedWh = 0
	}
	if e.state.DischargedWh < 0 {
		e.state.DischargedWh = 0
	}

	if math.Abs(e.state.ChargedWh-e.state.LastPersistedChargedWh) >= dirtyThresholdWh ||
		math.Abs(e.state.DischargedWh-e.state.LastPersistedDischargedWh) >= dirtyThresholdWh {
		e.state.Dirty = true
	}
}

// MaybePersist writes both counters atomically if dirty and the
// debounce interval has elapsed (§4.7 "persistence runs when dirty and
// now - last_persist_ts >= 60s").
func (e *Integrator) MaybePersist(nowMs int64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.persistLocked(nowMs, false)
}

// ForcePersist writes both counters unconditionally, ignoring the
// debounce interval (§5 "the energy integrator force-persists during
// shutdown").
func (e *Integrator) ForcePersist(nowMs int64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.persistLocked(nowMs, true)
}

func (e *Integrator) persistLocked(nowMs int64, force bool) error {
	if !force {
		if !e.state.Dirty || nowMs-e.state.LastPersistTSMs < persistIntervalMs {
			return nil
		}
	}

	if err := e.store.Set(nvsKeyCharged, encodeFloat64(e.state.ChargedWh)); err != nil {
		return err
	}
	if err := e.store.Set(nvsKeyDischarged, encodeFloat64(e.state.DischargedWh)); err != nil {
		return err
	}

	e.state.LastPersistedChargedWh = e.state.ChargedWh
	e.state.LastPersistedDischargedWh = e.state.DischargedWh
	e.state.LastPersistTSMs = nowMs
	e.state.Dirty = false
	return nil
}

// Snapshot returns a consistent copy of the current counters.
func (e *Integrator) Snapshot() types.EnergyCounters {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

func encodeFloat64(f float64) []byte {
	bits := math.Float64bits(f)
	b := make([]byte, 8)
	for i := 0; i < 8; i++ {
		b[i] = byte(bits >> (8 * i))
	}
	return b
}

func decodeFloat64(b []byte) (float64, error) {
	if len(b) != 8 {
		return 0, errBadLen
	}
	var bits uint64
	for i := 0; i < 8; i++ {
		bits |= uint64(b[i]) << (8 * i)
	}
	return math.Float64frombits(bits), nil
}

type lenErr string

func (e lenErr) Error() string { return string(e) }

const errBadLen = lenErr("energy: bad persisted counter length")
