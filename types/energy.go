package types

// EnergyCounters is the persisted, monotonically non-decreasing pair of
// cumulative watt-hour counters (§3).
//
// Invariants: both counters are >= 0 and never decrease; Dirty is set iff
// one of the counters has diverged from its last persisted value;
// persistence is idempotent.
type EnergyCounters struct {
	ChargedWh    float64
	DischargedWh float64

	LastSampleTSMs  int64
	LastPersistTSMs int64

	LastPersistedChargedWh    float64
	LastPersistedDischargedWh float64

	Dirty bool
}
