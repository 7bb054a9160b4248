package energy

import (
	"math"
	"testing"

	"github.com/jangala-dev/tinybms-gateway/internal/nvs"
)

// base offsets every scenario off the t=0 sentinel ("last_ts == 0"
// means "never sampled"), matching how a real uptime clock is never
// exactly zero at the first sample.
const base = 1_000

// TestSample_ChargeOverTwoHours is §8 scenario 7: three samples an hour
// apart, each V=50V/I=+10A, want charged_wh ~= 1000, discharged_wh == 0.
func TestSample_ChargeOverTwoHours(t *testing.T) {
	e := New(nvs.NewMemStore(), nil)

	e.Sample(base, 50, 10)             // anchors only
	e.Sample(base+3_600_000, 50, 10)   // +500 Wh
	e.Sample(base+7_200_000, 50, 10)   // +500 Wh

	snap := e.Snapshot()
	if math.Abs(snap.ChargedWh-1000) > 1e-6 {
		t.Fatalf("ChargedWh = %v, want ~1000", snap.ChargedWh)
	}
	if snap.DischargedWh != 0 {
		t.Fatalf("DischargedWh = %v, want 0", snap.DischargedWh)
	}
}

func TestSample_DischargeAccumulates(t *testing.T) {
	e := New(nvs.NewMemStore(), nil)
	e.Sample(base, 50, -10)
	e.Sample(base+3_600_000, 50, -10)

	snap := e.Snapshot()
	if math.Abs(snap.DischargedWh-500) > 1e-6 {
		t.Fatalf("DischargedWh = %v, want ~500", snap.DischargedWh)
	}
}

func TestSample_IgnoresBelowVoltageFloor(t *testing.T) {
	e := New(nvs.NewMemStore(), nil)
	e.Sample(base, 50, 10)
	e.Sample(base+3_600_000, 0.05, 10) // below 0.1V floor, not integrated

	snap := e.Snapshot()
	if snap.LastSampleTSMs != base {
		t.Fatalf("LastSampleTSMs = %v, want unchanged at %v (sample dropped)", snap.LastSampleTSMs, base)
	}
}

func TestGapLogger_CalledOnLongGap(t *testing.T) {
	var gapMs int64
	e := New(nvs.NewMemStore(), func(ms int64) { gapMs = ms })
	e.Sample(base, 50, 10)
	e.Sample(base+120_000, 50, 10) // 120s gap, still integrates

	if gapMs != 120_000 {
		t.Fatalf("gap callback ms = %v, want 120000", gapMs)
	}
	snap := e.Snapshot()
	if snap.ChargedWh <= 0 {
		t.Fatalf("ChargedWh = %v, want integration across the gap", snap.ChargedWh)
	}
}

func TestMaybePersist_DebouncesUntilDirtyAndIntervalElapsed(t *testing.T) {
	store := nvs.NewMemStore()
	e := New(store, nil)
	e.Sample(base, 50, 10)
	e.Sample(base+3_600_000, 50, 10) // +500 Wh, dirty

	if err := e.MaybePersist(base + 30_000); err != nil {
		t.Fatalf("MaybePersist: %v", err)
	}
	if _, ok, _ := store.Get(nvsKeyCharged); ok {
		t.Fatalf("persisted before 60s debounce interval elapsed")
	}

	if err := e.MaybePersist(base + 70_000); err != nil {
		t.Fatalf("MaybePersist: %v", err)
	}
	if _, ok, _ := store.Get(nvsKeyCharged); !ok {
		t.Fatalf("expected persisted charged_wh key after debounce interval")
	}
}

func TestForcePersist_IgnoresDebounce(t *testing.T) {
	store := nvs.NewMemStore()
	e := New(store, nil)
	e.Sample(base, 50, 10)
	e.Sample(base+3_600_000, 50, 10)

	if err := e.ForcePersist(base + 1); err != nil {
		t.Fatalf("ForcePersist: %v", err)
	}
	if _, ok, _ := store.Get(nvsKeyCharged); !ok {
		t.Fatalf("expected force-persist to write regardless of debounce")
	}
}
