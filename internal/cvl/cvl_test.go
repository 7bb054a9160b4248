package cvl

import (
	"math"
	"testing"

	"github.com/jangala-dev/tinybms-gateway/types"
)

// scenarioConfig builds the shared config from §8 scenarios 5 and 6.
func scenarioConfig() types.CVLConfig {
	return types.CVLConfig{
		BulkThresholdSOC:       60,
		TransitionThresholdSOC: 85,
		FloatThresholdSOC:      98,
		FloatExitThresholdSOC:  95,

		FloatApproachOffsetMV: 200,
		FloatOffsetMV:         400,
		MinCCLInFloatAmps:     5,

		ImbalanceHoldMV:    40,
		ImbalanceReleaseMV: 20,
		ImbalanceDropPerMV: 0.01,
		ImbalanceDropCapV:  2,

		BulkTargetV:     54.0,
		SeriesCellCount: 16,

		CellMaxV:           3.65,
		CellSafetyV:        3.60,
		CellSafetyReleaseV: 3.55,
		CellMinFloatV:      3.30,

		ProtectionKp:      0.5,
		NominalChargeAmps: 100,
		MaxRecoveryStepV:  0.05,

		SustainEnabled: false,
	}
}

func TestEvaluate_FloatApproach(t *testing.T) {
	cfg := scenarioConfig()
	in := types.CVLInputs{
		SOCPercent:      92,
		MaxImbalanceMV:  20,
		PackVoltageV:    53.0,
		BaseCCLAmps:     100,
		BaseDCLAmps:     200,
		PackCurrentA:    0,
		MaxCellVoltageV: 3.45,
	}
	out := Evaluate(in, cfg, types.CVLRuntimeState{})

	if out.State != types.FloatApproach {
		t.Fatalf("State = %v, want FloatApproach", out.State)
	}
	if math.Abs(out.CVLVoltage-53.8) > 1e-9 {
		t.Fatalf("CVLVoltage = %v, want 53.8", out.CVLVoltage)
	}
	if out.CCLAmps != 100 || out.DCLAmps != 200 {
		t.Fatalf("CCL/DCL = %v/%v, want unchanged 100/200", out.CCLAmps, out.DCLAmps)
	}
}

func TestEvaluate_CellProtection(t *testing.T) {
	cfg := scenarioConfig()
	in := types.CVLInputs{
		SOCPercent:      92,
		MaxImbalanceMV:  20,
		PackVoltageV:    53.0,
		BaseCCLAmps:     100,
		BaseDCLAmps:     200,
		PackCurrentA:    50,
		MaxCellVoltageV: 3.62,
	}
	out := Evaluate(in, cfg, types.CVLRuntimeState{})

	if !out.CellProtectionActive {
		t.Fatalf("expected protection engaged")
	}
	want := 53.8 - 0.5*(1+0.5)*0.02
	if math.Abs(out.CVLVoltage-want) > 1e-9 {
		t.Fatalf("CVLVoltage = %v, want %v", out.CVLVoltage, want)
	}
}

func TestEvaluate_RecoveryStepClampsUpwardJump(t *testing.T) {
	cfg := scenarioConfig()
	prev := types.CVLRuntimeState{State: types.FloatApproach, CVLVoltage: 53.0, CellProtectionActive: true}
	in := types.CVLInputs{
		SOCPercent:      92,
		MaxImbalanceMV:  20,
		BaseCCLAmps:     100,
		BaseDCLAmps:     200,
		PackCurrentA:    0,
		MaxCellVoltageV: 3.40, // well below release threshold, protection clears
	}
	out := Evaluate(in, cfg, prev)

	if out.CVLVoltage > prev.CVLVoltage+cfg.MaxRecoveryStepV+1e-9 {
		t.Fatalf("CVLVoltage = %v, exceeds recovery step cap over prev %v", out.CVLVoltage, prev.CVLVoltage)
	}
}

func TestEvaluate_ImbalanceHoldOverridesFloat(t *testing.T) {
	cfg := scenarioConfig()
	prev := types.CVLRuntimeState{State: types.Float}
	in := types.CVLInputs{
		SOCPercent:      99,
		MaxImbalanceMV:  50, // above hold threshold
		BaseCCLAmps:     100,
		BaseDCLAmps:     200,
		MaxCellVoltageV: 3.3,
	}
	out := Evaluate(in, cfg, prev)
	if out.State != types.ImbalanceHold {
		t.Fatalf("State = %v, want ImbalanceHold", out.State)
	}
}

func TestEvaluate_BulkHoldsUntilTransitionThreshold(t *testing.T) {
	cfg := scenarioConfig()
	prev := types.CVLRuntimeState{State: types.Bulk}
	in := types.CVLInputs{SOCPercent: 80, BaseCCLAmps: 10, BaseDCLAmps: 10, MaxCellVoltageV: 3.3}
	out := Evaluate(in, cfg, prev)
	if out.State != types.Bulk {
		t.Fatalf("State = %v, want Bulk held by hysteresis below transition threshold", out.State)
	}
}
