package cvl

import "github.com/jangala-dev/tinybms-gateway/types"

// DefaultConfig returns the production tuning for a 16S LiFePO4 pack
// (§4.5's worked thresholds); a deployment with a different chemistry or
// topology overrides individual fields, not the whole struct.
func DefaultConfig() types.CVLConfig {
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
