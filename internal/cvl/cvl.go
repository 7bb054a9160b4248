// Package cvl implements the charge voltage limit control law: a pure
// function of per-tick BMS inputs, static configuration, and the previous
// tick's runtime state (§4.5).
package cvl

import "github.com/jangala-dev/tinybms-gateway/types"

// Evaluate computes the next CVLRuntimeState. It never reads or mutates
// anything outside its arguments — callers own persisting prev across
// ticks (§8 "CVL law is a pure function of (inputs,config,previous_state)").
func Evaluate(in types.CVLInputs, cfg types.CVLConfig, prev types.CVLRuntimeState) types.CVLRuntimeState {
	state := nextState(prev.State, in, cfg)
	stateCVL := voltageForState(state, in, cfg)

	protectionActive := prev.CellProtectionActive
	if in.MaxCellVoltageV >= cfg.CellSafetyV {
		protectionActive = true
	} else if in.MaxCellVoltageV <= cfg.CellSafetyReleaseV {
		protectionActive = false
	}

	cvl := stateCVL
	if protectionActive {
		reduction := cfg.ProtectionKp * (1 + in.PackCurrentA/cfg.NominalChargeAmps) * (in.MaxCellVoltageV - cfg.CellSafetyV)
		cvl = stateCVL - reduction
		if floor := cfg.CellMinFloatV * float64(cfg.SeriesCellCount); cvl < floor {
			cvl = floor
		}
	}

	// Monotonic recovery clamp: only gated on protection having been
	// active on the *previous* tick, never the current one, so a
	// first-ever protection engagement is never clamped against a
	// meaningless zero-value prior CVL (§4.5, §8 scenario 6).
	if prev.CellProtectionActive {
		if max := prev.CVLVoltage + cfg.MaxRecoveryStepV; cvl > max {
			cvl = max
		}
	}

	ratio := 1.0
	if stateCVL != 0 {
		ratio = cvl / stateCVL
	}
	ratio = clamp01(ratio)

	ccl := in.BaseCCLAmps * ratio
	dcl := in.BaseDCLAmps * ratio

	switch state {
	case types.Float:
		if ccl < cfg.MinCCLInFloatAmps {
			ccl = cfg.MinCCLInFloatAmps
		}
	case types.Sustain:
		if ccl > cfg.SustainCCLAmps {
			ccl = cfg.SustainCCLAmps
		}
		if dcl > cfg.SustainDCLAmps {
			dcl = cfg.SustainDCLAmps
		}
	}

	return types.CVLRuntimeState{
		State:                state,
		CVLVoltage:           cvl,
		CellProtectionActive: protectionActive,
		CCLAmps:              ccl,
		DCLAmps:              dcl,
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// nextState applies the §4.5 hysteretic state table. Sustain and
// ImbalanceHold are evaluated as overlays on top of the four SOC-driven
// states; once neither overlay condition holds, control falls through to
// the SOC-banded classification.
func nextState(prev types.CVLState, in types.CVLInputs, cfg types.CVLConfig) types.CVLState {
	soc := in.SOCPercent

	if cfg.SustainEnabled {
		if prev == types.Sustain {
			if soc < cfg.SustainExitSOC {
				return types.Sustain
			}
		} else if soc <= cfg.SustainEntrySOC {
			return types.Sustain
		}
	}

	if prev == types.ImbalanceHold {
		if in.MaxImbalanceMV > cfg.ImbalanceReleaseMV {
			return types.ImbalanceHold
		}
	} else if in.MaxImbalanceMV > cfg.ImbalanceHoldMV {
		return types.ImbalanceHold
	}

	return baseState(prev, soc, cfg)
}

// baseState resolves the four SOC-banded states, with state-aware
// hysteresis for tracking whichever of Bulk/Transition/FloatApproach/Float
// the law was already in; any other previous state (Sustain,
// ImbalanceHold, or the zero value on first evaluation) reclassifies from
// scratch.
func baseState(prev types.CVLState, soc float64, cfg types.CVLConfig) types.CVLState {
	switch prev {
	case types.Bulk:
		if soc >= cfg.TransitionThresholdSOC {
			return classify(soc, cfg)
		}
		return types.Bulk
	case types.Transition:
		if soc >= cfg.FloatThresholdSOC {
			return classify(soc, cfg)
		}
		if soc < cfg.BulkThresholdSOC {
			return types.Bulk
		}
		return types.Transition
	case types.FloatApproach:
		if soc >= cfg.FloatThresholdSOC {
			return types.Float
		}
		if soc+0.25 < cfg.TransitionThresholdSOC {
			return types.Transition
		}
		return types.FloatApproach
	case types.Float:
		if soc < cfg.FloatExitThresholdSOC {
			return classify(soc, cfg)
		}
		return types.Float
	default:
		return classify(soc, cfg)
	}
}

// classify bands soc against the four thresholds with no hysteresis,
// used whenever a state is entered fresh (first tick, or falling through
// from Sustain/ImbalanceHold).
func classify(soc float64, cfg types.CVLConfig) types.CVLState {
	switch {
	case soc < cfg.BulkThresholdSOC:
		return types.Bulk
	case soc < cfg.TransitionThresholdSOC:
		return types.Transition
	case soc < cfg.FloatThresholdSOC:
		return types.FloatApproach
	default:
		return types.Float
	}
}

// voltageForState computes the per-state CVL target voltage before the
// cell-level dynamic clamp is applied (§4.5 "CVL voltage per state").
func voltageForState(state types.CVLState, in types.CVLInputs, cfg types.CVLConfig) float64 {
	switch state {
	case types.Bulk, types.Transition:
		return cfg.BulkTargetV
	case types.FloatApproach:
		return cfg.BulkTargetV - cfg.FloatApproachOffsetMV/1000
	case types.Float:
		return cfg.BulkTargetV - cfg.FloatOffsetMV/1000
	case types.ImbalanceHold:
		excessMV := in.MaxImbalanceMV - cfg.ImbalanceHoldMV
		if excessMV < 0 {
			excessMV = 0
		}
		drop := excessMV * cfg.ImbalanceDropPerMV
		if drop > cfg.ImbalanceDropCapV {
			drop = cfg.ImbalanceDropCapV
		}
		v := cfg.BulkTargetV - drop
		if floor := cfg.CellMinFloatV * float64(cfg.SeriesCellCount); v < floor {
			v = floor
		}
		return v
	case types.Sustain:
		sustainV := cfg.SustainVoltageV
		if perCell := cfg.SustainPerCellV * float64(cfg.SeriesCellCount); perCell > sustainV {
			sustainV = perCell
		}
		if floor := cfg.CellMinFloatV * float64(cfg.SeriesCellCount); floor > sustainV {
			sustainV = floor
		}
		return sustainV
	default:
		return cfg.BulkTargetV
	}
}
