package types

// Topic names in scope (§3). These are the last segment under the bus's
// own topic tree; callers join them under whatever prefix they subscribe
// at (see bus.T in the bus package).
const (
	TopicRegisterUpdated = "bms_register_updated"
	TopicConfigUpdated   = "config_updated"
	TopicCVLUpdated      = "cvl_limits_updated"
	TopicBatteryStatus   = "battery_status_updated"
	TopicPackStats       = "pack_stats_updated"
	TopicSystemStatus    = "system_status_updated"
)

// RegisterUpdatedPayload is published by the register cache for every
// register whose value a poll changes, and after every
// write-with-readback (§4.4).
type RegisterUpdatedPayload struct {
	Key         string
	ScaledValue float64
	RawValue    uint16
}

// CVLLimitsPayload is published by the CAN publishing orchestrator after
// each CVL law evaluation.
type CVLLimitsPayload struct {
	State      CVLState
	CVLVoltage float64
	CCLAmps    float64
	DCLAmps    float64
}

// BatteryStatusPayload summarises alarm/warning state for operator-facing
// subscribers.
type BatteryStatusPayload struct {
	AlarmBits   uint16
	WarningBits uint16
	OnlineCount uint8
}

// PackStatsPayload mirrors the PGN 0x373 fields for bus subscribers that
// want them without decoding CAN frames.
type PackStatsPayload struct {
	MinCellMV  uint16
	MaxCellMV  uint16
	MinTempK   uint16
	MaxTempK   uint16
}

// SystemStatusPayload is the gateway's own heartbeat payload.
type SystemStatusPayload struct {
	UptimeMs          int64
	LastPollSuccessMs int64
	BreakerState      string
}
