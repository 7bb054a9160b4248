package canbus

// level is one 2-bit alarm/warning slot value (§4.6: 0 = clear, 1 =
// warn, 2 = alarm, 3 = reserved/unused).
type level uint8

const (
	levelClear    level = 0
	levelWarn     level = 1
	levelAlarm    level = 2
	levelReserved level = 3
)

// alarmCondition is one row of the §4.6 alarm table: a named
// measurement compared against a warn and an alarm threshold.
type alarmCondition struct {
	name string
	eval func(Context, AlarmThresholds) level
}

// AlarmThresholds holds the per-condition warn/alarm boundaries for the
// PGN 0x35A bitmap. The specification defers the exact bit assignment
// and thresholds to source material this pack does not carry (see
// DESIGN.md); these are a documented engineering judgment call, not a
// literal reproduction of an unavailable table.
type AlarmThresholds struct {
	UnderVoltageWarnV, UnderVoltageAlarmV float64
	OverVoltageWarnV, OverVoltageAlarmV   float64

	OverTempWarnC, OverTempAlarmC   float64
	LowTempWarnC, LowTempAlarmC     float64

	HighTempChargeWarnC, HighTempChargeAlarmC float64
	LowTempChargeWarnC, LowTempChargeAlarmC   float64

	HighDischargeWarnA, HighDischargeAlarmA float64
	HighChargeWarnA, HighChargeAlarmA       float64

	ImbalanceWarnMV, ImbalanceAlarmMV float64
}

// DefaultAlarmThresholds gives every condition a conservative default,
// loosely centred on the CVL law's own cell-safety/bulk-target values.
func DefaultAlarmThresholds() AlarmThresholds {
	return AlarmThresholds{
		UnderVoltageWarnV: 44.0, UnderVoltageAlarmV: 42.0,
		OverVoltageWarnV: 57.0, OverVoltageAlarmV: 58.4,
		OverTempWarnC: 50, OverTempAlarmC: 55,
		LowTempWarnC: 2, LowTempAlarmC: 0,
		HighTempChargeWarnC: 45, HighTempChargeAlarmC: 50,
		LowTempChargeWarnC: 3, LowTempChargeAlarmC: 1,
		HighDischargeWarnA: 180, HighDischargeAlarmA: 200,
		HighChargeWarnA: 90, HighChargeAlarmA: 100,
		ImbalanceWarnMV: 60, ImbalanceAlarmMV: 100,
	}
}

func bandLevel(v, warn, alarmV float64, higherIsWorse bool) level {
	if higherIsWorse {
		if v >= alarmV {
			return levelAlarm
		}
		if v >= warn {
			return levelWarn
		}
		return levelClear
	}
	if v <= alarmV {
		return levelAlarm
	}
	if v <= warn {
		return levelWarn
	}
	return levelClear
}

// conditions lists the ten §4.6 alarm conditions in fixed slot order.
// Slots 10 and 11 of the 12 available (3 bytes x 4 slots) are unused
// and encoded as reserved.
var conditions = []alarmCondition{
	{"under_voltage", func(c Context, th AlarmThresholds) level {
		return bandLevel(c.Sample.PackVoltageV, th.UnderVoltageWarnV, th.UnderVoltageAlarmV, false)
	}},
	{"over_voltage", func(c Context, th AlarmThresholds) level {
		return bandLevel(c.Sample.PackVoltageV, th.OverVoltageWarnV, th.OverVoltageAlarmV, true)
	}},
	{"over_temperature", func(c Context, th AlarmThresholds) level {
		_, maxC := tempCExtrema(c.Sample.TempsC)
		return bandLevel(maxC, th.OverTempWarnC, th.OverTempAlarmC, true)
	}},
	{"low_temperature", func(c Context, th AlarmThresholds) level {
		minC, _ := tempCExtrema(c.Sample.TempsC)
		return bandLevel(minC, th.LowTempWarnC, th.LowTempAlarmC, false)
	}},
	{"high_temperature_charge", func(c Context, th AlarmThresholds) level {
		if c.Sample.PackCurrentA <= 0 {
			return levelClear
		}
		_, maxC := tempCExtrema(c.Sample.TempsC)
		return bandLevel(maxC, th.HighTempChargeWarnC, th.HighTempChargeAlarmC, true)
	}},
	{"low_temperature_charge", func(c Context, th AlarmThresholds) level {
		if c.Sample.PackCurrentA <= 0 {
			return levelClear
		}
		minC, _ := tempCExtrema(c.Sample.TempsC)
		return bandLevel(minC, th.LowTempChargeWarnC, th.LowTempChargeAlarmC, false)
	}},
	{"high_current_discharge", func(c Context, th AlarmThresholds) level {
		if c.Sample.PackCurrentA >= 0 {
			return levelClear
		}
		return bandLevel(-c.Sample.PackCurrentA, th.HighDischargeWarnA, th.HighDischargeAlarmA, true)
	}},
	{"high_current_charge", func(c Context, th AlarmThresholds) level {
		if c.Sample.PackCurrentA <= 0 {
			return levelClear
		}
		return bandLevel(c.Sample.PackCurrentA, th.HighChargeWarnA, th.HighChargeAlarmA, true)
	}},
	{"imbalance", func(c Context, th AlarmThresholds) level {
		imbalanceMV := float64(c.Sample.MaxCellMV) - float64(c.Sample.MinCellMV)
		return bandLevel(imbalanceMV, th.ImbalanceWarnMV, th.ImbalanceAlarmMV, true)
	}},
	{"system_online", func(c Context, th AlarmThresholds) level {
		if c.Sample.OnlineStatus == 0 {
			return levelAlarm
		}
		return levelClear
	}},
}

// encodeAlarmBitmap builds the §4.6 0x35A frame: three bytes of alarm
// slots, three bytes of warning slots (same conditions, 1 vs 2
// thresholds), two reserved trailing bytes. Four slots per byte, each
// slot two bits, unused slots set to 0x3.
func encodeAlarmBitmap(ctx Context, th AlarmThresholds) Frame {
	b := [8]byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}

	for i, cond := range conditions {
		lvl := cond.eval(ctx, th)

		alarmSlot := levelClear
		if lvl == levelAlarm {
			alarmSlot = levelAlarm
		}
		setSlot(b[0:3], i, alarmSlot)

		// Warning byte mirrors the same two-level encoding (1=warn,
		// 2=alarm) per §4.6's literal wording.
		setSlot(b[3:6], i, lvl)
	}

	return frame(0x35A, b[:])
}

// setSlot writes a 2-bit level into slot index i (0..3 per byte)
// across a 3-byte (12-slot) region.
func setSlot(bytes3 []byte, i int, lvl level) {
	byteIdx := i / 4
	bitOff := uint(i%4) * 2
	bytes3[byteIdx] &^= 0x3 << bitOff
	bytes3[byteIdx] |= byte(lvl&0x3) << bitOff
}

func encode35A(ctx Context) (Frame, error) {
	return encodeAlarmBitmap(ctx, DefaultAlarmThresholds()), nil
}

// AlarmSummary evaluates the same ten conditions as the 0x35A frame and
// returns them as two plain bitmaps (bit i set = condition i at that
// level), for bus subscribers that want battery status without decoding
// CAN frames (types.BatteryStatusPayload).
func AlarmSummary(ctx Context, th AlarmThresholds) (alarmBits, warnBits uint16, onlineCount uint8) {
	for i, cond := range conditions {
		switch cond.eval(ctx, th) {
		case levelAlarm:
			alarmBits |= 1 << uint(i)
		case levelWarn:
			warnBits |= 1 << uint(i)
		}
	}
	return alarmBits, warnBits, ctx.Sample.DetectedCells
}
