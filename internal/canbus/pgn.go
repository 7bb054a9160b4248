package canbus

import (
	"math"

	"github.com/jangala-dev/tinybms-gateway/drivers/tinybms"
	"github.com/jangala-dev/tinybms-gateway/types"
	"github.com/jangala-dev/tinybms-gateway/x/mathx"
)

// Context bundles everything a PGN encoder may read. It is built fresh
// from a cache snapshot each publish cycle (§4.8 "take a cache
// snapshot"); encoders never reach outside it.
type Context struct {
	Sample   types.Sample
	CVL      types.CVLRuntimeState
	Energy   types.EnergyCounters
	Identity types.CANIdentityConfig
}

// Encoder produces one PGN's payload. It is pure: same Context in,
// same bytes out, and it never mutates Context (§4.6 "each encoder is
// pure").
type Encoder func(Context) (Frame, error)

// PGN pairs a CAN ID with its encoder and publish cadence (§4.6 table).
type PGN struct {
	ID      uint32
	Name    string
	Period  int // milliseconds
	Encode  Encoder
}

// Table is the full §4.6 PGN list, in cadence-table order.
var Table = []PGN{
	{ID: 0x351, Name: "cvl_ccl_dcl", Period: 1000, Encode: encode351},
	{ID: 0x355, Name: "soc_soh", Period: 1000, Encode: encode355},
	{ID: 0x356, Name: "pack_v_i_t", Period: 1000, Encode: encode356},
	{ID: 0x35A, Name: "alarms_warnings", Period: 1000, Encode: encode35A},
	{ID: 0x35E, Name: "manufacturer", Period: 2000, Encode: encode35E},
	{ID: 0x35F, Name: "model_fw_capacity", Period: 2000, Encode: encode35F},
	{ID: 0x370, Name: "battery_name_1", Period: 2000, Encode: encode370},
	{ID: 0x371, Name: "battery_name_2", Period: 2000, Encode: encode371},
	{ID: 0x372, Name: "module_status", Period: 1000, Encode: encode372},
	{ID: 0x373, Name: "cell_temp_extrema", Period: 1000, Encode: encode373},
	{ID: 0x374, Name: "min_cell_id", Period: 1000, Encode: encode374},
	{ID: 0x375, Name: "max_cell_id", Period: 1000, Encode: encode375},
	{ID: 0x376, Name: "min_temp_id", Period: 1000, Encode: encode376},
	{ID: 0x377, Name: "max_temp_id", Period: 1000, Encode: encode377},
	{ID: 0x378, Name: "cumulative_energy", Period: 1000, Encode: encode378},
	{ID: 0x379, Name: "installed_capacity", Period: 5000, Encode: encode379},
	{ID: 0x380, Name: "serial_number_1", Period: 5000, Encode: encode380},
	{ID: 0x381, Name: "serial_number_2", Period: 5000, Encode: encode381},
	{ID: 0x382, Name: "battery_family", Period: 5000, Encode: encode382},
}

func clampU16(v float64) uint16 {
	if math.IsNaN(v) {
		return 0
	}
	return uint16(mathx.Clamp(v, 0, 65535))
}

func clampI16(v float64) int16 {
	if math.IsNaN(v) {
		return 0
	}
	return int16(mathx.Clamp(v, -32768, 32767))
}

func clampU32(v float64) uint32 {
	if math.IsNaN(v) {
		return 0
	}
	return uint32(mathx.Clamp(v, 0, 4294967295))
}

func putU16LE(b []byte, off int, v uint16) {
	b[off] = byte(v)
	b[off+1] = byte(v >> 8)
}

func putI16LE(b []byte, off int, v int16) { putU16LE(b, off, uint16(v)) }

func putU32LE(b []byte, off int, v uint32) {
	b[off] = byte(v)
	b[off+1] = byte(v >> 8)
	b[off+2] = byte(v >> 16)
	b[off+3] = byte(v >> 24)
}

// asciiField space-pads or truncates s to exactly n bytes, per §4.6
// "unknown or uninitialised strings are space-padded ASCII".
func asciiField(s string, n int) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = ' '
	}
	copy(out, s)
	return out
}

func frame(id uint32, payload []byte) Frame {
	var f Frame
	f.ID = id
	f.DLC = uint8(len(payload))
	copy(f.Data[:], payload)
	return f
}

func encode351(ctx Context) (Frame, error) {
	b := make([]byte, 8)
	putU16LE(b, 0, clampU16(ctx.CVL.CVLVoltage*10))
	putU16LE(b, 2, clampU16(ctx.CVL.CCLAmps*10))
	putU16LE(b, 4, clampU16(ctx.CVL.DCLAmps*10))
	return frame(0x351, b), nil
}

func encode355(ctx Context) (Frame, error) {
	b := make([]byte, 8)
	putU16LE(b, 0, clampU16(ctx.Sample.SOCPercent))
	putU16LE(b, 2, clampU16(ctx.Sample.SOHPercent))
	putU16LE(b, 4, clampU16(ctx.Sample.SOCPercent*100)) // high-res, 0.01 % steps
	return frame(0x355, b), nil
}

func encode356(ctx Context) (Frame, error) {
	b := make([]byte, 8)
	putU16LE(b, 0, clampU16(ctx.Sample.PackVoltageV*100))
	putI16LE(b, 2, clampI16(ctx.Sample.PackCurrentA*10))
	putI16LE(b, 4, clampI16(ctx.Sample.MOSFETTempC*10))
	return frame(0x356, b), nil
}

func encode35E(ctx Context) (Frame, error) {
	return frame(0x35E, asciiField(ctx.Identity.Manufacturer, 8)), nil
}

func encode35F(ctx Context) (Frame, error) {
	b := make([]byte, 8)
	putU16LE(b, 0, ctx.Sample.ProfileID) // model id
	putU16LE(b, 2, ctx.Sample.FirmwareVersion)
	putU16LE(b, 4, clampU16(ctx.Sample.CapacityAh*100))
	putU16LE(b, 6, ctx.Sample.BootloaderVer) // internal firmware
	return frame(0x35F, b), nil
}

func encode370(ctx Context) (Frame, error) {
	return frame(0x370, asciiField(padTo(ctx.Identity.BatteryName, 16)[:8], 8)), nil
}

func encode371(ctx Context) (Frame, error) {
	return frame(0x371, asciiField(padTo(ctx.Identity.BatteryName, 16)[8:], 8)), nil
}

// padTo right-pads s with spaces to at least n bytes so a caller can
// safely slice fixed halves out of it.
func padTo(s string, n int) string {
	for len(s) < n {
		s += " "
	}
	return s
}

func encode372(ctx Context) (Frame, error) {
	b := make([]byte, 8)
	b[0] = ctx.Sample.DetectedCells // modules_ok
	if ctx.CVL.CCLAmps <= 0 {
		b[1] = 1 // blocking_charge
	}
	if ctx.CVL.DCLAmps <= 0 {
		b[2] = 1 // blocking_discharge
	}
	expected := uint8(tinybms.SeriesCellCount)
	if ctx.Sample.DetectedCells < expected {
		b[3] = expected - ctx.Sample.DetectedCells // offline_count
	}
	return frame(0x372, b), nil
}

func encode373(ctx Context) (Frame, error) {
	minT, maxT := tempExtremaK(ctx.Sample.TempsC)
	b := make([]byte, 8)
	putU16LE(b, 0, ctx.Sample.MinCellMV)
	putU16LE(b, 2, ctx.Sample.MaxCellMV)
	putU16LE(b, 4, minT)
	putU16LE(b, 6, maxT)
	return frame(0x373, b), nil
}

// tempExtremaK converts the three sensor channels to whole Kelvin,
// ignoring any NaN (not-connected) channel.
func tempExtremaK(tempsC [3]float64) (minK, maxK uint16) {
	have := false
	var lo, hi float64
	for _, t := range tempsC {
		if math.IsNaN(t) {
			continue
		}
		if !have {
			lo, hi, have = t, t, true
			continue
		}
		lo = mathx.Min(lo, t)
		hi = mathx.Max(hi, t)
	}
	if !have {
		return 0, 0
	}
	return clampU16(lo + 273.15), clampU16(hi + 273.15)
}

func encode374(ctx Context) (Frame, error) {
	return frame(0x374, asciiField("MINV"+fourDigit(ctx.Sample.MinCellMV), 8)), nil
}

func encode375(ctx Context) (Frame, error) {
	return frame(0x375, asciiField("MAXV"+fourDigit(ctx.Sample.MaxCellMV), 8)), nil
}

func fourDigit(v uint16) string {
	v = uint16(mathx.Clamp(int(v), 0, 9999))
	digits := [4]byte{'0', '0', '0', '0'}
	for i := 3; i >= 0 && v > 0; i-- {
		digits[i] = byte('0' + v%10)
		v /= 10
	}
	return string(digits[:])
}

func encode376(ctx Context) (Frame, error) {
	minC, _ := tempCExtrema(ctx.Sample.TempsC)
	return frame(0x376, asciiField("MINT"+signedTriDigit(minC), 8)), nil
}

func encode377(ctx Context) (Frame, error) {
	_, maxC := tempCExtrema(ctx.Sample.TempsC)
	return frame(0x377, asciiField("MAXT"+signedTriDigit(maxC), 8)), nil
}

func tempCExtrema(tempsC [3]float64) (minC, maxC float64) {
	have := false
	for _, t := range tempsC {
		if math.IsNaN(t) {
			continue
		}
		if !have {
			minC, maxC, have = t, t, true
			continue
		}
		minC = mathx.Min(minC, t)
		maxC = mathx.Max(maxC, t)
	}
	return minC, maxC
}

func signedTriDigit(c float64) string {
	sign := byte('+')
	if c < 0 {
		sign = '-'
		c = -c
	}
	v := int(mathx.Clamp(c, 0, 999))
	return string([]byte{sign, byte('0' + v/100), byte('0' + (v/10)%10), byte('0' + v%10)})
}

func encode378(ctx Context) (Frame, error) {
	b := make([]byte, 8)
	putU32LE(b, 0, clampU32(ctx.Energy.ChargedWh*100))
	putU32LE(b, 4, clampU32(ctx.Energy.DischargedWh*100))
	return frame(0x378, b), nil
}

func encode379(ctx Context) (Frame, error) {
	b := make([]byte, 8)
	putU16LE(b, 0, clampU16(ctx.Sample.CapacityAh*ctx.Sample.SOHPercent/100))
	return frame(0x379, b), nil
}

func encode380(ctx Context) (Frame, error) {
	return frame(0x380, asciiField(padTo(ctx.Identity.SerialNumber, 16)[:8], 8)), nil
}

func encode381(ctx Context) (Frame, error) {
	return frame(0x381, asciiField(padTo(ctx.Identity.SerialNumber, 16)[8:], 8)), nil
}

func encode382(ctx Context) (Frame, error) {
	return frame(0x382, asciiField(ctx.Identity.BatteryFamily, 8)), nil
}
