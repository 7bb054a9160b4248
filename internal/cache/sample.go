package cache

import (
	"math"

	"github.com/jangala-dev/tinybms-gateway/drivers/tinybms"
	"github.com/jangala-dev/tinybms-gateway/types"
)

// BuildSample decodes a cache snapshot into the flat, typed view the CAN
// publisher and CVL law consume (§4.6 Context, §4.5 CVLInputs), so
// neither needs to know the descriptor table. Any address missing from
// the snapshot (not yet polled) decodes to its zero value; temperature
// channels default to NaN so "not connected" (§4.6 tempExtremaK) is
// distinguishable from a genuine 0°C reading.
func BuildSample(snap Snapshot) types.Sample {
	s := types.Sample{TSMs: snap.TSMs}
	s.TempsC = [3]float64{math.NaN(), math.NaN(), math.NaN()}

	scalar := func(key string) (float64, bool) {
		d, ok := tinybms.ByKey[key]
		if !ok {
			return 0, false
		}
		v, ok := snap.Values[d.Addr]
		if !ok || !v.Valid {
			return 0, false
		}
		if d.Words() == 2 {
			var b [4]byte
			if d.Endian == types.LittleEndian {
				b[0], b[1], b[2], b[3] = byte(v.Raw), byte(v.Raw>>8), byte(v.Raw2), byte(v.Raw2>>8)
			} else {
				b[0], b[1], b[2], b[3] = byte(v.Raw>>8), byte(v.Raw), byte(v.Raw2>>8), byte(v.Raw2)
			}
			return tinybms.Decode32(d, b), true
		}
		return tinybms.DecodeScalar(d, v.Raw).Numeric, true
	}
	rawU16 := func(key string) (uint16, bool) {
		d, ok := tinybms.ByKey[key]
		if !ok {
			return 0, false
		}
		v, ok := snap.Values[d.Addr]
		if !ok || !v.Valid {
			return 0, false
		}
		return v.Raw, true
	}

	if v, ok := scalar("pack_voltage_v"); ok {
		s.PackVoltageV = v
	}
	if v, ok := scalar("pack_current_a"); ok {
		s.PackCurrentA = v
	}
	if v, ok := scalar("soc_pct"); ok {
		s.SOCPercent = v
	}
	if v, ok := rawU16("soh_pct"); ok {
		s.SOHPercent = float64(v)
	}
	if v, ok := rawU16("min_cell_voltage_mv"); ok {
		s.MinCellMV = v
	}
	if v, ok := rawU16("max_cell_voltage_mv"); ok {
		s.MaxCellMV = v
	}
	if v, ok := rawU16("balancing_real_bits"); ok {
		s.BalancingBits = v
	}
	if v, ok := rawU16("detected_cells"); ok {
		s.DetectedCells = uint8(v)
	}
	if v, ok := rawU16("online_status"); ok {
		s.OnlineStatus = v
	}
	if v, ok := scalar("min_temp_c"); ok {
		s.TempsC[0] = v
	}
	if v, ok := scalar("max_temp_c"); ok {
		s.TempsC[1] = v
	}
	if v, ok := rawU16("reg0300"); ok {
		s.CapacityAh = tinybms.DecodeScalar(tinybms.ByKey["reg0300"], v).Numeric
	}
	if v, ok := rawU16("lifetime_counter_s"); ok {
		s.LifetimeCounter = uint32(v)
	}
	if v, ok := rawU16("time_left_s"); ok {
		s.TimeLeftS = uint32(v)
	}

	cells := make([]uint16, tinybms.SeriesCellCount)
	for i := range cells {
		if v, ok := rawU16(tinybms.Descriptors[i].Key); ok {
			cells[i] = v
		}
	}
	s.CellVoltagesMV = cells

	if v, ok := rawU16("version_word"); ok {
		fields := tinybms.DecodePacked(tinybms.ByKey["version_word"], v)
		s.HardwareVersion = uint16(fields["hardware_version"].Numeric)
		s.FirmwareVersion = uint16(fields["firmware_version"].Numeric)
		s.BootloaderVer = uint16(fields["bootloader_version"].Numeric)
		s.ProfileID = uint16(fields["profile_id"].Numeric)
	}
	for i := 0; i < 6; i++ {
		if v, ok := rawU16("serial_word_" + itoaSmall(i)); ok {
			s.SerialNumber[i*2] = byte(v >> 8)
			s.SerialNumber[i*2+1] = byte(v)
		}
	}

	return s
}

func itoaSmall(i int) string {
	return string(rune('0' + i))
}
