package tinybms

import (
	"encoding/binary"
	"math"

	"github.com/jangala-dev/tinybms-gateway/types"
	"github.com/jangala-dev/tinybms-gateway/x/mathx"
)

// Decoded is the outcome of decoding one register (or packed field)
// against its descriptor.
type Decoded struct {
	Numeric        float64
	IsSpecial      bool
	SpecialMeaning string
	IsEnum         bool
	EnumRaw        uint16
	EnumLabel      string
}

// DecodeScalar decodes a single 16-bit raw value against a u16/i16/enum
// descriptor (§4.1 "Scaled integers").
func DecodeScalar(d *types.Descriptor, raw uint16) Decoded {
	signed := int32(raw)
	if d.Kind == types.KindI16 {
		signed = int32(int16(raw))
	}

	for _, s := range d.Special {
		if s.Raw == signed {
			return Decoded{IsSpecial: true, SpecialMeaning: s.Meaning}
		}
	}

	if d.Kind == types.KindEnum {
		label := ""
		for _, e := range d.Enum {
			if e.Raw == raw {
				label = e.Label
				break
			}
		}
		return Decoded{IsEnum: true, EnumRaw: raw, EnumLabel: label}
	}

	scale := d.Scale
	if scale == 0 {
		scale = 1
	}
	return Decoded{Numeric: (float64(signed) + d.Offset) * scale}
}

// EncodeScalar converts a user-facing numeric value back to a raw 16-bit
// code, rounding and clamping to the descriptor's [min,max] (§4.1
// "encode: raw = clamp(round(user/scale - offset), min, max)").
func EncodeScalar(d *types.Descriptor, user float64) uint16 {
	scale := d.Scale
	if scale == 0 {
		scale = 1
	}
	raw := math.Round(user/scale - d.Offset)
	if d.HasRange {
		raw = mathx.Clamp(raw, float64(d.MinRaw), float64(d.MaxRaw))
	}
	if d.Kind == types.KindI16 {
		return uint16(int16(raw))
	}
	return uint16(int32(raw))
}

// Decode32 decodes the four wire bytes of a u32/f32 register pair,
// honouring the descriptor's endianness: big-endian for the generic read
// path, little-endian for proprietary command replies (§4.1, §6).
func Decode32(d *types.Descriptor, b [4]byte) float64 {
	var bits uint32
	if d.Endian == types.LittleEndian {
		bits = binary.LittleEndian.Uint32(b[:])
	} else {
		bits = binary.BigEndian.Uint32(b[:])
	}
	if d.Kind == types.KindF32 {
		return float64(math.Float32frombits(bits)) * scaleOrOne(d.Scale)
	}
	return float64(bits) * scaleOrOne(d.Scale)
}

// Encode32 is the symmetric inverse of Decode32.
func Encode32(d *types.Descriptor, user float64) [4]byte {
	var bits uint32
	s := scaleOrOne(d.Scale)
	if d.Kind == types.KindF32 {
		bits = math.Float32bits(float32(user / s))
	} else {
		bits = uint32(math.Round(user / s))
	}
	var b [4]byte
	if d.Endian == types.LittleEndian {
		binary.LittleEndian.PutUint32(b[:], bits)
	} else {
		binary.BigEndian.PutUint32(b[:], bits)
	}
	return b
}

func scaleOrOne(s float64) float64 {
	if s == 0 {
		return 1
	}
	return s
}

// DecodePacked slices a raw 16-bit packed register into its fields
// (§4.1 "Packed fields").
func DecodePacked(d *types.Descriptor, raw uint16) map[string]Decoded {
	out := make(map[string]Decoded, len(d.Packed))
	for _, f := range d.Packed {
		width := f.HiBit - f.LoBit + 1
		mask := uint16(1)<<width - 1
		field := (raw >> f.LoBit) & mask

		if f.Signed {
			sign := uint16(1) << (width - 1)
			signed := int32(field)
			if field&sign != 0 {
				signed = int32(field) - int32(mask) - 1
			}
			scale := f.Scale
			if scale == 0 {
				scale = 1
			}
			out[f.Key] = Decoded{Numeric: float64(signed) * scale}
			continue
		}
		if len(f.Enum) > 0 {
			label := ""
			for _, e := range f.Enum {
				if e.Raw == field {
					label = e.Label
					break
				}
			}
			out[f.Key] = Decoded{IsEnum: true, EnumRaw: field, EnumLabel: label}
			continue
		}
		scale := f.Scale
		if scale == 0 {
			scale = 1
		}
		out[f.Key] = Decoded{Numeric: float64(field) * scale}
	}
	return out
}

// EncodePacked rebuilds a raw 16-bit word from field values, given as
// already-converted raw (unscaled) integers keyed by field name.
func EncodePacked(d *types.Descriptor, fieldsRaw map[string]uint16) uint16 {
	var raw uint16
	for _, f := range d.Packed {
		v, ok := fieldsRaw[f.Key]
		if !ok {
			continue
		}
		width := f.HiBit - f.LoBit + 1
		mask := uint16(1)<<width - 1
		raw |= (v & mask) << f.LoBit
	}
	return raw
}
