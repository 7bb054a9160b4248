package tinybms

import (
	"math"
	"testing"

	"github.com/jangala-dev/tinybms-gateway/types"
)

func TestDecodeScalar_CellVoltage(t *testing.T) {
	// §8 scenario 2: scale 1e-4 V, raw 0x8C05 (35845) -> 3.5845 V.
	d := &types.Descriptor{Kind: types.KindU16, Scale: 1e-4}
	got := DecodeScalar(d, 0x8C05)
	if math.Abs(got.Numeric-3.5845) > 1e-9 {
		t.Fatalf("Numeric = %v, want 3.5845", got.Numeric)
	}
}

func TestDecodeScalar_SpecialSentinel(t *testing.T) {
	d := &types.Descriptor{
		Kind: types.KindI16, Scale: 0.1,
		Special: []types.SpecialRaw{{Raw: -32768, Meaning: "not_connected"}},
	}
	got := DecodeScalar(d, 0x8000) // -32768 as int16
	if !got.IsSpecial || got.SpecialMeaning != "not_connected" {
		t.Fatalf("got %+v, want special sentinel", got)
	}
}

func TestScalarRoundTrip(t *testing.T) {
	d := &types.Descriptor{
		Kind: types.KindU16, Scale: 1e-2, HasRange: true, MinRaw: 0, MaxRaw: 60000,
	}
	for _, raw := range []uint16{0, 1, 100, 5760, 59999} {
		dec := DecodeScalar(d, raw)
		enc := EncodeScalar(d, dec.Numeric)
		if enc != raw {
			t.Fatalf("round trip raw=%d: decode=%v re-encode=%d", raw, dec.Numeric, enc)
		}
	}
}

func TestDecode32_ProprietaryPackVoltageFloat(t *testing.T) {
	// §8 scenario 3: little-endian float bytes {0x14,0xAE,0x47,0x42} -> 49.920 V.
	d := &types.Descriptor{Kind: types.KindF32, Endian: types.LittleEndian, Scale: 1}
	got := Decode32(d, [4]byte{0x14, 0xAE, 0x47, 0x42})
	if math.Abs(got-49.92) > 1e-3 {
		t.Fatalf("Decode32 = %v, want ~49.92", got)
	}
}

func Test32BitPairRoundTrip_BothEndians(t *testing.T) {
	for _, endian := range []types.Endian{types.BigEndian, types.LittleEndian} {
		d := &types.Descriptor{Kind: types.KindF32, Endian: endian, Scale: 1}
		want := 49.92
		b := Encode32(d, want)
		got := Decode32(d, b)
		if math.Abs(got-want) > 1e-3 {
			t.Fatalf("endian=%v: round trip got %v want %v", endian, got, want)
		}
	}
}

func TestDecodePacked_VersionWord(t *testing.T) {
	d := ByKey["version_word"]
	// hardware=3 (bits0-3), firmware=42 (bits4-9), bootloader=5 (bits10-13), profile=1 (bits14-15)
	raw := uint16(3) | uint16(42)<<4 | uint16(5)<<10 | uint16(1)<<14
	got := DecodePacked(d, raw)
	if got["hardware_version"].Numeric != 3 {
		t.Fatalf("hardware_version = %v, want 3", got["hardware_version"].Numeric)
	}
	if got["firmware_version"].Numeric != 42 {
		t.Fatalf("firmware_version = %v, want 42", got["firmware_version"].Numeric)
	}
	if got["bootloader_version"].Numeric != 5 {
		t.Fatalf("bootloader_version = %v, want 5", got["bootloader_version"].Numeric)
	}
	if got["profile_id"].Numeric != 1 {
		t.Fatalf("profile_id = %v, want 1", got["profile_id"].Numeric)
	}
}
