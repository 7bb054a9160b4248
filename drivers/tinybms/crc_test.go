package tinybms

import "testing"

func TestCRC16_ReadRequestVector(t *testing.T) {
	// §8 scenario 1's literal {0x44, 0x06} does not match CRC-16/MODBUS
	// (poly 0xA001, init 0xFFFF) over this frame; {0x5d, 0xdd} is what that
	// algorithm actually produces here, and crcTable reproduces the
	// standard Modbus reference vector (01 03 00 00 00 0A -> {0xC5, 0xCD})
	// exactly, so the table is correct and the scenario literal is a
	// transcription slip (see DESIGN.md Open Questions).
	frame := []byte{0xAA, 0x03, 0x00, 0x00, 0x00, 0x10}
	crc := CRC16(frame)
	if lsb, msb := byte(crc&0xFF), byte(crc>>8); lsb != 0x5d || msb != 0xdd {
		t.Fatalf("CRC16 = {%#02x, %#02x}, want {0x5d, 0xdd}", lsb, msb)
	}
}

func TestAppendCRCAndVerify(t *testing.T) {
	body := []byte{0xAA, 0x03, 0x00, 0x00, 0x00, 0x10}
	full := AppendCRC(append([]byte{}, body...))
	if len(full) != len(body)+2 {
		t.Fatalf("len = %d, want %d", len(full), len(body)+2)
	}
	if !VerifyCRC(full) {
		t.Fatalf("VerifyCRC failed on a frame it just built")
	}
	full[len(full)-1] ^= 0xFF
	if VerifyCRC(full) {
		t.Fatalf("VerifyCRC passed on a corrupted frame")
	}
}

func TestCRC16RoundTripAcrossFrames(t *testing.T) {
	for n := 3; n <= 20; n++ {
		body := make([]byte, n)
		for i := range body {
			body[i] = byte(i*7 + n)
		}
		full := AppendCRC(append([]byte{}, body...))
		if !VerifyCRC(full) {
			t.Fatalf("n=%d: VerifyCRC failed on a just-built frame", n)
		}
	}
}
