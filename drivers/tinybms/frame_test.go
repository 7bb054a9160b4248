package tinybms

import (
	"bytes"
	"testing"
)

func TestBuildReadRequest_MatchesCRCVector(t *testing.T) {
	got := BuildReadRequest(0x0000, 0x10)
	want := []byte{0xAA, 0x03, 0x00, 0x00, 0x00, 0x10, 0x5D, 0xDD}
	if !bytes.Equal(got, want) {
		t.Fatalf("BuildReadRequest = % X, want % X", got, want)
	}
}

func TestParseProprietaryResponse_PackVoltage(t *testing.T) {
	// §8 scenario 3.
	payload := []byte{0x14, 0xAE, 0x47, 0x42}
	frame := append([]byte{0xAA, OpPackVoltage, byte(len(payload))}, payload...)
	frame = AppendCRC(frame)

	opcode, got, err := ParseProprietaryResponse("op:0x14", frame)
	if err != nil {
		t.Fatalf("ParseProprietaryResponse: %v", err)
	}
	if opcode != OpPackVoltage {
		t.Fatalf("opcode = %#02x, want %#02x", opcode, OpPackVoltage)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("payload = % X, want % X", got, payload)
	}
}

func TestIsNack(t *testing.T) {
	frame := AppendCRC([]byte{0xAA, 0x00, FnRead, NackCrcError})
	cmd, code, ok := IsNack(frame)
	if !ok || cmd != FnRead || code != NackCrcError {
		t.Fatalf("IsNack = (%#02x,%#02x,%v), want (%#02x,%#02x,true)", cmd, code, ok, FnRead, NackCrcError)
	}
}

func TestCheckFrame_RejectsBadCRC(t *testing.T) {
	frame := []byte{0xAA, 0x03, 0x02, 0x00, 0x01, 0x00, 0x00}
	if err := CheckFrame("op", frame); err == nil {
		t.Fatalf("expected CRC error, got nil")
	}
}

func TestParseReadResponse_RoundTrip(t *testing.T) {
	payload := []byte{0x00, 0x01, 0x00, 0x02}
	frame := AppendCRC(append([]byte{0xAA, FnRead, byte(len(payload))}, payload...))
	got, err := ParseReadResponse("read", frame)
	if err != nil {
		t.Fatalf("ParseReadResponse: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("payload = % X, want % X", got, payload)
	}
}
