package tinybms

import (
	"github.com/jangala-dev/tinybms-gateway/errcode"
)

// Function/opcode bytes (§4.3, §6).
const (
	start byte = 0xAA

	FnRead         byte = 0x03
	FnWriteMultiple byte = 0x10

	OpReset             byte = 0x02
	OpReadNewestEvents  byte = 0x11
	OpReadAllEvents     byte = 0x12
	OpPackVoltage       byte = 0x14
	OpPackCurrent       byte = 0x15
	OpMaxCellMV         byte = 0x16
	OpMinCellMV         byte = 0x17
	OpOnlineStatus      byte = 0x18
	OpLifetimeCounter   byte = 0x19
	OpSOC               byte = 0x1A
	OpTemperatures      byte = 0x1B
	OpCellVoltages      byte = 0x1C
	OpSettings          byte = 0x1D
	OpVersion           byte = 0x1E
	OpExtendedVersion   byte = 0x1F
	OpSpeedDistanceTime byte = 0x20

	// OpReset sub-options.
	ResetClearEvents byte = 0x01
	ResetClearStats  byte = 0x02
	ResetReset       byte = 0x05
)

// NACK error codes (§4.3).
const (
	NackCmdError byte = 0x00
	NackCrcError byte = 0x01
)

// BuildReadRequest builds a generic read frame for wordCount (<=127)
// registers starting at startAddr (§4.3, §6).
func BuildReadRequest(startAddr uint16, wordCount uint8) []byte {
	f := []byte{start, FnRead, byte(startAddr >> 8), byte(startAddr), 0x00, wordCount}
	return AppendCRC(f)
}

// BuildWriteRequest builds a write-multiple frame, payload big-endian per
// register (§4.3, §6).
func BuildWriteRequest(startAddr uint16, values []uint16) []byte {
	n := len(values)
	f := make([]byte, 0, 6+1+2*n+2)
	f = append(f, start, FnWriteMultiple, byte(startAddr>>8), byte(startAddr), 0x00, byte(n))
	f = append(f, byte(2*n))
	for _, v := range values {
		f = append(f, byte(v>>8), byte(v))
	}
	return AppendCRC(f)
}

// BuildProprietaryRequest builds a single-opcode proprietary command,
// with an optional one-byte sub-option (only OpReset uses one).
func BuildProprietaryRequest(opcode byte, subOption ...byte) []byte {
	f := []byte{start, opcode}
	f = append(f, subOption...)
	return AppendCRC(f)
}

// IsNack reports whether frame is a NACK response (second byte 0x00,
// §4.3/§6), and if so returns the echoed command and error code.
func IsNack(frame []byte) (cmd, code byte, ok bool) {
	if len(frame) < 6 || frame[0] != start || frame[1] != 0x00 {
		return 0, 0, false
	}
	return frame[2], frame[3], true
}

// CheckFrame validates the leading start byte and trailing CRC of a
// received frame, returning a typed error on mismatch.
func CheckFrame(op string, frame []byte) error {
	if len(frame) < 3 || frame[0] != start {
		return &errcode.E{C: errcode.InvalidSize, Op: op, Msg: "malformed frame"}
	}
	if !VerifyCRC(frame) {
		exp, recv := SplitCRC(frame)
		return errcode.CrcMismatch(op, exp, recv)
	}
	if cmd, code, ok := IsNack(frame); ok {
		return errcode.Nack(op, cmd, code)
	}
	return nil
}

// ParseReadResponse extracts the payload bytes from a generic read
// response: `0xAA 0x03 byte_count [payload…] CRC_LSB CRC_MSB` (§4.3).
func ParseReadResponse(op string, frame []byte) ([]byte, error) {
	if err := CheckFrame(op, frame); err != nil {
		return nil, err
	}
	if len(frame) < 3 || frame[1] != FnRead {
		return nil, &errcode.E{C: errcode.InvalidSize, Op: op, Msg: "unexpected function byte"}
	}
	byteCount := int(frame[2])
	if len(frame) != 3+byteCount+2 {
		return nil, &errcode.E{C: errcode.InvalidSize, Op: op, Msg: "byte_count mismatch"}
	}
	return frame[3 : 3+byteCount], nil
}

// ParseWriteAck validates a write-multiple acknowledgment, echoing
// startAddr and count (§4.3: "must be CRC-validated; caller must re-read
// the same range ... to confirm application").
func ParseWriteAck(op string, frame []byte, startAddr uint16, count uint8) error {
	if err := CheckFrame(op, frame); err != nil {
		return err
	}
	if len(frame) != 8 || frame[1] != FnWriteMultiple {
		return &errcode.E{C: errcode.InvalidSize, Op: op, Msg: "unexpected write ack shape"}
	}
	gotAddr := uint16(frame[2])<<8 | uint16(frame[3])
	gotCount := frame[5]
	if gotAddr != startAddr || gotCount != count {
		return &errcode.E{C: errcode.InvalidState, Op: op, Msg: "write ack echoed wrong range"}
	}
	return nil
}

// ParseProprietaryResponse extracts the opcode and payload bytes from a
// proprietary command response: `0xAA <opcode> byte_count [payload…]
// CRC_LSB CRC_MSB` (§4.3, §8 scenario 3).
func ParseProprietaryResponse(op string, frame []byte) (opcode byte, payload []byte, err error) {
	if err = CheckFrame(op, frame); err != nil {
		return 0, nil, err
	}
	if len(frame) < 3 {
		return 0, nil, &errcode.E{C: errcode.InvalidSize, Op: op, Msg: "short proprietary response"}
	}
	opcode = frame[1]
	byteCount := int(frame[2])
	if len(frame) != 3+byteCount+2 {
		return 0, nil, &errcode.E{C: errcode.InvalidSize, Op: op, Msg: "byte_count mismatch"}
	}
	return opcode, frame[3 : 3+byteCount], nil
}
