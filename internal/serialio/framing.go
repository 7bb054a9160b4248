package serialio

import (
	"bufio"
	"errors"
	"io"
	"time"
)

const frameStart = 0xAA

// frameResult carries one assembled TinyBMS frame, or the error that
// ended the read loop (usually the underlying transport closing).
type frameResult struct {
	frame []byte
	err   error
}

// frameReader continuously assembles TinyBMS frames off an io.Reader in
// a background goroutine and hands them to ReadFrame as they complete,
// so a caller's timeout never has to race the underlying blocking Read
// (grounded on the teacher's uart_worker.go idle-flush byte-reader
// pattern, adapted from line/byte chunking to this wire's own framing).
type frameReader struct {
	out chan frameResult
}

func newFrameReader(r io.Reader) *frameReader {
	fr := &frameReader{out: make(chan frameResult, 4)}
	go fr.loop(r)
	return fr
}

func (fr *frameReader) loop(r io.Reader) {
	br := bufio.NewReader(r)
	for {
		frame, err := readOneFrame(br)
		fr.out <- frameResult{frame: frame, err: err}
		if err != nil {
			return
		}
	}
}

// ReadFrame blocks for the next assembled frame, up to timeout.
func (fr *frameReader) ReadFrame(timeout time.Duration) ([]byte, error) {
	select {
	case res := <-fr.out:
		return res.frame, res.err
	case <-time.After(timeout):
		return nil, errors.New("serialio: read timeout")
	}
}

// readOneFrame syncs to the 0xAA start byte, then reads the fixed or
// length-prefixed remainder depending on the function/opcode byte
// (NACK and write-multiple ack are fixed length; everything else carries
// an explicit byte_count, §4.3/§6).
func readOneFrame(br *bufio.Reader) ([]byte, error) {
	for {
		b, err := br.ReadByte()
		if err != nil {
			return nil, err
		}
		if b == frameStart {
			break
		}
	}
	fn, err := br.ReadByte()
	if err != nil {
		return nil, err
	}

	const (
		fnWriteMultiple = 0x10
	)

	switch fn {
	case 0x00: // NACK: cmd, code, CRC_LSB, CRC_MSB
		rest := make([]byte, 4)
		if _, err := io.ReadFull(br, rest); err != nil {
			return nil, err
		}
		return append([]byte{frameStart, fn}, rest...), nil
	case fnWriteMultiple: // write ack: addrMSB,addrLSB,countMSB,countLSB,CRC_LSB,CRC_MSB
		rest := make([]byte, 6)
		if _, err := io.ReadFull(br, rest); err != nil {
			return nil, err
		}
		return append([]byte{frameStart, fn}, rest...), nil
	default: // byte_count-prefixed: byte_count, [payload...], CRC_LSB, CRC_MSB
		bc, err := br.ReadByte()
		if err != nil {
			return nil, err
		}
		rest := make([]byte, 1+int(bc)+2)
		rest[0] = bc
		if _, err := io.ReadFull(br, rest[1:]); err != nil {
			return nil, err
		}
		return append([]byte{frameStart, fn}, rest...), nil
	}
}

// frameTransceiver adapts an io.ReadWriteCloser into a tinybms.Transceiver.
type frameTransceiver struct {
	w  io.Writer
	fr *frameReader
}

func newFrameTransceiver(rwc io.ReadWriteCloser) *frameTransceiver {
	return &frameTransceiver{w: rwc, fr: newFrameReader(rwc)}
}

func (t *frameTransceiver) WriteFrame(frame []byte) error {
	_, err := t.w.Write(frame)
	return err
}

func (t *frameTransceiver) ReadFrame(timeout time.Duration) ([]byte, error) {
	return t.fr.ReadFrame(timeout)
}
