package cache

import (
	"context"
	"testing"

	"github.com/jangala-dev/tinybms-gateway/bus"
	"github.com/jangala-dev/tinybms-gateway/drivers/tinybms"
	"github.com/jangala-dev/tinybms-gateway/errcode"
	"github.com/jangala-dev/tinybms-gateway/internal/nvs"
)

// fakeExchanger scripts a fixed sequence of frame responses, one per Do
// call, mirroring engine_test.go's fakeTransceiver style.
type fakeExchanger struct {
	responses [][]byte
	errs      []error
	calls     int
}

func (f *fakeExchanger) Do(ctx context.Context, op string, frame []byte, validate func([]byte) error) ([]byte, error) {
	i := f.calls
	f.calls++
	if i < len(f.errs) && f.errs[i] != nil {
		return nil, f.errs[i]
	}
	resp := f.responses[i]
	if validate != nil {
		if err := validate(resp); err != nil {
			return nil, err
		}
	}
	return resp, nil
}

func TestCache_WriteValidatesAndReadsBack(t *testing.T) {
	d := tinybms.ByKey["reg0300"] // battery capacity, 1-6000, default 1000
	ack := buildWriteAck(t, d.Addr, 1)
	readResp := buildReadResponse(t, d.Addr, 2000)

	fx := &fakeExchanger{responses: [][]byte{ack, readResp}}
	b := bus.NewBus(16)
	conn := b.NewConnection("test")
	c := New(conn, fx, nvs.NewMemStore())
	if err := c.LoadDefaults(); err != nil {
		t.Fatalf("LoadDefaults: %v", err)
	}

	if err := c.Write(context.Background(), d.Addr, 200.0); err != nil {
		t.Fatalf("Write: %v", err)
	}
	raw, _, valid := c.Get(d.Addr)
	if !valid || raw != 2000 {
		t.Fatalf("Get after write = raw=%d valid=%v, want 2000/true", raw, valid)
	}
}

func TestCache_WriteRejectsOutOfRange(t *testing.T) {
	d := tinybms.ByKey["reg0300"]
	c := New(nil, &fakeExchanger{}, nvs.NewMemStore())
	_ = c.LoadDefaults()

	err := c.Write(context.Background(), d.Addr, 1e9)
	if errcode.Of(err) != errcode.InvalidArgument {
		t.Fatalf("Write out-of-range = %v, want InvalidArgument", err)
	}
}

func TestCache_WriteRejectsNonEnumValue(t *testing.T) {
	d := tinybms.ByKey["reg0340"] // RS485 address enum {0,1,2}
	c := New(nil, &fakeExchanger{}, nvs.NewMemStore())
	_ = c.LoadDefaults()

	err := c.Write(context.Background(), d.Addr, 9)
	if errcode.Of(err) != errcode.InvalidArgument {
		t.Fatalf("Write non-enum = %v, want InvalidArgument", err)
	}
}

func TestCache_WriteRejectsReadOnly(t *testing.T) {
	c := New(nil, &fakeExchanger{}, nvs.NewMemStore())
	_ = c.LoadDefaults()

	err := c.Write(context.Background(), 0, 3.7) // cell_v_0 is RO
	if errcode.Of(err) != errcode.InvalidState {
		t.Fatalf("Write to ro register = %v, want InvalidState", err)
	}
}

func TestCache_LoadDefaultsRestoresAndAlignsFromNVS(t *testing.T) {
	d := tinybms.ByKey["reg0300"]
	store := nvs.NewMemStore()
	// persisted value out of range -> must clamp to max on restore.
	_ = store.Set(d.NVSKey(), []byte{0xFF, 0xFF})

	c := New(nil, &fakeExchanger{}, store)
	if err := c.LoadDefaults(); err != nil {
		t.Fatalf("LoadDefaults: %v", err)
	}
	raw, _, valid := c.Get(d.Addr)
	if !valid || raw != uint16(d.MaxRaw) {
		t.Fatalf("Get = raw=%d valid=%v, want clamped to max=%d", raw, valid, d.MaxRaw)
	}
}

func TestCache_LoadDefaultsDropsInvalidEnum(t *testing.T) {
	d := tinybms.ByKey["reg0340"]
	store := nvs.NewMemStore()
	_ = store.Set(d.NVSKey(), []byte{0x00, 0x09}) // not a valid enum member

	c := New(nil, &fakeExchanger{}, store)
	_ = c.LoadDefaults()
	raw, _, valid := c.Get(d.Addr)
	if !valid || raw != uint16(d.DefaultRaw) {
		t.Fatalf("Get = raw=%d valid=%v, want default=%d", raw, valid, d.DefaultRaw)
	}
}

// buildReadResponse builds a well-formed single-register generic-read
// response frame for addr/value, CRC-appended.
func buildReadResponse(t *testing.T, addr uint16, value uint16) []byte {
	t.Helper()
	frame := []byte{0xAA, 0x03, 0x02, byte(value >> 8), byte(value)}
	return tinybms.AppendCRC(frame)
}

// buildWriteAck builds a well-formed write-multiple acknowledgment frame
// echoing startAddr/count, CRC-appended (§4.3).
func buildWriteAck(t *testing.T, addr uint16, count uint8) []byte {
	t.Helper()
	frame := []byte{0xAA, 0x10, byte(addr >> 8), byte(addr), 0x00, count}
	return tinybms.AppendCRC(frame)
}
