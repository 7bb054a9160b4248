package canbus

import (
	"testing"
	"time"

	"github.com/jangala-dev/tinybms-gateway/errcode"
	"github.com/jangala-dev/tinybms-gateway/types"
)

// TestEncode356 is §8 scenario 8: V=49.92V, I=-12.3A, T_mos=24.5C.
func TestEncode356(t *testing.T) {
	ctx := Context{Sample: types.Sample{
		PackVoltageV: 49.92,
		PackCurrentA: -12.3,
		MOSFETTempC:  24.5,
	}}
	f, err := encode356(ctx)
	if err != nil {
		t.Fatalf("encode356: %v", err)
	}
	want := [8]byte{0x80, 0x13, 0x85, 0xFF, 0xF5, 0x00, 0x00, 0x00}
	if f.Data != want {
		t.Fatalf("Data = % X, want % X", f.Data, want)
	}
	if f.ID != 0x356 || f.DLC != 8 {
		t.Fatalf("ID/DLC = %x/%d, want 0x356/8", f.ID, f.DLC)
	}
}

type fakeDriver struct {
	fail bool
}

func (d *fakeDriver) Transmit(f Frame) error {
	if d.fail {
		return errcode.Code("boom")
	}
	return nil
}

// TestBreaker_OpensAfterFiveFailuresThenRecovers is §8 scenario 10.
func TestBreaker_OpensAfterFiveFailuresThenRecovers(t *testing.T) {
	driver := &fakeDriver{fail: true}
	p := NewPublisher(driver)
	p.bucket = &tokenBucket{tokens: 1000, capacity: 1000, refill: time.Millisecond, last: time.Now()}

	now := time.Now()
	ctx := Context{Sample: types.Sample{PackVoltageV: 50, PackCurrentA: 1}}

	for i := 0; i < 5; i++ {
		if err := p.Publish(now, ctx); err == nil {
			t.Fatalf("publish %d: expected encoder/transmit failure to propagate", i)
		}
		now = now.Add(1100 * time.Millisecond)
	}

	err := p.Publish(now, ctx)
	if errcode.Of(err) != errcode.ResourceExhausted {
		t.Fatalf("6th publish = %v, want ResourceExhausted", err)
	}

	now = now.Add(30 * time.Second)
	driver.fail = false
	if err := p.Publish(now, ctx); err != nil {
		t.Fatalf("7th publish (half-open probe) = %v, want admitted", err)
	}
	now = now.Add(1100 * time.Millisecond)
	if err := p.Publish(now, ctx); err != nil {
		t.Fatalf("8th publish = %v", err)
	}
	now = now.Add(1100 * time.Millisecond)
	if err := p.Publish(now, ctx); err != nil {
		t.Fatalf("9th publish = %v", err)
	}
	if p.breaker.State() != Closed {
		t.Fatalf("breaker state = %v, want Closed after 3 half-open successes", p.breaker.State())
	}
}
