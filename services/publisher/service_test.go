package publisher

import (
	"context"
	"testing"
	"time"

	"github.com/jangala-dev/tinybms-gateway/bus"
	"github.com/jangala-dev/tinybms-gateway/internal/cache"
	"github.com/jangala-dev/tinybms-gateway/internal/canbus"
	"github.com/jangala-dev/tinybms-gateway/internal/cvl"
	"github.com/jangala-dev/tinybms-gateway/internal/energy"
	"github.com/jangala-dev/tinybms-gateway/internal/nvs"
	"github.com/jangala-dev/tinybms-gateway/types"
)

type fakeDriver struct{ frames []canbus.Frame }

func (d *fakeDriver) Transmit(f canbus.Frame) error {
	d.frames = append(d.frames, f)
	return nil
}

func identity() types.CANIdentityConfig {
	return types.CANIdentityConfig{
		HandshakeASCII: "TBMS",
		Manufacturer:   "TinyBMS",
		BatteryName:    "Pack-1",
		BatteryFamily:  "LiFePO4",
		SerialNumber:   "000000",
	}
}

func newTestService(t *testing.T) (*Service, *bus.Connection) {
	t.Helper()
	b := bus.NewBus(8)
	conn := b.NewConnection("test")

	c := cache.New(conn, nil, nvs.NewMemStore())
	if err := c.LoadDefaults(); err != nil {
		t.Fatalf("LoadDefaults: %v", err)
	}

	integrator := energy.New(nvs.NewMemStore(), nil)
	can := canbus.NewPublisher(&fakeDriver{})

	return New(conn, c, cvl.DefaultConfig(), integrator, can, identity), conn
}

func TestCycle_PublishesDerivedTopics(t *testing.T) {
	svc, conn := newTestService(t)

	cvlSub := conn.Subscribe(topicCVLUpdated)
	defer cvlSub.Unsubscribe()
	statusSub := conn.Subscribe(topicBatteryStatus)
	defer statusSub.Unsubscribe()
	statsSub := conn.Subscribe(topicPackStats)
	defer statsSub.Unsubscribe()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go svc.Run(ctx)

	time.Sleep(5 * time.Millisecond)
	conn.Publish(conn.NewMessage(topicRegisterUpdated, types.RegisterUpdatedPayload{Key: "soc_pct"}, false))

	select {
	case msg := <-cvlSub.Channel():
		if _, ok := msg.Payload.(types.CVLLimitsPayload); !ok {
			t.Fatalf("cvl payload type = %T", msg.Payload)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for cvl_limits_updated")
	}

	select {
	case msg := <-statusSub.Channel():
		if _, ok := msg.Payload.(types.BatteryStatusPayload); !ok {
			t.Fatalf("battery status payload type = %T", msg.Payload)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for battery_status_updated")
	}

	select {
	case msg := <-statsSub.Channel():
		if _, ok := msg.Payload.(types.PackStatsPayload); !ok {
			t.Fatalf("pack stats payload type = %T", msg.Payload)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for pack_stats_updated")
	}
}
