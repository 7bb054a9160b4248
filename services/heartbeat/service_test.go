package heartbeat

import (
	"context"
	"testing"
	"time"

	"github.com/jangala-dev/tinybms-gateway/bus"
	"github.com/jangala-dev/tinybms-gateway/types"
)

func TestRun_PublishesStatusOnEachTick(t *testing.T) {
	b := bus.NewBus(8)
	conn := b.NewConnection("test")
	svc := New(conn, 20*time.Millisecond, func() string { return "closed" })

	sub := conn.Subscribe(topicSystemStatus)
	defer sub.Unsubscribe()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go svc.Run(ctx)

	select {
	case msg := <-sub.Channel():
		payload, ok := msg.Payload.(types.SystemStatusPayload)
		if !ok {
			t.Fatalf("payload type = %T, want SystemStatusPayload", msg.Payload)
		}
		if payload.BreakerState != "closed" {
			t.Fatalf("BreakerState = %q, want closed", payload.BreakerState)
		}
		if payload.LastPollSuccessMs != -1 {
			t.Fatalf("LastPollSuccessMs = %d, want -1 (no poll observed yet)", payload.LastPollSuccessMs)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for system_status_updated")
	}
}

func TestRun_TracksLastPollSuccess(t *testing.T) {
	b := bus.NewBus(8)
	conn := b.NewConnection("test")
	svc := New(conn, 20*time.Millisecond, func() string { return "closed" })

	sub := conn.Subscribe(topicSystemStatus)
	defer sub.Unsubscribe()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go svc.Run(ctx)

	// Give Run time to subscribe before publishing; bus delivery is not
	// retained here, so a publish before the subscribe would be missed.
	time.Sleep(5 * time.Millisecond)
	pollConn := b.NewConnection("poller")
	pollConn.Publish(pollConn.NewMessage(topicRegisterUpdated, types.RegisterUpdatedPayload{Key: "soc_pct"}, false))

	select {
	case msg := <-sub.Channel():
		payload := msg.Payload.(types.SystemStatusPayload)
		if payload.LastPollSuccessMs < 0 {
			t.Fatalf("LastPollSuccessMs = %d, want >= 0 after a register update", payload.LastPollSuccessMs)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for system_status_updated")
	}
}
