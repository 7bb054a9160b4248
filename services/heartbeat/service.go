// Package heartbeat is the system status heartbeat (§3's event topic
// list names system_status_updated but does not separately spec it):
// a small periodic publisher carrying process uptime, last-poll
// success age, and circuit-breaker state, grounded on the teacher's
// ticker-driven service.go.
package heartbeat

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/jangala-dev/tinybms-gateway/bus"
	"github.com/jangala-dev/tinybms-gateway/internal/obslog"
	"github.com/jangala-dev/tinybms-gateway/types"
)

var topicRegisterUpdated = bus.T("bms", types.TopicRegisterUpdated)
var topicSystemStatus = bus.T(types.TopicSystemStatus)

// Service publishes a SystemStatusPayload on topicSystemStatus every
// interval, tracking the most recent bms_register_updated event as a
// proxy for "last poll success" and reading the CAN publisher's
// circuit-breaker state through breakerState.
type Service struct {
	conn         *bus.Connection
	interval     time.Duration
	breakerState func() string
	log          *obslog.Logger

	start      time.Time
	lastPollMs atomic.Int64
}

// New builds a Service. breakerState is polled on every tick (typically
// internal/canbus.Publisher.Metrics().BreakerState.String).
func New(conn *bus.Connection, interval time.Duration, breakerState func() string) *Service {
	return &Service{
		conn:         conn,
		interval:     interval,
		breakerState: breakerState,
		log:          obslog.New("heartbeat"),
	}
}

// Run subscribes to register updates and publishes a status snapshot
// every interval until ctx is cancelled.
func (s *Service) Run(ctx context.Context) {
	s.start = time.Now()

	sub := s.conn.Subscribe(topicRegisterUpdated)
	defer sub.Unsubscribe()

	tick := time.NewTicker(s.interval)
	defer tick.Stop()

	s.log.Println("starting, interval=", s.interval.String())
	for {
		select {
		case <-ctx.Done():
			s.log.Println("stopping")
			return
		case <-sub.Channel():
			s.lastPollMs.Store(time.Now().UnixMilli())
		case <-tick.C:
			s.publish()
		}
	}
}

func (s *Service) publish() {
	now := time.Now()
	payload := types.SystemStatusPayload{
		UptimeMs:          now.Sub(s.start).Milliseconds(),
		LastPollSuccessMs: s.lastPollSuccessAgeMs(now),
		BreakerState:      s.breakerState(),
	}
	s.conn.Publish(s.conn.NewMessage(topicSystemStatus, payload, true))
}

// lastPollSuccessAgeMs returns the age, in ms, of the last successful
// poll, or -1 if none has been observed yet.
func (s *Service) lastPollSuccessAgeMs(now time.Time) int64 {
	last := s.lastPollMs.Load()
	if last == 0 {
		return -1
	}
	return now.UnixMilli() - last
}
