package canbus

import (
	"sync"
	"time"

	"github.com/jangala-dev/tinybms-gateway/errcode"
	"github.com/jangala-dev/tinybms-gateway/internal/obslog"
)

// Metrics is a snapshot of the orchestrator's counters (§4.8
// "total/successful/failed/throttled publishes; cache hit/miss;
// average and maximum publish latency; last publish timestamp;
// circuit-breaker trips").
type Metrics struct {
	Total      uint64
	Successful uint64
	Failed     uint64
	Throttled  uint64

	CacheHits   uint64
	CacheMisses uint64

	AvgLatencyMs float64
	MaxLatencyMs float64

	LastPublishTSMs int64
	BreakerTrips    int
	BreakerState    BreakerState
}

type metrics struct {
	mu sync.Mutex
	Metrics
	latencySumMs float64
}

func (m *metrics) recordCycle(now time.Time, d time.Duration, outcome error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Total++
	ms := float64(d.Microseconds()) / 1000
	m.latencySumMs += ms
	m.AvgLatencyMs = m.latencySumMs / float64(m.Total)
	if ms > m.MaxLatencyMs {
		m.MaxLatencyMs = ms
	}
	m.LastPublishTSMs = now.UnixMilli()

	if outcome == nil {
		m.Successful++
	} else {
		m.Failed++
	}
}

func (m *metrics) recordThrottled() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Total++
	m.Throttled++
}

func (m *metrics) recordCacheHit()  { m.mu.Lock(); m.CacheHits++; m.mu.Unlock() }
func (m *metrics) recordCacheMiss() { m.mu.Lock(); m.CacheMisses++; m.mu.Unlock() }

func (m *metrics) snapshot(br *breaker) Metrics {
	m.mu.Lock()
	snap := m.Metrics
	m.mu.Unlock()
	snap.BreakerTrips = br.Trips()
	snap.BreakerState = br.State()
	return snap
}

// Publisher drives the full PGN table forward on each trigger, subject
// to the token bucket and circuit breaker, consulting the frame cache
// before invoking an encoder (§4.8).
type Publisher struct {
	driver    Driver
	bucket    *tokenBucket
	breaker   *breaker
	cache     *frameCache
	metrics   *metrics
	table     []PGN
	scheduler *scheduler
	log       *obslog.Logger
}

func NewPublisher(driver Driver) *Publisher {
	return &Publisher{
		driver:  driver,
		bucket:  newTokenBucket(),
		breaker: &breaker{},
		cache:   newFrameCache(),
		metrics: &metrics{},
		table:   Table,
		log:     obslog.New("canbus"),
	}
}

// Publish runs one orchestrator cycle against ctx, triggered by a
// bms_register_updated event (§4.8 "Trigger"). It returns
// ResourceExhausted if throttled by the rate limiter or breaker;
// otherwise it encodes/transmits only the PGNs whose per-PGN cadence
// (§4.6 table) is due as of now, skipping any PGN whose encoder or
// transmit fails. Skipped frames are not counted individually: a cycle
// with any skipped frame counts once as Failed in Metrics. It reports
// the cycle (not each frame) to the breaker
// exactly once (§4.8 "the cycle is reported... only once, not
// per-frame").
func (p *Publisher) Publish(now time.Time, ctx Context) error {
	if !p.bucket.Allow(now) {
		p.metrics.recordThrottled()
		return &errcode.E{C: errcode.ResourceExhausted, Op: "canbus.publish", Msg: "rate limited"}
	}
	if !p.breaker.Allow(now) {
		p.metrics.recordThrottled()
		p.log.Println("throttled: circuit ", p.breaker.State().String())
		return &errcode.E{C: errcode.ResourceExhausted, Op: "canbus.publish", Msg: "circuit open"}
	}

	if p.scheduler == nil {
		p.scheduler = newScheduler(p.table, now.UnixMilli())
	}

	start := now
	hash := ContentHash(ctx)
	var cycleErr error

	for _, pgn := range p.scheduler.DueSince(now.UnixMilli()) {
		f, ok := p.cache.Get(pgn.ID, hash)
		if ok {
			p.metrics.recordCacheHit()
		} else {
			p.metrics.recordCacheMiss()
			var err error
			f, err = pgn.Encode(ctx)
			if err != nil {
				cycleErr = err
				continue
			}
			p.cache.Put(pgn.ID, hash, f)
		}

		if err := p.driver.Transmit(f); err != nil {
			cycleErr = busErr("canbus.transmit", err)
			continue
		}
	}

	d := time.Since(start)
	p.metrics.recordCycle(time.Now(), d, cycleErr)
	before := p.breaker.State()
	if cycleErr != nil {
		p.breaker.ReportFailure(time.Now())
		p.log.Println("cycle failed: ", cycleErr)
	} else {
		p.breaker.ReportSuccess(time.Now())
	}
	if after := p.breaker.State(); after != before {
		p.log.Println("circuit ", before.String(), " -> ", after.String())
	}
	return cycleErr
}

func (p *Publisher) Metrics() Metrics { return p.metrics.snapshot(p.breaker) }
