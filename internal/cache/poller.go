package cache

import (
	"context"
	"time"

	"github.com/jangala-dev/tinybms-gateway/drivers/tinybms"
	"github.com/jangala-dev/tinybms-gateway/types"
	"github.com/jangala-dev/tinybms-gateway/x/mathx"
)

// pollBlock is one contiguous address range read in a single generic-read
// exchange (§4.3 read() is capped at 127 words per call).
type pollBlock struct {
	start uint16
	count uint8
}

// pollBlocks covers every address range the descriptor table populates
// except the event log (200-297), which is not polled; gaps within a
// block (addresses with no descriptor) are simply skipped on decode.
var pollBlocks = []pollBlock{
	{start: 0, count: 56},   // live data: cells + aggregates
	{start: 100, count: 9},  // stats
	{start: 300, count: 44}, // rw settings
	{start: 500, count: 10}, // version block
}

const (
	defaultPollIntervalMs = 1000
	minPollIntervalMs     = 100
	maxPollIntervalMs     = 10000
)

// Poller drives periodic reads of every descriptor block through the
// serial worker, updating the cache and publishing bms_register_updated
// on every changed value (§4.4).
type Poller struct {
	cache    *Cache
	worker   Exchanger
	interval time.Duration
}

func NewPoller(c *Cache, worker Exchanger, intervalMs int) *Poller {
	return &Poller{cache: c, worker: worker, interval: clampInterval(intervalMs)}
}

// clampInterval enforces the poll-interval range from the hardware pin
// select / poll-interval register (300-343 settings group, addr 342).
func clampInterval(ms int) time.Duration {
	clamped := mathx.Clamp(ms, minPollIntervalMs, maxPollIntervalMs)
	return time.Duration(clamped) * time.Millisecond
}

// SetInterval changes the poll period, clamping to the configured bounds;
// it takes effect from the next tick.
func (p *Poller) SetInterval(ms int) {
	p.interval = clampInterval(ms)
}

// Run polls every block on a ticker until ctx is cancelled.
func (p *Poller) Run(ctx context.Context) {
	t := time.NewTicker(p.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			p.pollOnce(ctx)
			if t2 := p.interval; t2 != 0 {
				t.Reset(t2)
			}
		}
	}
}

func (p *Poller) pollOnce(ctx context.Context) {
	for _, blk := range pollBlocks {
		frame := tinybms.BuildReadRequest(blk.start, blk.count)
		resp, err := p.worker.Do(ctx, "poll", frame, nil)
		if err != nil {
			continue
		}
		payload, err := tinybms.ParseReadResponse("poll", resp)
		if err != nil {
			continue
		}
		p.applyBlock(blk.start, payload)
	}
}

// applyBlock decodes a block's raw payload word-by-word against the
// descriptor table and updates the cache, skipping addresses with no
// descriptor (gaps in the block) and the second word of any 32-bit pair
// already consumed by its first word. Changed registers are published on
// the bus once the cache lock is released.
func (p *Poller) applyBlock(start uint16, payload []byte) {
	words := len(payload) / 2
	now := time.Now().UnixMilli()

	if !p.cache.mu.Lock(1 * time.Second) {
		return
	}

	type change struct {
		d   *types.Descriptor
		raw uint16
	}
	var changed []change
	skip := map[uint16]bool{}
	for i := 0; i < words; i++ {
		addr := start + uint16(i)
		if skip[addr] {
			continue
		}
		d, ok := tinybms.ByAddr[addr]
		if !ok {
			continue
		}
		raw := uint16(payload[i*2])<<8 | uint16(payload[i*2+1])

		existing := p.cache.values[addr]
		v := &types.Value{Addr: addr, Raw: raw, TSMs: now, Valid: true}
		if d.Words() == 2 && i+1 < words {
			v.Raw2 = uint16(payload[(i+1)*2])<<8 | uint16(payload[(i+1)*2+1])
			skip[addr+1] = true
		}
		if existing == nil || existing.Raw != v.Raw || existing.Raw2 != v.Raw2 {
			changed = append(changed, change{d: d, raw: v.Raw})
		}
		p.cache.values[addr] = v
	}
	p.cache.rebuildSnapshotLocked()
	p.cache.mu.Unlock()

	for _, c := range changed {
		p.cache.publishUpdate(c.d, c.raw)
	}
}
