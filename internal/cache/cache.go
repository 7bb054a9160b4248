// Package cache owns every cached BMS register raw value: a concurrent,
// timestamped, dirty-aware store with NVS-backed defaults, change-event
// fan-out, and safe-write semantics with read-back verification (§4.4).
package cache

import (
	"context"
	"math"
	"sync/atomic"
	"time"

	"github.com/jangala-dev/tinybms-gateway/bus"
	"github.com/jangala-dev/tinybms-gateway/drivers/tinybms"
	"github.com/jangala-dev/tinybms-gateway/errcode"
	"github.com/jangala-dev/tinybms-gateway/internal/nvs"
	"github.com/jangala-dev/tinybms-gateway/internal/serialio"
	"github.com/jangala-dev/tinybms-gateway/types"
	"github.com/jangala-dev/tinybms-gateway/x/mathx"
)

// Exchanger is the subset of serialio.Worker the cache needs; narrowed to
// an interface so tests can stub the serial line.
type Exchanger interface {
	Do(ctx context.Context, op string, frame []byte, validate func([]byte) error) ([]byte, error)
}

var _ Exchanger = (*serialio.Worker)(nil)

// Cache is the single owner of raw register values (§3 "Ownership").
// A process-wide mutex protects every mutation; readers may take a
// most-recent atomically-swapped immutable snapshot without the lock.
type Cache struct {
	conn   *bus.Connection
	worker Exchanger
	store  nvs.Store

	mu     chanMutex
	values map[uint16]*types.Value

	snapshot atomic.Value // Snapshot
}

// Snapshot is an immutable, point-in-time copy of every cached value.
type Snapshot struct {
	Values map[uint16]types.Value
	TSMs   int64
}

func New(conn *bus.Connection, worker Exchanger, store nvs.Store) *Cache {
	c := &Cache{
		conn:   conn,
		worker: worker,
		store:  store,
		mu:     newChanMutex(),
		values: make(map[uint16]*types.Value, len(tinybms.Descriptors)),
	}
	c.snapshot.Store(Snapshot{Values: map[uint16]types.Value{}})
	return c
}

// Get returns the most recently cached raw value for addr.
func (c *Cache) Get(addr uint16) (raw uint16, ts int64, valid bool) {
	snap := c.snapshot.Load().(Snapshot)
	v, ok := snap.Values[addr]
	if !ok {
		return 0, 0, false
	}
	return v.Raw, v.TSMs, v.Valid
}

// Snapshot returns the current immutable snapshot.
func (c *Cache) Snapshot() Snapshot {
	return c.snapshot.Load().(Snapshot)
}

// LoadDefaults seeds every descriptor's default raw value, then overlays
// any NVS-persisted value, aligning/clamping on restore (§4.4 "Startup",
// §9 Open Question on out-of-range defaults).
func (c *Cache) LoadDefaults() error {
	if !c.mu.Lock(5 * time.Second) {
		return &errcode.E{C: errcode.LockTimeout, Op: "cache.load_defaults"}
	}
	defer c.mu.Unlock()

	for i := range tinybms.Descriptors {
		d := &tinybms.Descriptors[i]
		raw := uint16(d.DefaultRaw)
		if persisted, ok, err := c.store.Get(d.NVSKey()); err == nil && ok {
			raw = alignRestore(d, persisted)
		}
		c.values[d.Addr] = &types.Value{Addr: d.Addr, Raw: raw, TSMs: 0, Valid: true}
	}
	c.rebuildSnapshotLocked()
	return nil
}

// alignRestore decodes a persisted 2-byte big-endian raw value and
// aligns/clamps it to the descriptor's domain: enum values not in the
// enum table are dropped back to the default; everything else is aligned
// to step and clamped to [min,max] (§4.4, §9).
func alignRestore(d *types.Descriptor, persisted []byte) uint16 {
	if len(persisted) < 2 {
		return uint16(d.DefaultRaw)
	}
	raw := uint16(persisted[0])<<8 | uint16(persisted[1])

	if d.Kind == types.KindEnum {
		for _, e := range d.Enum {
			if e.Raw == raw {
				return raw
			}
		}
		return uint16(d.DefaultRaw)
	}
	if !d.HasRange {
		return raw
	}
	aligned := alignStep(int32(raw), d.Step)
	clamped := mathx.Clamp(aligned, d.MinRaw, d.MaxRaw)
	return uint16(clamped)
}

func alignStep(raw, step int32) int32 {
	if step <= 1 {
		return raw
	}
	return int32(math.Round(float64(raw)/float64(step))) * step
}

// Write validates and applies a new user-facing value to a rw register:
// validate -> write -> read back -> persist the read-back value -> store
// it in the cache -> publish (§4.4 "Write path").
func (c *Cache) Write(ctx context.Context, addr uint16, userValue float64) error {
	d, ok := tinybms.ByAddr[addr]
	if !ok {
		return &errcode.E{C: errcode.NotFound, Op: "cache.write", Msg: "unknown register address"}
	}
	if d.Access != types.RW {
		return &errcode.E{C: errcode.InvalidState, Op: "cache.write", Msg: "register is not writable"}
	}

	raw, err := validateWrite(d, userValue)
	if err != nil {
		return err
	}

	writeFrame := tinybms.BuildWriteRequest(d.Addr, []uint16{raw})
	ackResp, err := c.worker.Do(ctx, "write:"+d.Key, writeFrame, func(f []byte) error {
		return tinybms.ParseWriteAck("write:"+d.Key, f, d.Addr, 1)
	})
	if err != nil {
		return err
	}
	_ = ackResp

	readFrame := tinybms.BuildReadRequest(d.Addr, 1)
	readResp, err := c.worker.Do(ctx, "readback:"+d.Key, readFrame, nil)
	if err != nil {
		return err
	}
	payload, err := tinybms.ParseReadResponse("readback:"+d.Key, readResp)
	if err != nil || len(payload) < 2 {
		return &errcode.E{C: errcode.InvalidSize, Op: "readback:" + d.Key, Msg: "short readback payload"}
	}
	readbackRaw := uint16(payload[0])<<8 | uint16(payload[1])

	if err := c.store.Set(d.NVSKey(), []byte{byte(readbackRaw >> 8), byte(readbackRaw)}); err != nil {
		return err
	}

	if !c.mu.Lock(1 * time.Second) {
		return &errcode.E{C: errcode.LockTimeout, Op: "cache.write"}
	}
	now := time.Now().UnixMilli()
	c.values[d.Addr] = &types.Value{Addr: d.Addr, Raw: readbackRaw, TSMs: now, Valid: true}
	c.rebuildSnapshotLocked()
	c.mu.Unlock()

	c.publishUpdate(d, readbackRaw)
	return nil
}

// validateWrite enforces enum membership or step/range alignment,
// rejecting out-of-range input (§4.4).
func validateWrite(d *types.Descriptor, userValue float64) (uint16, error) {
	if d.Kind == types.KindEnum {
		raw := uint16(userValue)
		for _, e := range d.Enum {
			if e.Raw == raw {
				return raw, nil
			}
		}
		return 0, &errcode.E{C: errcode.InvalidArgument, Op: "cache.write", Msg: "value not in enum"}
	}

	raw := tinybms.EncodeScalar(d, userValue)
	if d.HasRange {
		// EncodeScalar already clamps to [min,max], so the range check
		// runs on the unclamped raw code.
		scale := d.Scale
		if scale == 0 {
			scale = 1
		}
		unclampedRaw := math.Round(userValue/scale - d.Offset)
		if unclampedRaw < float64(d.MinRaw) || unclampedRaw > float64(d.MaxRaw) {
			return 0, &errcode.E{C: errcode.InvalidArgument, Op: "cache.write", Msg: "value out of range"}
		}
		unclamped := int32(unclampedRaw)
		aligned := alignStep(unclamped, d.Step)
		raw = uint16(mathx.Clamp(aligned, d.MinRaw, d.MaxRaw))
	}
	return raw, nil
}

func (c *Cache) publishUpdate(d *types.Descriptor, raw uint16) {
	if c.conn == nil {
		return
	}
	scaled := c.scaledValueLocked(d, raw)
	payload := types.RegisterUpdatedPayload{Key: d.Key, ScaledValue: scaled, RawValue: raw}
	c.conn.Publish(c.conn.NewMessage(bus.T("bms", types.TopicRegisterUpdated), payload, false))
}

// scaledValueLocked decodes the user-facing value of a register for event
// payloads, honouring 32-bit pairs and packed words in addition to plain
// scalars. It reads c.values for the companion word of a 32-bit register,
// which the poller and concurrent writers mutate under c.mu, so it takes
// c.mu itself rather than relying on a caller-held lock (both existing
// callers already publish after unlocking, per applyBlock and Write).
func (c *Cache) scaledValueLocked(d *types.Descriptor, raw uint16) float64 {
	switch {
	case d.Words() == 2:
		if !c.mu.Lock(1 * time.Second) {
			return 0
		}
		v := c.values[d.Addr]
		if v == nil {
			c.mu.Unlock()
			return 0
		}
		raw1, raw2, endian := v.Raw, v.Raw2, d.Endian
		c.mu.Unlock()

		var b [4]byte
		if endian == types.LittleEndian {
			b[0], b[1], b[2], b[3] = byte(raw1), byte(raw1>>8), byte(raw2), byte(raw2>>8)
		} else {
			b[0], b[1], b[2], b[3] = byte(raw1>>8), byte(raw1), byte(raw2>>8), byte(raw2)
		}
		return tinybms.Decode32(d, b)
	case d.Kind == types.KindPacked:
		return 0
	default:
		return tinybms.DecodeScalar(d, raw).Numeric
	}
}

func (c *Cache) rebuildSnapshotLocked() {
	cp := make(map[uint16]types.Value, len(c.values))
	maxTS := int64(0)
	for addr, v := range c.values {
		cp[addr] = *v
		if v.TSMs > maxTS {
			maxTS = v.TSMs
		}
	}
	c.snapshot.Store(Snapshot{Values: cp, TSMs: maxTS})
}
