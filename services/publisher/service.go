// Package publisher is the CAN publishing worker of §5: on every
// bms_register_updated event it takes a cache snapshot, advances the CVL
// law and the energy integrator, and drives one canbus.Publisher cycle,
// fanning the results back out as cvl_limits_updated, battery_status_updated
// and pack_stats_updated for bus subscribers that do not want to decode
// CAN frames themselves.
package publisher

import (
	"context"
	"time"

	"github.com/jangala-dev/tinybms-gateway/bus"
	"github.com/jangala-dev/tinybms-gateway/internal/cache"
	"github.com/jangala-dev/tinybms-gateway/internal/canbus"
	"github.com/jangala-dev/tinybms-gateway/internal/cvl"
	"github.com/jangala-dev/tinybms-gateway/internal/energy"
	"github.com/jangala-dev/tinybms-gateway/internal/obslog"
	"github.com/jangala-dev/tinybms-gateway/types"
)

var (
	topicRegisterUpdated = bus.T("bms", types.TopicRegisterUpdated)
	topicCVLUpdated      = bus.T(types.TopicCVLUpdated)
	topicBatteryStatus   = bus.T(types.TopicBatteryStatus)
	topicPackStats       = bus.T(types.TopicPackStats)
)

// IdentityFunc returns the CAN identity fields currently in force
// (battery name, serial number, ...); Service calls it fresh on every
// cycle so a live config rename/re-identify takes effect immediately.
type IdentityFunc func() types.CANIdentityConfig

// Service ties the register cache, CVL law, energy integrator, and CAN
// publisher together into one cooperating worker.
type Service struct {
	conn       *bus.Connection
	cache      *cache.Cache
	cvlCfg     types.CVLConfig
	integrator *energy.Integrator
	can        *canbus.Publisher
	identity   IdentityFunc
	thresholds canbus.AlarmThresholds
	log        *obslog.Logger

	prevCVL types.CVLRuntimeState
}

func New(conn *bus.Connection, c *cache.Cache, cvlCfg types.CVLConfig, integrator *energy.Integrator, can *canbus.Publisher, identity IdentityFunc) *Service {
	return &Service{
		conn:       conn,
		cache:      c,
		cvlCfg:     cvlCfg,
		integrator: integrator,
		can:        can,
		identity:   identity,
		thresholds: canbus.DefaultAlarmThresholds(),
		log:        obslog.New("publisher"),
	}
}

// Run subscribes to register updates and drives one publish cycle per
// event until ctx is cancelled (§4.8 "Trigger: a bms_register_updated
// event").
func (s *Service) Run(ctx context.Context) {
	sub := s.conn.Subscribe(topicRegisterUpdated)
	defer sub.Unsubscribe()

	s.log.Println("starting")
	for {
		select {
		case <-ctx.Done():
			s.log.Println("stopping")
			s.integrator.ForcePersist(time.Now().UnixMilli())
			return
		case <-sub.Channel():
			s.cycle()
		}
	}
}

func (s *Service) cycle() {
	now := time.Now()
	nowMs := now.UnixMilli()

	sample := cache.BuildSample(s.cache.Snapshot())
	s.integrator.Sample(nowMs, sample.PackVoltageV, sample.PackCurrentA)
	if err := s.integrator.MaybePersist(nowMs); err != nil {
		s.log.Println("energy persist failed: ", err)
	}
	energyCounters := s.integrator.Snapshot()

	in := types.CVLInputs{
		SOCPercent:      sample.SOCPercent,
		MaxImbalanceMV:  float64(sample.MaxCellMV) - float64(sample.MinCellMV),
		PackVoltageV:    sample.PackVoltageV,
		BaseCCLAmps:     baseCurrentAmps(sample.CapacityAh, s.cvlCfg.NominalChargeAmps),
		BaseDCLAmps:     baseCurrentAmps(sample.CapacityAh, s.cvlCfg.NominalChargeAmps),
		PackCurrentA:    sample.PackCurrentA,
		MaxCellVoltageV: float64(sample.MaxCellMV) / 1000,
	}
	state := cvl.Evaluate(in, s.cvlCfg, s.prevCVL)
	s.prevCVL = state

	identity := s.identity()
	pgnCtx := canbus.Context{Sample: sample, CVL: state, Energy: energyCounters, Identity: identity}
	if err := s.can.Publish(now, pgnCtx); err != nil {
		s.log.Println("publish cycle error: ", err)
	}

	s.conn.Publish(s.conn.NewMessage(topicCVLUpdated, types.CVLLimitsPayload{
		State:      state.State,
		CVLVoltage: state.CVLVoltage,
		CCLAmps:    state.CCLAmps,
		DCLAmps:    state.DCLAmps,
	}, true))

	alarmBits, warnBits, onlineCount := canbus.AlarmSummary(pgnCtx, s.thresholds)
	s.conn.Publish(s.conn.NewMessage(topicBatteryStatus, types.BatteryStatusPayload{
		AlarmBits:   alarmBits,
		WarningBits: warnBits,
		OnlineCount: onlineCount,
	}, true))

	minK, maxK := tempExtremaK(sample.TempsC)
	s.conn.Publish(s.conn.NewMessage(topicPackStats, types.PackStatsPayload{
		MinCellMV: sample.MinCellMV,
		MaxCellMV: sample.MaxCellMV,
		MinTempK:  minK,
		MaxTempK:  maxK,
	}, true))
}

// baseCurrentAmps derives a nominal charge/discharge current rating from
// the configured battery capacity at a conservative 1C rate, falling
// back to the CVL config's nominal figure when capacity has not been
// polled yet (§4.5 "base_ccl/base_dcl come from the battery's rated
// current capability", left unspecified by the source register map).
func baseCurrentAmps(capacityAh, fallback float64) float64 {
	if capacityAh <= 0 {
		return fallback
	}
	return capacityAh
}

func tempExtremaK(tempsC [3]float64) (minK, maxK uint16) {
	have := false
	var lo, hi float64
	for _, t := range tempsC {
		if t != t { // NaN: not connected
			continue
		}
		if !have {
			lo, hi, have = t, t, true
			continue
		}
		if t < lo {
			lo = t
		}
		if t > hi {
			hi = t
		}
	}
	if !have {
		return 0, 0
	}
	return uint16(lo + 273.15), uint16(hi + 273.15)
}
