//go:build linux

// Command gateway wires the four cooperating workers of §5 onto one
// event bus: the serial I/O worker, the register poller, the CAN
// publishing worker, and the config/operator-API worker. Grounded on the
// teacher's main.go bootstrap (bus first, workers started as goroutines,
// a shared context for shutdown) and loop.go's dispatch style.
//
// This entrypoint targets the host/Linux deployment: its two external
// transports, github.com/tarm/serial and the SocketCAN driver in
// internal/canbus/transmit_linux.go, are both Linux-only. An embedded
// (rp2040/rp2350) entrypoint needs its own main package wiring the
// "uart" serialio transport and a TWAI-based canbus.Driver, neither of
// which this pack's retrieval material covers (see DESIGN.md).
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jangala-dev/tinybms-gateway/bus"
	"github.com/jangala-dev/tinybms-gateway/internal/cache"
	"github.com/jangala-dev/tinybms-gateway/internal/canbus"
	"github.com/jangala-dev/tinybms-gateway/internal/cvl"
	"github.com/jangala-dev/tinybms-gateway/internal/energy"
	"github.com/jangala-dev/tinybms-gateway/internal/nvs"
	"github.com/jangala-dev/tinybms-gateway/internal/obslog"
	"github.com/jangala-dev/tinybms-gateway/internal/opapi"
	"github.com/jangala-dev/tinybms-gateway/internal/serialio"
	"github.com/jangala-dev/tinybms-gateway/services/config"
	"github.com/jangala-dev/tinybms-gateway/services/heartbeat"
	"github.com/jangala-dev/tinybms-gateway/services/publisher"
	"github.com/jangala-dev/tinybms-gateway/types"
)

const (
	nvsPath  = "gateway_cfg.db"
	dialType = "serial"
)

var log = obslog.New("main")

func openStore(path string) (nvs.Store, error) {
	return nvs.OpenBoltStore(path)
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	log.Println("bootstrapping bus")
	b := bus.NewBus(16)

	store, err := openStore(nvsPath)
	if err != nil {
		log.Println("nvs open failed: ", err)
		os.Exit(1)
	}
	defer store.Close()

	cfgConn := b.NewConnection("config")
	cfgMgr := config.New(store, cfgConn)
	if err := cfgMgr.Load(); err != nil {
		log.Println("config load failed: ", err)
		os.Exit(1)
	}
	cfg := cfgMgr.GetFull()
	log.Println("config loaded, device=", cfg.Device.Name)

	serialConn := b.NewConnection("serialio")
	worker := serialio.NewWorker(serialConn, serialDialConfig(cfg.UART), 500*time.Millisecond, 5*time.Second)
	go worker.Run(ctx)

	cacheConn := b.NewConnection("cache")
	regCache := cache.New(cacheConn, worker, store)
	if err := regCache.LoadDefaults(); err != nil {
		log.Println("cache load_defaults failed: ", err)
		os.Exit(1)
	}
	poller := cache.NewPoller(regCache, worker, int(cfg.UART.PollIntervalMs))
	go poller.Run(ctx)

	driver, err := canbus.NewSocketCANDriver(cfg.CAN.TWAI.Interface)
	if err != nil {
		log.Println("can open failed: ", err)
		os.Exit(1)
	}
	canPub := canbus.NewPublisher(driver)

	integrator := energy.New(store, func(gapMs int64) {
		log.Println("energy integrator observed a sample gap, ms=", gapMs)
	})
	integrator.Load()

	pubConn := b.NewConnection("publisher")
	pubSvc := publisher.New(pubConn, regCache, cvl.DefaultConfig(), integrator, canPub, func() types.CANIdentityConfig {
		return cfgMgr.GetFull().CAN.Identity
	})
	go pubSvc.Run(ctx)

	opapiConn := b.NewConnection("opapi")
	opapiSvc := opapi.New(opapiConn, regCache)
	go opapiSvc.Run(ctx, bus.T("bms", "reg_write"))

	hbConn := b.NewConnection("heartbeat")
	hbSvc := heartbeat.New(hbConn, time.Second, func() string { return canPub.Metrics().BreakerState.String() })
	go hbSvc.Run(ctx)

	log.Println("running")
	<-ctx.Done()
	log.Println("shutting down")
	integrator.ForcePersist(time.Now().UnixMilli())
}

// serialDialConfig maps the config manager's UART settings onto the
// serialio transport's own config shape, keyed by build: host builds
// dial Device/Baud (tarm/serial), embedded builds dial RxPin/TxPin
// (tinygo-uartx) through the "uart" transport instead.
func serialDialConfig(u types.UARTConfig) serialio.DialConfig {
	return serialio.DialConfig{
		Type:           dialType,
		Device:         u.Device,
		Baud:           u.Baud,
		RxPin:          u.RXGpio,
		TxPin:          u.TXGpio,
		ReadTimeoutMS:  1000,
		WriteTimeoutMS: 1000,
	}
}
