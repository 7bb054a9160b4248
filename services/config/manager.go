// Package config is the gateway's config manager (§4.10): typed
// immutable snapshots over device/uart/wifi/can/mqtt settings, backed
// by NVS, with public (secret-masked) and full JSON export and a
// parse-and-apply JSON surface.
package config

import (
	"encoding/json"
	"os"
	"sync/atomic"
	"time"

	"github.com/jangala-dev/tinybms-gateway/bus"
	"github.com/jangala-dev/tinybms-gateway/errcode"
	"github.com/jangala-dev/tinybms-gateway/internal/nvs"
	"github.com/jangala-dev/tinybms-gateway/internal/obslog"
	"github.com/jangala-dev/tinybms-gateway/types"
)

// lockTimeout bounds how long a setter waits for the config mutex
// (§5 "default 1 s for config").
const lockTimeout = time.Second

// Manager owns every setting outside the register cache, energy
// counters, and frame cache/metrics (§3 "config manager owns
// everything else"). Getters read a lock-free atomic snapshot so they
// never block; setters serialise through mu with a bounded wait and
// return LockTimeout when it expires, leaving the last-known snapshot
// in place (§5).
type Manager struct {
	mu    chanMutex
	store nvs.Store
	conn  *bus.Connection
	topic bus.Topic
	log   *obslog.Logger

	full   atomic.Pointer[types.Config]
	public atomic.Pointer[types.Config]
}

// New builds a Manager. conn may be nil to disable the
// config_updated publish (e.g. in tests that only exercise Load/Apply).
func New(store nvs.Store, conn *bus.Connection) *Manager {
	m := &Manager{
		mu:    newChanMutex(),
		store: store,
		conn:  conn,
		topic: bus.T("config", "updated"),
		log:   obslog.New("config"),
	}
	cfg := defaultConfig()
	m.storeSnapshot(&cfg)
	return m
}

// Load overlays any persisted NVS values onto the built-in defaults,
// clamps/aligns the result, and installs it as the current snapshot
// without publishing (this runs before the bus has any subscribers).
func (m *Manager) Load() error {
	if !m.mu.Lock(lockTimeout) {
		return &errcode.E{C: errcode.LockTimeout, Op: "config.load"}
	}
	defer m.mu.Unlock()

	cfg := defaultConfig()
	if err := m.overlayFromStore(&cfg); err != nil {
		return err
	}
	clamp(&cfg)
	if err := validate(&cfg); err != nil {
		return err
	}
	m.storeSnapshot(&cfg)
	return nil
}

// GetFull returns the current full snapshot, secrets included.
func (m *Manager) GetFull() types.Config { return *m.full.Load() }

// GetPublic returns the current snapshot with every secret field
// masked to types.Secret.
func (m *Manager) GetPublic() types.Config { return *m.public.Load() }

// Apply parses full or partial configuration JSON (§6 "Configuration
// JSON") onto the current snapshot, validates/clamps, persists,
// rebuilds snapshots, and publishes config_updated — always applying
// validated input, per the resolved "parse-and-apply" open question.
func (m *Manager) Apply(raw []byte) error {
	if !m.mu.Lock(lockTimeout) {
		return &errcode.E{C: errcode.LockTimeout, Op: "config.apply"}
	}
	defer m.mu.Unlock()

	next := m.GetFull()
	if err := json.Unmarshal(raw, &next); err != nil {
		return &errcode.E{C: errcode.InvalidPayload, Op: "config.apply", Err: err}
	}

	oldName := m.GetFull().Device.Name
	if next.Device.Name != oldName {
		next.MQTT.Topics = rewriteTopicsOnRename(next.MQTT.Topics, oldName, next.Device.Name)
	}

	clamp(&next)
	if err := validate(&next); err != nil {
		return err
	}
	if err := m.persist(&next); err != nil {
		return err
	}
	m.storeSnapshot(&next)
	m.publish()
	m.log.Println("applied config, device=", next.Device.Name)
	return nil
}

// ExportFullJSON serialises the full snapshot (secrets included).
func (m *Manager) ExportFullJSON() ([]byte, error) {
	cfg := m.GetFull()
	return json.MarshalIndent(&cfg, "", "  ")
}

// ExportPublicJSON serialises the snapshot with secrets masked.
func (m *Manager) ExportPublicJSON() ([]byte, error) {
	cfg := m.GetPublic()
	return json.MarshalIndent(&cfg, "", "  ")
}

// ExportFile writes the full configuration to path (§6 "/spiffs/config.json").
func (m *Manager) ExportFile(path string) error {
	raw, err := m.ExportFullJSON()
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, raw, 0600); err != nil {
		return &errcode.E{C: errcode.Io, Op: "config.export_file", Err: err}
	}
	return nil
}

// ImportFile applies the full configuration found at path.
func (m *Manager) ImportFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return &errcode.E{C: errcode.Io, Op: "config.import_file", Err: err}
	}
	return m.Apply(raw)
}

func (m *Manager) storeSnapshot(cfg *types.Config) {
	full := *cfg
	public := *cfg
	maskSecrets(&public)
	m.full.Store(&full)
	m.public.Store(&public)
}

func (m *Manager) publish() {
	if m.conn == nil {
		return
	}
	public := m.GetPublic()
	m.conn.Publish(m.conn.NewMessage(m.topic, public, true))
}

func maskSecrets(cfg *types.Config) {
	cfg.WiFi.STA.Password = types.Secret
	cfg.WiFi.AP.Password = types.Secret
	cfg.MQTT.Password = types.Secret
}
