package config

import (
	"encoding/json"
	"testing"

	"github.com/jangala-dev/tinybms-gateway/bus"
	"github.com/jangala-dev/tinybms-gateway/internal/nvs"
	"github.com/jangala-dev/tinybms-gateway/types"
)

// TestApply_RenameDerivesTopicsAndMasksSecrets is §8 scenario 9.
func TestApply_RenameDerivesTopicsAndMasksSecrets(t *testing.T) {
	m := New(nvs.NewMemStore(), nil)
	if err := m.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}

	patch := []byte(`{"device":{"name":"gw-42"},"mqtt":{"password":"hunter2"}}`)
	if err := m.Apply(patch); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	full := m.GetFull()
	if full.Device.Name != "gw-42" {
		t.Fatalf("Device.Name = %q, want gw-42", full.Device.Name)
	}
	if full.MQTT.Topics.Status != "gw-42/status" {
		t.Fatalf("Topics.Status = %q, want gw-42/status", full.MQTT.Topics.Status)
	}
	if full.MQTT.Password != "hunter2" {
		t.Fatalf("full MQTT.Password = %q, want hunter2", full.MQTT.Password)
	}

	public := m.GetPublic()
	if public.MQTT.Password != types.Secret {
		t.Fatalf("public MQTT.Password = %q, want %q", public.MQTT.Password, types.Secret)
	}

	raw, err := m.ExportPublicJSON()
	if err != nil {
		t.Fatalf("ExportPublicJSON: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal public export: %v", err)
	}
	mqtt := decoded["mqtt"].(map[string]any)
	if mqtt["password"] != types.Secret {
		t.Fatalf("public export password = %v, want %q", mqtt["password"], types.Secret)
	}

	rawFull, err := m.ExportFullJSON()
	if err != nil {
		t.Fatalf("ExportFullJSON: %v", err)
	}
	var decodedFull map[string]any
	if err := json.Unmarshal(rawFull, &decodedFull); err != nil {
		t.Fatalf("unmarshal full export: %v", err)
	}
	if decodedFull["mqtt"].(map[string]any)["password"] != "hunter2" {
		t.Fatalf("full export password = %v, want hunter2", decodedFull["mqtt"].(map[string]any)["password"])
	}
}

func TestApply_PreservesCustomTopicOnRename(t *testing.T) {
	m := New(nvs.NewMemStore(), nil)
	if err := m.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := m.Apply([]byte(`{"mqtt":{"topics":{"status":"custom/status"}}}`)); err != nil {
		t.Fatalf("Apply custom topic: %v", err)
	}
	if err := m.Apply([]byte(`{"device":{"name":"renamed"}}`)); err != nil {
		t.Fatalf("Apply rename: %v", err)
	}

	full := m.GetFull()
	if full.MQTT.Topics.Status != "custom/status" {
		t.Fatalf("Topics.Status = %q, want custom/status preserved", full.MQTT.Topics.Status)
	}
	if full.MQTT.Topics.Metrics != "renamed/metrics" {
		t.Fatalf("Topics.Metrics = %q, want renamed/metrics", full.MQTT.Topics.Metrics)
	}
}

func TestApply_ClampsOutOfRangeValues(t *testing.T) {
	m := New(nvs.NewMemStore(), nil)
	if err := m.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := m.Apply([]byte(`{"wifi":{"ap":{"channel":99,"max_clients":50}},"mqtt":{"default_qos":9}}`)); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	full := m.GetFull()
	if full.WiFi.AP.Channel != 13 {
		t.Fatalf("AP.Channel = %d, want clamped to 13", full.WiFi.AP.Channel)
	}
	if full.WiFi.AP.MaxClients != 10 {
		t.Fatalf("AP.MaxClients = %d, want clamped to 10", full.WiFi.AP.MaxClients)
	}
	if full.MQTT.DefaultQOS != 2 {
		t.Fatalf("DefaultQOS = %d, want clamped to 2", full.MQTT.DefaultQOS)
	}
}

func TestApply_RejectsEmptyDeviceName(t *testing.T) {
	m := New(nvs.NewMemStore(), nil)
	if err := m.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := m.Apply([]byte(`{"device":{"name":""}}`)); err == nil {
		t.Fatal("expected Apply to reject empty device name")
	}
}

func TestApply_PublishesConfigUpdated(t *testing.T) {
	b := bus.NewBus(8)
	conn := b.NewConnection("test")
	m := New(nvs.NewMemStore(), conn)
	if err := m.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}

	sub := conn.Subscribe(bus.T("config", "updated"))
	defer sub.Unsubscribe()

	if err := m.Apply([]byte(`{"device":{"name":"gw-9"}}`)); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	select {
	case msg := <-sub.Channel():
		cfg, ok := msg.Payload.(types.Config)
		if !ok || cfg.Device.Name != "gw-9" {
			t.Fatalf("published payload = %#v, want Config{Device.Name: gw-9}", msg.Payload)
		}
	default:
		t.Fatal("expected config_updated publish")
	}
}

func TestLoad_OverlaysPersistedValues(t *testing.T) {
	store := nvs.NewMemStore()
	seed := New(store, nil)
	if err := seed.Load(); err != nil {
		t.Fatalf("seed Load: %v", err)
	}
	if err := seed.Apply([]byte(`{"uart":{"poll_interval_ms":2500}}`)); err != nil {
		t.Fatalf("seed Apply: %v", err)
	}

	restarted := New(store, nil)
	if err := restarted.Load(); err != nil {
		t.Fatalf("restarted Load: %v", err)
	}
	if got := restarted.GetFull().UART.PollIntervalMs; got != 2500 {
		t.Fatalf("PollIntervalMs after restart = %d, want 2500", got)
	}
}
