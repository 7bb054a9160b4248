package config

import "github.com/jangala-dev/tinybms-gateway/types"

// defaultConfig returns the gateway's built-in configuration, used as
// the base a device's persisted NVS overlay is applied onto (grounded
// on the teacher's embeddedConfigs map, generalised from a per-device
// JSON blob to a single typed default plus per-field NVS overrides).
// Every default here already satisfies its own field's §6 range. Load
// clamps out-of-range values rather than rejecting them, so a default
// outside its range would be replaced by the nearest bound.
func defaultConfig() types.Config {
	cfg := types.Config{
		Device: types.DeviceConfig{Name: "gateway"},
		UART: types.UARTConfig{
			TXGpio:            -1,
			RXGpio:            -1,
			Device:            "/dev/ttyUSB0",
			Baud:              115200,
			PollIntervalMs:    1000,
			PollIntervalMinMs: 500,
			PollIntervalMaxMs: 5000,
		},
		WiFi: types.WiFiConfig{
			STA: types.WiFiSTAConfig{MaxRetry: 5},
			AP:  types.WiFiAPConfig{Channel: 6, MaxClients: 4},
		},
		CAN: types.CANConfig{
			TWAI: types.CANTWAIConfig{TXGpio: -1, RXGpio: -1, Interface: "can0"},
			Keepalive: types.CANKeepaliveConfig{
				IntervalMs: 1000,
				TimeoutMs:  5000,
				RetryMs:    1000,
			},
			Publisher: types.CANPublisherConfig{PeriodMs: 1000},
			Identity: types.CANIdentityConfig{
				HandshakeASCII: "TBMS",
				Manufacturer:   "TinyBMS",
				BatteryName:    "Pack-1",
				BatteryFamily:  "LiFePO4",
				SerialNumber:   "000000",
			},
		},
		MQTT: types.MQTTConfig{
			Scheme:     "mqtt",
			Port:       1883,
			KeepaliveS: 60,
			DefaultQOS: 1,
			Retain:     true,
		},
	}
	cfg.MQTT.Topics = defaultTopics(cfg.Device.Name)
	return cfg
}
