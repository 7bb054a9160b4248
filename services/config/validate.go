package config

import (
	"github.com/jangala-dev/tinybms-gateway/errcode"
	"github.com/jangala-dev/tinybms-gateway/types"
	"github.com/jangala-dev/tinybms-gateway/x/mathx"
)

// clamp aligns every ranged field of cfg to its §6 bounds in place; it
// never fails, mirroring the resolved "align/clamp on restore" open
// question rather than rejecting an otherwise-usable snapshot.
func clamp(cfg *types.Config) {
	cfg.UART.TXGpio = mathx.Clamp(cfg.UART.TXGpio, -1, 48)
	cfg.UART.RXGpio = mathx.Clamp(cfg.UART.RXGpio, -1, 48)
	if cfg.UART.PollIntervalMinMs > cfg.UART.PollIntervalMaxMs {
		cfg.UART.PollIntervalMinMs, cfg.UART.PollIntervalMaxMs = cfg.UART.PollIntervalMaxMs, cfg.UART.PollIntervalMinMs
	}
	cfg.UART.PollIntervalMs = mathx.Clamp(cfg.UART.PollIntervalMs, cfg.UART.PollIntervalMinMs, cfg.UART.PollIntervalMaxMs)

	cfg.WiFi.AP.Channel = mathx.Clamp(cfg.WiFi.AP.Channel, 1, 13)
	cfg.WiFi.AP.MaxClients = mathx.Clamp(cfg.WiFi.AP.MaxClients, 1, 10)

	cfg.CAN.TWAI.TXGpio = mathx.Clamp(cfg.CAN.TWAI.TXGpio, -1, 39)
	cfg.CAN.TWAI.RXGpio = mathx.Clamp(cfg.CAN.TWAI.RXGpio, -1, 39)
	cfg.CAN.Keepalive.IntervalMs = mathx.Clamp(cfg.CAN.Keepalive.IntervalMs, 10, 600000)
	cfg.CAN.Keepalive.TimeoutMs = mathx.Clamp(cfg.CAN.Keepalive.TimeoutMs, 100, 600000)
	cfg.CAN.Keepalive.RetryMs = mathx.Clamp(cfg.CAN.Keepalive.RetryMs, 10, 600000)
	cfg.CAN.Publisher.PeriodMs = mathx.Clamp(cfg.CAN.Publisher.PeriodMs, 1, 600000)

	cfg.MQTT.DefaultQOS = mathx.Clamp(cfg.MQTT.DefaultQOS, 0, 2)
}

// validate checks the structural constraints clamp cannot express by
// simply narrowing a range (topic length, a non-empty device name),
// returning InvalidArgument on the first violation.
func validate(cfg *types.Config) error {
	if cfg.Device.Name == "" {
		return &errcode.E{C: errcode.InvalidArgument, Op: "config.validate", Msg: "device name must not be empty"}
	}
	topics := []struct {
		name, value string
	}{
		{"status", cfg.MQTT.Topics.Status},
		{"metrics", cfg.MQTT.Topics.Metrics},
		{"config", cfg.MQTT.Topics.Config},
		{"can_raw", cfg.MQTT.Topics.CanRaw},
		{"can_decoded", cfg.MQTT.Topics.CanDecoded},
		{"can_ready", cfg.MQTT.Topics.CanReady},
	}
	for _, t := range topics {
		if len(t.value) > maxTopicLen {
			return &errcode.E{C: errcode.InvalidArgument, Op: "config.validate", Msg: "topic " + t.name + " exceeds 96 bytes"}
		}
	}
	return nil
}
