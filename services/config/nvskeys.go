package config

import "github.com/jangala-dev/tinybms-gateway/types"

// NVS keys (§6 "Persisted state layout"). device_name is not in the
// spec's literal key list, which only calls out the runtime-mutable
// MQTT/UART/WiFi-secret fields; it is added here so a device rename
// survives a restart, since nothing else in the persisted layout could
// recover it.
const (
	keyDeviceName  = "device_name"
	keyUARTPoll    = "uart_poll"
	keyMQTTURI     = "mqtt_uri"
	keyMQTTUser    = "mqtt_user"
	keyMQTTPass    = "mqtt_pass"
	keyMQTTKeepalv = "mqtt_keepalive"
	keyMQTTQOS     = "mqtt_qos"
	keyMQTTRetain  = "mqtt_retain"
	keyMQTTTLSCli  = "mqtt_tls_cli"
	keyMQTTTLSCA   = "mqtt_tls_ca"
	keyMQTTTLSVrf  = "mqtt_tls_vrf"
	keyMQTTTStat   = "mqtt_t_stat"
	keyMQTTTMet    = "mqtt_t_met"
	keyMQTTTCfg    = "mqtt_t_cfg"
	keyMQTTTCrw    = "mqtt_t_crw"
	keyMQTTTCdc    = "mqtt_t_cdc"
	keyMQTTTCrd    = "mqtt_t_crd"
	keyWiFiAPSecret = "wifi_ap_secret"
)

func encodeU32(v uint32) []byte {
	return []byte{byte(v >> 24), byte(v >> 16), byte(v >> 8), byte(v)}
}

func decodeU32(b []byte) (uint32, bool) {
	if len(b) != 4 {
		return 0, false
	}
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3]), true
}

func encodeBool(v bool) []byte {
	if v {
		return []byte{1}
	}
	return []byte{0}
}

func decodeBool(b []byte) (bool, bool) {
	if len(b) != 1 {
		return false, false
	}
	return b[0] != 0, true
}

// persist writes every NVS-backed field of cfg (§6 "Persisted state
// layout"); per-register and energy-counter keys are owned by
// internal/cache and internal/energy respectively and are not touched
// here.
func (m *Manager) persist(cfg *types.Config) error {
	sets := []struct {
		key   string
		value []byte
	}{
		{keyDeviceName, []byte(cfg.Device.Name)},
		{keyUARTPoll, encodeU32(cfg.UART.PollIntervalMs)},
		{keyMQTTURI, []byte(cfg.MQTT.BrokerURI)},
		{keyMQTTUser, []byte(cfg.MQTT.Username)},
		{keyMQTTPass, []byte(cfg.MQTT.Password)},
		{keyMQTTKeepalv, encodeU32(cfg.MQTT.KeepaliveS)},
		{keyMQTTQOS, []byte{cfg.MQTT.DefaultQOS}},
		{keyMQTTRetain, encodeBool(cfg.MQTT.Retain)},
		{keyMQTTTLSCli, []byte(cfg.MQTT.ClientCertPath)},
		{keyMQTTTLSCA, []byte(cfg.MQTT.CACertPath)},
		{keyMQTTTLSVrf, encodeBool(cfg.MQTT.VerifyHostname)},
		{keyMQTTTStat, []byte(cfg.MQTT.Topics.Status)},
		{keyMQTTTMet, []byte(cfg.MQTT.Topics.Metrics)},
		{keyMQTTTCfg, []byte(cfg.MQTT.Topics.Config)},
		{keyMQTTTCrw, []byte(cfg.MQTT.Topics.CanRaw)},
		{keyMQTTTCdc, []byte(cfg.MQTT.Topics.CanDecoded)},
		{keyMQTTTCrd, []byte(cfg.MQTT.Topics.CanReady)},
		{keyWiFiAPSecret, []byte(cfg.WiFi.AP.Password)},
	}
	for _, s := range sets {
		if err := m.store.Set(s.key, s.value); err != nil {
			return err
		}
	}
	return nil
}

// overlayFromStore reads back every key persist writes and, where
// present, overwrites the matching field of cfg.
func (m *Manager) overlayFromStore(cfg *types.Config) error {
	getStr := func(key string, dst *string) error {
		v, ok, err := m.store.Get(key)
		if err != nil {
			return err
		}
		if ok {
			*dst = string(v)
		}
		return nil
	}
	getU32 := func(key string, dst *uint32) error {
		v, ok, err := m.store.Get(key)
		if err != nil {
			return err
		}
		if ok {
			if n, valid := decodeU32(v); valid {
				*dst = n
			}
		}
		return nil
	}
	getBool := func(key string, dst *bool) error {
		v, ok, err := m.store.Get(key)
		if err != nil {
			return err
		}
		if ok {
			if b, valid := decodeBool(v); valid {
				*dst = b
			}
		}
		return nil
	}

	if err := getStr(keyDeviceName, &cfg.Device.Name); err != nil {
		return err
	}
	if err := getU32(keyUARTPoll, &cfg.UART.PollIntervalMs); err != nil {
		return err
	}
	if err := getStr(keyMQTTURI, &cfg.MQTT.BrokerURI); err != nil {
		return err
	}
	if err := getStr(keyMQTTUser, &cfg.MQTT.Username); err != nil {
		return err
	}
	if err := getStr(keyMQTTPass, &cfg.MQTT.Password); err != nil {
		return err
	}
	if err := getU32(keyMQTTKeepalv, &cfg.MQTT.KeepaliveS); err != nil {
		return err
	}
	if v, ok, err := m.store.Get(keyMQTTQOS); err != nil {
		return err
	} else if ok && len(v) == 1 {
		cfg.MQTT.DefaultQOS = v[0]
	}
	if err := getBool(keyMQTTRetain, &cfg.MQTT.Retain); err != nil {
		return err
	}
	if err := getStr(keyMQTTTLSCli, &cfg.MQTT.ClientCertPath); err != nil {
		return err
	}
	if err := getStr(keyMQTTTLSCA, &cfg.MQTT.CACertPath); err != nil {
		return err
	}
	if err := getBool(keyMQTTTLSVrf, &cfg.MQTT.VerifyHostname); err != nil {
		return err
	}
	if err := getStr(keyMQTTTStat, &cfg.MQTT.Topics.Status); err != nil {
		return err
	}
	if err := getStr(keyMQTTTMet, &cfg.MQTT.Topics.Metrics); err != nil {
		return err
	}
	if err := getStr(keyMQTTTCfg, &cfg.MQTT.Topics.Config); err != nil {
		return err
	}
	if err := getStr(keyMQTTTCrw, &cfg.MQTT.Topics.CanRaw); err != nil {
		return err
	}
	if err := getStr(keyMQTTTCdc, &cfg.MQTT.Topics.CanDecoded); err != nil {
		return err
	}
	if err := getStr(keyMQTTTCrd, &cfg.MQTT.Topics.CanReady); err != nil {
		return err
	}
	if err := getStr(keyWiFiAPSecret, &cfg.WiFi.AP.Password); err != nil {
		return err
	}
	return nil
}
