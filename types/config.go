package types

// Config is the config manager's full, immutable snapshot (§4.10, §6).
// GetFull returns it verbatim; GetPublic returns a copy with Secrets
// masked to "********".
type Config struct {
	Device DeviceConfig `json:"device"`
	UART   UARTConfig   `json:"uart"`
	WiFi   WiFiConfig   `json:"wifi"`
	CAN    CANConfig    `json:"can"`
	MQTT   MQTTConfig   `json:"mqtt"`
}

type DeviceConfig struct {
	Name string `json:"name"`
}

type UARTConfig struct {
	TXGpio            int    `json:"tx_gpio"`
	RXGpio            int    `json:"rx_gpio"`
	// Device and Baud address the host-build transport (tarm/serial),
	// which dials a path/baud pair rather than GPIO pins; TXGpio/RXGpio
	// apply to the embedded-build transport instead. Not part of the
	// spec's literal GPIO-oriented schema, added so a host build can
	// actually open a line (see DESIGN.md).
	Device            string `json:"device,omitempty"`
	Baud              int    `json:"baud,omitempty"`
	PollIntervalMs    uint32 `json:"poll_interval_ms"`
	PollIntervalMinMs uint32 `json:"poll_interval_min_ms"`
	PollIntervalMaxMs uint32 `json:"poll_interval_max_ms"`
}

type WiFiSTAConfig struct {
	SSID     string `json:"ssid"`
	Password string `json:"password"`
	Hostname string `json:"hostname"`
	MaxRetry uint8  `json:"max_retry"`
}

type WiFiAPConfig struct {
	SSID       string `json:"ssid"`
	Password   string `json:"password"`
	Channel    uint8  `json:"channel"`
	MaxClients uint8  `json:"max_clients"`
}

type WiFiConfig struct {
	STA WiFiSTAConfig `json:"sta"`
	AP  WiFiAPConfig  `json:"ap"`
}

type CANTWAIConfig struct {
	TXGpio int `json:"tx_gpio"`
	RXGpio int `json:"rx_gpio"`
	// Interface names the host-build SocketCAN device (e.g. "can0");
	// unused on the TinyGo TWAI transport, which dials TXGpio/RXGpio
	// instead. Added for the same reason as UARTConfig.Device (see
	// DESIGN.md).
	Interface string `json:"interface,omitempty"`
}

type CANKeepaliveConfig struct {
	IntervalMs uint32 `json:"interval_ms"`
	TimeoutMs  uint32 `json:"timeout_ms"`
	RetryMs    uint32 `json:"retry_ms"`
}

type CANPublisherConfig struct {
	PeriodMs uint32 `json:"period_ms"`
}

type CANIdentityConfig struct {
	HandshakeASCII string `json:"handshake_ascii"`
	Manufacturer   string `json:"manufacturer"`
	BatteryName    string `json:"battery_name"`
	BatteryFamily  string `json:"battery_family"`
	SerialNumber   string `json:"serial_number"`
}

type CANConfig struct {
	TWAI      CANTWAIConfig      `json:"twai"`
	Keepalive CANKeepaliveConfig `json:"keepalive"`
	Publisher CANPublisherConfig `json:"publisher"`
	Identity  CANIdentityConfig  `json:"identity"`
}

type MQTTTopicsConfig struct {
	Status     string `json:"status"`
	Metrics    string `json:"metrics"`
	Config     string `json:"config"`
	CanRaw     string `json:"can_raw"`
	CanDecoded string `json:"can_decoded"`
	CanReady   string `json:"can_ready"`
}

type MQTTConfig struct {
	Scheme          string           `json:"scheme"`
	BrokerURI       string           `json:"broker_uri"`
	Host            string           `json:"host"`
	Port            uint16           `json:"port"`
	Username        string           `json:"username"`
	Password        string           `json:"password"`
	ClientCertPath  string           `json:"client_cert_path"`
	CACertPath      string           `json:"ca_cert_path"`
	VerifyHostname  bool             `json:"verify_hostname"`
	KeepaliveS      uint32           `json:"keepalive"`
	DefaultQOS      uint8            `json:"default_qos"`
	Retain          bool             `json:"retain"`
	Topics          MQTTTopicsConfig `json:"topics"`
}

// Secret is the literal mask applied to every secret field in a public
// snapshot (§4.10, §8 scenario 9).
const Secret = "********"
