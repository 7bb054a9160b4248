package types

// Sample is a timestamped aggregation of derived BMS fields, produced each
// poll cycle. Its lifetime ends when the next sample is produced (§3).
type Sample struct {
	TSMs int64

	PackVoltageV float64
	PackCurrentA float64 // positive = charge
	MinCellMV    uint16
	MaxCellMV    uint16
	SOCPercent   float64
	SOHPercent   float64

	MOSFETTempC  float64
	TempsC       [3]float64 // three temperature sensors, NaN = not connected
	BalancingBits uint16
	AlarmBits     uint16
	WarningBits   uint16

	CellVoltagesMV []uint16 // length == series cell count
	DetectedCells  uint8

	CapacityAh     float64
	LifetimeCounter uint32
	TimeLeftS       uint32
	OnlineStatus    uint16

	FirmwareVersion  uint16
	HardwareVersion  uint16
	BootloaderVer    uint16
	ProfileID        uint16
	SerialNumber     [12]byte // 96-bit serial across six 16-bit words
}
