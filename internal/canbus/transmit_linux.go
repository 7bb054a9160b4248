//go:build linux

package canbus

import "github.com/brutella/can"

// socketCANDriver binds Driver to a real SocketCAN interface via
// github.com/brutella/can, the pack's chosen CAN library (see
// DESIGN.md). Bus.Publish blocks on the kernel socket, which is the
// suspension point §5 names for CAN TX.
type socketCANDriver struct {
	bus *can.Bus
}

// NewSocketCANDriver opens iface (e.g. "can0") and returns a Driver.
// The underlying bus is not exposed and its ConnectAndPublish receive
// loop is never started, so the driver transmits only; no frames are
// received (§4.6 names 0x307 as the only received frame).
func NewSocketCANDriver(iface string) (Driver, error) {
	bus, err := can.NewBusForInterfaceWithName(iface)
	if err != nil {
		return nil, busErr("canbus.open", err)
	}
	return &socketCANDriver{bus: bus}, nil
}

func (d *socketCANDriver) Transmit(f Frame) error {
	frame := can.Frame{
		ID:     f.ID,
		Length: f.DLC,
		Flags:  0,
		Res0:   0,
		Res1:   0,
		Data:   f.Data,
	}
	if err := d.bus.Publish(frame); err != nil {
		return busErr("canbus.transmit", err)
	}
	return nil
}
