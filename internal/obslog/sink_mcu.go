//go:build rp2040 || rp2350

package obslog

import "github.com/jangala-dev/tinybms-gateway/x/shmring"

// uart1 is the optional console mirror, set once at board bring-up via
// SetUART1 (mirrors the teacher's Logger.SetUART1).
var uart1 *shmring.Ring

// SetUART1 wires a ring buffer as the UART1 mirror for every Logger.
// Call once during platform bring-up; nil disables the mirror.
func SetUART1(r *shmring.Ring) { uart1 = r }

func writeString(s string) {
	if s == "" {
		return
	}
	print(s)
	if uart1 != nil {
		uart1.TryWriteFrom([]byte(s))
	}
}

func writeBytes(b []byte) {
	if len(b) == 0 {
		return
	}
	print(string(b))
	if uart1 != nil {
		uart1.TryWriteFrom(b)
	}
}
