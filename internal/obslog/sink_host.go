//go:build !(rp2040 || rp2350)

package obslog

import (
	"os"
)

func writeString(s string) {
	if s == "" {
		return
	}
	_, _ = os.Stderr.WriteString(s)
}

func writeBytes(b []byte) {
	if len(b) == 0 {
		return
	}
	_, _ = os.Stderr.Write(b)
}
