// Package obslog is a small, allocation-light logger in the same style
// as the teacher's main.go Logger: parts written directly, no format
// string parsing, a console/UART mirror on embedded builds. Every
// component logs through a *Logger instead of fmt.Printf/log.Printf.
package obslog

import "github.com/jangala-dev/tinybms-gateway/x/strconvx"

// Logger mirrors Print/Println calls to whatever sink the build tag
// wires up (os.Stderr on host, console + UART1 ring on MCU targets).
type Logger struct {
	prefix string
}

// New returns a Logger that prefixes every line with tag, e.g. "canbus".
func New(tag string) *Logger {
	return &Logger{prefix: tag}
}

// With returns a derived Logger scoped to a sub-tag, e.g.
// obslog.New("canbus").With("publisher").
func (l *Logger) With(tag string) *Logger {
	if l.prefix == "" {
		return &Logger{prefix: tag}
	}
	return &Logger{prefix: l.prefix + "." + tag}
}

func (l *Logger) Print(parts ...any) {
	if l.prefix != "" {
		writeString("[" + l.prefix + "] ")
	}
	for i := range parts {
		writePart(parts[i])
	}
}

func (l *Logger) Println(parts ...any) {
	l.Print(parts...)
	writeString("\n")
}

// Deci prints a fixed-point value given as tenths, e.g. Deci("temp=", -123)
// prints "temp=-12.3".
func (l *Logger) Deci(label string, deci int) {
	neg := deci < 0
	if neg {
		deci = -deci
	}
	whole := deci / 10
	frac := deci % 10
	if neg {
		l.Println(label, "-", strconvx.Itoa(whole), ".", strconvx.Itoa(frac))
		return
	}
	l.Println(label, strconvx.Itoa(whole), ".", strconvx.Itoa(frac))
}

func writePart(v any) {
	switch x := v.(type) {
	case string:
		writeString(x)
	case []byte:
		writeBytes(x)
	case error:
		writeString(x.Error())
	case int:
		writeString(strconvx.Itoa(x))
	case int32:
		writeString(strconvx.Itoa(int(x)))
	case int64:
		writeString(strconvx.Itoa(int(x)))
	case uint:
		writeString(strconvx.Itoa(int(x)))
	case uint32:
		writeString(strconvx.Itoa(int(x)))
	case uint64:
		writeString(strconvx.Itoa(int(x)))
	case bool:
		if x {
			writeString("true")
		} else {
			writeString("false")
		}
	default:
		writeString("?")
	}
}
