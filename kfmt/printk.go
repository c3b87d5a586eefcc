// Package kfmt implements printk, the kernel's allocation-conscious
// formatted-output facility, grounded on gopher-os's
// kernel/kfmt/early/early_fmt.go. Unlike that early-boot formatter (which
// supports only {d,o,x,s,t} because the Go runtime is not yet initialized),
// this kernel calls printk after the heap allocator and goroutine runtime
// are up, so it implements the full conversion set a kernel logger needs:
// {d,i,u,o,x,X,c,s,p,%} plus l/ll length modifiers, width, precision and
// the flags -,+,space,#,0. Unknown conversions are echoed literally.
package kfmt

import (
	"io"
	"strconv"
	"strings"
)

// Sink is where printk writes formatted output. The VGA text console sets
// this during boot; tests redirect it to a strings.Builder.
var Sink io.Writer = discard{}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

// SetSink installs w as the active printk destination.
func SetSink(w io.Writer) { Sink = w }

// Printf formats according to format and writes to Sink.
func Printf(format string, args ...interface{}) {
	Fprintf(Sink, format, args...)
}

// Sprintf formats according to format and returns the result as a string.
func Sprintf(format string, args ...interface{}) string {
	var b strings.Builder
	Fprintf(&b, format, args...)
	return b.String()
}

type flags struct {
	minus bool
	plus  bool
	space bool
	hash  bool
	zero  bool
	width int
	prec  int
	hasW  bool
	hasP  bool
	long  int // 0, 1 (l) or 2 (ll)
}

// Fprintf formats according to format and writes the result to w.
func Fprintf(w io.Writer, format string, args ...interface{}) {
	argi := 0
	nextArg := func() (interface{}, bool) {
		if argi >= len(args) {
			return nil, false
		}
		a := args[argi]
		argi++
		return a, true
	}

	i, n := 0, len(format)
	for i < n {
		c := format[i]
		if c != '%' {
			io.WriteString(w, string(c))
			i++
			continue
		}
		i++
		if i >= n {
			io.WriteString(w, "%!(NOVERB)")
			break
		}
		if format[i] == '%' {
			io.WriteString(w, "%")
			i++
			continue
		}

		var fl flags
		// flags
	flagLoop:
		for i < n {
			switch format[i] {
			case '-':
				fl.minus = true
			case '+':
				fl.plus = true
			case ' ':
				fl.space = true
			case '#':
				fl.hash = true
			case '0':
				fl.zero = true
			default:
				break flagLoop
			}
			i++
		}
		// width
		if i < n && format[i] == '*' {
			if v, ok := nextArg(); ok {
				fl.width = toInt(v)
				fl.hasW = true
			}
			i++
		} else {
			start := i
			for i < n && format[i] >= '0' && format[i] <= '9' {
				i++
			}
			if i > start {
				fl.width, _ = strconv.Atoi(format[start:i])
				fl.hasW = true
			}
		}
		// precision
		if i < n && format[i] == '.' {
			i++
			if i < n && format[i] == '*' {
				if v, ok := nextArg(); ok {
					fl.prec = toInt(v)
					fl.hasP = true
				}
				i++
			} else {
				start := i
				for i < n && format[i] >= '0' && format[i] <= '9' {
					i++
				}
				fl.prec, _ = strconv.Atoi(format[start:i])
				fl.hasP = true
			}
		}
		// length modifiers l / ll
		for i < n && format[i] == 'l' {
			fl.long++
			i++
		}
		if i >= n {
			io.WriteString(w, "%!(NOVERB)")
			break
		}
		verb := format[i]
		i++

		switch verb {
		case 'd', 'i':
			v, ok := nextArg()
			if !ok {
				io.WriteString(w, "%!(MISSING)")
				continue
			}
			writeSigned(w, toInt64(v), 10, fl, false)
		case 'u':
			v, ok := nextArg()
			if !ok {
				io.WriteString(w, "%!(MISSING)")
				continue
			}
			writeUnsigned(w, toUint64(v), 10, false, fl)
		case 'o':
			v, ok := nextArg()
			if !ok {
				io.WriteString(w, "%!(MISSING)")
				continue
			}
			writeUnsigned(w, toUint64(v), 8, false, fl)
		case 'x':
			v, ok := nextArg()
			if !ok {
				io.WriteString(w, "%!(MISSING)")
				continue
			}
			writeUnsigned(w, toUint64(v), 16, false, fl)
		case 'X':
			v, ok := nextArg()
			if !ok {
				io.WriteString(w, "%!(MISSING)")
				continue
			}
			writeUnsigned(w, toUint64(v), 16, true, fl)
		case 'c':
			v, ok := nextArg()
			if !ok {
				io.WriteString(w, "%!(MISSING)")
				continue
			}
			pad(w, fl, 1, func() { io.WriteString(w, string(rune(toInt64(v)))) })
		case 's':
			v, ok := nextArg()
			if !ok {
				io.WriteString(w, "%!(MISSING)")
				continue
			}
			s := toString(v)
			if fl.hasP && fl.prec < len(s) {
				s = s[:fl.prec]
			}
			pad(w, fl, len(s), func() { io.WriteString(w, s) })
		case 'p':
			v, ok := nextArg()
			if !ok {
				io.WriteString(w, "%!(MISSING)")
				continue
			}
			s := "0x" + strconv.FormatUint(toUint64(v), 16)
			pad(w, fl, len(s), func() { io.WriteString(w, s) })
		default:
			// Unknown conversions are echoed literally.
			io.WriteString(w, "%")
			if fl.long > 0 {
				io.WriteString(w, strings.Repeat("l", fl.long))
			}
			io.WriteString(w, string(verb))
		}
	}
}

func pad(w io.Writer, fl flags, contentLen int, body func()) {
	padLen := 0
	if fl.hasW && fl.width > contentLen {
		padLen = fl.width - contentLen
	}
	if !fl.minus {
		for i := 0; i < padLen; i++ {
			io.WriteString(w, " ")
		}
		body()
	} else {
		body()
		for i := 0; i < padLen; i++ {
			io.WriteString(w, " ")
		}
	}
}

func writeSigned(w io.Writer, v int64, base int, fl flags, upper bool) {
	neg := v < 0
	uv := uint64(v)
	if neg {
		uv = uint64(-v)
	}
	digits := strconv.FormatUint(uv, base)
	if upper {
		digits = strings.ToUpper(digits)
	}
	sign := ""
	if neg {
		sign = "-"
	} else if fl.plus {
		sign = "+"
	} else if fl.space {
		sign = " "
	}
	content := sign + digits
	padLen := 0
	if fl.hasW && fl.width > len(content) {
		padLen = fl.width - len(content)
	}
	if fl.zero && !fl.minus && padLen > 0 {
		io.WriteString(w, sign)
		io.WriteString(w, strings.Repeat("0", padLen))
		io.WriteString(w, digits)
		return
	}
	pad(w, fl, len(content), func() { io.WriteString(w, content) })
}

func writeUnsigned(w io.Writer, v uint64, base int, upper bool, fl flags) {
	digits := strconv.FormatUint(v, base)
	if upper {
		digits = strings.ToUpper(digits)
	}
	prefix := ""
	if fl.hash {
		switch base {
		case 8:
			if digits[0] != '0' {
				prefix = "0"
			}
		case 16:
			if upper {
				prefix = "0X"
			} else {
				prefix = "0x"
			}
		}
	}
	content := prefix + digits
	padLen := 0
	if fl.hasW && fl.width > len(content) {
		padLen = fl.width - len(content)
	}
	if fl.zero && !fl.minus && padLen > 0 {
		io.WriteString(w, prefix)
		io.WriteString(w, strings.Repeat("0", padLen))
		io.WriteString(w, digits)
		return
	}
	pad(w, fl, len(content), func() { io.WriteString(w, content) })
}

func toInt(v interface{}) int {
	return int(toInt64(v))
}

func toInt64(v interface{}) int64 {
	switch x := v.(type) {
	case int:
		return int64(x)
	case int8:
		return int64(x)
	case int16:
		return int64(x)
	case int32:
		return int64(x)
	case int64:
		return x
	case uint:
		return int64(x)
	case uint8:
		return int64(x)
	case uint16:
		return int64(x)
	case uint32:
		return int64(x)
	case uint64:
		return int64(x)
	case uintptr:
		return int64(x)
	default:
		return 0
	}
}

func toUint64(v interface{}) uint64 {
	switch x := v.(type) {
	case int:
		return uint64(x)
	case int8:
		return uint64(x)
	case int16:
		return uint64(x)
	case int32:
		return uint64(x)
	case int64:
		return uint64(x)
	case uint:
		return uint64(x)
	case uint8:
		return uint64(x)
	case uint16:
		return uint64(x)
	case uint32:
		return uint64(x)
	case uint64:
		return x
	case uintptr:
		return uint64(x)
	default:
		return 0
	}
}

func toString(v interface{}) string {
	switch x := v.(type) {
	case string:
		return x
	case []byte:
		return string(x)
	case fmtStringer:
		return x.String()
	default:
		return ""
	}
}

type fmtStringer interface {
	String() string
}
