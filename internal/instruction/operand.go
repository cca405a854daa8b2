package instruction

import (
	"fmt"
	"strconv"
	"strings"
)

// Selector picks the part of a resolved operand value that is used.
type Selector uint8

// Operand selectors.
const (
	Full Selector = iota
	LowByte
	HighByte
)

// Resolver maps symbol names to addresses.
type Resolver interface {
	Resolve(name string) (uint16, error)
}

// Operand is a literal value or a reference to a symbol that is resolved
// when the instruction is encoded.
type Operand struct {
	Value  uint16
	Symbol string
	Offset int
	Select Selector
}

// Literal returns an operand with a fixed value.
func Literal(value uint16) Operand {
	return Operand{Value: value}
}

// Symbol returns an operand that references a named address.
func Symbol(name string) Operand {
	return Operand{Symbol: name}
}

// Plus returns the operand displaced by n bytes.
func (o Operand) Plus(n int) Operand {
	if o.Symbol == "" {
		o.Value = uint16(int(o.Value) + n)
		return o
	}
	o.Offset += n
	return o
}

// Low returns the low byte of the operand.
func (o Operand) Low() Operand {
	o.Select = LowByte
	return o
}

// High returns the high byte of the operand.
func (o Operand) High() Operand {
	o.Select = HighByte
	return o
}

// IsSymbolic returns whether the operand needs a resolver.
func (o Operand) IsSymbolic() bool {
	return o.Symbol != ""
}

// Resolve returns the value of the operand. Address arithmetic wraps at
// 16 bits.
func (o Operand) Resolve(resolver Resolver) (uint16, error) {
	value := o.Value
	if o.Symbol != "" {
		if resolver == nil {
			return 0, fmt.Errorf("resolving operand '%s': no resolver", o.Symbol)
		}
		address, err := resolver.Resolve(o.Symbol)
		if err != nil {
			return 0, err
		}
		value = uint16(int(address) + o.Offset)
	}

	switch o.Select {
	case LowByte:
		return value & 0xff, nil
	case HighByte:
		return value >> 8, nil
	default:
		return value, nil
	}
}

// String returns the operand in assembler notation.
func (o Operand) String() string {
	var sb strings.Builder
	switch o.Select {
	case LowByte:
		sb.WriteByte('<')
	case HighByte:
		sb.WriteByte('>')
	}

	if o.Symbol == "" {
		if o.Select == Full && o.Value > 0xff {
			fmt.Fprintf(&sb, "$%04x", o.Value)
		} else {
			fmt.Fprintf(&sb, "$%02x", o.Value)
		}
		return sb.String()
	}

	sb.WriteString(o.Symbol)
	switch {
	case o.Offset > 0:
		fmt.Fprintf(&sb, "+%d", o.Offset)
	case o.Offset < 0:
		fmt.Fprintf(&sb, "-%d", -o.Offset)
	}
	return sb.String()
}

// ParseOperand parses a numeric literal or a symbol reference. Accepted forms
// are $hex, 0xhex, %binary, decimal and name, each optionally followed by +N
// or -N, and a leading < or > to select the low or high byte.
func ParseOperand(s string) (Operand, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Operand{}, &InvalidOperandError{Operand: s, Reason: "empty operand"}
	}

	selector := Full
	switch s[0] {
	case '<':
		selector = LowByte
		s = s[1:]
	case '>':
		selector = HighByte
		s = s[1:]
	}

	name := s
	offset := 0
	if i := strings.IndexAny(s, "+-"); i > 0 {
		name = s[:i]
		n, err := strconv.Atoi(s[i+1:])
		if err != nil {
			return Operand{}, &InvalidOperandError{Operand: s, Reason: "invalid offset"}
		}
		offset = n
		if s[i] == '-' {
			offset = -n
		}
	}

	if value, ok, err := parseNumber(name); ok {
		if err != nil {
			return Operand{}, &InvalidOperandError{Operand: s, Reason: err.Error()}
		}
		return Operand{Value: uint16(int(value) + offset), Select: selector}, nil
	}
	if !validSymbolName(name) {
		return Operand{}, &InvalidOperandError{Operand: s, Reason: "invalid symbol name"}
	}
	return Operand{Symbol: name, Offset: offset, Select: selector}, nil
}

// parseNumber returns ok when s looks like a number.
func parseNumber(s string) (uint16, bool, error) {
	var (
		digits string
		base   int
	)
	switch {
	case strings.HasPrefix(s, "$"):
		digits, base = s[1:], 16
	case strings.HasPrefix(s, "0x"), strings.HasPrefix(s, "0X"):
		digits, base = s[2:], 16
	case strings.HasPrefix(s, "%"):
		digits, base = s[1:], 2
	case s[0] >= '0' && s[0] <= '9':
		digits, base = s, 10
	default:
		return 0, false, nil
	}

	value, err := strconv.ParseUint(digits, base, 16)
	if err != nil {
		return 0, true, fmt.Errorf("parsing number '%s': %w", s, err)
	}
	return uint16(value), true, nil
}

func validSymbolName(name string) bool {
	if name == "" {
		return false
	}
	for i, c := range name {
		switch {
		case c == '_', c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}
