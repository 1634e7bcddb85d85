package physiology

import (
	"fmt"
	"strings"
)

type Hormone int

const (
	T4 Hormone = iota
	T3
)

// Molar masses in g/mol; µg divided by these gives µmol.
const (
	T4MolarMass = 777.0
	T3MolarMass = 651.0
)

func (h Hormone) String() string {
	switch h {
	case T4:
		return "T4"
	case T3:
		return "T3"
	default:
		return fmt.Sprintf("Hormone(%d)", int(h))
	}
}

// MolarMass returns the hormone's molar mass in g/mol.
func (h Hormone) MolarMass() float64 {
	if h == T3 {
		return T3MolarMass
	}
	return T4MolarMass
}

// ToPool converts a mass in µg to pool units (µmol).
func (h Hormone) ToPool(micrograms float64) float64 {
	return micrograms / h.MolarMass()
}

func ParseHormone(s string) (Hormone, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "T4":
		return T4, nil
	case "T3":
		return T3, nil
	default:
		return 0, fmt.Errorf("unknown hormone: %s", s)
	}
}

func (h Hormone) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

func (h *Hormone) UnmarshalText(b []byte) error {
	v, err := ParseHormone(string(b))
	if err != nil {
		return err
	}
	*h = v
	return nil
}
