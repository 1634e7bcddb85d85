package dose

import (
	"fmt"
	"math"
	"strings"

	"github.com/san-kum/thyrosim/internal/dynamo"
	"github.com/san-kum/thyrosim/internal/physiology"
)

type Kind int

const (
	OralSingle Kind = iota
	OralRepeating
	IVBolus
	Infusion
)

func (k Kind) String() string {
	switch k {
	case OralSingle:
		return "oral"
	case OralRepeating:
		return "oral-repeating"
	case IVBolus:
		return "iv"
	case Infusion:
		return "infusion"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "oral", "oral-single":
		return OralSingle, nil
	case "oral-repeating", "repeating":
		return OralRepeating, nil
	case "iv", "bolus", "iv-bolus":
		return IVBolus, nil
	case "infusion":
		return Infusion, nil
	default:
		return 0, fmt.Errorf("unknown dose kind: %s", s)
	}
}

func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *Kind) UnmarshalText(b []byte) error {
	v, err := ParseKind(string(b))
	if err != nil {
		return err
	}
	*k = v
	return nil
}

// Dose is one exogenous administration. Amount is in µg and times are in
// days from the start of the run. End applies to repeating oral doses and
// infusions, Interval only to repeating oral doses.
type Dose struct {
	Kind     Kind               `json:"kind" yaml:"kind"`
	Hormone  physiology.Hormone `json:"hormone" yaml:"hormone"`
	Amount   float64            `json:"amount" yaml:"amount"`
	Start    float64            `json:"start" yaml:"start"`
	End      float64            `json:"end,omitempty" yaml:"end,omitempty"`
	Interval float64            `json:"interval,omitempty" yaml:"interval,omitempty"`
}

func NewOral(h physiology.Hormone, amount, start float64) Dose {
	return Dose{Kind: OralSingle, Hormone: h, Amount: amount, Start: start}
}

func NewOralRepeating(h physiology.Hormone, amount, start, end, interval float64) Dose {
	return Dose{Kind: OralRepeating, Hormone: h, Amount: amount, Start: start, End: end, Interval: interval}
}

func NewBolus(h physiology.Hormone, amount, start float64) Dose {
	return Dose{Kind: IVBolus, Hormone: h, Amount: amount, Start: start}
}

func NewInfusion(h physiology.Hormone, amount, start, end float64) Dose {
	return Dose{Kind: Infusion, Hormone: h, Amount: amount, Start: start, End: end}
}

func (d Dose) Validate() error {
	if d.Hormone != physiology.T4 && d.Hormone != physiology.T3 {
		return dynamo.InvalidParameter("dose has unknown hormone %d", int(d.Hormone))
	}
	if !finite(d.Amount) || d.Amount <= 0 {
		return dynamo.InvalidParameter("%s dose amount must be positive, got %v", d.Kind, d.Amount)
	}
	if !finite(d.Start) || d.Start < 0 {
		return dynamo.InvalidParameter("%s dose start must be >= 0, got %v", d.Kind, d.Start)
	}

	switch d.Kind {
	case OralSingle, IVBolus:
	case OralRepeating:
		if !finite(d.End) || d.End <= d.Start {
			return dynamo.InvalidParameter("repeating dose end %v must be after start %v", d.End, d.Start)
		}
		if !finite(d.Interval) || d.Interval <= 0 {
			return dynamo.InvalidParameter("repeating dose interval must be positive, got %v", d.Interval)
		}
		if (d.End-d.Start)/d.Interval >= MaxTicks {
			return dynamo.InvalidParameter("repeating dose has more than %d administrations (interval %v over %v days)", MaxTicks, d.Interval, d.End-d.Start)
		}
	case Infusion:
		if !finite(d.End) || d.End <= d.Start {
			return dynamo.InvalidParameter("infusion end %v must be after start %v", d.End, d.Start)
		}
	default:
		return dynamo.InvalidParameter("unknown dose kind %d", int(d.Kind))
	}
	return nil
}

// MaxTicks bounds the administrations of one repeating oral dose.
const MaxTicks = 100000

// Ticks returns the administration times of an oral dose.
func (d Dose) Ticks() []float64 {
	var ticks []float64
	d.eachTick(func(tick float64) bool {
		ticks = append(ticks, tick)
		return true
	})
	return ticks
}

// eachTick calls fn for every administration time in order until fn returns
// false. At most MaxTicks times are visited.
func (d Dose) eachTick(fn func(tick float64) bool) {
	switch d.Kind {
	case OralSingle:
		fn(d.Start)
	case OralRepeating:
		if !(d.Interval > 0) {
			return
		}
		last := (d.End-d.Start)/d.Interval + 1e-9
		for k := 0; k < MaxTicks && float64(k) <= last; k++ {
			if !fn(d.Start + float64(k)*d.Interval) {
				return
			}
		}
	}
}

func (d Dose) String() string {
	switch d.Kind {
	case OralRepeating:
		return fmt.Sprintf("%s %s %gµg every %gd from %gd to %gd", d.Hormone, d.Kind, d.Amount, d.Interval, d.Start, d.End)
	case Infusion:
		return fmt.Sprintf("%s %s %gµg over %gd-%gd", d.Hormone, d.Kind, d.Amount, d.Start, d.End)
	default:
		return fmt.Sprintf("%s %s %gµg at %gd", d.Hormone, d.Kind, d.Amount, d.Start)
	}
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
