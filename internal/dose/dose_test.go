package dose

import (
	"errors"
	"math"
	"testing"

	"github.com/san-kum/thyrosim/internal/dynamo"
	"github.com/san-kum/thyrosim/internal/physiology"
)

func TestDoseValidate(t *testing.T) {
	tests := []struct {
		name string
		dose Dose
		ok   bool
	}{
		{"oral", NewOral(physiology.T4, 100, 0), true},
		{"repeating", NewOralRepeating(physiology.T4, 100, 0, 30, 1), true},
		{"bolus", NewBolus(physiology.T3, 10, 2.5), true},
		{"infusion", NewInfusion(physiology.T3, 10, 1, 2), true},
		{"zero amount", NewOral(physiology.T4, 0, 0), false},
		{"negative amount", NewBolus(physiology.T4, -5, 0), false},
		{"NaN amount", NewBolus(physiology.T4, math.NaN(), 0), false},
		{"negative start", NewOral(physiology.T4, 100, -1), false},
		{"repeating end before start", NewOralRepeating(physiology.T4, 100, 5, 5, 1), false},
		{"repeating zero interval", NewOralRepeating(physiology.T4, 100, 0, 5, 0), false},
		{"repeating at tick bound", NewOralRepeating(physiology.T4, 1, 0, 99999, 1), true},
		{"repeating over tick bound", NewOralRepeating(physiology.T4, 1, 0, 100000, 1), false},
		{"repeating tiny interval", NewOralRepeating(physiology.T4, 100, 0, 100, 1e-12), false},
		{"infusion end before start", NewInfusion(physiology.T4, 100, 3, 2), false},
		{"infusion infinite end", NewInfusion(physiology.T4, 100, 3, math.Inf(1)), false},
		{"unknown kind", Dose{Kind: Kind(9), Hormone: physiology.T4, Amount: 1}, false},
		{"unknown hormone", Dose{Kind: IVBolus, Hormone: physiology.Hormone(4), Amount: 1}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.dose.Validate()
			if tt.ok && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if !tt.ok && !errors.Is(err, dynamo.ErrInvalidParameter) {
				t.Errorf("expected ErrInvalidParameter, got %v", err)
			}
		})
	}
}

func TestDoseTicks(t *testing.T) {
	tests := []struct {
		name string
		dose Dose
		want []float64
	}{
		{"single", NewOral(physiology.T4, 1, 0.5), []float64{0.5}},
		{"inclusive end", NewOralRepeating(physiology.T4, 1, 0, 2, 1), []float64{0, 1, 2}},
		{"end between ticks", NewOralRepeating(physiology.T4, 1, 0, 2.5, 1), []float64{0, 1, 2}},
		{"fractional interval", NewOralRepeating(physiology.T4, 1, 0, 0.9, 0.3), []float64{0, 0.3, 0.6, 0.9}},
		{"bolus has none", NewBolus(physiology.T4, 1, 0), nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.dose.Ticks()
			if len(got) != len(tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
			for i := range got {
				if math.Abs(got[i]-tt.want[i]) > 1e-12 {
					t.Errorf("tick %d = %v, want %v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestNewScheduleRejectsInvalidDose(t *testing.T) {
	_, err := NewSchedule(DefaultAbsorption(), NewOral(physiology.T4, 100, 0), NewBolus(physiology.T4, 0, 1))
	if !errors.Is(err, dynamo.ErrInvalidParameter) {
		t.Errorf("expected ErrInvalidParameter, got %v", err)
	}

	_, err = NewSchedule(Absorption{T4: -1, T3: 88})
	if !errors.Is(err, dynamo.ErrInvalidParameter) {
		t.Errorf("expected ErrInvalidParameter for negative absorption, got %v", err)
	}
}

func TestScheduleIsImmutable(t *testing.T) {
	doses := []Dose{NewBolus(physiology.T4, 50, 1)}
	s, err := NewSchedule(DefaultAbsorption(), doses...)
	if err != nil {
		t.Fatal(err)
	}
	doses[0].Amount = 5000

	if got := s.Doses()[0].Amount; got != 50 {
		t.Errorf("schedule changed with caller slice: amount %v", got)
	}
	s.Doses()[0].Amount = 1
	if got := s.Doses()[0].Amount; got != 50 {
		t.Errorf("schedule changed through Doses(): amount %v", got)
	}
}

func delivered(s *Schedule, h physiology.Hormone, dt, horizon float64) float64 {
	total := 0.0
	steps := int(math.Floor(horizon/dt + 1e-9))
	for i := 0; i < steps; i++ {
		total += s.StepRate(h, float64(i)*dt, dt) * dt
	}
	return total
}

func TestBolusDeliveredOnceForAnyStep(t *testing.T) {
	s, err := NewSchedule(DefaultAbsorption(), NewBolus(physiology.T4, 10, 0.123))
	if err != nil {
		t.Fatal(err)
	}
	want := physiology.T4.ToPool(10)

	for _, dt := range []float64{0.01, 0.003, 0.07, 0.5} {
		got := delivered(s, physiology.T4, dt, 2)
		if math.Abs(got-want) > 1e-12 {
			t.Errorf("dt=%v: delivered %v, want %v", dt, got, want)
		}

		hits := 0
		for i := 0; i < int(2/dt); i++ {
			if s.StepRate(physiology.T4, float64(i)*dt, dt) > 0 {
				hits++
			}
		}
		if hits != 1 {
			t.Errorf("dt=%v: bolus hit %d steps", dt, hits)
		}
	}

	if s.InputRate(physiology.T4, 0.123) != 0 {
		t.Error("bolus should have no instantaneous rate")
	}
}

func TestBolusLandsOnNearestStep(t *testing.T) {
	s, _ := NewSchedule(DefaultAbsorption(), NewBolus(physiology.T4, 50, 1))
	dt := 0.01
	for i := 95; i < 105; i++ {
		rate := s.StepRate(physiology.T4, float64(i)*dt, dt)
		if i == 100 && rate == 0 {
			t.Error("expected bolus at step 100")
		}
		if i != 100 && rate != 0 {
			t.Errorf("unexpected input at step %d", i)
		}
	}
}

func TestInfusion(t *testing.T) {
	s, err := NewSchedule(DefaultAbsorption(), NewInfusion(physiology.T4, 10, 0.005, 0.333))
	if err != nil {
		t.Fatal(err)
	}
	pool := physiology.T4.ToPool(10)
	rate := pool / (0.333 - 0.005)

	if got := s.InputRate(physiology.T4, 0.1); math.Abs(got-rate) > 1e-15 {
		t.Errorf("rate inside window = %v, want %v", got, rate)
	}
	if got := s.InputRate(physiology.T4, 0.333); got != 0 {
		t.Errorf("rate at end = %v, want 0", got)
	}
	if got := s.InputRate(physiology.T4, 0.001); got != 0 {
		t.Errorf("rate before start = %v, want 0", got)
	}
	if got := s.InputRate(physiology.T3, 0.1); got != 0 {
		t.Errorf("T3 rate = %v, want 0", got)
	}

	for _, dt := range []float64{0.01, 0.004, 0.05} {
		if got := delivered(s, physiology.T4, dt, 1); math.Abs(got-pool) > 1e-12 {
			t.Errorf("dt=%v: delivered %v, want %v", dt, got, pool)
		}
	}
}

func TestOralAbsorption(t *testing.T) {
	abs := Absorption{T4: 80, T3: 100}
	s, err := NewSchedule(abs, NewOral(physiology.T4, 100, 0.5))
	if err != nil {
		t.Fatal(err)
	}
	pool := physiology.T4.ToPool(100)

	if got := s.InputRate(physiology.T4, 0.49); got != 0 {
		t.Errorf("rate before dose = %v", got)
	}
	peak := 0.8 * pool * OralAbsorptionRate
	if got := s.InputRate(physiology.T4, 0.5); math.Abs(got-peak) > 1e-12 {
		t.Errorf("rate at dose = %v, want %v", got, peak)
	}
	if s.InputRate(physiology.T4, 0.6) >= peak {
		t.Error("oral rate should decay after the dose")
	}

	got := delivered(s, physiology.T4, 0.01, 10)
	if math.Abs(got-0.8*pool) > 1e-9 {
		t.Errorf("delivered %v, want %v", got, 0.8*pool)
	}
}

func TestOralRepeatingDeliversEveryTick(t *testing.T) {
	s, err := NewSchedule(Absorption{T4: 100, T3: 100}, NewOralRepeating(physiology.T3, 10, 0, 2, 1))
	if err != nil {
		t.Fatal(err)
	}
	got := delivered(s, physiology.T3, 0.01, 10)
	want := 3 * physiology.T3.ToPool(10)
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("delivered %v, want %v", got, want)
	}
}

func TestDosesAreAdditive(t *testing.T) {
	a := NewOral(physiology.T4, 100, 0.2)
	b := NewInfusion(physiology.T4, 40, 0.1, 0.7)
	c := NewBolus(physiology.T4, 25, 0.3)

	both, _ := NewSchedule(DefaultAbsorption(), a, b, c)
	sa, _ := NewSchedule(DefaultAbsorption(), a)
	sb, _ := NewSchedule(DefaultAbsorption(), b)
	sc, _ := NewSchedule(DefaultAbsorption(), c)

	dt := 0.01
	for i := 0; i < 100; i++ {
		tm := float64(i) * dt
		sum := sa.StepRate(physiology.T4, tm, dt) + sb.StepRate(physiology.T4, tm, dt) + sc.StepRate(physiology.T4, tm, dt)
		got := both.StepRate(physiology.T4, tm, dt)
		if math.Abs(got-sum) > 1e-12*math.Max(1, sum) {
			t.Fatalf("t=%v: combined %v, sum %v", tm, got, sum)
		}
	}
}

func TestScheduleBeyondHorizon(t *testing.T) {
	s, _ := NewSchedule(DefaultAbsorption(), NewBolus(physiology.T4, 50, 12), NewOral(physiology.T3, 5, 1))
	beyond := s.Beyond(1000, 0.01)
	if len(beyond) != 1 || beyond[0].Start != 12 {
		t.Errorf("Beyond(1000, 0.01) = %v", beyond)
	}
	if got := delivered(s, physiology.T4, 0.01, 10); got != 0 {
		t.Errorf("dose beyond horizon delivered %v", got)
	}
}

func TestScheduleBeyondHorizonEdge(t *testing.T) {
	tests := []struct {
		name   string
		dose   Dose
		beyond bool
	}{
		{"bolus in last step", NewBolus(physiology.T4, 50, 4.994), false},
		{"bolus rounded past last step", NewBolus(physiology.T4, 50, 4.996), true},
		{"oral in last half step", NewOral(physiology.T4, 50, 4.996), false},
		{"infusion in last half step", NewInfusion(physiology.T4, 50, 4.996, 6), false},
		{"oral after horizon", NewOral(physiology.T4, 50, 5.5), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := NewSchedule(DefaultAbsorption(), tt.dose)
			if err != nil {
				t.Fatal(err)
			}
			got := len(s.Beyond(500, 0.01)) == 1
			if got != tt.beyond {
				t.Errorf("beyond = %v, want %v", got, tt.beyond)
			}
			if amount := delivered(s, physiology.T4, 0.01, 5); tt.beyond != (amount == 0) {
				t.Errorf("delivered %v within the horizon, beyond = %v", amount, tt.beyond)
			}
		})
	}
}

func TestRepeatingDoseAtTickBound(t *testing.T) {
	d := NewOralRepeating(physiology.T4, 1, 0, 99999, 1)
	if n := len(d.Ticks()); n != MaxTicks {
		t.Errorf("got %d ticks, want %d", n, MaxTicks)
	}

	s, err := NewSchedule(Absorption{T4: 100, T3: 100}, d)
	if err != nil {
		t.Fatal(err)
	}
	if rate := s.StepRate(physiology.T4, 0, 0.01); rate <= 0 {
		t.Errorf("first step rate = %v", rate)
	}
}

func TestInputController(t *testing.T) {
	s, _ := NewSchedule(DefaultAbsorption(), NewBolus(physiology.T3, 6.51, 0))
	in := NewInput(s, 0.01)

	u := in.Compute(nil, 0)
	if len(u) != 3 {
		t.Fatalf("expected 3 controls, got %d", len(u))
	}
	if math.Abs(u[1]-0.01/0.01) > 1e-12 || u[0] != 0 || u[2] != 0 {
		t.Errorf("unexpected control %v", u)
	}

	empty := NewInput(Empty(), 0.01).Compute(nil, 0)
	if empty[0] != 0 || empty[1] != 0 || empty[2] != 0 {
		t.Errorf("empty schedule control %v", empty)
	}
}

func TestParseKind(t *testing.T) {
	for _, k := range []Kind{OralSingle, OralRepeating, IVBolus, Infusion} {
		got, err := ParseKind(k.String())
		if err != nil || got != k {
			t.Errorf("ParseKind(%q) = %v, %v", k.String(), got, err)
		}
	}
	if _, err := ParseKind("patch"); err == nil {
		t.Error("expected error for unknown kind")
	}
}
