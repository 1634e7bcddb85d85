package dose

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/san-kum/thyrosim/internal/physiology"
)

// Parse reads a compact dose description:
//
//	oral:T4:100@1                  single oral dose of 100 µg at day 1
//	oral-repeating:T4:100@0-29/1   daily from day 0 through day 29
//	iv:T3:10@2                     bolus at day 2
//	infusion:T4:50@1-3             50 µg spread over days 1 to 3
func Parse(spec string) (Dose, error) {
	head, timing, ok := strings.Cut(strings.TrimSpace(spec), "@")
	if !ok {
		return Dose{}, fmt.Errorf("dose %q: missing @start", spec)
	}
	parts := strings.Split(head, ":")
	if len(parts) != 3 {
		return Dose{}, fmt.Errorf("dose %q: want kind:hormone:amount@timing", spec)
	}

	kind, err := ParseKind(parts[0])
	if err != nil {
		return Dose{}, fmt.Errorf("dose %q: %w", spec, err)
	}
	hormone, err := physiology.ParseHormone(parts[1])
	if err != nil {
		return Dose{}, fmt.Errorf("dose %q: %w", spec, err)
	}
	amount, err := strconv.ParseFloat(parts[2], 64)
	if err != nil {
		return Dose{}, fmt.Errorf("dose %q: amount: %w", spec, err)
	}

	d := Dose{Kind: kind, Hormone: hormone, Amount: amount}

	timing, interval, hasInterval := strings.Cut(timing, "/")
	startStr, endStr, hasEnd := strings.Cut(timing, "-")
	if d.Start, err = strconv.ParseFloat(startStr, 64); err != nil {
		return Dose{}, fmt.Errorf("dose %q: start: %w", spec, err)
	}
	if hasEnd {
		if d.End, err = strconv.ParseFloat(endStr, 64); err != nil {
			return Dose{}, fmt.Errorf("dose %q: end: %w", spec, err)
		}
	}
	if hasInterval {
		if d.Interval, err = strconv.ParseFloat(interval, 64); err != nil {
			return Dose{}, fmt.Errorf("dose %q: interval: %w", spec, err)
		}
	}

	if err := d.Validate(); err != nil {
		return Dose{}, err
	}
	return d, nil
}
