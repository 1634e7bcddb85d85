// Package run orchestrates a single simulation of the thyroid model: it
// scales the patient, builds the dose schedule, picks the initial state
// (seed, equilibration or defaults), steps the system and converts the
// trajectory into plasma concentrations.
//
// A Runner holds no per-run state and may be shared between goroutines.
// Results of one run can seed the next through Result.Seed.
package run
