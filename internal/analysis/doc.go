// Package analysis post-processes simulated hormone series.
//
//   - [PowerSpectrum] and [DominantPeriod]: rhythm detection via FFT
//   - [SettlingTime]: time until a series stays near its final value
//   - [NewPortrait]: paired series (e.g. FT4 against log TSH) rendered as ASCII
//
// The circadian TSH rhythm shows up as a dominant period near one day:
//
//	period, err := analysis.DominantPeriod(res.TSH, res.Dt)
package analysis
