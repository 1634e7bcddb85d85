// Package physiology provides the thyroid feedback model and the patient
// scaling it depends on.
//
//   - [Scale]: converts height, weight and sex into [Scaling] constants
//   - [Thyroid]: three-pool T4/T3/TSH system implementing [dynamo.System]
//   - [Concentrations]: maps pool masses to reported concentrations
//
// # Units
//
// Time is in days. Pool masses q1 (T4) and q4 (T3) are in µmol, q7 (TSH) is
// in model units. Reported T4 and T3 are µg/L, TSH is mU/L, free hormones
// are ng/L.
//
// All regression and rate constants are fixed literals shared by every
// patient; only the [Scaling] constants vary.
package physiology
