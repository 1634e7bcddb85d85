// Package dose describes exogenous hormone doses and the schedule that turns
// them into input rates for the thyroid model.
//
// A [Dose] is a tagged variant over oral (single or repeating), IV bolus and
// continuous infusion. A [Schedule] holds the doses of one run, partitioned
// by hormone, and answers two queries:
//
//   - [Schedule.InputRate]: instantaneous rate at t (bolus excluded)
//   - [Schedule.StepRate]: mean rate over one integration step
//
// StepRate delivers exactly the dosed mass over any step size, so a bolus
// arrives once in full and infusions and oral doses are never over- or
// under-delivered by the discretization.
package dose
