// Package sim implements the remimazolam target-controlled infusion (TCI)
// engine: a three-compartment pharmacokinetic model (Masui 2022), an
// effect-site equilibration model (Masui-Hagihira 2022), fixed- and
// adaptive-step ODE solvers, protocol optimization, and closed-loop
// step-down control.
//
// # Reading Guide
//
// Start with these files, in pipeline order:
//   - patient.go, pkparams.go: patient covariates and the derived PK
//     macro/microconstants (C1)
//   - ke0.go: effect-site equilibration rate constant, closed-form and
//     numerical branches (C2)
//   - schedule.go: dosing protocol representation (C3)
//   - system.go: the four-state ODE right-hand side (C4)
//   - simulator.go, timepoint.go: the bolus-partitioned simulation driver
//     and its output shape (C6)
//   - optimizer.go: two-stage grid search for a target-seeking infusion
//     rate (C7)
//   - controller.go: threshold-triggered step-down rate adjustment (C8)
//   - evaluator.go: windowed performance scoring (C9)
//
// # Sub-packages
//
//   - sim/solver/: domain-agnostic fixed-step (Euler, RK4) and adaptive
//     (Dormand-Prince 5(4)) ODE integrators, kept free of any import on
//     sim so they can be unit-tested against arbitrary right-hand sides
//
// # Errors
//
// The numerical pipeline's fallible operations return *Error (errors.go),
// a stable Kind tag plus a wrapped cause, never a bare sentinel or
// string-matched error. The scenario-bundle loader and validator
// (bundle.go) return plain fmt.Errorf errors.
package sim
