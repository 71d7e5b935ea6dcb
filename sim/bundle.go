package sim

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"github.com/remimazolam/tci-engine/sim/solver"
	"gopkg.in/yaml.v3"
)

// ScenarioBundle is a complete simulation scenario, loadable from a YAML
// file: a patient, a dosing protocol or target-seeking request, and the
// solver/controller options to run it under. Nil option pointers (the
// solver's time step and tolerances, the controller block and its fields)
// mean "not set in YAML" — they fall back to the corresponding Default*
// function's value, not to zero. A nil Target means no target is set.
type ScenarioBundle struct {
	Patient    PatientConfig     `yaml:"patient"`
	Dose       DoseConfig        `yaml:"dose"`
	Target     *TargetConfig     `yaml:"target"`
	Solver     SolverConfig      `yaml:"solver"`
	Controller *ControllerConfig `yaml:"controller"`
}

// PatientConfig mirrors the NewPatient constructor arguments.
type PatientConfig struct {
	ID           string  `yaml:"id"`
	AgeYears     float64 `yaml:"age_years"`
	WeightKg     float64 `yaml:"weight_kg"`
	HeightCm     float64 `yaml:"height_cm"`
	Sex          string  `yaml:"sex"`    // "male" or "female"
	ASAPS        string  `yaml:"asa_ps"` // "I-II" or "III-IV"
	AnesthesiaAt string  `yaml:"anesthesia_at,omitempty"` // RFC3339, optional
}

// DoseConfig describes an explicit dosing protocol, or a bolus-only
// request that ProtocolOptimizer is expected to fill in a continuous
// rate for.
type DoseConfig struct {
	BolusMg float64           `yaml:"bolus_mg"`
	Events  []DoseEventConfig `yaml:"events,omitempty"`
}

// DoseEventConfig is one YAML-level dose event.
type DoseEventConfig struct {
	TimeMin   float64 `yaml:"time_min"`
	BolusMg   float64 `yaml:"bolus_mg"`
	ContMgKgH float64 `yaml:"cont_mg_kg_h"`
}

// TargetConfig names a target effect-site concentration and time, used
// by ProtocolOptimizer, StepDownController, and PerformanceEvaluator.
type TargetConfig struct {
	CeUgMl      float64 `yaml:"ce_ug_ml"`
	TimeMin     float64 `yaml:"time_min,omitempty"`
	DurationMin float64 `yaml:"duration_min,omitempty"`
}

// SolverConfig selects the numerical method and its tolerances.
type SolverConfig struct {
	Method   string   `yaml:"method,omitempty"` // "euler", "rk4", "dopri5"
	TimeStep *float64 `yaml:"time_step,omitempty"`
	Atol     *float64 `yaml:"atol,omitempty"`
	Rtol     *float64 `yaml:"rtol,omitempty"`
}

// ControllerConfig overrides StepDownController defaults.
type ControllerConfig struct {
	UpperThresholdRatio *float64 `yaml:"upper_threshold_ratio,omitempty"`
	ReductionFactor     *float64 `yaml:"reduction_factor,omitempty"`
	MinimumRateMgKgH    *float64 `yaml:"minimum_rate_mg_kg_h,omitempty"`
	AdjustmentInterval  *float64 `yaml:"adjustment_interval_min,omitempty"`
}

// LoadScenarioBundle reads and strict-parses a YAML scenario file;
// unrecognized keys (typos) are rejected.
func LoadScenarioBundle(path string) (*ScenarioBundle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scenario file: %w", err)
	}
	var bundle ScenarioBundle
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&bundle); err != nil {
		return nil, fmt.Errorf("parsing scenario file: %w", err)
	}
	if err := bundle.Validate(); err != nil {
		return nil, err
	}
	return &bundle, nil
}

// Validate checks the bundle's categorical fields (sex, ASA status,
// solver method), that bolus and continuous doses are non-negative, and
// that a set target Ce is positive, returning the first failing check. It
// does not construct a Patient and does not check covariate ranges;
// ToPatient does that.
func (b *ScenarioBundle) Validate() error {
	switch b.Patient.Sex {
	case "male", "female":
	default:
		return fmt.Errorf("unknown patient sex %q; valid options: male, female", b.Patient.Sex)
	}
	switch b.Patient.ASAPS {
	case "I-II", "III-IV":
	default:
		return fmt.Errorf("unknown ASA physical status %q; valid options: I-II, III-IV", b.Patient.ASAPS)
	}
	if b.Dose.BolusMg < 0 {
		return fmt.Errorf("bolus_mg must be non-negative, got %g", b.Dose.BolusMg)
	}
	for i, e := range b.Dose.Events {
		if e.BolusMg < 0 || e.ContMgKgH < 0 {
			return fmt.Errorf("dose event %d: bolus_mg and cont_mg_kg_h must be non-negative", i)
		}
	}
	if b.Target != nil && b.Target.CeUgMl <= 0 {
		return fmt.Errorf("target.ce_ug_ml must be positive, got %g", b.Target.CeUgMl)
	}
	switch b.Solver.Method {
	case "", "euler", "rk4", "dopri5":
	default:
		return fmt.Errorf("unknown solver method %q; valid options: euler, rk4, dopri5", b.Solver.Method)
	}
	return nil
}

// ToPatient constructs a Patient from the bundle's covariates.
func (b *ScenarioBundle) ToPatient() (*Patient, error) {
	var sex Sex
	if b.Patient.Sex == "male" {
		sex = Male
	} else {
		sex = Female
	}
	var asaPS ASAStatus
	if b.Patient.ASAPS == "III-IV" {
		asaPS = ASA_III_IV
	} else {
		asaPS = ASA_I_II
	}
	anesthesiaAt := time.Time{}
	if b.Patient.AnesthesiaAt != "" {
		t, err := time.Parse(time.RFC3339, b.Patient.AnesthesiaAt)
		if err != nil {
			return nil, fmt.Errorf("parsing anesthesia_at: %w", err)
		}
		anesthesiaAt = t
	}
	return NewPatient(b.Patient.ID, b.Patient.AgeYears, b.Patient.WeightKg, b.Patient.HeightCm, sex, asaPS, anesthesiaAt)
}

// ToSchedule builds an InfusionSchedule from the bundle's dose
// configuration. If no explicit events are given, it returns a
// bolus-only schedule (continuous rate 0), suitable as the starting
// point for ProtocolOptimizer.
func (b *ScenarioBundle) ToSchedule() (*InfusionSchedule, error) {
	events := []DoseEvent{{Time: 0, BolusMg: b.Dose.BolusMg}}
	for _, e := range b.Dose.Events {
		events = append(events, DoseEvent{Time: e.TimeMin, BolusMg: e.BolusMg, ContMgKgH: e.ContMgKgH})
	}
	return NewInfusionSchedule(b.Patient.WeightKg, events)
}

// SolverMethod resolves the bundle's solver method name to a
// solver.Method, defaulting to RK4 when unset.
func (c SolverConfig) SolverMethod() solver.Method {
	switch c.Method {
	case "euler":
		return solver.Euler
	case "dopri5":
		return solver.DoPri5
	default:
		return solver.RK4
	}
}

// ToSimulatorOptions merges the bundle's solver config onto
// DefaultSimulatorOptions.
func (c SolverConfig) ToSimulatorOptions() SimulatorOptions {
	opts := DefaultSimulatorOptions()
	opts.Solver = c.SolverMethod()
	if c.TimeStep != nil {
		opts.TimeStep = *c.TimeStep
	}
	if c.Atol != nil {
		opts.Atol = *c.Atol
	}
	if c.Rtol != nil {
		opts.Rtol = *c.Rtol
	}
	return opts
}

// ToControllerOptions merges the bundle's controller overrides onto
// DefaultControllerOptions.
func (c *ControllerConfig) ToControllerOptions(duration float64) ControllerOptions {
	opts := DefaultControllerOptions()
	if duration > 0 {
		opts.Duration = duration
	}
	if c == nil {
		return opts
	}
	if c.UpperThresholdRatio != nil {
		opts.UpperThresholdRatio = *c.UpperThresholdRatio
	}
	if c.ReductionFactor != nil {
		opts.ReductionFactor = *c.ReductionFactor
	}
	if c.MinimumRateMgKgH != nil {
		opts.MinimumRateMgKgH = *c.MinimumRateMgKgH
	}
	if c.AdjustmentInterval != nil {
		opts.AdjustmentInterval = *c.AdjustmentInterval
	}
	return opts
}
