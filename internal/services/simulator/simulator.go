// Package simulator runs the closed control loop of the treatment plant:
// persist the state, pick the most urgent activated rule, apply its action,
// let the environment drift, repeat.
package simulator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/LeonardoBeccarini/water-treatment/internal/engine/fuzzy"
	"github.com/LeonardoBeccarini/water-treatment/internal/engine/rules"
	"github.com/LeonardoBeccarini/water-treatment/internal/engine/treatment"
	"github.com/LeonardoBeccarini/water-treatment/internal/model/entities"
	"github.com/LeonardoBeccarini/water-treatment/internal/model/messages"
)

// DefaultSteps is the run length when Config.Steps is not set.
const DefaultSteps = 8

// RuleSource provides the rule set and the reference vocabulary.
type RuleSource interface {
	LoadRules(ctx context.Context) ([]entities.Rule, error)
	LoadOntology(ctx context.Context) ([]entities.OntologyTerm, error)
}

// Recorder persists the per-step history.
type Recorder interface {
	StoreMeasurement(ctx context.Context, rec messages.MeasurementRecord) error
	StoreAction(ctx context.Context, rec messages.ActionRecord) error
}

// Config parametrizes one run.
type Config struct {
	Steps int
	// Initial defaults to entities.DefaultMeasurement when zero.
	Initial entities.Measurement
	// RunID tags every persisted record; a random UUID is used when empty.
	RunID string
}

// Simulator owns the live Measurement of a run. One Simulator runs one
// simulation at a time; independent instances may run in parallel.
type Simulator struct {
	rules      RuleSource
	recorder   Recorder
	drift      *Drift
	applicator *treatment.Applicator
	metrics    *Metrics
	log        *zap.Logger
	now        func() time.Time
}

// Option customizes a Simulator.
type Option func(*Simulator)

func WithLogger(l *zap.Logger) Option {
	return func(s *Simulator) {
		if l != nil {
			s.log = l
		}
	}
}

func WithMetrics(m *Metrics) Option {
	return func(s *Simulator) { s.metrics = m }
}

// WithClock replaces time.Now for record timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Simulator) {
		if now != nil {
			s.now = now
		}
	}
}

func NewSimulator(src RuleSource, rec Recorder, rnd Source, opts ...Option) (*Simulator, error) {
	if src == nil {
		return nil, errors.New("simulator: rule source is nil")
	}
	if rec == nil {
		return nil, errors.New("simulator: recorder is nil")
	}
	if rnd == nil {
		return nil, errors.New("simulator: random source is nil")
	}
	s := &Simulator{
		rules:      src,
		recorder:   rec,
		drift:      NewDrift(rnd),
		applicator: treatment.NewApplicator(),
		log:        zap.NewNop(),
		now:        func() time.Time { return time.Now().UTC() },
	}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

// Run executes cfg.Steps steps from cfg.Initial. Rule and action problems are
// logged and reported; persistence failures stop the run and are returned.
func (s *Simulator) Run(ctx context.Context, cfg Config) (*Report, error) {
	steps := cfg.Steps
	if steps <= 0 {
		steps = DefaultSteps
	}
	runID := cfg.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	log := s.log.With(zap.String("run_id", runID))

	rs, err := s.rules.LoadRules(ctx)
	if err != nil {
		return nil, fmt.Errorf("simulator: load rules: %w", err)
	}
	terms, err := s.rules.LoadOntology(ctx)
	if err != nil {
		return nil, fmt.Errorf("simulator: load ontology: %w", err)
	}
	selector := rules.NewSelector(rs)
	log.Info("simulator: starting run",
		zap.Int("steps", steps), zap.Int("rules", selector.Len()), zap.Int("ontology_terms", len(terms)))

	initial := cfg.Initial
	if initial == (entities.Measurement{}) {
		initial = entities.DefaultMeasurement()
	}
	state := initial.Clamp()
	report := &Report{RunID: runID, Steps: make([]StepReport, 0, steps)}
	for step := 0; step < steps; step++ {
		if err := ctx.Err(); err != nil {
			return report, fmt.Errorf("simulator: step %d: %w", step, err)
		}
		sr, err := s.step(ctx, log, runID, step, state, selector)
		if err != nil {
			return report, fmt.Errorf("simulator: step %d: %w", step, err)
		}
		report.Steps = append(report.Steps, sr)
		state = sr.AfterDrift
	}
	report.Final = state
	log.Info("simulator: run complete", zap.Any("actions", report.ActionCounts()))
	return report, nil
}

func (s *Simulator) step(ctx context.Context, log *zap.Logger, runID string, step int,
	state entities.Measurement, selector *rules.Selector) (StepReport, error) {
	sr := StepReport{Step: step, Before: state}
	log = log.With(zap.Int("step", step))

	if err := s.recorder.StoreMeasurement(ctx, messages.MeasurementRecord{
		RunID: runID, Step: step, Measurement: state, Timestamp: s.now(),
	}); err != nil {
		return sr, fmt.Errorf("store measurement: %w", err)
	}
	s.metrics.observe(state)
	log.Debug("simulator: state",
		zap.Float64("pollution", state.PollutionLevel),
		zap.Float64("ph", state.PHLevel),
		zap.Float64("temperature", state.Temperature),
		zap.Float64("oxygen", state.OxygenLevel))

	// reporting only, the selector does not see it
	sr.Fuzzy = fuzzy.FuzzifyPollution(state.PollutionLevel)
	if name, deg, ok := fuzzy.Dominant(sr.Fuzzy); ok {
		log.Debug("simulator: fuzzy pollution", zap.String("dominant", name), zap.Float64("degree", deg),
			zap.Any("degrees", sr.Fuzzy))
	}

	res := selector.Evaluate(state)
	for _, ce := range res.Errors {
		log.Warn("simulator: rule skipped", zap.Int64("rule_id", ce.RuleID), zap.String("rule", ce.RuleName), zap.Error(ce.Err))
		s.metrics.ruleError(ce.RuleName)
	}
	sr.Activated = res.Activated

	rec := messages.ActionRecord{RunID: runID, Step: step}
	sr.AfterAction = state
	if rule, ok := res.Decision(); ok {
		sr.Selected = &rule
		rec.RuleID, rec.RuleName = rule.ID, rule.Name
		next, act, err := s.applicator.Apply(state, rule.Action)
		if err != nil {
			log.Warn("simulator: action not applied", zap.String("rule", rule.Name), zap.Error(err))
			sr.Warnings = append(sr.Warnings, err.Error())
			s.metrics.unmapped(act.Type)
		} else {
			log.Info("simulator: applied", zap.String("rule", rule.Name), zap.String("action", act.Type),
				zap.Float64("intensity", act.Intensity), zap.Int("duration", act.Duration))
		}
		sr.AfterAction, sr.Action = next, act
	} else {
		log.Info("simulator: no rule activated, no action")
		sr.Action = entities.NoAction()
	}

	rec.Action = sr.Action
	rec.Timestamp = s.now()
	if err := s.recorder.StoreAction(ctx, rec); err != nil {
		return sr, fmt.Errorf("store action: %w", err)
	}
	s.metrics.action(sr.Action.Type)

	sr.AfterDrift = s.drift.Perturb(sr.AfterAction)
	s.metrics.stepDone()
	return sr, nil
}
