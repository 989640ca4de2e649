// Package solver drives the SPH step pipeline: initialization from a model
// or a checkpoint, the fixed-order stage sequence of every step, periodic
// reporting and checkpointing, and termination.
package solver

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/sphsim/internal/checkpoint"
	"github.com/san-kum/sphsim/internal/config"
	"github.com/san-kum/sphsim/internal/model"
	"github.com/san-kum/sphsim/internal/parallel"
	"github.com/san-kum/sphsim/internal/progress"
	"github.com/san-kum/sphsim/internal/sph"
	"github.com/san-kum/sphsim/internal/stability"
)

// StageHook runs before every stage. ps is the live particle slice.
type StageHook func(step int, stage Stage, ps []sph.Particle)

type Option func(*Solver)

// WithStageHook installs fn as the stage hook.
func WithStageHook(fn StageHook) Option {
	return func(s *Solver) { s.hook = fn }
}

// WithPlan overrides the worker split derived from the config.
func WithPlan(p parallel.Plan) Option {
	return func(s *Solver) { s.plan = p }
}

// Result summarizes a Run.
type Result struct {
	Steps    int     // steps completed by this Run
	LastStep int     // number of the last completed step
	Time     float64 // simulated time after LastStep
	Dt       float64
	Stopped  bool // ended by a stop request or context cancellation
}

type Solver struct {
	cfg  *config.Config
	mon  progress.Monitor
	plan parallel.Plan
	hook StageHook

	pool  []sph.Particle
	n     int
	pairs []sph.Pair
	k     int
	index *sph.NeighborIndex

	div   []float64
	slots []r3.Vec

	step        int // next step to run
	time        float64
	dt          float64
	initialized bool
}

// New validates cfg and returns a solver reporting to mon. cfg is copied.
func New(cfg *config.Config, mon progress.Monitor, opts ...Option) (*Solver, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if mon == nil {
		mon = progress.Nop{}
	}
	s := &Solver{
		cfg:  cfg.Clone(),
		mon:  mon,
		plan: parallel.NewPlan(cfg.Workers),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Init restores from the configured restart file when one is set and
// generates the box model otherwise.
func (s *Solver) Init() error {
	if s.cfg.Restart != "" {
		return s.Restore(s.cfg.Restart)
	}
	return s.Generate()
}

// Generate fills the pool with the box model of the configured domain.
func (s *Solver) Generate() error {
	if s.initialized {
		return ErrAlreadyInitialized
	}
	s.mon.Report(progress.Message{Text: "creating box model"})
	pool := make([]sph.Particle, s.cfg.MaxParticles)
	n, err := model.GenerateBox(pool, s.cfg.Domain, s.cfg.Fluid)
	if err != nil {
		return s.fail(fmt.Errorf("generating model: %w", err))
	}
	return s.Seed(pool[:n])
}

// Seed starts a fresh run from ps, which is copied into the pool, and
// builds the first neighbor list.
func (s *Solver) Seed(ps []sph.Particle) error {
	if s.initialized {
		return ErrAlreadyInitialized
	}
	if err := s.allocate(len(ps)); err != nil {
		return s.fail(err)
	}
	copy(s.pool, ps)
	if err := s.checkMonitor(); err != nil {
		return s.fail(err)
	}

	s.mon.Report(progress.Message{Text: fmt.Sprintf("searching neighbors of %d particles", s.n)})
	if err := s.rebuildNeighbors(); err != nil {
		return s.fail(fmt.Errorf("searching neighbors: %w", err))
	}

	s.step, s.time, s.dt = 1, 0, s.cfg.Dt
	s.initialized = true
	logrus.WithFields(logrus.Fields{
		"particles": s.n,
		"pairs":     s.k,
		"boundary":  s.cfg.Boundary,
	}).Info("model initialized")
	s.mon.Report(s.snapshot(0))
	return nil
}

// Restore resumes from a checkpoint. Physical parameters, the time step and
// the pair list come from the checkpoint; run control (step limit, output
// cadence and file, monitored particle, workers, neighbor rebuild interval)
// stays as configured.
func (s *Solver) Restore(path string) error {
	if s.initialized {
		return ErrAlreadyInitialized
	}
	st, err := checkpoint.Load(path)
	if err != nil {
		return s.fail(err)
	}

	merged := st.Config.Clone()
	merged.MaxStep = s.cfg.MaxStep
	merged.OutputStep = s.cfg.OutputStep
	merged.OutputFile = s.cfg.OutputFile
	merged.Monitor = s.cfg.Monitor
	merged.Workers = s.cfg.Workers
	merged.NeighborInterval = s.cfg.NeighborInterval
	merged.Restart = path
	if err := merged.Validate(); err != nil {
		return s.fail(fmt.Errorf("checkpoint %s: %w", path, err))
	}
	s.cfg = merged

	if err := s.allocate(len(st.Particles)); err != nil {
		return s.fail(err)
	}
	if len(st.Pairs) > len(s.pairs) {
		return s.fail(&sph.CapacityError{What: "pairs", Requested: len(st.Pairs), Max: len(s.pairs)})
	}
	copy(s.pool, st.Particles)
	s.k = copy(s.pairs, st.Pairs)
	if err := s.checkMonitor(); err != nil {
		return s.fail(err)
	}

	s.step = int(st.Step) + 1
	s.time = st.Time
	s.dt = st.Config.Dt
	s.initialized = true

	logrus.WithFields(logrus.Fields{
		"path": path,
		"step": st.Step,
		"time": st.Time,
	}).Info("restarted from checkpoint")
	s.mon.Report(progress.Restarted{Path: path, Step: int(st.Step), Time: st.Time})
	s.mon.Report(s.snapshot(int(st.Step)))
	return nil
}

func (s *Solver) allocate(n int) error {
	if n > s.cfg.MaxParticles {
		return &sph.CapacityError{What: "particles", Requested: n, Max: s.cfg.MaxParticles}
	}
	s.pool = make([]sph.Particle, s.cfg.MaxParticles)
	s.pairs = make([]sph.Pair, s.cfg.MaxPairs)
	s.div = make([]float64, s.cfg.MaxParticles)
	s.slots = make([]r3.Vec, s.cfg.MaxParticles)
	s.index = sph.NewNeighborIndex(s.cfg.SmoothingLength, s.cfg.CellScale, s.plan)
	s.n, s.k = n, 0
	return nil
}

func (s *Solver) checkMonitor() error {
	if s.cfg.Monitor >= s.n {
		return &config.ConfigError{
			Field:  "monitor",
			Reason: fmt.Sprintf("must be below the particle count %d", s.n),
		}
	}
	return nil
}

func (s *Solver) rebuildNeighbors() error {
	k, err := s.index.Build(s.pool[:s.n], s.pairs)
	if err != nil {
		return err
	}
	s.k = k
	return nil
}

// fail reports err as the fatal message of the run and returns it.
func (s *Solver) fail(err error) error {
	s.mon.Report(progress.Message{Text: err.Error(), Fatal: true})
	return err
}

// Run executes steps until MaxStep, a stop request, cancellation of ctx or
// an error. Stop requests and ctx are checked after every completed step;
// the step that observes one is checkpointed before Run returns. A failed
// step is reported and returned without writing a checkpoint.
func (s *Solver) Run(ctx context.Context) (Result, error) {
	if !s.initialized {
		return Result{}, ErrNotInitialized
	}
	res := Result{LastStep: s.step - 1, Time: s.time, Dt: s.dt}

	for s.step <= s.cfg.MaxStep {
		if err := s.advance(); err != nil {
			return res, s.fail(err)
		}
		done := s.step
		s.time += s.dt
		s.step++
		res.Steps++
		res.LastStep, res.Time, res.Dt = done, s.time, s.dt

		stop := ctx.Err() != nil || s.mon.ShouldStop(s.step)
		if done%s.cfg.OutputStep == 0 || stop {
			s.mon.Report(s.snapshot(done))
			s.at(done, StageCheckpoint)
			if err := s.persist(done); err != nil {
				return res, s.fail(err)
			}
		}
		if stop {
			res.Stopped = true
			s.mon.Report(progress.Message{Text: fmt.Sprintf("stopped after step %d", done)})
			return res, nil
		}
	}
	return res, nil
}

func (s *Solver) at(step int, stage Stage) {
	if s.hook != nil {
		s.hook(step, stage, s.pool[:s.n])
	}
}

// advance runs every stage of the current step.
func (s *Solver) advance() error {
	ps := s.pool[:s.n]
	h := s.cfg.SmoothingLength
	wrap := func(stage Stage, err error) error {
		return &StepError{Step: s.step, Time: s.time, Stage: stage, Wrapped: err}
	}

	s.at(s.step, StageCFL)
	s.dt = stability.CFL(s.plan, ps, s.dt, h)
	s.cfg.Dt = s.dt

	s.at(s.step, StageBoundary)
	if err := s.cfg.Boundary.Apply(s.plan, ps, s.cfg.StabilityDomain()); err != nil {
		return wrap(StageBoundary, err)
	}

	s.at(s.step, StageHalfKick)
	if err := sph.HalfKick(s.plan, ps, s.dt); err != nil {
		return wrap(StageHalfKick, err)
	}

	s.at(s.step, StageDrift)
	if err := sph.Drift(s.plan, ps, s.dt); err != nil {
		return wrap(StageDrift, err)
	}

	pairs := s.pairs[:s.k]
	s.at(s.step, StageDensity)
	if err := sph.Density(s.plan, ps, pairs, s.div[:s.n], s.dt); err != nil {
		return wrap(StageDensity, err)
	}

	s.at(s.step, StageViscosity)
	if err := sph.ArtificialViscosity(s.plan, ps, pairs, h, s.cfg.Beta); err != nil {
		return wrap(StageViscosity, err)
	}

	s.at(s.step, StageStress)
	if err := sph.Stress(s.plan, ps, s.div[:s.n]); err != nil {
		return wrap(StageStress, err)
	}

	s.at(s.step, StageAcceleration)
	if err := sph.Acceleration(s.plan, ps, pairs, s.slots[:s.n]); err != nil {
		return wrap(StageAcceleration, err)
	}

	s.at(s.step, StageSecondHalfKick)
	if err := sph.HalfKick(s.plan, ps, s.dt); err != nil {
		return wrap(StageSecondHalfKick, err)
	}

	s.at(s.step, StageSmoothing)
	if err := sph.ConservativeSmoothing(s.plan, ps, pairs, s.cfg.SmoothingRate); err != nil {
		return wrap(StageSmoothing, err)
	}

	if iv := s.cfg.NeighborInterval; iv > 0 && s.step%iv == 0 {
		s.at(s.step, StageNeighbors)
		if err := s.rebuildNeighbors(); err != nil {
			return wrap(StageNeighbors, err)
		}
	}
	return nil
}

func (s *Solver) persist(step int) error {
	st := &checkpoint.State{
		Config:    s.cfg,
		Particles: s.pool[:s.n],
		Pairs:     s.pairs[:s.k],
		Step:      uint64(step),
		Time:      s.time,
	}
	if err := checkpoint.Save(s.cfg.OutputFile, st); err != nil {
		return fmt.Errorf("step %d: %w", step, err)
	}
	logrus.Debugf("checkpoint written to %s at step %d", s.cfg.OutputFile, step)
	return nil
}

func (s *Solver) snapshot(step int) progress.Snapshot {
	p := &s.pool[s.cfg.Monitor]
	return progress.Snapshot{
		Step:     step,
		Time:     s.time,
		Dt:       s.dt,
		Particle: s.cfg.Monitor,
		X:        p.X,
		V:        p.V,
		A:        p.Accel,
	}
}

// Config returns the effective configuration, including the current dt.
func (s *Solver) Config() *config.Config { return s.cfg.Clone() }

// Particles returns a copy of the live particles.
func (s *Solver) Particles() []sph.Particle {
	return append([]sph.Particle(nil), s.pool[:s.n]...)
}

// Pairs returns a copy of the live pair list.
func (s *Solver) Pairs() []sph.Pair {
	return append([]sph.Pair(nil), s.pairs[:s.k]...)
}

// NextStep is the number of the step Run would execute next.
func (s *Solver) NextStep() int { return s.step }

func (s *Solver) Time() float64 { return s.time }

func (s *Solver) Dt() float64 { return s.dt }
