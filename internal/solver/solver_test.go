package solver_test

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/sphsim/internal/checkpoint"
	"github.com/san-kum/sphsim/internal/config"
	"github.com/san-kum/sphsim/internal/progress"
	"github.com/san-kum/sphsim/internal/solver"
	"github.com/san-kum/sphsim/internal/sph"
)

type recorder struct {
	events []progress.Event
	stopAt int
}

func (r *recorder) Report(e progress.Event) { r.events = append(r.events, e) }

func (r *recorder) ShouldStop(next int) bool { return r.stopAt > 0 && next >= r.stopAt }

func (r *recorder) snapshotSteps() []int {
	var steps []int
	for _, e := range r.events {
		if s, ok := e.(progress.Snapshot); ok {
			steps = append(steps, s.Step)
		}
	}
	return steps
}

func (r *recorder) fatal() []string {
	var out []string
	for _, e := range r.events {
		if m, ok := e.(progress.Message); ok && m.Fatal {
			out = append(out, m.Text)
		}
	}
	return out
}

func testConfig(dir string) *config.Config {
	cfg := config.DefaultConfig()
	cfg.Domain = config.DomainConfig{Length: 0.05, Width: 0.05, Height: 0.05, DX: 0.01, DY: 0.01, DZ: 0.01}
	cfg.SmoothingLength = 0.012
	cfg.LidVelocity = 1
	cfg.MaxParticles = 300
	cfg.MaxPairs = 30000
	cfg.MaxStep = 20
	cfg.OutputStep = 10
	cfg.Workers = 1
	cfg.Monitor = 5
	cfg.OutputFile = filepath.Join(dir, "ckpt.bin")
	return cfg
}

func tempDir() string {
	dir, err := os.MkdirTemp("", "sphsim-solver-")
	Expect(err).NotTo(HaveOccurred())
	DeferCleanup(os.RemoveAll, dir)
	return dir
}

func newSolver(cfg *config.Config, mon progress.Monitor, opts ...solver.Option) *solver.Solver {
	s, err := solver.New(cfg, mon, opts...)
	Expect(err).NotTo(HaveOccurred())
	Expect(s.Init()).To(Succeed())
	return s
}

var _ = Describe("Solver", func() {
	var (
		dir string
		cfg *config.Config
		rec *recorder
	)

	BeforeEach(func() {
		dir = tempDir()
		cfg = testConfig(dir)
		rec = &recorder{}
	})

	Describe("initialization", func() {
		It("generates the box model and reports the monitored particle", func() {
			s := newSolver(cfg, rec)
			Expect(s.Particles()).To(HaveLen(216))
			Expect(s.Pairs()).NotTo(BeEmpty())
			Expect(s.NextStep()).To(Equal(1))
			Expect(rec.snapshotSteps()).To(Equal([]int{0}))
		})

		It("refuses to run before initialization", func() {
			s, err := solver.New(cfg, rec)
			Expect(err).NotTo(HaveOccurred())
			_, err = s.Run(context.Background())
			Expect(err).To(MatchError(solver.ErrNotInitialized))
		})

		It("rejects an invalid configuration", func() {
			cfg.CellScale = 1
			_, err := solver.New(cfg, rec)
			var cfgErr *config.ConfigError
			Expect(errors.As(err, &cfgErr)).To(BeTrue())
			Expect(cfgErr.Field).To(Equal("cell_scale"))
		})

		It("reports particle capacity overflow", func() {
			cfg.MaxParticles = 100
			s, err := solver.New(cfg, rec)
			Expect(err).NotTo(HaveOccurred())

			err = s.Init()
			var capErr *sph.CapacityError
			Expect(errors.As(err, &capErr)).To(BeTrue())
			Expect(capErr.What).To(Equal("particles"))
			Expect(capErr.Requested).To(Equal(216))
			Expect(rec.fatal()).To(HaveLen(1))
		})

		It("reports pair capacity overflow", func() {
			cfg.MaxPairs = 10
			s, err := solver.New(cfg, rec)
			Expect(err).NotTo(HaveOccurred())

			err = s.Init()
			var capErr *sph.CapacityError
			Expect(errors.As(err, &capErr)).To(BeTrue())
			Expect(capErr.What).To(Equal("pairs"))
			Expect(capErr.Max).To(Equal(10))
		})

		It("rejects a monitored particle outside the model", func() {
			cfg.Monitor = 216
			s, err := solver.New(cfg, rec)
			Expect(err).NotTo(HaveOccurred())
			var cfgErr *config.ConfigError
			Expect(errors.As(s.Init(), &cfgErr)).To(BeTrue())
			Expect(cfgErr.Field).To(Equal("monitor"))
		})
	})

	Describe("running", func() {
		It("runs to the step limit and checkpoints on the output cadence", func() {
			s := newSolver(cfg, rec)
			res, err := s.Run(context.Background())
			Expect(err).NotTo(HaveOccurred())

			Expect(res.Steps).To(Equal(20))
			Expect(res.LastStep).To(Equal(20))
			Expect(res.Stopped).To(BeFalse())
			Expect(res.Dt).To(BeNumerically("<=", cfg.Dt))
			Expect(rec.snapshotSteps()).To(Equal([]int{0, 10, 20}))

			st, err := checkpoint.Load(cfg.OutputFile)
			Expect(err).NotTo(HaveOccurred())
			Expect(st.Step).To(Equal(uint64(20)))
			Expect(st.Time).To(Equal(res.Time))
			Expect(st.Config.Dt).To(Equal(res.Dt))
			Expect(st.Particles).To(Equal(s.Particles()))
		})

		It("bounds dt by the CFL condition", func() {
			s := newSolver(cfg, rec)
			_, err := s.Run(context.Background())
			Expect(err).NotTo(HaveOccurred())

			// sound speed dominates: 0.3 h / c
			limit := 0.3 * cfg.SmoothingLength / 1480
			Expect(s.Dt()).To(BeNumerically("<=", limit))
			Expect(s.Dt()).To(BeNumerically(">", 0))
		})

		It("executes the stages of a step in order", func() {
			var stages []solver.Stage
			hook := func(step int, stage solver.Stage, _ []sph.Particle) {
				if step == 1 {
					stages = append(stages, stage)
				}
			}
			cfg.MaxStep = 1
			cfg.OutputStep = 1
			s := newSolver(cfg, rec, solver.WithStageHook(hook))
			_, err := s.Run(context.Background())
			Expect(err).NotTo(HaveOccurred())

			Expect(stages).To(Equal([]solver.Stage{
				solver.StageCFL,
				solver.StageBoundary,
				solver.StageHalfKick,
				solver.StageDrift,
				solver.StageDensity,
				solver.StageViscosity,
				solver.StageStress,
				solver.StageAcceleration,
				solver.StageSecondHalfKick,
				solver.StageSmoothing,
				solver.StageNeighbors,
				solver.StageCheckpoint,
			}))
		})

		It("keeps the initial pair list when neighbor rebuilds are disabled", func() {
			cfg.NeighborInterval = 0
			s := newSolver(cfg, rec)
			before := s.Pairs()
			_, err := s.Run(context.Background())
			Expect(err).NotTo(HaveOccurred())
			Expect(s.Pairs()).To(Equal(before))
		})
	})

	Describe("restart", func() {
		It("continues a checkpointed run exactly", func() {
			fresh := newSolver(cfg, nil)
			want, err := fresh.Run(context.Background())
			Expect(err).NotTo(HaveOccurred())

			first := testConfig(dir)
			first.MaxStep = 10
			first.OutputFile = filepath.Join(dir, "first.bin")
			half := newSolver(first, nil)
			_, err = half.Run(context.Background())
			Expect(err).NotTo(HaveOccurred())

			second := testConfig(dir)
			second.Restart = first.OutputFile
			second.OutputFile = filepath.Join(dir, "second.bin")
			resumed := newSolver(second, rec)
			Expect(resumed.NextStep()).To(Equal(11))
			Expect(rec.events[0]).To(Equal(progress.Restarted{Path: first.OutputFile, Step: 10, Time: half.Time()}))

			got, err := resumed.Run(context.Background())
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Steps).To(Equal(10))
			Expect(got.LastStep).To(Equal(want.LastStep))
			Expect(got.Time).To(Equal(want.Time))
			Expect(got.Dt).To(Equal(want.Dt))
			Expect(resumed.Particles()).To(Equal(fresh.Particles()))
			Expect(resumed.Pairs()).To(Equal(fresh.Pairs()))
		})

		It("fails with an I/O error for a missing checkpoint", func() {
			cfg.Restart = filepath.Join(dir, "missing.bin")
			s, err := solver.New(cfg, rec)
			Expect(err).NotTo(HaveOccurred())

			var ioErr *checkpoint.IOError
			Expect(errors.As(s.Init(), &ioErr)).To(BeTrue())
		})
	})

	Describe("failure", func() {
		It("halts on a non-finite velocity before the drift", func() {
			const bad = 17
			hook := func(step int, stage solver.Stage, ps []sph.Particle) {
				if step == 3 && stage == solver.StageDrift {
					ps[bad].V.Y = math.NaN()
				}
			}
			s := newSolver(cfg, rec, solver.WithStageHook(hook))
			res, err := s.Run(context.Background())

			var divErr *sph.DivergenceError
			Expect(errors.As(err, &divErr)).To(BeTrue())
			Expect(divErr.Quantity).To(Equal(sph.QuantityPosition))
			Expect(divErr.Index).To(Equal(bad))

			var stepErr *solver.StepError
			Expect(errors.As(err, &stepErr)).To(BeTrue())
			Expect(stepErr.Step).To(Equal(3))
			Expect(stepErr.Stage).To(Equal(solver.StageDrift))

			Expect(res.LastStep).To(Equal(2))
			Expect(s.NextStep()).To(Equal(3))
			Expect(rec.fatal()).To(HaveLen(1))
			Expect(cfg.OutputFile).NotTo(BeAnExistingFile())
		})

		It("attributes a stress blow-up to the stress stage", func() {
			const bad = 13
			hook := func(step int, stage solver.Stage, ps []sph.Particle) {
				if step == 2 && stage == solver.StageStress {
					ps[bad].Rho = 1e60
				}
			}
			s := newSolver(cfg, rec, solver.WithStageHook(hook))
			res, err := s.Run(context.Background())

			var divErr *sph.DivergenceError
			Expect(errors.As(err, &divErr)).To(BeTrue())
			Expect(divErr.Quantity).To(Equal(sph.QuantityStress))
			Expect(divErr.Index).To(Equal(bad))

			var stepErr *solver.StepError
			Expect(errors.As(err, &stepErr)).To(BeTrue())
			Expect(stepErr.Step).To(Equal(2))
			Expect(stepErr.Stage).To(Equal(solver.StageStress))

			Expect(res.LastStep).To(Equal(1))
			Expect(rec.fatal()).To(HaveLen(1))
		})
	})

	Describe("stopping", func() {
		It("checkpoints the step that observed a stop request", func() {
			rec.stopAt = 4
			s := newSolver(cfg, rec)
			res, err := s.Run(context.Background())
			Expect(err).NotTo(HaveOccurred())

			Expect(res.Stopped).To(BeTrue())
			Expect(res.LastStep).To(Equal(3))
			Expect(rec.snapshotSteps()).To(Equal([]int{0, 3}))

			st, err := checkpoint.Load(cfg.OutputFile)
			Expect(err).NotTo(HaveOccurred())
			Expect(st.Step).To(Equal(uint64(3)))
		})

		It("stops when the context is cancelled", func() {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			hook := func(step int, stage solver.Stage, _ []sph.Particle) {
				if step == 2 && stage == solver.StageSmoothing {
					cancel()
				}
			}
			s := newSolver(cfg, rec, solver.WithStageHook(hook))
			res, err := s.Run(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Stopped).To(BeTrue())
			Expect(res.LastStep).To(Equal(2))
			Expect(cfg.OutputFile).To(BeAnExistingFile())
		})
	})
})
