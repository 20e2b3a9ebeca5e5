package env_test

import (
	"math"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/fwcbf/internal/actions"
	"github.com/san-kum/fwcbf/internal/control"
	"github.com/san-kum/fwcbf/internal/dynamo"
	"github.com/san-kum/fwcbf/internal/env"
)

var (
	goal1 = dynamo.Point{X: 200}
	goal2 = dynamo.Point{X: -200}
)

func baseConfig(safetyDist float64) env.Config {
	return env.Config{
		Dt:         0.1,
		MaxSimTime: 100,
		DoneDist:   75,
		SafetyDist: safetyDist,
		Goal1:      goal1,
		Goal2:      goal2,
		TimeWarp:   -1,
	}
}

func pursuers(speed float64) (*control.Uhat, *control.Uhat) {
	c, err := actions.NewCatalog([]float64{speed}, []float64{-13, 0, 13}, []float64{0})
	Expect(err).NotTo(HaveOccurred())
	u1, err := control.NewUhat(goal1, 0.1, c)
	Expect(err).NotTo(HaveOccurred())
	u2, err := control.NewUhat(goal2, 0.1, c)
	Expect(err).NotTo(HaveOccurred())
	return u1, u2
}

func pose(x, y, th float64) dynamo.SingleState {
	return dynamo.SingleState{P: dynamo.Point{X: x, Y: y}, Th: th}
}

// runEpisode steps both pursuers until the episode ends.
func runEpisode(e *env.CollisionEnv, u1, u2 *control.Uhat, maxSteps int) {
	for i := 0; i < maxSteps; i++ {
		done, err := e.Step(u1.Calc(e.X1()), u2.Calc(e.X2()))
		Expect(err).NotTo(HaveOccurred())
		if done {
			return
		}
	}
	Fail("episode did not terminate")
}

var _ = Describe("CollisionEnv", func() {
	Describe("Reset", func() {
		It("exposes the initial states and time", func() {
			e, err := env.New(baseConfig(0))
			Expect(err).NotTo(HaveOccurred())

			x1, x2 := pose(50, 0, 0), pose(-50, 0, 0)
			e.Reset(x1, x2, 0)

			Expect(e.T()).To(Equal(0.0))
			Expect(e.X1()).To(Equal(x1))
			Expect(e.X2()).To(Equal(x2))
			Expect(e.Steps()).To(Equal(0))
		})

		It("computes distances but clears every termination flag", func() {
			e, err := env.New(baseConfig(5))
			Expect(err).NotTo(HaveOccurred())

			e.Reset(pose(0, 1, 0), pose(0, -1, 0), 0)

			Expect(e.Stats().DistToVeh).To(Equal(2.0))
			Expect(e.Stats().DistToGoal1).To(BeNumerically("~", math.Hypot(200, 1), 1e-12))
			Expect(e.Done()).To(BeFalse())
		})
	})

	Describe("termination", func() {
		It("flags a collision after one step inside the safety distance", func() {
			e, err := env.New(baseConfig(5))
			Expect(err).NotTo(HaveOccurred())
			u1, u2 := pursuers(0)

			e.Reset(pose(0, 1, math.Pi/2), pose(0, -1, -math.Pi/2), 0)
			done, err := e.Step(u1.Calc(e.X1()), u2.Calc(e.X2()))

			Expect(err).NotTo(HaveOccurred())
			Expect(done).To(BeTrue())
			Expect(e.Stats().DoneCollision).To(BeTrue())
			Expect(e.Stats().DistToVeh).To(Equal(2.0))
			Expect(e.Stats().Cause()).To(Equal("collision"))
		})

		It("reaches the goal when both pursue at speed", func() {
			e, err := env.New(baseConfig(-1))
			Expect(err).NotTo(HaveOccurred())
			u1, u2 := pursuers(20)

			e.Reset(pose(0, 50, math.Pi/2), pose(0, -50, -math.Pi/2), 0)
			runEpisode(e, u1, u2, 2000)

			s := e.Stats()
			Expect(s.DoneGoal).To(BeTrue())
			Expect(s.DoneTime).To(BeFalse())
			Expect(s.DoneCollision).To(BeFalse())
			Expect(math.Min(s.DistToGoal1, s.DistToGoal2)).To(BeNumerically("<=", 75))
			Expect(s.DistToVeh).To(BeNumerically(">", 100))
		})

		It("times out when neither aircraft can move", func() {
			e, err := env.New(baseConfig(-1))
			Expect(err).NotTo(HaveOccurred())
			u1, u2 := pursuers(0)

			e.Reset(pose(0, 50, math.Pi/2), pose(0, -50, -math.Pi/2), 0)
			runEpisode(e, u1, u2, 1100)

			s := e.Stats()
			Expect(s.DoneTime).To(BeTrue())
			Expect(s.DoneGoal).To(BeFalse())
			Expect(s.DoneCollision).To(BeFalse())
			Expect(e.T()).To(BeNumerically(">=", 100))
		})
	})

	Describe("contract violations", func() {
		It("rejects a step before reset", func() {
			e, err := env.New(baseConfig(5))
			Expect(err).NotTo(HaveOccurred())

			_, err = e.Step(dynamo.SingleAction{}, dynamo.SingleAction{})
			Expect(err).To(MatchError(env.ErrNotReset))
		})

		It("rejects a step after termination until the next reset", func() {
			e, err := env.New(baseConfig(5))
			Expect(err).NotTo(HaveOccurred())
			e.Reset(pose(0, 1, 0), pose(0, -1, 0), 0)

			done, err := e.Step(dynamo.SingleAction{}, dynamo.SingleAction{})
			Expect(err).NotTo(HaveOccurred())
			Expect(done).To(BeTrue())

			before := e.State()
			_, err = e.Step(dynamo.SingleAction{V: 10}, dynamo.SingleAction{})
			Expect(err).To(MatchError(env.ErrEpisodeDone))
			Expect(e.State()).To(Equal(before))

			e.Reset(pose(0, 100, 0), pose(0, -100, 0), 0)
			_, err = e.Step(dynamo.SingleAction{}, dynamo.SingleAction{})
			Expect(err).NotTo(HaveOccurred())
		})
	})

	Describe("pacing", func() {
		var (
			clock  time.Time
			sleeps []time.Duration
			opt    env.Option
		)

		BeforeEach(func() {
			clock = time.Unix(0, 0)
			sleeps = nil
			opt = env.WithClock(
				func() time.Time { return clock },
				func(d time.Duration) {
					sleeps = append(sleeps, d)
					clock = clock.Add(d)
				},
			)
		})

		It("waits dt/time_warp between steps but not before the first", func() {
			cfg := baseConfig(-1)
			cfg.TimeWarp = 2
			e, err := env.New(cfg, opt)
			Expect(err).NotTo(HaveOccurred())

			e.Reset(pose(0, 50, 0), pose(0, -50, 0), 0)
			for i := 0; i < 4; i++ {
				_, err := e.Step(dynamo.SingleAction{V: 1}, dynamo.SingleAction{V: 1})
				Expect(err).NotTo(HaveOccurred())
			}

			Expect(sleeps).To(HaveLen(3))
			for _, d := range sleeps {
				Expect(d).To(BeNumerically("~", 50*time.Millisecond, time.Millisecond))
			}
		})

		It("skips the wait when the caller is already late", func() {
			cfg := baseConfig(-1)
			cfg.TimeWarp = 2
			e, err := env.New(cfg, opt)
			Expect(err).NotTo(HaveOccurred())

			e.Reset(pose(0, 50, 0), pose(0, -50, 0), 0)
			_, _ = e.Step(dynamo.SingleAction{}, dynamo.SingleAction{})
			clock = clock.Add(time.Second)
			_, _ = e.Step(dynamo.SingleAction{}, dynamo.SingleAction{})

			Expect(sleeps).To(BeEmpty())
		})

		It("never sleeps with a negative time warp and leaves results unchanged", func() {
			paced := baseConfig(-1)
			paced.TimeWarp = 4
			e1, err := env.New(paced, opt)
			Expect(err).NotTo(HaveOccurred())
			e2, err := env.New(baseConfig(-1), opt)
			Expect(err).NotTo(HaveOccurred())

			x1, x2 := pose(0, 50, 0.3), pose(10, -50, 2)
			e1.Reset(x1, x2, 0)
			e2.Reset(x1, x2, 0)
			a1 := dynamo.SingleAction{V: 20, W: dynamo.DegToRad(13)}
			a2 := dynamo.SingleAction{V: 15, W: -dynamo.DegToRad(13), Dz: 1}
			for i := 0; i < 10; i++ {
				_, err := e1.Step(a1, a2)
				Expect(err).NotTo(HaveOccurred())
			}
			Expect(sleeps).To(HaveLen(9))

			sleeps = nil
			for i := 0; i < 10; i++ {
				_, err := e2.Step(a1, a2)
				Expect(err).NotTo(HaveOccurred())
			}
			Expect(sleeps).To(BeEmpty())
			Expect(e2.State()).To(Equal(e1.State()))
			Expect(e2.Stats()).To(Equal(e1.Stats()))
		})
	})

	Describe("snapshots", func() {
		It("resumes an episode from its binary form", func() {
			e, err := env.New(baseConfig(-1))
			Expect(err).NotTo(HaveOccurred())
			e.Reset(pose(1, 2, 4), pose(1, 2, 4), 0)
			a := dynamo.SingleAction{V: 20, W: 0.1}
			_, err = e.Step(a, a)
			Expect(err).NotTo(HaveOccurred())

			data, err := e.MarshalBinary()
			Expect(err).NotTo(HaveOccurred())

			var restored env.CollisionEnv
			Expect(restored.UnmarshalBinary(data)).To(Succeed())
			Expect(restored.Snapshot()).To(Equal(e.Snapshot()))

			_, err = e.Step(a, a)
			Expect(err).NotTo(HaveOccurred())
			_, err = restored.Step(a, a)
			Expect(err).NotTo(HaveOccurred())
			Expect(restored.State()).To(Equal(e.State()))
			Expect(restored.T()).To(Equal(e.T()))
		})

		It("rejects a snapshot with an invalid configuration", func() {
			e, err := env.New(baseConfig(-1))
			Expect(err).NotTo(HaveOccurred())
			s := e.Snapshot()
			s.Config.Dt = 0
			Expect(e.Restore(s)).To(MatchError(env.ErrInvalidConfig))
		})
	})
})
