package engine_test

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/google/uuid"

	"scrumline/internal/config"
	"scrumline/internal/db"
	"scrumline/internal/domain"
	"scrumline/internal/engine"
	"scrumline/internal/migrate"
	"scrumline/internal/notify"
)

// seqSource feeds rand.Rand a scripted sequence and then zeros. A value
// k<<32 makes the next Intn(n) observe k in its top bits, so Intn(6)
// yields k%6 and power-of-two Intn yields k&(n-1).
type seqSource struct {
	vals []int64
	i    int
}

func (s *seqSource) Int63() int64 {
	if s.i < len(s.vals) {
		v := s.vals[s.i]
		s.i++
		return v
	}
	return 0
}

func (s *seqSource) Seed(int64) {}

func draw(k int64) int64 { return k << 32 }

type testEnv struct {
	Engine engine.Engine
	Cfg    *config.Config
	Rec    *notify.Recorder
	Ctx    context.Context
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	cfg := config.Default("web-shop")
	eng := engine.New(conn, cfg)
	rec := &notify.Recorder{}
	eng.Notify = rec
	// Ticking clock so hires get distinct created_at and roster order
	// stays stable.
	base := time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC)
	tick := 0
	eng.Now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}
	eng.NewRand = func() *rand.Rand { return rand.New(&seqSource{}) }
	return &testEnv{Engine: eng, Cfg: cfg, Rec: rec, Ctx: context.Background()}
}

// useRand scripts the next operation's random draws.
func (env *testEnv) useRand(vals ...int64) {
	env.Engine.NewRand = func() *rand.Rand { return rand.New(&seqSource{vals: vals}) }
}

// fixedRolls pins every experience level to an exact sprint roll.
func (env *testEnv) fixedRolls(roll int) {
	for _, level := range domain.Levels() {
		env.Cfg.Simulation.ProgressRolls[level] = config.Range{Min: roll, Max: roll + 1}
	}
}

func (env *testEnv) createProject(t *testing.T, id string, budget, numSprints int) domain.Project {
	t.Helper()
	p := domain.Project{
		ID:         id,
		Title:      "Test Project " + id,
		Budget:     budget,
		NumSprints: numSprints,
		DevCosts:   env.Cfg.Costs,
		CreatedAt:  time.Now().UTC().Format(time.RFC3339),
	}
	if err := env.Engine.Repo.InsertProject(env.Ctx, p); err != nil {
		t.Fatalf("insert project: %v", err)
	}
	return p
}

func (env *testEnv) addStory(t *testing.T, projectID, title string, points int, randomEvent bool) domain.Story {
	t.Helper()
	s := domain.Story{
		ID:          uuid.New().String(),
		ProjectID:   projectID,
		Title:       title,
		Points:      points,
		Kind:        "feature",
		RandomEvent: randomEvent,
	}
	if err := env.Engine.Repo.InsertStory(env.Ctx, s); err != nil {
		t.Fatalf("insert story: %v", err)
	}
	return s
}

func (env *testEnv) start(t *testing.T, userID, projectID string) *engine.State {
	t.Helper()
	inst, err := env.Engine.StartProject(env.Ctx, userID, projectID)
	if err != nil {
		t.Fatalf("start project: %v", err)
	}
	st, err := env.Engine.LoadState(env.Ctx, inst.ID, userID)
	if err != nil {
		t.Fatalf("load state: %v", err)
	}
	return st
}

func (env *testEnv) hire(t *testing.T, st *engine.State, name string, level domain.ExperienceLevel) domain.Developer {
	t.Helper()
	dev, err := env.Engine.HireDeveloper(env.Ctx, st, name, level)
	if err != nil {
		t.Fatalf("hire %s: %v", name, err)
	}
	return dev
}

func (env *testEnv) assign(t *testing.T, st *engine.State, title, devID string) {
	t.Helper()
	for _, si := range st.Stories {
		if si.Story.Title == title {
			if err := env.Engine.AssignStory(env.Ctx, st, si.ID, &devID); err != nil {
				t.Fatalf("assign %s: %v", title, err)
			}
			return
		}
	}
	t.Fatalf("story %q not in state", title)
}

func findStory(st *engine.State, title string) *domain.StoryInstance {
	for _, si := range st.Stories {
		if si.Story.Title == title {
			return si
		}
	}
	return nil
}
