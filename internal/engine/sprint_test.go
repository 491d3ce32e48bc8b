package engine_test

import (
	"errors"
	"strings"
	"testing"

	"scrumline/internal/domain"
	"scrumline/internal/engine"
)

func TestSprintCompletesStoryAndEarnsRevenue(t *testing.T) {
	env := newTestEnv(t)
	env.createProject(t, "shop", 10000, 5)
	env.addStory(t, "shop", "Checkout", 2, false)
	env.fixedRolls(100)

	st := env.start(t, "alice", "shop")
	dev := env.hire(t, st, "Dana", domain.Junior)
	env.assign(t, st, "Checkout", dev.ID)

	res, err := env.Engine.StartSprint(env.Ctx, st)
	if err != nil {
		t.Fatalf("start sprint: %v", err)
	}
	if res.Sprint.Number != 1 {
		t.Fatalf("sprint number = %d, want 1", res.Sprint.Number)
	}
	if res.Revenue != 1000 {
		t.Fatalf("revenue = %d, want 1000", res.Revenue)
	}
	if res.Budget != 10000 {
		t.Fatalf("budget = %d, want 10000", res.Budget)
	}
	story := findStory(st, "Checkout")
	if !story.Complete || story.Progress != 100 {
		t.Fatalf("story progress=%d complete=%v, want 100/true", story.Progress, story.Complete)
	}
	if !res.Finished || res.Route != "summary" {
		t.Fatalf("finished=%v route=%q, want true/summary", res.Finished, res.Route)
	}

	// persisted
	reloaded, err := env.Engine.LoadState(env.Ctx, st.Instance.ID, "alice")
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.Instance.Budget != 10000 {
		t.Fatalf("persisted budget = %d, want 10000", reloaded.Instance.Budget)
	}
	if !findStory(reloaded, "Checkout").Complete {
		t.Fatalf("persisted story not complete")
	}
	if reloaded.CompletedSprints() != 1 {
		t.Fatalf("persisted sprints = %d, want 1", reloaded.CompletedSprints())
	}
}

func TestSprintRecordsBurnDownInStoryPoints(t *testing.T) {
	env := newTestEnv(t)
	env.createProject(t, "shop", 10000, 5)
	env.addStory(t, "shop", "Pay", 10, false)
	env.addStory(t, "shop", "Search", 40, false)
	env.fixedRolls(100)

	st := env.start(t, "alice", "shop")
	dev := env.hire(t, st, "Dana", domain.Junior)
	env.assign(t, st, "Pay", dev.ID)

	res, err := env.Engine.StartSprint(env.Ctx, st)
	if err != nil {
		t.Fatalf("start sprint: %v", err)
	}
	// Completing the 10-point story drops remaining work from 50 to 40;
	// the sprint record keeps that burn-down, not a percentage.
	if res.Sprint.Progress != 10 {
		t.Fatalf("sprint progress = %d, want 10", res.Sprint.Progress)
	}
	for _, want := range []string{"10 story points done", "40 story points remaining"} {
		if !strings.Contains(res.Sprint.Summary, want) {
			t.Fatalf("summary %q missing %q", res.Sprint.Summary, want)
		}
	}
}

func TestCompletedStoryStaysDoneAcrossSprints(t *testing.T) {
	env := newTestEnv(t)
	env.createProject(t, "shop", 10000, 5)
	env.addStory(t, "shop", "Login", 2, false)
	env.addStory(t, "shop", "Reports", 50, false)
	env.fixedRolls(100)

	st := env.start(t, "alice", "shop")
	dev := env.hire(t, st, "Dana", domain.Junior)
	env.assign(t, st, "Login", dev.ID)

	first, err := env.Engine.StartSprint(env.Ctx, st)
	if err != nil {
		t.Fatalf("sprint 1: %v", err)
	}
	if first.Revenue != 1000 {
		t.Fatalf("sprint 1 revenue = %d, want 1000", first.Revenue)
	}

	env.assign(t, st, "Reports", dev.ID)
	second, err := env.Engine.StartSprint(env.Ctx, st)
	if err != nil {
		t.Fatalf("sprint 2: %v", err)
	}
	// The finished story is untouched by later allocator runs and its
	// points are not paid out a second time.
	login := findStory(st, "Login")
	if !login.Complete || login.Progress != 100 {
		t.Fatalf("login progress=%d complete=%v, want 100/true", login.Progress, login.Complete)
	}
	if second.Revenue != 25000 {
		t.Fatalf("sprint 2 revenue = %d, want 25000", second.Revenue)
	}
	if second.Sprint.Progress != 50 {
		t.Fatalf("sprint 2 progress = %d, want 50", second.Sprint.Progress)
	}
}

func TestWorkloadPenaltySplitsProgressByPoints(t *testing.T) {
	env := newTestEnv(t)
	env.createProject(t, "shop", 10000, 5)
	env.addStory(t, "shop", "API", 2, false)
	env.addStory(t, "shop", "Docs", 1, false)
	env.fixedRolls(100)

	st := env.start(t, "alice", "shop")
	dev := env.hire(t, st, "Dana", domain.Junior)
	env.assign(t, st, "API", dev.ID)
	env.assign(t, st, "Docs", dev.ID)

	res, err := env.Engine.StartSprint(env.Ctx, st)
	if err != nil {
		t.Fatalf("start sprint: %v", err)
	}
	// Two stories scale the 100 roll by 0.9; the 90 points of progress
	// split 2:1 with each share rounded up.
	if got := findStory(st, "API").Progress; got != 60 {
		t.Fatalf("API progress = %d, want 60", got)
	}
	if got := findStory(st, "Docs").Progress; got != 30 {
		t.Fatalf("Docs progress = %d, want 30", got)
	}
	if res.Revenue != 0 {
		t.Fatalf("revenue = %d, want 0", res.Revenue)
	}
	if res.Budget != 9000 {
		t.Fatalf("budget = %d, want 9000", res.Budget)
	}
	if res.Finished {
		t.Fatalf("should not be finished")
	}
}

func TestWorkloadPenaltyFloor(t *testing.T) {
	env := newTestEnv(t)
	env.createProject(t, "shop", 10000, 5)
	for _, title := range []string{"S1", "S2", "S3", "S4", "S5", "S6", "S7"} {
		env.addStory(t, "shop", title, 1, false)
	}
	env.fixedRolls(100)

	st := env.start(t, "alice", "shop")
	dev := env.hire(t, st, "Dana", domain.Junior)
	for _, title := range []string{"S1", "S2", "S3", "S4", "S5", "S6", "S7"} {
		env.assign(t, st, title, dev.ID)
	}

	if _, err := env.Engine.StartSprint(env.Ctx, st); err != nil {
		t.Fatalf("start sprint: %v", err)
	}
	// Seven stories would scale by 0.4 but the factor floors at 0.5, so
	// 50 points split evenly: ceil(50/7) = 8 each.
	for _, title := range []string{"S1", "S2", "S3", "S4", "S5", "S6", "S7"} {
		if got := findStory(st, title).Progress; got != 8 {
			t.Fatalf("%s progress = %d, want 8", title, got)
		}
	}
}

func TestZeroPointStoriesEarnNothing(t *testing.T) {
	env := newTestEnv(t)
	env.createProject(t, "shop", 10000, 5)
	env.addStory(t, "shop", "Spike", 0, false)
	env.fixedRolls(100)

	st := env.start(t, "alice", "shop")
	dev := env.hire(t, st, "Dana", domain.Junior)
	env.assign(t, st, "Spike", dev.ID)

	res, err := env.Engine.StartSprint(env.Ctx, st)
	if err != nil {
		t.Fatalf("start sprint: %v", err)
	}
	if res.Revenue != 0 {
		t.Fatalf("revenue = %d, want 0", res.Revenue)
	}
	if got := findStory(st, "Spike").Progress; got != 0 {
		t.Fatalf("progress = %d, want 0", got)
	}
}

func TestSprintPreconditions(t *testing.T) {
	env := newTestEnv(t)
	env.createProject(t, "shop", 10000, 5)
	env.addStory(t, "shop", "Checkout", 2, false)
	env.fixedRolls(100)

	st := env.start(t, "alice", "shop")
	if err := env.Engine.CanStartSprint(st); !errors.Is(err, engine.ErrEmptyTeam) {
		t.Fatalf("empty team: got %v", err)
	}

	dev := env.hire(t, st, "Dana", domain.Junior)
	if err := env.Engine.CanStartSprint(st); !errors.Is(err, engine.ErrNoAssignableStories) {
		t.Fatalf("nothing assigned: got %v", err)
	}

	env.assign(t, st, "Checkout", dev.ID)
	if err := env.Engine.CanStartSprint(st); err != nil {
		t.Fatalf("should be startable: %v", err)
	}
}

func TestInsufficientBudgetBlocksSprint(t *testing.T) {
	env := newTestEnv(t)
	env.createProject(t, "tight", 500, 5)
	env.addStory(t, "tight", "Checkout", 2, false)

	st := env.start(t, "alice", "tight")
	dev := env.hire(t, st, "Dana", domain.Junior) // salary 1000 > budget 500
	env.assign(t, st, "Checkout", dev.ID)

	if _, err := env.Engine.StartSprint(env.Ctx, st); !errors.Is(err, engine.ErrInsufficientBudget) {
		t.Fatalf("got %v, want ErrInsufficientBudget", err)
	}
}

func TestSprintLimitReached(t *testing.T) {
	env := newTestEnv(t)
	env.createProject(t, "short", 10000, 1)
	env.addStory(t, "short", "Big One", 50, false)
	env.fixedRolls(1)

	st := env.start(t, "alice", "short")
	dev := env.hire(t, st, "Dana", domain.Junior)
	env.assign(t, st, "Big One", dev.ID)

	res, err := env.Engine.StartSprint(env.Ctx, st)
	if err != nil {
		t.Fatalf("first sprint: %v", err)
	}
	if !res.Finished {
		t.Fatalf("single-sprint project should finish after one sprint")
	}
	if _, err := env.Engine.StartSprint(env.Ctx, st); !errors.Is(err, engine.ErrSprintLimitReached) {
		t.Fatalf("got %v, want ErrSprintLimitReached", err)
	}
}

func TestBudgetCutAppliesToSettledBudget(t *testing.T) {
	env := newTestEnv(t)
	env.createProject(t, "shop", 1200, 5)
	env.addStory(t, "shop", "Checkout", 50, false)
	env.fixedRolls(1)

	st := env.start(t, "alice", "shop")
	dev := env.hire(t, st, "Dana", domain.Junior)
	env.assign(t, st, "Checkout", dev.ID)

	// roll, then event branch 3 (budget cut), then a 30% cut.
	env.useRand(draw(0), draw(3), draw(20))
	res, err := env.Engine.StartSprint(env.Ctx, st)
	if err != nil {
		t.Fatalf("start sprint: %v", err)
	}
	// The cut hits the budget after the 1000 salary: 30% of 200, not of
	// the 1200 the sprint started with.
	if res.Event == nil || res.Event.BudgetDelta != -60 {
		t.Fatalf("event = %+v, want budget delta -60", res.Event)
	}
	if res.Budget != 140 {
		t.Fatalf("budget = %d, want 140", res.Budget)
	}
	reloaded, err := env.Engine.Repo.GetInstance(env.Ctx, st.Instance.ID)
	if err != nil {
		t.Fatalf("reload instance: %v", err)
	}
	if reloaded.Budget != 140 {
		t.Fatalf("persisted budget = %d, want 140", reloaded.Budget)
	}
}

func TestBudgetNeverNegative(t *testing.T) {
	env := newTestEnv(t)
	env.createProject(t, "shop", 1000, 5)
	env.addStory(t, "shop", "Checkout", 50, false)
	env.fixedRolls(1)

	st := env.start(t, "alice", "shop")
	dev := env.hire(t, st, "Dana", domain.Junior)
	env.assign(t, st, "Checkout", dev.ID)

	// Salary consumes the whole budget; the drawn cut has nothing left to
	// take and the sprint ends quiet.
	env.useRand(draw(0), draw(3), draw(20))
	res, err := env.Engine.StartSprint(env.Ctx, st)
	if err != nil {
		t.Fatalf("start sprint: %v", err)
	}
	if res.Budget != 0 {
		t.Fatalf("budget = %d, want 0", res.Budget)
	}
	if res.Event != nil {
		t.Fatalf("event = %+v, want none", res.Event)
	}
	reloaded, err := env.Engine.Repo.GetInstance(env.Ctx, st.Instance.ID)
	if err != nil {
		t.Fatalf("reload instance: %v", err)
	}
	if reloaded.Budget != 0 {
		t.Fatalf("persisted budget = %d, want 0", reloaded.Budget)
	}
}

func TestSickDeveloperCannotCarrySprint(t *testing.T) {
	env := newTestEnv(t)
	env.createProject(t, "shop", 10000, 5)
	env.addStory(t, "shop", "Checkout", 2, false)

	st := env.start(t, "alice", "shop")
	dev := env.hire(t, st, "Dana", domain.Junior)
	env.assign(t, st, "Checkout", dev.ID)

	st.Team[0].Sick = true
	st.Team[0].SickUntilSprint = 5
	if err := env.Engine.CanStartSprint(st); !errors.Is(err, engine.ErrNoAssignableStories) {
		t.Fatalf("got %v, want ErrNoAssignableStories", err)
	}
}

func TestSickDeveloperRecoversAfterLeave(t *testing.T) {
	env := newTestEnv(t)
	env.createProject(t, "shop", 10000, 5)
	env.addStory(t, "shop", "Checkout", 2, false)
	env.fixedRolls(100)

	st := env.start(t, "alice", "shop")
	dev := env.hire(t, st, "Dana", domain.Junior)
	env.assign(t, st, "Checkout", dev.ID)

	sick := *st.Team[0]
	sick.Sick = true
	sick.SickUntilSprint = 1
	if err := env.Engine.Repo.UpdateDeveloperAbsence(env.Ctx, sick); err != nil {
		t.Fatalf("mark sick: %v", err)
	}
	playSprints(t, env, st.Instance.ID, 2)

	st, err := env.Engine.LoadState(env.Ctx, st.Instance.ID, "alice")
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	res, err := env.Engine.StartSprint(env.Ctx, st)
	if err != nil {
		t.Fatalf("start sprint: %v", err)
	}
	if st.Team[0].Sick {
		t.Fatalf("developer should have recovered")
	}
	if !findStory(st, "Checkout").Complete {
		t.Fatalf("recovered developer should have finished the story")
	}
	got, err := env.Engine.Repo.GetDeveloper(env.Ctx, dev.ID)
	if err != nil {
		t.Fatalf("get developer: %v", err)
	}
	if got.Sick || got.SickUntilSprint != 0 {
		t.Fatalf("recovery not persisted: %+v", got)
	}
	if res.Sprint.Number != 3 {
		t.Fatalf("sprint number = %d, want 3", res.Sprint.Number)
	}
}

// playSprints fabricates already-played sprint records.
func playSprints(t *testing.T, env *testEnv, instanceID string, n int) {
	t.Helper()
	tx, err := env.Engine.DB.BeginTx(env.Ctx, nil)
	if err != nil {
		t.Fatalf("begin tx: %v", err)
	}
	defer tx.Rollback()
	for i := 1; i <= n; i++ {
		s := domain.Sprint{
			ID:         newSprintID(i),
			InstanceID: instanceID,
			Number:     i,
			Duration:   14,
			Completed:  true,
			CreatedAt:  "2024-01-01T00:00:00Z",
		}
		if err := env.Engine.Repo.InsertSprintTx(env.Ctx, tx, s); err != nil {
			t.Fatalf("insert sprint %d: %v", i, err)
		}
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
}

func newSprintID(i int) string {
	return "sprint-" + string(rune('0'+i))
}
