package engine_test

import (
	"testing"

	"scrumline/internal/domain"
)

func TestAbsenceEventSickLeave(t *testing.T) {
	env := newTestEnv(t)
	env.createProject(t, "shop", 10000, 8)
	env.addStory(t, "shop", "Checkout", 50, false)
	env.fixedRolls(1)

	st := env.start(t, "alice", "shop")
	dev := env.hire(t, st, "Dana", domain.Junior)
	env.assign(t, st, "Checkout", dev.ID)

	// roll, branch 1 (absence), pick first dev, coin 0 (sick), shortest leave
	env.useRand(draw(0), draw(1), draw(0), draw(0), draw(0))
	res, err := env.Engine.StartSprint(env.Ctx, st)
	if err != nil {
		t.Fatalf("start sprint: %v", err)
	}
	if res.Event == nil || res.Event.Kind != "absence" {
		t.Fatalf("event = %+v, want absence", res.Event)
	}
	if !st.Team[0].Sick || st.Team[0].SickUntilSprint != 2 {
		t.Fatalf("dev sick=%v until=%d, want true/2", st.Team[0].Sick, st.Team[0].SickUntilSprint)
	}
	got, err := env.Engine.Repo.GetDeveloper(env.Ctx, dev.ID)
	if err != nil {
		t.Fatalf("get developer: %v", err)
	}
	if !got.Sick || got.SickUntilSprint != 2 {
		t.Fatalf("persisted sick=%v until=%d, want true/2", got.Sick, got.SickUntilSprint)
	}
}

func TestAbsenceEventPermanentLeave(t *testing.T) {
	env := newTestEnv(t)
	env.createProject(t, "shop", 10000, 8)
	env.addStory(t, "shop", "Checkout", 50, false)
	env.fixedRolls(1)

	st := env.start(t, "alice", "shop")
	dev := env.hire(t, st, "Dana", domain.Junior)
	env.assign(t, st, "Checkout", dev.ID)

	// roll, branch 1 (absence), pick first dev, coin 1 (permanent)
	env.useRand(draw(0), draw(1), draw(0), draw(1))
	if _, err := env.Engine.StartSprint(env.Ctx, st); err != nil {
		t.Fatalf("start sprint: %v", err)
	}
	got, err := env.Engine.Repo.GetDeveloper(env.Ctx, dev.ID)
	if err != nil {
		t.Fatalf("get developer: %v", err)
	}
	if !got.PermanentlyAbsent {
		t.Fatalf("developer should be permanently absent")
	}
	if got.Available(10) {
		t.Fatalf("permanently absent developer must never be available")
	}
}

func TestNewStoryEventDrawsFromUnusedPool(t *testing.T) {
	env := newTestEnv(t)
	env.createProject(t, "shop", 10000, 8)
	env.addStory(t, "shop", "Checkout", 50, false)
	env.addStory(t, "shop", "Surprise Feature", 4, true)
	env.fixedRolls(1)

	st := env.start(t, "alice", "shop")
	if findStory(st, "Surprise Feature") != nil {
		t.Fatalf("random-event story must not be in the initial backlog")
	}
	dev := env.hire(t, st, "Dana", domain.Junior)
	env.assign(t, st, "Checkout", dev.ID)

	// roll, branch 2 (new story), pick from pool
	env.useRand(draw(0), draw(2), draw(0))
	res, err := env.Engine.StartSprint(env.Ctx, st)
	if err != nil {
		t.Fatalf("start sprint: %v", err)
	}
	if res.Event == nil || res.Event.Kind != "new_story" {
		t.Fatalf("event = %+v, want new_story", res.Event)
	}
	added := findStory(st, "Surprise Feature")
	if added == nil {
		t.Fatalf("new story not added to state")
	}
	if added.Progress != 0 || added.Complete || added.DeveloperID != nil {
		t.Fatalf("new story must start unassigned at zero progress: %+v", added)
	}
	reloaded, err := env.Engine.LoadState(env.Ctx, st.Instance.ID, "alice")
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if findStory(reloaded, "Surprise Feature") == nil {
		t.Fatalf("new story not persisted")
	}

	// pool is exhausted now; the same branch degrades to a quiet sprint
	env.useRand(draw(0), draw(2), draw(0))
	res2, err := env.Engine.StartSprint(env.Ctx, reloaded)
	if err != nil {
		t.Fatalf("second sprint: %v", err)
	}
	if res2.Event != nil {
		t.Fatalf("exhausted pool should be a quiet sprint, got %+v", res2.Event)
	}
}

func TestBugInjectionEvent(t *testing.T) {
	env := newTestEnv(t)
	env.createProject(t, "shop", 10000, 8)
	env.addStory(t, "shop", "Checkout", 50, false)
	env.fixedRolls(1)

	st := env.start(t, "alice", "shop")
	dev := env.hire(t, st, "Dana", domain.Junior)
	env.assign(t, st, "Checkout", dev.ID)

	// roll, branch 4 (bug), points offset 1
	env.useRand(draw(0), draw(4), draw(1))
	res, err := env.Engine.StartSprint(env.Ctx, st)
	if err != nil {
		t.Fatalf("start sprint: %v", err)
	}
	if res.Event == nil || res.Event.Kind != "bug" {
		t.Fatalf("event = %+v, want bug", res.Event)
	}
	var bug *domain.StoryInstance
	for _, si := range st.Stories {
		if si.Story.Kind == "bug" {
			bug = si
		}
	}
	if bug == nil {
		t.Fatalf("bug story not added")
	}
	if bug.Story.Points != 3 {
		t.Fatalf("bug points = %d, want 3", bug.Story.Points)
	}
	if bug.Progress != 0 || bug.DeveloperID != nil {
		t.Fatalf("bug must start unassigned at zero progress")
	}
	tmpl, err := env.Engine.Repo.GetStory(env.Ctx, bug.StoryID)
	if err != nil {
		t.Fatalf("bug template not persisted: %v", err)
	}
	if !tmpl.RandomEvent {
		t.Fatalf("bug template must be flagged random_event")
	}
}

func TestMoraleBoostConsumedNextSprint(t *testing.T) {
	env := newTestEnv(t)
	env.createProject(t, "shop", 10000, 8)
	env.addStory(t, "shop", "Checkout", 4, false)
	env.fixedRolls(40)

	st := env.start(t, "alice", "shop")
	dev := env.hire(t, st, "Dana", domain.Junior)
	env.assign(t, st, "Checkout", dev.ID)

	// roll, branch 5 (morale boost)
	env.useRand(draw(0), draw(5))
	res, err := env.Engine.StartSprint(env.Ctx, st)
	if err != nil {
		t.Fatalf("first sprint: %v", err)
	}
	if res.Event == nil || res.Event.Kind != "morale_boost" {
		t.Fatalf("event = %+v, want morale_boost", res.Event)
	}
	got, err := env.Engine.Repo.GetDeveloper(env.Ctx, dev.ID)
	if err != nil {
		t.Fatalf("get developer: %v", err)
	}
	if got.MoraleBoost != 25 {
		t.Fatalf("morale boost = %d, want 25", got.MoraleBoost)
	}

	// The next sprint rolls 40+25% = 50 instead of 40, then clears the
	// boost.
	st, err = env.Engine.LoadState(env.Ctx, st.Instance.ID, "alice")
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	before := findStory(st, "Checkout").Progress
	env.useRand(draw(0), draw(0))
	if _, err := env.Engine.StartSprint(env.Ctx, st); err != nil {
		t.Fatalf("second sprint: %v", err)
	}
	gained := findStory(st, "Checkout").Progress - before
	if gained != 50 {
		t.Fatalf("boosted progress = %d, want 50", gained)
	}
	got, err = env.Engine.Repo.GetDeveloper(env.Ctx, dev.ID)
	if err != nil {
		t.Fatalf("get developer: %v", err)
	}
	if got.MoraleBoost != 0 {
		t.Fatalf("morale boost should be consumed, got %d", got.MoraleBoost)
	}
}
