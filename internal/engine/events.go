package engine

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/google/uuid"

	"scrumline/internal/domain"
	"scrumline/internal/notify"
)

// Event kinds a sprint can end with.
const (
	eventNone        = "none"
	eventAbsence     = "absence"
	eventNewStory    = "new_story"
	eventBudgetCut   = "budget_cut"
	eventBug         = "bug"
	eventMoraleBoost = "morale_boost"
)

// EventOutcome is what one random-event roll did to the play-through.
// BudgetDelta is applied by the caller on top of salaries and revenue;
// new templates and story instances are persisted in the sprint
// transaction.
type EventOutcome struct {
	Kind         string                  `json:"kind"`
	BudgetDelta  int                     `json:"budget_delta,omitempty"`
	Messages     []notify.Message        `json:"-"`
	NewTemplates []domain.Story          `json:"-"`
	NewStories   []*domain.StoryInstance `json:"new_stories,omitempty"`
}

func (o *EventOutcome) say(severity notify.Severity, format string, args ...any) {
	o.Messages = append(o.Messages, notify.Message{Text: fmt.Sprintf(format, args...), Severity: severity})
}

// triggerRandomEvent rolls one of six equally likely branches at the end
// of a sprint. A branch whose precondition does not hold (nobody left to
// fall sick, no unused story template) degrades to a quiet sprint rather
// than rerolling.
func (e Engine) triggerRandomEvent(ctx context.Context, st *State, budget int, rng *rand.Rand) (*EventOutcome, error) {
	out := &EventOutcome{Kind: eventNone}
	switch rng.Intn(6) {
	case 0:
		// quiet sprint
	case 1:
		e.eventAbsence(st, rng, out)
	case 2:
		if err := e.eventNewStory(ctx, st, rng, out); err != nil {
			return nil, err
		}
	case 3:
		e.eventBudgetCut(budget, rng, out)
	case 4:
		e.eventBug(st, rng, out)
	case 5:
		e.eventMoraleBoost(st, rng, out)
	}
	return out, nil
}

// eventAbsence takes a random present developer out, half the time with a
// sickness that expires, half the time for good.
func (e Engine) eventAbsence(st *State, rng *rand.Rand, out *EventOutcome) {
	var present []*domain.Developer
	for _, d := range st.Team {
		if !d.Sick && !d.PermanentlyAbsent {
			present = append(present, d)
		}
	}
	if len(present) == 0 {
		return
	}
	dev := present[rng.Intn(len(present))]
	completedAfter := st.CompletedSprints() + 1
	ev := e.Config.Simulation.Events
	if rng.Intn(2) == 0 {
		duration := ev.SickMinSprints + rng.Intn(ev.SickMaxSprints-ev.SickMinSprints+1)
		dev.Sick = true
		dev.SickUntilSprint = completedAfter + duration
		out.Kind = eventAbsence
		out.say(notify.Warning, "%s has fallen sick and is out until sprint %d.", dev.Name, dev.SickUntilSprint)
	} else {
		dev.PermanentlyAbsent = true
		out.Kind = eventAbsence
		out.say(notify.Error, "%s has left the project permanently.", dev.Name)
	}
}

// eventNewStory materializes an unused random-event template for this
// play-through, unassigned and at zero progress.
func (e Engine) eventNewStory(ctx context.Context, st *State, rng *rand.Rand, out *EventOutcome) error {
	pool, err := e.Repo.ListUnusedRandomStories(ctx, st.Project.ID, st.Instance.ID)
	if err != nil {
		return fmt.Errorf("list random stories: %w", err)
	}
	if len(pool) == 0 {
		return nil
	}
	story := pool[rng.Intn(len(pool))]
	si := &domain.StoryInstance{
		ID:         uuid.New().String(),
		StoryID:    story.ID,
		InstanceID: st.Instance.ID,
		Story:      story,
	}
	out.Kind = eventNewStory
	out.NewStories = append(out.NewStories, si)
	out.say(notify.Warning, "The customer added a new story to the backlog: %s (%d points).", story.Title, story.Points)
	return nil
}

// eventBudgetCut slashes the budget by a random percentage of its value
// after the sprint's salaries and revenue have been settled.
func (e Engine) eventBudgetCut(budget int, rng *rand.Rand, out *EventOutcome) {
	ev := e.Config.Simulation.Events
	percent := ev.BudgetCutMinPercent
	if spread := ev.BudgetCutMaxPercent - ev.BudgetCutMinPercent; spread > 0 {
		percent += rng.Intn(spread + 1)
	}
	cut := budget * percent / 100
	if cut == 0 {
		return
	}
	out.Kind = eventBudgetCut
	out.BudgetDelta = -cut
	out.say(notify.Error, "Management cut the budget by %d%% (-%d).", percent, cut)
}

// eventBug creates a fresh bug story and drops it on the backlog. The
// template is scoped to this project and flagged random_event so it never
// leaks into other play-throughs' initial backlogs.
func (e Engine) eventBug(st *State, rng *rand.Rand, out *EventOutcome) {
	ev := e.Config.Simulation.Events
	points := ev.BugPointsMin + rng.Intn(ev.BugPointsMax-ev.BugPointsMin+1)
	story := domain.Story{
		ID:          uuid.New().String(),
		ProjectID:   st.Project.ID,
		Title:       fmt.Sprintf("Bug: regression found in sprint %d", st.CompletedSprints()+1),
		Description: "A defect slipped through review and has to be fixed before release.",
		Points:      points,
		Kind:        "bug",
		RandomEvent: true,
	}
	si := &domain.StoryInstance{
		ID:         uuid.New().String(),
		StoryID:    story.ID,
		InstanceID: st.Instance.ID,
		Story:      story,
	}
	out.Kind = eventBug
	out.NewTemplates = append(out.NewTemplates, story)
	out.NewStories = append(out.NewStories, si)
	out.say(notify.Warning, "A bug was found (%d points). Assign someone to fix it.", points)
}

// eventMoraleBoost grants a productivity bonus to a few random available
// developers, consumed by their next sprint roll.
func (e Engine) eventMoraleBoost(st *State, rng *rand.Rand, out *EventOutcome) {
	ev := e.Config.Simulation.Events
	if ev.MoraleBoostPercent == 0 || ev.MoraleBoostMaxDevs == 0 {
		return
	}
	var present []*domain.Developer
	for _, d := range st.Team {
		if !d.Sick && !d.PermanentlyAbsent {
			present = append(present, d)
		}
	}
	if len(present) == 0 {
		return
	}
	rng.Shuffle(len(present), func(i, j int) { present[i], present[j] = present[j], present[i] })
	n := ev.MoraleBoostMaxDevs
	if n > len(present) {
		n = len(present)
	}
	out.Kind = eventMoraleBoost
	for _, dev := range present[:n] {
		dev.MoraleBoost = ev.MoraleBoostPercent
		out.say(notify.Success, "%s is on a roll: +%d%% output next sprint.", dev.Name, ev.MoraleBoostPercent)
	}
}
