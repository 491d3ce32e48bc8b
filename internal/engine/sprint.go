package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"scrumline/internal/domain"
	"scrumline/internal/events"
	"scrumline/internal/notify"
)

// SprintResult reports the outcome of one played sprint. Route names the
// view the caller should show next: "sprints" while the play-through is
// still running, "summary" once it is over.
type SprintResult struct {
	Sprint   domain.Sprint  `json:"sprint"`
	Revenue  int            `json:"revenue"`
	Budget   int            `json:"budget"`
	Finished bool           `json:"finished"`
	Route    string         `json:"route"`
	Event    *EventOutcome  `json:"event,omitempty"`
	Badges   []domain.Badge `json:"badges,omitempty"`
}

// CanStartSprint checks every precondition without mutating anything.
func (e Engine) CanStartSprint(st *State) error {
	if st.Project.NumSprints > 0 && st.CompletedSprints() >= st.Project.NumSprints {
		return ErrSprintLimitReached
	}
	if len(st.Team) == 0 {
		return ErrEmptyTeam
	}
	if st.Instance.Budget < st.TotalSalary() {
		return ErrInsufficientBudget
	}
	completed := st.CompletedSprints()
	assignable := false
	for _, si := range st.Stories {
		if si.Complete || si.DeveloperID == nil {
			continue
		}
		if dev := st.Developer(*si.DeveloperID); dev != nil && dev.Available(completed) {
			assignable = true
			break
		}
	}
	if !assignable {
		return ErrNoAssignableStories
	}
	return nil
}

// StartSprint plays one full sprint: sick developers whose leave has
// elapsed recover, salaries are paid, assigned stories advance, a random
// event fires, and the whole delta is committed in one transaction.
func (e Engine) StartSprint(ctx context.Context, st *State) (*SprintResult, error) {
	if err := e.CanStartSprint(st); err != nil {
		return nil, err
	}
	rng := e.rng()
	completed := st.CompletedSprints()

	var recovered []*domain.Developer
	for _, dev := range st.Team {
		if dev.Sick && !dev.PermanentlyAbsent && dev.SickUntilSprint <= completed {
			dev.Sick = false
			dev.SickUntilSprint = 0
			recovered = append(recovered, dev)
		}
	}

	completeBefore := 0
	for _, si := range st.Stories {
		if si.Complete {
			completeBefore++
		}
	}
	remainingBefore := st.RemainingPoints()

	revenue := e.allocateSprint(st, rng)

	completeNow := 0
	for _, si := range st.Stories {
		if si.Complete {
			completeNow++
		}
	}
	remainingAfter := st.RemainingPoints()

	budget := st.Instance.Budget - st.TotalSalary() + revenue
	if budget < 0 {
		budget = 0
	}

	// No event fires on the sprint that ends the project. The budget cut
	// branch sees the budget after salaries and revenue, not before.
	finished := st.AllStoriesComplete() ||
		(st.Project.NumSprints > 0 && completed+1 >= st.Project.NumSprints)
	outcome := &EventOutcome{Kind: eventNone}
	if !finished {
		o, err := e.triggerRandomEvent(ctx, st, budget, rng)
		if err != nil {
			return nil, err
		}
		outcome = o
	}
	budget += outcome.BudgetDelta
	if budget < 0 {
		budget = 0
	}

	sprint := domain.Sprint{
		ID:         uuid.New().String(),
		InstanceID: st.Instance.ID,
		Number:     completed + 1,
		Duration:   e.Config.Simulation.SprintDuration,
		Completed:  true,
		// Progress is the sprint's burn-down: how many story points of
		// remaining work the allocator cleared.
		Progress: remainingBefore - remainingAfter,
		Summary: fmt.Sprintf("Sprint %d: %d stories completed, %d story points done, revenue %d, %d story points remaining, budget %d",
			completed+1, completeNow-completeBefore, remainingBefore-remainingAfter,
			revenue, remainingAfter, budget),
		CreatedAt: e.now().UTC().Format(time.RFC3339),
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin sprint tx: %w", err)
	}
	defer tx.Rollback()

	for _, s := range outcome.NewTemplates {
		if err := e.Repo.InsertStoryTx(ctx, tx, s); err != nil {
			return nil, fmt.Errorf("insert event story template: %w", err)
		}
	}
	for _, si := range outcome.NewStories {
		if err := e.Repo.InsertStoryInstanceTx(ctx, tx, *si); err != nil {
			return nil, fmt.Errorf("insert event story: %w", err)
		}
	}
	updates := make([]domain.StoryInstance, 0, len(st.Stories))
	for _, si := range st.Stories {
		updates = append(updates, *si)
	}
	if err := e.Repo.UpsertStoryInstancesTx(ctx, tx, updates); err != nil {
		return nil, fmt.Errorf("save stories: %w", err)
	}
	for _, dev := range st.Team {
		if err := e.Repo.UpdateDeveloperAbsenceTx(ctx, tx, *dev); err != nil {
			return nil, fmt.Errorf("save developer %s: %w", dev.ID, err)
		}
	}
	if err := e.Repo.InsertSprintTx(ctx, tx, sprint); err != nil {
		return nil, fmt.Errorf("insert sprint: %w", err)
	}
	if err := e.Repo.UpdateInstanceBudgetTx(ctx, tx, st.Instance.ID, budget); err != nil {
		return nil, fmt.Errorf("update budget: %w", err)
	}
	payload := events.EventPayload{
		"number":  sprint.Number,
		"revenue": revenue,
		"budget":  budget,
		"event":   outcome.Kind,
	}
	if err := e.Events.Append(ctx, tx, "sprint.completed", st.Instance.ID, "sprint", sprint.ID, st.UserID, payload); err != nil {
		return nil, fmt.Errorf("append event: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit sprint tx: %w", err)
	}

	st.Instance.Budget = budget
	st.Sprints = append(st.Sprints, sprint)
	st.Stories = append(st.Stories, outcome.NewStories...)

	for _, dev := range recovered {
		e.emit(fmt.Sprintf("%s has recovered and is back on the team.", dev.Name), notify.Info)
	}
	for _, msg := range outcome.Messages {
		e.emit(msg.Text, msg.Severity)
	}
	if revenue > 0 {
		e.emit(fmt.Sprintf("Sprint %d earned %d in revenue.", sprint.Number, revenue), notify.Success)
	}

	res := &SprintResult{
		Sprint:   sprint,
		Revenue:  revenue,
		Budget:   budget,
		Finished: st.Finished(),
		Route:    "sprints",
	}
	if outcome.Kind != eventNone {
		res.Event = outcome
	}
	if res.Finished {
		res.Route = "summary"
		badges, err := e.CheckAndAwardBadges(ctx, st)
		if err != nil {
			return nil, err
		}
		res.Badges = badges
		e.emit(fmt.Sprintf("Project %q is finished with a budget of %d.", st.Project.Title, budget), notify.Success)
	}
	return res, nil
}
