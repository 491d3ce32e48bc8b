package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"scrumline/internal/domain"
	"scrumline/internal/events"
	"scrumline/internal/notify"
	"scrumline/internal/repo"
)

// StartProject creates a fresh play-through of a catalog project: a new
// instance holding the project's starting budget plus zero-progress
// copies of every initial story. One play-through per user and project.
func (e Engine) StartProject(ctx context.Context, userID, projectID string) (domain.Instance, error) {
	project, err := e.Repo.GetProject(ctx, projectID)
	if err != nil {
		return domain.Instance{}, fmt.Errorf("load project: %w", err)
	}
	if _, err := e.Repo.FindInstance(ctx, projectID, userID); err == nil {
		return domain.Instance{}, ErrInstanceExists
	} else if !errors.Is(err, repo.ErrNotFound) {
		return domain.Instance{}, err
	}
	stories, err := e.Repo.ListInitialStories(ctx, projectID)
	if err != nil {
		return domain.Instance{}, fmt.Errorf("load stories: %w", err)
	}

	inst := domain.Instance{
		ID:        uuid.New().String(),
		UserID:    userID,
		ProjectID: projectID,
		Budget:    project.Budget,
		CreatedAt: e.now().UTC().Format(time.RFC3339),
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Instance{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := e.Repo.InsertInstanceTx(ctx, tx, inst); err != nil {
		return domain.Instance{}, fmt.Errorf("insert instance: %w", err)
	}
	for _, s := range stories {
		si := domain.StoryInstance{
			ID:         uuid.New().String(),
			StoryID:    s.ID,
			InstanceID: inst.ID,
		}
		if err := e.Repo.InsertStoryInstanceTx(ctx, tx, si); err != nil {
			return domain.Instance{}, fmt.Errorf("insert story instance: %w", err)
		}
	}
	payload := events.EventPayload{"project_id": projectID, "budget": inst.Budget, "stories": len(stories)}
	if err := e.Events.Append(ctx, tx, "instance.started", inst.ID, "instance", inst.ID, userID, payload); err != nil {
		return domain.Instance{}, fmt.Errorf("append event: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return domain.Instance{}, fmt.Errorf("commit tx: %w", err)
	}

	e.emit(fmt.Sprintf("Started %q with a budget of %d.", project.Title, inst.Budget), notify.Success)
	return inst, nil
}

// DeleteSavedInstance abandons a play-through. The schema cascades the
// roster, story copies, sprint history and challenge completions.
func (e Engine) DeleteSavedInstance(ctx context.Context, userID, instanceID string) error {
	inst, err := e.Repo.GetInstance(ctx, instanceID)
	if err != nil {
		return err
	}
	if inst.UserID != userID {
		return repo.ErrNotFound
	}
	return e.Repo.DeleteInstance(ctx, instanceID)
}

// HireDeveloper adds a developer to the roster at the salary the
// project's cost table sets for the level. Hiring a senior is refused
// while the NoSeniorDevs challenge is in force.
func (e Engine) HireDeveloper(ctx context.Context, st *State, name string, level domain.ExperienceLevel) (domain.Developer, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.Developer{}, errors.New("developer name cannot be empty")
	}
	cost, ok := st.Project.DevCosts[level]
	if !ok {
		cost, ok = e.Config.Costs[level]
	}
	if !ok {
		return domain.Developer{}, fmt.Errorf("unknown experience level %q", level)
	}
	for _, d := range st.Team {
		if strings.EqualFold(d.Name, name) {
			return domain.Developer{}, fmt.Errorf("developer %q is already on the team", name)
		}
	}
	if level == domain.Senior {
		active, err := e.ActiveChallenge(ctx, st.UserID, st.Instance.ID)
		if err != nil {
			return domain.Developer{}, err
		}
		if active != nil && active.ID == ChallengeNoSeniorDevs {
			e.emit("You can't hire senior developers today due to the active challenge.", notify.Error)
			return domain.Developer{}, ErrChallengeRestriction
		}
	}
	dev := domain.Developer{
		ID:         uuid.New().String(),
		InstanceID: st.Instance.ID,
		UserID:     st.UserID,
		Name:       name,
		Level:      level,
		Cost:       cost,
		CreatedAt:  e.now().UTC().Format(time.RFC3339),
	}
	if err := e.Repo.InsertDeveloper(ctx, dev); err != nil {
		return domain.Developer{}, fmt.Errorf("insert developer: %w", err)
	}
	st.Team = append(st.Team, &dev)
	e.emit(fmt.Sprintf("%s joined the team as a %s developer (%d per sprint).", name, level, cost), notify.Success)
	return dev, nil
}

// RemoveDeveloper fires a developer. Their story assignments are cleared
// by the schema.
func (e Engine) RemoveDeveloper(ctx context.Context, st *State, developerID string) error {
	dev := st.Developer(developerID)
	if dev == nil {
		return repo.ErrNotFound
	}
	if err := e.Repo.DeleteDeveloper(ctx, developerID); err != nil {
		return err
	}
	var kept []*domain.Developer
	for _, d := range st.Team {
		if d.ID != developerID {
			kept = append(kept, d)
		}
	}
	st.Team = kept
	for _, si := range st.Stories {
		if si.DeveloperID != nil && *si.DeveloperID == developerID {
			si.DeveloperID = nil
		}
	}
	e.emit(fmt.Sprintf("%s left the team.", dev.Name), notify.Info)
	return nil
}

// AssignStory sets or clears a story's assignee. Completed stories and
// permanently absent developers are rejected; a sick developer may hold
// assignments, they simply contribute nothing until recovery.
func (e Engine) AssignStory(ctx context.Context, st *State, storyInstanceID string, developerID *string) error {
	var target *domain.StoryInstance
	for _, si := range st.Stories {
		if si.ID == storyInstanceID {
			target = si
			break
		}
	}
	if target == nil {
		return repo.ErrNotFound
	}
	if target.Complete {
		return fmt.Errorf("story %q is already complete", target.Story.Title)
	}
	if developerID != nil {
		dev := st.Developer(*developerID)
		if dev == nil {
			return repo.ErrNotFound
		}
		if dev.PermanentlyAbsent {
			return fmt.Errorf("%s has left the project and cannot take work", dev.Name)
		}
	}
	if err := e.Repo.AssignDeveloper(ctx, storyInstanceID, developerID); err != nil {
		return err
	}
	target.DeveloperID = developerID
	return nil
}
