package engine

import (
	"context"
	"fmt"

	"scrumline/internal/domain"
)

// State is the full in-memory view of one play-through: the catalog
// project, the saved instance, its team, story copies and sprint history.
// Engine operations load it once, mutate it, and persist the delta.
type State struct {
	UserID   string
	Project  domain.Project
	Instance domain.Instance
	Team     []*domain.Developer
	Stories  []*domain.StoryInstance
	Sprints  []domain.Sprint
}

// LoadState assembles the state of one instance from the repository.
func (e Engine) LoadState(ctx context.Context, instanceID, userID string) (*State, error) {
	inst, err := e.Repo.GetInstance(ctx, instanceID)
	if err != nil {
		return nil, fmt.Errorf("load instance: %w", err)
	}
	project, err := e.Repo.GetProject(ctx, inst.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("load project: %w", err)
	}
	team, err := e.Repo.ListTeam(ctx, instanceID)
	if err != nil {
		return nil, fmt.Errorf("load team: %w", err)
	}
	stories, err := e.Repo.ListStoryInstances(ctx, instanceID)
	if err != nil {
		return nil, fmt.Errorf("load stories: %w", err)
	}
	sprints, err := e.Repo.ListSprints(ctx, instanceID)
	if err != nil {
		return nil, fmt.Errorf("load sprints: %w", err)
	}
	st := &State{
		UserID:   userID,
		Project:  project,
		Instance: inst,
		Sprints:  sprints,
	}
	for i := range team {
		st.Team = append(st.Team, &team[i])
	}
	for i := range stories {
		st.Stories = append(st.Stories, &stories[i])
	}
	return st, nil
}

// CompletedSprints is the number of sprints already played.
func (s *State) CompletedSprints() int {
	return len(s.Sprints)
}

// TotalSalary sums the per-sprint cost of every developer on the roster,
// including sick and absent ones. Payroll does not pause for absence.
func (s *State) TotalSalary() int {
	total := 0
	for _, d := range s.Team {
		total += d.Cost
	}
	return total
}

// OverallProgress is the mean story progress, 0 to 100. An empty ledger
// counts as zero.
func (s *State) OverallProgress() int {
	if len(s.Stories) == 0 {
		return 0
	}
	total := 0
	for _, si := range s.Stories {
		total += si.Progress
	}
	return total / len(s.Stories)
}

// RemainingPoints sums the story points of every incomplete story.
func (s *State) RemainingPoints() int {
	total := 0
	for _, si := range s.Stories {
		if !si.Complete {
			total += si.Story.Points
		}
	}
	return total
}

func (s *State) AllStoriesComplete() bool {
	for _, si := range s.Stories {
		if !si.Complete {
			return false
		}
	}
	return len(s.Stories) > 0
}

// Finished reports whether the play-through is over: every planned sprint
// has been run or all work is done.
func (s *State) Finished() bool {
	if s.Project.NumSprints > 0 && s.CompletedSprints() >= s.Project.NumSprints {
		return true
	}
	return s.AllStoriesComplete()
}

// Developer returns the roster entry with the given id, or nil.
func (s *State) Developer(id string) *domain.Developer {
	for _, d := range s.Team {
		if d.ID == id {
			return d
		}
	}
	return nil
}

// AssignedStories returns the incomplete stories assigned to dev.
func (s *State) AssignedStories(devID string) []*domain.StoryInstance {
	var out []*domain.StoryInstance
	for _, si := range s.Stories {
		if si.Complete || si.DeveloperID == nil {
			continue
		}
		if *si.DeveloperID == devID {
			out = append(out, si)
		}
	}
	return out
}
