package engine

import (
	"math"
	"math/rand"

	"scrumline/internal/domain"
)

// allocateSprint advances story progress for one sprint. Each available
// developer rolls once, the roll is scaled by workload, and the scaled
// progress is split across that developer's stories in proportion to
// story points. Returns the revenue earned by stories completed this
// sprint.
//
// Iteration follows roster order so a seeded source yields a
// reproducible sprint.
func (e Engine) allocateSprint(st *State, rng *rand.Rand) int {
	completed := st.CompletedSprints()
	revenue := 0
	for _, dev := range st.Team {
		if !dev.Available(completed) {
			continue
		}
		stories := st.AssignedStories(dev.ID)
		if len(stories) == 0 {
			continue
		}
		progress := e.developerProgress(dev, len(stories), rng)
		revenue += e.distributeProgress(stories, progress)
	}
	return revenue
}

// developerProgress rolls a developer's raw sprint output and applies the
// workload penalty. A pending morale boost is consumed here.
func (e Engine) developerProgress(dev *domain.Developer, workload int, rng *rand.Rand) int {
	r, ok := e.Config.Simulation.ProgressRolls[dev.Level]
	if !ok {
		return 0
	}
	roll := r.Min + rng.Intn(r.Max-r.Min)
	if dev.MoraleBoost > 0 {
		roll += roll * dev.MoraleBoost / 100
		dev.MoraleBoost = 0
	}
	w := e.Config.Simulation.Workload
	factor := 1.0 - w.PenaltyStep*float64(workload-1)
	if factor < w.Floor {
		factor = w.Floor
	}
	return int(float64(roll) * factor)
}

// distributeProgress splits progress across stories weighted by points
// and returns the revenue from stories that reach completion.
func (e Engine) distributeProgress(stories []*domain.StoryInstance, progress int) int {
	totalPoints := 0
	for _, si := range stories {
		totalPoints += si.Story.Points
	}
	if totalPoints == 0 {
		return 0
	}
	revenue := 0
	for _, si := range stories {
		share := int(math.Ceil(float64(progress) * float64(si.Story.Points) / float64(totalPoints)))
		si.Progress += share
		if si.Progress >= 100 {
			si.Progress = 100
			si.Complete = true
			revenue += si.Story.Points * e.Config.Simulation.RevenuePerPoint
		}
	}
	return revenue
}
