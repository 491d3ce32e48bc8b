package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"scrumline/internal/domain"
	"scrumline/internal/notify"
)

type badgeDetail struct {
	Description string
	Icon        string
}

var badgeDetails = map[domain.BadgeType]badgeDetail{
	domain.BadgeFirstProjectCompleted: {"Completed your first project.", "🏆"},
	domain.BadgeSeasonedDeveloper:     {"Completed five projects.", "💼"},
	domain.BadgeMasterArchitect:       {"Completed ten projects.", "🏗️"},
	domain.BadgeVersatile:             {"Assigned stories to developers of three different experience levels.", "🔀"},
	domain.BadgeProblemSlayer:         {"Completed thirty user stories.", "⚔️"},
	domain.BadgeFirstDailyChallenge:   {"Completed your first daily challenge.", "🏅"},
	domain.BadgeDailyGrinder:          {"Completed five daily challenges.", "📅"},
}

// CheckAndAwardBadges evaluates every project-driven achievement for the
// user and stores the ones newly earned. Awards are idempotent: a badge
// type held already is never granted twice.
func (e Engine) CheckAndAwardBadges(ctx context.Context, st *State) ([]domain.Badge, error) {
	projects, err := e.Repo.CountCompletedProjects(ctx, st.UserID)
	if err != nil {
		return nil, fmt.Errorf("count completed projects: %w", err)
	}
	stories, err := e.Repo.CountCompletedStories(ctx, st.UserID)
	if err != nil {
		return nil, fmt.Errorf("count completed stories: %w", err)
	}
	levels, err := e.Repo.CountDistinctAssignedLevels(ctx, st.UserID)
	if err != nil {
		return nil, fmt.Errorf("count assigned levels: %w", err)
	}

	var due []domain.BadgeType
	if projects == 1 {
		due = append(due, domain.BadgeFirstProjectCompleted)
	}
	if projects >= 5 {
		due = append(due, domain.BadgeSeasonedDeveloper)
	}
	if projects >= 10 {
		due = append(due, domain.BadgeMasterArchitect)
	}
	if levels >= 3 {
		due = append(due, domain.BadgeVersatile)
	}
	if stories >= 30 {
		due = append(due, domain.BadgeProblemSlayer)
	}
	return e.award(ctx, st.UserID, due)
}

// CheckDailyBadges evaluates the daily-challenge achievements.
func (e Engine) CheckDailyBadges(ctx context.Context, userID string) ([]domain.Badge, error) {
	n, err := e.Repo.CountChallengeCompletions(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("count challenge completions: %w", err)
	}
	var due []domain.BadgeType
	if n == 1 {
		due = append(due, domain.BadgeFirstDailyChallenge)
	}
	if n == 5 {
		due = append(due, domain.BadgeDailyGrinder)
	}
	return e.award(ctx, userID, due)
}

func (e Engine) award(ctx context.Context, userID string, due []domain.BadgeType) ([]domain.Badge, error) {
	var awarded []domain.Badge
	for _, t := range due {
		detail := badgeDetails[t]
		b := domain.Badge{
			ID:          uuid.New().String(),
			UserID:      userID,
			Type:        t,
			Description: detail.Description,
			Icon:        detail.Icon,
			AwardedAt:   e.now().UTC().Format(time.RFC3339),
		}
		fresh, err := e.Repo.AwardBadge(ctx, b)
		if err != nil {
			return nil, fmt.Errorf("award badge %s: %w", t, err)
		}
		if !fresh {
			continue
		}
		awarded = append(awarded, b)
		e.emit(fmt.Sprintf("%s Achievement unlocked: %s", b.Icon, b.Description), notify.Success)
	}
	return awarded, nil
}
