package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"scrumline/internal/domain"
	"scrumline/internal/notify"
)

// ErrChallengeAlreadyApplied means today's challenge was already applied
// to this play-through.
var ErrChallengeAlreadyApplied = errors.New("today's challenge has already been applied to this project")

const (
	ChallengeNoSeniorDevs = "no_senior_devs"
	ChallengeHalfBudget   = "half_budget"
	ChallengeLegacyCode   = "legacy_code"
)

// Modifier is one daily challenge: a named handicap applied to a
// play-through at most once per UTC day.
type Modifier struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`

	apply func(ctx context.Context, e Engine, st *State) error
}

// Modifiers is the challenge catalog. Order matters: the day-of-year
// rotation indexes into it.
var Modifiers = []Modifier{
	{
		ID:          ChallengeNoSeniorDevs,
		Name:        "No Senior Devs",
		Description: "No senior developers are available today. Seniors leave the team and cannot be hired.",
		apply: func(ctx context.Context, e Engine, st *State) error {
			var kept []*domain.Developer
			for _, d := range st.Team {
				if d.Level != domain.Senior {
					kept = append(kept, d)
					continue
				}
				if err := e.Repo.DeleteDeveloper(ctx, d.ID); err != nil {
					return fmt.Errorf("remove senior %s: %w", d.Name, err)
				}
				for _, si := range st.Stories {
					if si.DeveloperID != nil && *si.DeveloperID == d.ID {
						si.DeveloperID = nil
					}
				}
				e.emit(fmt.Sprintf("%s (senior) is unavailable today and left the team.", d.Name), notify.Warning)
			}
			st.Team = kept
			return nil
		},
	},
	{
		ID:          ChallengeHalfBudget,
		Name:        "Half Budget",
		Description: "Budget has been slashed by 50%.",
		apply: func(ctx context.Context, e Engine, st *State) error {
			st.Instance.Budget /= 2
			if err := e.Repo.UpdateInstanceBudget(ctx, st.Instance.ID, st.Instance.Budget); err != nil {
				return fmt.Errorf("halve budget: %w", err)
			}
			e.emit(fmt.Sprintf("Budget slashed to %d.", st.Instance.Budget), notify.Warning)
			return nil
		},
	},
	{
		ID:          ChallengeLegacyCode,
		Name:        "Legacy Code",
		Description: "All user stories are at least 6 story points.",
		apply: func(ctx context.Context, e Engine, st *State) error {
			for _, si := range st.Stories {
				if si.Story.Points >= 6 {
					continue
				}
				if err := e.Repo.UpdateStoryPoints(ctx, si.Story.ID, 6); err != nil {
					return fmt.Errorf("inflate story %s: %w", si.Story.Title, err)
				}
				si.Story.Points = 6
			}
			e.emit("Legacy code everywhere: every story now weighs at least 6 points.", notify.Warning)
			return nil
		},
	},
}

// Modifier returns the catalog entry with the given id.
func (e Engine) Modifier(id string) (Modifier, error) {
	for _, m := range Modifiers {
		if m.ID == id {
			return m, nil
		}
	}
	return Modifier{}, fmt.Errorf("unknown challenge %q", id)
}

// TodayChallenge rotates through the catalog by UTC day of year, so every
// player sees the same challenge on the same day.
func (e Engine) TodayChallenge() Modifier {
	return Modifiers[e.now().UTC().YearDay()%len(Modifiers)]
}

func (e Engine) today() string {
	return e.now().UTC().Format("2006-01-02")
}

// ActiveChallenge returns today's modifier if it has been applied to the
// instance today, or nil. An applied challenge stays in force until UTC
// midnight.
func (e Engine) ActiveChallenge(ctx context.Context, userID, instanceID string) (*Modifier, error) {
	done, err := e.Repo.HasCompletedChallenge(ctx, userID, instanceID, e.today())
	if err != nil {
		return nil, err
	}
	if !done {
		return nil, nil
	}
	m := e.TodayChallenge()
	return &m, nil
}

// ChallengeResult reports an applied challenge and any badges it earned.
type ChallengeResult struct {
	Challenge Modifier       `json:"challenge"`
	Badges    []domain.Badge `json:"badges,omitempty"`
}

// ApplyDailyChallenge applies today's challenge to the play-through.
// Applying the same challenge to the same instance twice on one day is
// rejected; the effect itself runs exactly once.
func (e Engine) ApplyDailyChallenge(ctx context.Context, st *State) (*ChallengeResult, error) {
	date := e.today()
	done, err := e.Repo.HasCompletedChallenge(ctx, st.UserID, st.Instance.ID, date)
	if err != nil {
		return nil, err
	}
	if done {
		return nil, ErrChallengeAlreadyApplied
	}
	m := e.TodayChallenge()
	if err := m.apply(ctx, e, st); err != nil {
		return nil, err
	}
	err = e.Repo.InsertChallengeCompletion(ctx, domain.ChallengeCompletion{
		ID:          uuid.New().String(),
		UserID:      st.UserID,
		InstanceID:  st.Instance.ID,
		Date:        date,
		ChallengeID: m.ID,
	})
	if err != nil {
		return nil, fmt.Errorf("record challenge completion: %w", err)
	}
	badges, err := e.CheckDailyBadges(ctx, st.UserID)
	if err != nil {
		return nil, err
	}
	return &ChallengeResult{Challenge: m, Badges: badges}, nil
}
