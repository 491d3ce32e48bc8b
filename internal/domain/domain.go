package domain

// ExperienceLevel is a developer's seniority tier. It drives both the
// per-sprint salary (resolved from the project's cost table at hire time)
// and the base progress roll range during a sprint.
type ExperienceLevel string

const (
	Junior   ExperienceLevel = "junior"
	MidLevel ExperienceLevel = "mid"
	Senior   ExperienceLevel = "senior"
)

// Levels lists every experience level in ascending order of seniority.
func Levels() []ExperienceLevel {
	return []ExperienceLevel{Junior, MidLevel, Senior}
}

// Project is a catalog template a play-through is started from.
type Project struct {
	ID          string                  `json:"id"`
	Title       string                  `json:"title"`
	Description string                  `json:"description,omitempty"`
	Budget      int                     `json:"budget"`
	NumSprints  int                     `json:"num_sprints"`
	DevCosts    map[ExperienceLevel]int `json:"dev_costs"`
	CreatedAt   string                  `json:"created_at" format:"date-time"`
}

// Instance is one user's live play-through of a catalog project.
type Instance struct {
	ID        string `json:"id"`
	UserID    string `json:"user_id"`
	ProjectID string `json:"project_id"`
	Budget    int    `json:"budget"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

// Developer is a roster member of a project instance.
//
// MoraleBoost is a pending productivity bonus in percent. It is granted by
// a random event and consumed (then cleared) by the next sprint's
// allocator run.
type Developer struct {
	ID                string          `json:"id"`
	InstanceID        string          `json:"instance_id"`
	UserID            string          `json:"user_id"`
	Name              string          `json:"name"`
	Level             ExperienceLevel `json:"level" enum:"junior,mid,senior"`
	Cost              int             `json:"cost"`
	Sick              bool            `json:"sick"`
	SickUntilSprint   int             `json:"sick_until_sprint"`
	PermanentlyAbsent bool            `json:"permanently_absent"`
	MoraleBoost       int             `json:"morale_boost,omitempty"`
	CreatedAt         string          `json:"created_at" format:"date-time"`
}

// Available reports whether the developer can work right now, given the
// number of sprints completed so far. A permanent absence always wins over
// sickness, and sickness expires once the completed-sprint count catches up
// with SickUntilSprint.
func (d Developer) Available(completedSprints int) bool {
	if d.PermanentlyAbsent {
		return false
	}
	if d.Sick {
		return d.SickUntilSprint <= completedSprints
	}
	return true
}

// Story is a work item template: a unit of scope estimated in story points.
// RandomEvent marks templates held back from project start and only
// materialized by the random event system.
type Story struct {
	ID          string `json:"id"`
	ProjectID   string `json:"project_id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Points      int    `json:"points"`
	Kind        string `json:"kind" enum:"feature,bug"`
	RandomEvent bool   `json:"random_event"`
}

// StoryInstance tracks one story's fractional completion inside a
// play-through. Progress stays within [0,100]; Complete is monotonic and
// never reverts once set.
type StoryInstance struct {
	ID          string  `json:"id"`
	StoryID     string  `json:"story_id"`
	InstanceID  string  `json:"instance_id"`
	Progress    int     `json:"progress"`
	Complete    bool    `json:"complete"`
	DeveloperID *string `json:"developer_id,omitempty"`
	Story       Story   `json:"story"`
}

// Sprint is an immutable record of one completed simulation round.
type Sprint struct {
	ID         string `json:"id"`
	InstanceID string `json:"instance_id"`
	Number     int    `json:"number"`
	Duration   int    `json:"duration"`
	Completed  bool   `json:"completed"`
	Progress   int    `json:"progress"`
	Summary    string `json:"summary"`
	CreatedAt  string `json:"created_at" format:"date-time"`
}

// BadgeType identifies an achievement.
type BadgeType string

const (
	BadgeFirstProjectCompleted BadgeType = "first_project_completed"
	BadgeSeasonedDeveloper     BadgeType = "seasoned_developer"
	BadgeMasterArchitect       BadgeType = "master_architect"
	BadgeVersatile             BadgeType = "versatile"
	BadgeProblemSlayer         BadgeType = "problem_slayer"
	BadgeFirstDailyChallenge   BadgeType = "first_daily_challenge"
	BadgeDailyGrinder          BadgeType = "daily_grinder"
)

// Badge is a durable achievement awarded to a user. At most one badge of a
// given type exists per user.
type Badge struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Type        BadgeType `json:"type"`
	Description string    `json:"description"`
	Icon        string    `json:"icon"`
	AwardedAt   string    `json:"awarded_at" format:"date-time"`
}

// ChallengeCompletion records that a user applied the daily challenge to a
// project instance on a given UTC calendar day. Its uniqueness gates
// re-application.
type ChallengeCompletion struct {
	ID          string `json:"id"`
	UserID      string `json:"user_id"`
	InstanceID  string `json:"instance_id"`
	Date        string `json:"date" format:"date"`
	ChallengeID string `json:"challenge_id"`
}

// Event is one row of the append-only audit log.
type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	InstanceID string `json:"instance_id,omitempty"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	UserID     string `json:"user_id"`
	Payload    string `json:"payload_json"`
}
