package repo

import (
	"context"

	"scrumline/internal/domain"
)

// InsertChallengeCompletion records a daily-challenge application. The
// (user, instance, date) uniqueness constraint makes double-recording for
// the same day fail loudly rather than silently duplicate.
func (r Repo) InsertChallengeCompletion(ctx context.Context, c domain.ChallengeCompletion) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO challenge_completions(id,user_id,instance_id,date,challenge_id) VALUES (?,?,?,?,?)`,
		c.ID, c.UserID, c.InstanceID, c.Date, c.ChallengeID)
	return err
}

func (r Repo) HasCompletedChallenge(ctx context.Context, userID, instanceID, date string) (bool, error) {
	var n int
	err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM challenge_completions WHERE user_id=? AND instance_id=? AND date=?`,
		userID, instanceID, date).Scan(&n)
	return n > 0, err
}

// CountChallengeCompletions counts every daily challenge the user ever
// completed, across all play-throughs.
func (r Repo) CountChallengeCompletions(ctx context.Context, userID string) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM challenge_completions WHERE user_id=?`, userID).Scan(&n)
	return n, err
}
