package repo

import (
	"context"

	"scrumline/internal/domain"
)

// AwardBadge inserts a badge if the user does not hold one of that type
// yet. It reports whether a new badge was stored; re-awarding is a no-op.
func (r Repo) AwardBadge(ctx context.Context, b domain.Badge) (bool, error) {
	res, err := r.DB.ExecContext(ctx, `INSERT INTO badges(id,user_id,type,description,icon,awarded_at) VALUES (?,?,?,?,?,?)
		ON CONFLICT(user_id,type) DO NOTHING`,
		b.ID, b.UserID, b.Type, b.Description, b.Icon, b.AwardedAt)
	if err != nil {
		return false, err
	}
	affected, _ := res.RowsAffected()
	return affected > 0, nil
}

func (r Repo) ListBadges(ctx context.Context, userID string) ([]domain.Badge, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,user_id,type,description,icon,awarded_at FROM badges WHERE user_id=? ORDER BY awarded_at, type`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Badge
	for rows.Next() {
		var b domain.Badge
		if err := rows.Scan(&b.ID, &b.UserID, &b.Type, &b.Description, &b.Icon, &b.AwardedAt); err != nil {
			return nil, err
		}
		res = append(res, b)
	}
	return res, rows.Err()
}

// --- aggregates feeding the achievement engine ---

// CountCompletedProjects counts finished play-throughs: every recorded
// sprint completed and the full sprint allowance used up. A backlog
// cleared with sprints to spare does not count.
func (r Repo) CountCompletedProjects(ctx context.Context, userID string) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM instances i
		JOIN projects p ON p.id=i.project_id
		WHERE i.user_id=?
		AND p.num_sprints > 0
		AND NOT EXISTS (SELECT 1 FROM sprints s WHERE s.instance_id=i.id AND s.completed=0)
		AND (SELECT COUNT(*) FROM sprints s WHERE s.instance_id=i.id) >= p.num_sprints`, userID).Scan(&n)
	return n, err
}

// CountCompletedStories counts completed story instances across every
// play-through of the user.
func (r Repo) CountCompletedStories(ctx context.Context, userID string) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM story_instances si
		JOIN instances i ON i.id=si.instance_id
		WHERE i.user_id=? AND si.complete=1`, userID).Scan(&n)
	return n, err
}

// CountDistinctAssignedLevels counts how many distinct experience levels
// the user has ever assigned to stories.
func (r Repo) CountDistinctAssignedLevels(ctx context.Context, userID string) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx, `SELECT COUNT(DISTINCT d.level) FROM story_instances si
		JOIN developers d ON d.id=si.developer_id
		JOIN instances i ON i.id=si.instance_id
		WHERE i.user_id=?`, userID).Scan(&n)
	return n, err
}
