package repo

import (
	"context"
	"database/sql"

	"scrumline/internal/domain"
)

func (r Repo) InsertSprintTx(ctx context.Context, tx *sql.Tx, s domain.Sprint) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO sprints(id,instance_id,number,duration,completed,progress,summary,created_at) VALUES (?,?,?,?,?,?,?,?)`,
		s.ID, s.InstanceID, s.Number, s.Duration, s.Completed, s.Progress, s.Summary, s.CreatedAt)
	return err
}

// ListSprints returns a play-through's sprint records in order.
func (r Repo) ListSprints(ctx context.Context, instanceID string) ([]domain.Sprint, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,instance_id,number,duration,completed,progress,summary,created_at FROM sprints WHERE instance_id=? ORDER BY number`, instanceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Sprint
	for rows.Next() {
		var s domain.Sprint
		if err := rows.Scan(&s.ID, &s.InstanceID, &s.Number, &s.Duration, &s.Completed, &s.Progress, &s.Summary, &s.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, s)
	}
	return res, rows.Err()
}
