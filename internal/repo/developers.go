package repo

import (
	"context"
	"database/sql"

	"scrumline/internal/domain"
)

const developerCols = `id,instance_id,user_id,name,level,cost,sick,sick_until_sprint,permanently_absent,morale_boost,created_at`

func scanDeveloper(scan func(dest ...any) error) (domain.Developer, error) {
	var d domain.Developer
	err := scan(&d.ID, &d.InstanceID, &d.UserID, &d.Name, &d.Level, &d.Cost, &d.Sick, &d.SickUntilSprint, &d.PermanentlyAbsent, &d.MoraleBoost, &d.CreatedAt)
	if err == sql.ErrNoRows {
		return d, ErrNotFound
	}
	return d, err
}

func (r Repo) InsertDeveloper(ctx context.Context, d domain.Developer) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO developers(id,instance_id,user_id,name,level,cost,sick,sick_until_sprint,permanently_absent,morale_boost,created_at) VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
		d.ID, d.InstanceID, d.UserID, d.Name, d.Level, d.Cost, d.Sick, d.SickUntilSprint, d.PermanentlyAbsent, d.MoraleBoost, d.CreatedAt)
	return err
}

func (r Repo) GetDeveloper(ctx context.Context, id string) (domain.Developer, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+developerCols+` FROM developers WHERE id=?`, id)
	return scanDeveloper(row.Scan)
}

// ListTeam returns the roster of a project instance, oldest hire first.
func (r Repo) ListTeam(ctx context.Context, instanceID string) ([]domain.Developer, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+developerCols+` FROM developers WHERE instance_id=? ORDER BY created_at, id`, instanceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Developer
	for rows.Next() {
		d, err := scanDeveloper(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, d)
	}
	return res, rows.Err()
}

// DeleteDeveloper removes a developer from the roster. Story instances
// referencing them are unassigned by the schema's ON DELETE SET NULL.
func (r Repo) DeleteDeveloper(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM developers WHERE id=?`, id)
	if err != nil {
		return err
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateDeveloperAbsence persists only the availability flags. A missing
// developer is reported as ErrNotFound so callers can skip silently.
func (r Repo) UpdateDeveloperAbsence(ctx context.Context, d domain.Developer) error {
	return r.updateDeveloperAbsence(ctx, r.DB, d)
}

func (r Repo) UpdateDeveloperAbsenceTx(ctx context.Context, tx *sql.Tx, d domain.Developer) error {
	return r.updateDeveloperAbsence(ctx, tx, d)
}

func (r Repo) updateDeveloperAbsence(ctx context.Context, ex execer, d domain.Developer) error {
	res, err := ex.ExecContext(ctx, `UPDATE developers SET sick=?, sick_until_sprint=?, permanently_absent=?, morale_boost=? WHERE id=?`,
		d.Sick, d.SickUntilSprint, d.PermanentlyAbsent, d.MoraleBoost, d.ID)
	if err != nil {
		return err
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
