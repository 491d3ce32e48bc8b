package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"scrumline/internal/config"
	"scrumline/internal/domain"
)

type Repo struct {
	DB *sql.DB
}

var ErrNotFound = errors.New("not found")

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

// --- projects ---

func (r Repo) InsertProject(ctx context.Context, p domain.Project) error {
	costs, err := json.Marshal(p.DevCosts)
	if err != nil {
		return fmt.Errorf("marshal dev costs: %w", err)
	}
	_, err = r.DB.ExecContext(ctx, `INSERT INTO projects(id,title,description,budget,num_sprints,dev_costs_json,created_at) VALUES (?,?,?,?,?,?,?)`,
		p.ID, p.Title, nullable(p.Description), p.Budget, p.NumSprints, string(costs), p.CreatedAt)
	return err
}

func scanProject(scan func(dest ...any) error) (domain.Project, error) {
	var p domain.Project
	var desc sql.NullString
	var costs string
	err := scan(&p.ID, &p.Title, &desc, &p.Budget, &p.NumSprints, &costs, &p.CreatedAt)
	if err == sql.ErrNoRows {
		return p, ErrNotFound
	}
	if err != nil {
		return p, err
	}
	if desc.Valid {
		p.Description = desc.String
	}
	if err := json.Unmarshal([]byte(costs), &p.DevCosts); err != nil {
		return p, fmt.Errorf("unmarshal dev costs: %w", err)
	}
	return p, nil
}

const projectCols = `id,title,description,budget,num_sprints,dev_costs_json,created_at`

func (r Repo) GetProject(ctx context.Context, id string) (domain.Project, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+projectCols+` FROM projects WHERE id=?`, id)
	return scanProject(row.Scan)
}

// ListProjects returns the catalog ordered richest budget first.
func (r Repo) ListProjects(ctx context.Context) ([]domain.Project, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+projectCols+` FROM projects ORDER BY budget DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Project
	for rows.Next() {
		p, err := scanProject(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, p)
	}
	return res, rows.Err()
}

func (r Repo) CountProjects(ctx context.Context) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM projects`).Scan(&n)
	return n, err
}

// --- project configs ---

func (r Repo) UpsertProjectConfig(ctx context.Context, projectID string, cfg *config.Config) error {
	data, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	now := time.Now().UTC().Format(time.RFC3339)
	_, err = r.DB.ExecContext(ctx, `INSERT INTO project_configs(project_id,config_json,updated_at) VALUES (?,?,?)
		ON CONFLICT(project_id) DO UPDATE SET config_json=excluded.config_json, updated_at=excluded.updated_at`,
		projectID, string(data), now)
	return err
}

func (r Repo) GetProjectConfig(ctx context.Context, projectID string) (*config.Config, error) {
	var data string
	err := r.DB.QueryRowContext(ctx, `SELECT config_json FROM project_configs WHERE project_id=?`, projectID).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var cfg config.Config
	if err := json.Unmarshal([]byte(data), &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}

// --- instances ---

func (r Repo) InsertInstance(ctx context.Context, in domain.Instance) error {
	return r.insertInstance(ctx, r.DB, in)
}

func (r Repo) InsertInstanceTx(ctx context.Context, tx *sql.Tx, in domain.Instance) error {
	return r.insertInstance(ctx, tx, in)
}

func (r Repo) insertInstance(ctx context.Context, ex execer, in domain.Instance) error {
	_, err := ex.ExecContext(ctx, `INSERT INTO instances(id,user_id,project_id,budget,created_at) VALUES (?,?,?,?,?)`,
		in.ID, in.UserID, in.ProjectID, in.Budget, in.CreatedAt)
	return err
}

func scanInstance(scan func(dest ...any) error) (domain.Instance, error) {
	var in domain.Instance
	err := scan(&in.ID, &in.UserID, &in.ProjectID, &in.Budget, &in.CreatedAt)
	if err == sql.ErrNoRows {
		return in, ErrNotFound
	}
	return in, err
}

func (r Repo) GetInstance(ctx context.Context, id string) (domain.Instance, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT id,user_id,project_id,budget,created_at FROM instances WHERE id=?`, id)
	return scanInstance(row.Scan)
}

func (r Repo) FindInstance(ctx context.Context, projectID, userID string) (domain.Instance, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT id,user_id,project_id,budget,created_at FROM instances WHERE project_id=? AND user_id=?`, projectID, userID)
	return scanInstance(row.Scan)
}

func (r Repo) ListInstances(ctx context.Context, userID string) ([]domain.Instance, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,user_id,project_id,budget,created_at FROM instances WHERE user_id=? ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Instance
	for rows.Next() {
		in, err := scanInstance(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, in)
	}
	return res, rows.Err()
}

func (r Repo) DeleteInstance(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM instances WHERE id=?`, id)
	if err != nil {
		return err
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) UpdateInstanceBudget(ctx context.Context, id string, budget int) error {
	return r.updateInstanceBudget(ctx, r.DB, id, budget)
}

func (r Repo) UpdateInstanceBudgetTx(ctx context.Context, tx *sql.Tx, id string, budget int) error {
	return r.updateInstanceBudget(ctx, tx, id, budget)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// --- event log ---

// LatestEvents returns the newest audit entries, optionally filtered by
// instance and type, newest first.
func (r Repo) LatestEvents(ctx context.Context, n int, instanceID, evtType string) ([]domain.Event, error) {
	if n <= 0 {
		n = 20
	}
	query := `SELECT id,ts,type,instance_id,entity_kind,entity_id,user_id,payload_json FROM events WHERE 1=1`
	var args []any
	if instanceID != "" {
		query += ` AND instance_id=?`
		args = append(args, instanceID)
	}
	if evtType != "" {
		query += ` AND type=?`
		args = append(args, evtType)
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, n)
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Event
	for rows.Next() {
		var ev domain.Event
		var inst, entity sql.NullString
		if err := rows.Scan(&ev.ID, &ev.TS, &ev.Type, &inst, &ev.EntityKind, &entity, &ev.UserID, &ev.Payload); err != nil {
			return nil, err
		}
		if inst.Valid {
			ev.InstanceID = inst.String
		}
		if entity.Valid {
			ev.EntityID = entity.String
		}
		res = append(res, ev)
	}
	return res, rows.Err()
}

func (r Repo) updateInstanceBudget(ctx context.Context, ex execer, id string, budget int) error {
	res, err := ex.ExecContext(ctx, `UPDATE instances SET budget=? WHERE id=?`, budget, id)
	if err != nil {
		return err
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
