package repo

import (
	"context"
	"database/sql"

	"scrumline/internal/domain"
)

func (r Repo) InsertStory(ctx context.Context, s domain.Story) error {
	return r.insertStory(ctx, r.DB, s)
}

func (r Repo) InsertStoryTx(ctx context.Context, tx *sql.Tx, s domain.Story) error {
	return r.insertStory(ctx, tx, s)
}

func (r Repo) insertStory(ctx context.Context, ex execer, s domain.Story) error {
	_, err := ex.ExecContext(ctx, `INSERT INTO stories(id,project_id,title,description,points,kind,random_event) VALUES (?,?,?,?,?,?,?)`,
		s.ID, s.ProjectID, s.Title, nullable(s.Description), s.Points, s.Kind, s.RandomEvent)
	return err
}

const storyCols = `id,project_id,title,description,points,kind,random_event`

func scanStory(scan func(dest ...any) error) (domain.Story, error) {
	var s domain.Story
	var desc sql.NullString
	err := scan(&s.ID, &s.ProjectID, &s.Title, &desc, &s.Points, &s.Kind, &s.RandomEvent)
	if err == sql.ErrNoRows {
		return s, ErrNotFound
	}
	if desc.Valid {
		s.Description = desc.String
	}
	return s, err
}

func (r Repo) GetStory(ctx context.Context, id string) (domain.Story, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+storyCols+` FROM stories WHERE id=?`, id)
	return scanStory(row.Scan)
}

// ListInitialStories returns a project's starter templates, the ones
// instantiated at project start. Random-event templates are excluded.
func (r Repo) ListInitialStories(ctx context.Context, projectID string) ([]domain.Story, error) {
	return r.listStories(ctx, `SELECT `+storyCols+` FROM stories WHERE project_id=? AND random_event=0 ORDER BY title`, projectID)
}

// ListUnusedRandomStories returns random-event templates of the instance's
// project that have not yet been materialized for it.
func (r Repo) ListUnusedRandomStories(ctx context.Context, projectID, instanceID string) ([]domain.Story, error) {
	return r.listStories(ctx, `SELECT `+storyCols+` FROM stories
		WHERE project_id=? AND random_event=1
		AND id NOT IN (SELECT story_id FROM story_instances WHERE instance_id=?)
		ORDER BY title`, projectID, instanceID)
}

func (r Repo) listStories(ctx context.Context, query string, args ...any) ([]domain.Story, error) {
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Story
	for rows.Next() {
		s, err := scanStory(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, s)
	}
	return res, rows.Err()
}

// UpdateStoryPoints rewrites a template's estimate. Used by the LegacyCode
// daily challenge.
func (r Repo) UpdateStoryPoints(ctx context.Context, id string, points int) error {
	res, err := r.DB.ExecContext(ctx, `UPDATE stories SET points=? WHERE id=?`, points, id)
	if err != nil {
		return err
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// --- story instances ---

func (r Repo) InsertStoryInstance(ctx context.Context, si domain.StoryInstance) error {
	return r.insertStoryInstance(ctx, r.DB, si)
}

func (r Repo) InsertStoryInstanceTx(ctx context.Context, tx *sql.Tx, si domain.StoryInstance) error {
	return r.insertStoryInstance(ctx, tx, si)
}

func (r Repo) insertStoryInstance(ctx context.Context, ex execer, si domain.StoryInstance) error {
	var devID any
	if si.DeveloperID != nil {
		devID = *si.DeveloperID
	}
	_, err := ex.ExecContext(ctx, `INSERT INTO story_instances(id,story_id,instance_id,progress,complete,developer_id) VALUES (?,?,?,?,?,?)`,
		si.ID, si.StoryID, si.InstanceID, si.Progress, si.Complete, devID)
	return err
}

// UpsertStoryInstancesTx persists whole records; the statement decides
// insert versus update so callers never have to pre-query.
func (r Repo) UpsertStoryInstancesTx(ctx context.Context, tx *sql.Tx, instances []domain.StoryInstance) error {
	for _, si := range instances {
		var devID any
		if si.DeveloperID != nil {
			devID = *si.DeveloperID
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO story_instances(id,story_id,instance_id,progress,complete,developer_id) VALUES (?,?,?,?,?,?)
			ON CONFLICT(id) DO UPDATE SET progress=excluded.progress, complete=excluded.complete, developer_id=excluded.developer_id`,
			si.ID, si.StoryID, si.InstanceID, si.Progress, si.Complete, devID); err != nil {
			return err
		}
	}
	return nil
}

// ListStoryInstances returns a play-through's ledger with each template
// joined in.
func (r Repo) ListStoryInstances(ctx context.Context, instanceID string) ([]domain.StoryInstance, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT si.id,si.story_id,si.instance_id,si.progress,si.complete,si.developer_id,
		s.id,s.project_id,s.title,s.description,s.points,s.kind,s.random_event
		FROM story_instances si JOIN stories s ON s.id=si.story_id
		WHERE si.instance_id=? ORDER BY s.title, si.id`, instanceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.StoryInstance
	for rows.Next() {
		var si domain.StoryInstance
		var devID sql.NullString
		var desc sql.NullString
		if err := rows.Scan(&si.ID, &si.StoryID, &si.InstanceID, &si.Progress, &si.Complete, &devID,
			&si.Story.ID, &si.Story.ProjectID, &si.Story.Title, &desc, &si.Story.Points, &si.Story.Kind, &si.Story.RandomEvent); err != nil {
			return nil, err
		}
		if devID.Valid {
			v := devID.String
			si.DeveloperID = &v
		}
		if desc.Valid {
			si.Story.Description = desc.String
		}
		res = append(res, si)
	}
	return res, rows.Err()
}

// AssignDeveloper sets or clears the assignee of one story instance.
func (r Repo) AssignDeveloper(ctx context.Context, storyInstanceID string, developerID *string) error {
	var devID any
	if developerID != nil {
		devID = *developerID
	}
	res, err := r.DB.ExecContext(ctx, `UPDATE story_instances SET developer_id=? WHERE id=?`, devID, storyInstanceID)
	if err != nil {
		return err
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
