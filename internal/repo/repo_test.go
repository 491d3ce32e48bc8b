package repo_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"scrumline/internal/db"
	"scrumline/internal/domain"
	"scrumline/internal/events"
	"scrumline/internal/migrate"
	"scrumline/internal/repo"
)

func newTestRepo(t *testing.T) repo.Repo {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, migrate.Migrate(conn))
	return repo.Repo{DB: conn}
}

func now() string { return time.Now().UTC().Format(time.RFC3339) }

func seedProject(t *testing.T, r repo.Repo, id string) domain.Project {
	t.Helper()
	p := domain.Project{
		ID:         id,
		Title:      "Test Project",
		Budget:     10000,
		NumSprints: 5,
		DevCosts:   map[domain.ExperienceLevel]int{domain.Junior: 1000},
		CreatedAt:  now(),
	}
	require.NoError(t, r.InsertProject(context.Background(), p))
	return p
}

func seedInstance(t *testing.T, r repo.Repo, projectID, userID string) domain.Instance {
	t.Helper()
	in := domain.Instance{
		ID:        uuid.New().String(),
		UserID:    userID,
		ProjectID: projectID,
		Budget:    10000,
		CreatedAt: now(),
	}
	require.NoError(t, r.InsertInstance(context.Background(), in))
	return in
}

func TestOnePlayThroughPerUserAndProject(t *testing.T) {
	ctx := context.Background()
	r := newTestRepo(t)
	seedProject(t, r, "shop")
	seedInstance(t, r, "shop", "alice")

	err := r.InsertInstance(ctx, domain.Instance{
		ID:        uuid.New().String(),
		UserID:    "alice",
		ProjectID: "shop",
		Budget:    10000,
		CreatedAt: now(),
	})
	require.Error(t, err, "second play-through of the same project must hit the unique index")

	// a different user may start the same project
	seedInstance(t, r, "shop", "bob")
}

func TestAwardBadgeIsIdempotent(t *testing.T) {
	ctx := context.Background()
	r := newTestRepo(t)

	badge := domain.Badge{
		ID:          uuid.New().String(),
		UserID:      "alice",
		Type:        domain.BadgeFirstProjectCompleted,
		Description: "Completed your first project.",
		Icon:        "x",
		AwardedAt:   now(),
	}
	fresh, err := r.AwardBadge(ctx, badge)
	require.NoError(t, err)
	require.True(t, fresh)

	badge.ID = uuid.New().String()
	fresh, err = r.AwardBadge(ctx, badge)
	require.NoError(t, err)
	require.False(t, fresh, "same badge type for the same user must not insert twice")

	held, err := r.ListBadges(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, held, 1)
}

func TestListUnusedRandomStoriesExcludesInstantiated(t *testing.T) {
	ctx := context.Background()
	r := newTestRepo(t)
	seedProject(t, r, "shop")
	in := seedInstance(t, r, "shop", "alice")

	a := domain.Story{ID: uuid.New().String(), ProjectID: "shop", Title: "Twist A", Points: 3, Kind: "feature", RandomEvent: true}
	b := domain.Story{ID: uuid.New().String(), ProjectID: "shop", Title: "Twist B", Points: 3, Kind: "feature", RandomEvent: true}
	regular := domain.Story{ID: uuid.New().String(), ProjectID: "shop", Title: "Checkout", Points: 3, Kind: "feature"}
	for _, s := range []domain.Story{a, b, regular} {
		require.NoError(t, r.InsertStory(ctx, s))
	}

	pool, err := r.ListUnusedRandomStories(ctx, "shop", in.ID)
	require.NoError(t, err)
	require.Len(t, pool, 2, "regular stories never sit in the random pool")

	require.NoError(t, r.InsertStoryInstance(ctx, domain.StoryInstance{
		ID: uuid.New().String(), StoryID: a.ID, InstanceID: in.ID,
	}))
	pool, err = r.ListUnusedRandomStories(ctx, "shop", in.ID)
	require.NoError(t, err)
	require.Len(t, pool, 1)
	require.Equal(t, b.ID, pool[0].ID)

	// another play-through still sees the full pool
	other := seedInstance(t, r, "shop", "bob")
	pool, err = r.ListUnusedRandomStories(ctx, "shop", other.ID)
	require.NoError(t, err)
	require.Len(t, pool, 2)
}

func TestDeleteDeveloperUnassignsStories(t *testing.T) {
	ctx := context.Background()
	r := newTestRepo(t)
	seedProject(t, r, "shop")
	in := seedInstance(t, r, "shop", "alice")

	dev := domain.Developer{
		ID: uuid.New().String(), InstanceID: in.ID, UserID: "alice",
		Name: "Dana", Level: domain.Junior, Cost: 1000, CreatedAt: now(),
	}
	require.NoError(t, r.InsertDeveloper(ctx, dev))

	story := domain.Story{ID: uuid.New().String(), ProjectID: "shop", Title: "Checkout", Points: 3, Kind: "feature"}
	require.NoError(t, r.InsertStory(ctx, story))
	si := domain.StoryInstance{ID: uuid.New().String(), StoryID: story.ID, InstanceID: in.ID, DeveloperID: &dev.ID}
	require.NoError(t, r.InsertStoryInstance(ctx, si))

	require.NoError(t, r.DeleteDeveloper(ctx, dev.ID))

	_, err := r.GetDeveloper(ctx, dev.ID)
	require.ErrorIs(t, err, repo.ErrNotFound)

	list, err := r.ListStoryInstances(ctx, in.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Nil(t, list[0].DeveloperID, "delete must null out the assignment, not drop the story")
}

func TestLatestEventsFilters(t *testing.T) {
	ctx := context.Background()
	r := newTestRepo(t)
	seedProject(t, r, "shop")
	in := seedInstance(t, r, "shop", "alice")
	other := seedInstance(t, r, "shop", "bob")

	w := events.Writer{DB: r.DB}
	record := func(evtType, instanceID, userID string) {
		tx, err := r.DB.BeginTx(ctx, nil)
		require.NoError(t, err)
		require.NoError(t, w.Append(ctx, tx, evtType, instanceID, "instance", instanceID, userID, events.EventPayload{"n": 1}))
		require.NoError(t, tx.Commit())
	}
	record("instance.started", in.ID, "alice")
	record("sprint.completed", in.ID, "alice")
	record("sprint.completed", in.ID, "alice")
	record("instance.started", other.ID, "bob")

	got, err := r.LatestEvents(ctx, 10, in.ID, "sprint.completed")
	require.NoError(t, err)
	require.Len(t, got, 2)
	for _, ev := range got {
		require.Equal(t, "sprint.completed", ev.Type)
		require.Equal(t, in.ID, ev.InstanceID)
	}

	// newest first, capped by n
	got, err = r.LatestEvents(ctx, 2, "", "")
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Greater(t, got[0].ID, got[1].ID)
}
