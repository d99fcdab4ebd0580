package storage

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hirewire/resumeq/internal/core"
	"github.com/hirewire/resumeq/internal/db"
)

// setupDB connects to the database named by TEST_DATABASE_URL, applies the
// migrations and empties the tables. Tests are skipped when the variable is
// unset so the suite stays runnable without Postgres.
func setupDB(t *testing.T) *sqlx.DB {
	t.Helper()

	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	conn, err := sqlx.Connect("postgres", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	require.NoError(t, (&db.DB{DB: conn}).RunMigrations())

	_, err = conn.Exec(`TRUNCATE upload_queue, app_settings`)
	require.NoError(t, err)

	return conn
}

func insertQueued(t *testing.T, store core.JobStore, fileName string) *core.Job {
	t.Helper()
	job, err := store.Insert(context.Background(), core.NewJob{
		FileName: fileName,
		FileSize: 1024,
		FilePath: "uploads/" + fileName,
		Source:   "bulk",
	})
	require.NoError(t, err)
	return job
}

func TestQueueStoreInsertDefaults(t *testing.T) {
	store := NewQueueStore(setupDB(t))

	job := insertQueued(t, store, "resume.pdf")

	assert.NotEqual(t, uuid.Nil, job.ID)
	assert.Equal(t, core.StatusQueued, job.Status)
	assert.Equal(t, "uploads/resume.pdf", job.FilePath)
	assert.False(t, job.UploadDate.IsZero())
	assert.Nil(t, job.CompletedDate)
	assert.Nil(t, job.Error)
}

func TestQueueStoreInsertRejectsUnknownStatus(t *testing.T) {
	store := NewQueueStore(setupDB(t))

	_, err := store.Insert(context.Background(), core.NewJob{
		FilePath: "uploads/resume.pdf",
		Status:   core.Status("bogus"),
	})
	require.Error(t, err)
}

func TestQueueStoreClaimIsFIFO(t *testing.T) {
	store := NewQueueStore(setupDB(t))
	ctx := context.Background()

	first := insertQueued(t, store, "first.pdf")
	time.Sleep(5 * time.Millisecond)
	second := insertQueued(t, store, "second.pdf")

	claimed, err := store.ClaimNextQueued(ctx)
	require.NoError(t, err)
	require.NotNil(t, claimed)
	assert.Equal(t, first.ID, claimed.ID)
	assert.Equal(t, core.StatusInProgress, claimed.Status)

	claimed, err = store.ClaimNextQueued(ctx)
	require.NoError(t, err)
	require.NotNil(t, claimed)
	assert.Equal(t, second.ID, claimed.ID)
}

func TestQueueStoreClaimEmptyQueue(t *testing.T) {
	store := NewQueueStore(setupDB(t))

	claimed, err := store.ClaimNextQueued(context.Background())
	require.NoError(t, err)
	assert.Nil(t, claimed)
}

func TestQueueStoreClaimIsAtMostOnce(t *testing.T) {
	store := NewQueueStore(setupDB(t))
	ctx := context.Background()

	job := insertQueued(t, store, "contested.pdf")

	const claimers = 10
	var wg sync.WaitGroup
	results := make(chan *core.Job, claimers)

	for range [claimers]struct{}{} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			claimed, err := store.ClaimNextQueued(ctx)
			assert.NoError(t, err)
			if claimed != nil {
				results <- claimed
			}
		}()
	}
	wg.Wait()
	close(results)

	var winners []*core.Job
	for claimed := range results {
		winners = append(winners, claimed)
	}
	require.Len(t, winners, 1)
	assert.Equal(t, job.ID, winners[0].ID)
}

func TestQueueStoreFinalizeSuccess(t *testing.T) {
	store := NewQueueStore(setupDB(t))
	ctx := context.Background()

	insertQueued(t, store, "resume.pdf")
	claimed, err := store.ClaimNextQueued(ctx)
	require.NoError(t, err)

	updated, err := store.Finalize(ctx, claimed.ID, core.Finalization{
		Status:          core.StatusSuccess,
		WebhookResponse: []byte(`{"status":200,"message":"ok"}`),
		CompletedDate:   time.Now().UTC(),
	})
	require.NoError(t, err)

	assert.Equal(t, core.StatusSuccess, updated.Status)
	require.NotNil(t, updated.CompletedDate)
	assert.JSONEq(t, `{"status":200,"message":"ok"}`, string(updated.WebhookResponse))
}

func TestQueueStoreFinalizeLosesToCancel(t *testing.T) {
	store := NewQueueStore(setupDB(t))
	ctx := context.Background()

	insertQueued(t, store, "resume.pdf")
	claimed, err := store.ClaimNextQueued(ctx)
	require.NoError(t, err)

	// Operator cancels while the webhook call is notionally in flight.
	_, err = store.Cancel(ctx, claimed.ID)
	require.NoError(t, err)

	_, err = store.Finalize(ctx, claimed.ID, core.Finalization{
		Status:        core.StatusSuccess,
		CompletedDate: time.Now().UTC(),
	})
	assert.ErrorIs(t, err, core.ErrNotInProgress)

	row, err := store.GetByID(ctx, claimed.ID)
	require.NoError(t, err)
	assert.Equal(t, core.StatusCancelled, row.Status)
}

func TestQueueStoreFinalizeUnknownJob(t *testing.T) {
	store := NewQueueStore(setupDB(t))

	_, err := store.Finalize(context.Background(), uuid.New(), core.Finalization{
		Status:        core.StatusError,
		CompletedDate: time.Now().UTC(),
	})
	assert.ErrorIs(t, err, core.ErrJobNotFound)
}

func TestQueueStoreRecordPayload(t *testing.T) {
	store := NewQueueStore(setupDB(t))
	ctx := context.Background()

	job := insertQueued(t, store, "resume.pdf")

	require.NoError(t, store.RecordPayload(ctx, job.ID, []byte(`{"file_url":"x"}`)))

	row, err := store.GetByID(ctx, job.ID)
	require.NoError(t, err)
	assert.JSONEq(t, `{"file_url":"x"}`, string(row.WebhookPayload))

	assert.ErrorIs(t, store.RecordPayload(ctx, uuid.New(), []byte(`{}`)), core.ErrJobNotFound)
}

func TestQueueStoreCancelTransitions(t *testing.T) {
	store := NewQueueStore(setupDB(t))
	ctx := context.Background()

	queued := insertQueued(t, store, "queued.pdf")
	cancelled, err := store.Cancel(ctx, queued.ID)
	require.NoError(t, err)
	assert.Equal(t, core.StatusCancelled, cancelled.Status)
	assert.NotNil(t, cancelled.CompletedDate)

	// A terminal row cannot be cancelled again.
	_, err = store.Cancel(ctx, queued.ID)
	assert.ErrorIs(t, err, core.ErrInvalidTransition)

	_, err = store.Cancel(ctx, uuid.New())
	assert.ErrorIs(t, err, core.ErrJobNotFound)
}

func TestQueueStoreRequeueAfterError(t *testing.T) {
	store := NewQueueStore(setupDB(t))
	ctx := context.Background()

	insertQueued(t, store, "resume.pdf")
	claimed, err := store.ClaimNextQueued(ctx)
	require.NoError(t, err)

	require.NoError(t, store.RecordPayload(ctx, claimed.ID, []byte(`{"file_url":"x"}`)))

	errMsg := "Webhook responded with status 503"
	details := "busy"
	_, err = store.Finalize(ctx, claimed.ID, core.Finalization{
		Status:          core.StatusError,
		Error:           &errMsg,
		ErrorDetails:    &details,
		WebhookResponse: []byte(`{"status":503,"message":"busy"}`),
		CompletedDate:   time.Now().UTC(),
	})
	require.NoError(t, err)

	requeued, err := store.Requeue(ctx, claimed.ID)
	require.NoError(t, err)
	assert.Equal(t, core.StatusQueued, requeued.Status)
	assert.Nil(t, requeued.Error)
	assert.Nil(t, requeued.ErrorDetails)
	assert.Nil(t, requeued.CompletedDate)
	// The previous attempt's webhook columns are gone: until a new dispatch
	// is attempted, the row looks like a fresh insert.
	assert.Empty(t, requeued.WebhookPayload)
	assert.Empty(t, requeued.WebhookResponse)

	// The row re-enters the normal claim flow.
	claimed, err = store.ClaimNextQueued(ctx)
	require.NoError(t, err)
	require.NotNil(t, claimed)
	assert.Equal(t, requeued.ID, claimed.ID)

	// A cancelled row stays cancelled.
	other := insertQueued(t, store, "other.pdf")
	_, err = store.Cancel(ctx, other.ID)
	require.NoError(t, err)
	_, err = store.Requeue(ctx, other.ID)
	assert.ErrorIs(t, err, core.ErrInvalidTransition)
}

func TestQueueStoreList(t *testing.T) {
	store := NewQueueStore(setupDB(t))
	ctx := context.Background()

	insertQueued(t, store, "a.pdf")
	time.Sleep(5 * time.Millisecond)
	b := insertQueued(t, store, "b.pdf")
	claimed, err := store.ClaimNextQueued(ctx)
	require.NoError(t, err)

	all, err := store.List(ctx, core.JobFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	// Newest first.
	assert.Equal(t, b.ID, all[0].ID)

	inprogress, err := store.List(ctx, core.JobFilter{Status: core.StatusInProgress})
	require.NoError(t, err)
	require.Len(t, inprogress, 1)
	assert.Equal(t, claimed.ID, inprogress[0].ID)

	limited, err := store.List(ctx, core.JobFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	none, err := store.List(ctx, core.JobFilter{Source: "import"})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestSettingsStoreRoundTrip(t *testing.T) {
	store := NewSettingsStore(setupDB(t))
	ctx := context.Background()

	_, err := store.Get(ctx, SettingWebhookURL)
	assert.ErrorIs(t, err, ErrSettingNotFound)

	require.NoError(t, store.Set(ctx, SettingWebhookURL, "https://hooks.example.com/resume"))
	value, err := store.Get(ctx, SettingWebhookURL)
	require.NoError(t, err)
	assert.Equal(t, "https://hooks.example.com/resume", value)

	// Set upserts.
	require.NoError(t, store.Set(ctx, SettingWebhookURL, "https://new.example.com/resume"))
	value, err = store.Get(ctx, SettingWebhookURL)
	require.NoError(t, err)
	assert.Equal(t, "https://new.example.com/resume", value)
}
