package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qs3c/fbads_go_server/internal/model"
	"github.com/qs3c/fbads_go_server/internal/pkg/queue"
	"github.com/qs3c/fbads_go_server/internal/repository"
	dbtest "github.com/qs3c/fbads_go_server/internal/testutil"
)

type fakeQueue struct {
	mu   sync.Mutex
	msgs []*queue.JobMessage
	err  error
}

func (q *fakeQueue) Push(_ context.Context, msg *queue.JobMessage) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.msgs = append(q.msgs, msg)
	return nil
}

func (q *fakeQueue) Messages() []*queue.JobMessage {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]*queue.JobMessage(nil), q.msgs...)
}

func TestRecoverer_Run(t *testing.T) {
	db := dbtest.SetupTestDB(t)
	defer dbtest.CleanupTestDB(t, db)

	user := dbtest.TestUser(t, db)
	now := time.Now()

	pending := dbtest.TestSyncJob(t, db, user.ID, 7, model.SyncKindInsights, model.JobStatusPending)
	fresh := dbtest.TestSyncJob(t, db, user.ID, 8, model.SyncKindInsights, model.JobStatusPending)
	require.NoError(t, db.Model(pending).Update("created_at", now.Add(-time.Hour)).Error)

	stuck := dbtest.TestSyncJob(t, db, user.ID, 7, model.SyncKindCampaigns, model.JobStatusProcessing)
	require.NoError(t, db.Model(stuck).Update("started_at", now.Add(-time.Hour)).Error)
	running := dbtest.TestSyncJob(t, db, user.ID, 8, model.SyncKindCampaigns, model.JobStatusProcessing)
	require.NoError(t, db.Model(running).Update("started_at", now.Add(-time.Minute)).Error)

	q := &fakeQueue{}
	r := NewRecoverer(repository.NewSyncJobRepository(db), q)
	r.now = func() time.Time { return now }
	r.run(context.Background())

	msgs := q.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, pending.ID, msgs[0].JobID)
	assert.Equal(t, int64(7), msgs[0].AdAccountID)
	assert.Equal(t, model.SyncKindInsights, msgs[0].Kind)

	stored := reload(t, db, stuck.ID)
	assert.Equal(t, model.JobStatusFailed, stored.Status)
	assert.Equal(t, "任务处理超时", stored.ErrorMessage)
	assert.NotNil(t, stored.CompletedAt)

	assert.Equal(t, model.JobStatusProcessing, reload(t, db, running.ID).Status)
	assert.Equal(t, model.JobStatusPending, reload(t, db, fresh.ID).Status)
}

func TestRecoverer_Run_QueueDown(t *testing.T) {
	db := dbtest.SetupTestDB(t)
	defer dbtest.CleanupTestDB(t, db)

	user := dbtest.TestUser(t, db)
	job := dbtest.TestSyncJob(t, db, user.ID, 7, model.SyncKindInsights, model.JobStatusPending)

	r := NewRecoverer(repository.NewSyncJobRepository(db), &fakeQueue{err: errors.New("redis down")})
	r.now = func() time.Time { return time.Now().Add(time.Hour) }
	r.run(context.Background())

	// 入队失败保持 pending，下一轮再试
	assert.Equal(t, model.JobStatusPending, reload(t, db, job.ID).Status)
}

func TestRecoverer_Start_StopsOnCancel(t *testing.T) {
	db := dbtest.SetupTestDB(t)
	defer dbtest.CleanupTestDB(t, db)

	r := NewRecoverer(repository.NewSyncJobRepository(db), &fakeQueue{})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Start(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("recoverer did not stop")
	}
}
