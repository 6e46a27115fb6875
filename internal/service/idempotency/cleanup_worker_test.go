package idempotency

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/vladislavdragonenkov/encontrar/internal/domain"
	"github.com/vladislavdragonenkov/encontrar/internal/storage/memory"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestCleanupWorker_DeleteExpired_Batches(t *testing.T) {
	t.Parallel()

	repo := &stubCleanupRepo{deleteResults: []int{2, 2, 1}}
	worker := NewCleanupWorker(repo, WithBatchSize(2))

	deleted, err := worker.DeleteExpired(context.Background(), time.Now().UTC())
	require.NoError(t, err)
	assert.Equal(t, 5, deleted)
	assert.Equal(t, 3, repo.calls())
}

func TestCleanupWorker_DeleteExpired_Error(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	repo := &stubCleanupRepo{deleteResults: []int{10}, deleteErrors: []error{nil, boom}}
	worker := NewCleanupWorker(repo, WithBatchSize(10))

	deleted, err := worker.DeleteExpired(context.Background(), time.Now().UTC())
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 10, deleted)
}

func TestCleanupWorker_DeleteExpired_MemoryRepository(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := memory.NewIdempotencyRepository()
	now := time.Date(2024, time.May, 14, 12, 0, 0, 0, time.UTC)

	for i, ttl := range []time.Duration{-time.Hour, -time.Minute, time.Hour} {
		key := []string{"old", "older", "fresh"}[i]
		_, err := repo.CreateProcessing(ctx, key, "hash", now.Add(ttl))
		require.NoError(t, err)
	}

	worker := NewCleanupWorker(repo, WithBatchSize(1), WithClock(func() time.Time { return now }))
	deleted, err := worker.DeleteExpired(ctx, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, 2, deleted)

	_, err = repo.Get(ctx, "fresh")
	assert.NoError(t, err)
	_, err = repo.Get(ctx, "old")
	assert.ErrorIs(t, err, domain.ErrIdempotencyKeyNotFound)
}

func TestCleanupWorker_Run_StopsOnContextCancel(t *testing.T) {
	t.Parallel()

	repo := &stubCleanupRepo{}
	worker := NewCleanupWorker(repo, WithInterval(5*time.Millisecond), WithBatchSize(10))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		worker.Run(ctx)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop on context cancel")
	}
	assert.Positive(t, repo.calls())
}

type stubCleanupRepo struct {
	domain.IdempotencyRepository

	mu            sync.Mutex
	deleteResults []int
	deleteErrors  []error
	callCount     int
}

func (s *stubCleanupRepo) DeleteExpired(context.Context, time.Time, int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.callCount++
	if len(s.deleteErrors) > 0 {
		err := s.deleteErrors[0]
		s.deleteErrors = s.deleteErrors[1:]
		if err != nil {
			return 0, err
		}
	}
	if len(s.deleteResults) == 0 {
		return 0, nil
	}
	result := s.deleteResults[0]
	s.deleteResults = s.deleteResults[1:]
	return result, nil
}

func (s *stubCleanupRepo) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.callCount
}
