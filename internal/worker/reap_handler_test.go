package worker_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"huddle/internal/domain"
	redisstate "huddle/internal/infra/state/redis"
	"huddle/internal/repository"
	"huddle/internal/service"
	"huddle/internal/tasks"
	"huddle/internal/worker"
)

func newReapStack(t *testing.T) (*worker.RoomReapHandler, *redisstate.RedisStateRepository) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	repo := redisstate.NewRedisStateRepository(client, "test:", 100, time.Minute)
	roomService := service.NewRoomService(repo, time.Hour)
	return worker.NewRoomReapHandler(repo, roomService), repo
}

func seedRoom(t *testing.T, repo *redisstate.RedisStateRepository, id string, expiresAt time.Time) {
	t.Helper()
	now := time.Now().UTC()
	require.NoError(t, repo.CreateRoom(context.Background(), &domain.Room{
		ID:         id,
		Name:       "room " + id,
		Passphrase: "phrase-" + id,
		ShortCode:  "CODE" + id,
		Status:     domain.RoomWaiting,
		CreatedAt:  now,
		ExpiresAt:  expiresAt,
	}, time.Hour))
}

func runReap(t *testing.T, handler *worker.RoomReapHandler) {
	t.Helper()
	payload, err := tasks.NewRoomReapTask()
	require.NoError(t, err)
	task := asynq.NewTask(tasks.TypeRoomReap, payload)
	require.NoError(t, handler.ProcessTask(context.Background(), task))
}

func TestRoomReap_ClosesAndReclaimsExpiredRooms(t *testing.T) {
	handler, repo := newReapStack(t)
	ctx := context.Background()

	seedRoom(t, repo, "expired", time.Now().Add(-time.Minute))
	seedRoom(t, repo, "alive", time.Now().Add(time.Hour))

	runReap(t, handler)

	// The expired room is fully reclaimed, including its aliases.
	_, err := repo.GetRoom(ctx, "expired")
	assert.True(t, errors.Is(err, repository.ErrNotFound))
	_, err = repo.LookupRoomID(ctx, "CODEexpired")
	assert.True(t, errors.Is(err, repository.ErrNotFound))

	// The live room is untouched.
	room, err := repo.GetRoom(ctx, "alive")
	require.NoError(t, err)
	assert.Equal(t, domain.RoomWaiting, room.Status)

	active, err := repo.ActiveRoomIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"alive"}, active)
}

func TestRoomReap_ReclaimsClosedRoomsPastTheirTTL(t *testing.T) {
	handler, repo := newReapStack(t)
	ctx := context.Background()

	// Explicitly closed rooms keep their keys until the TTL lapses so late
	// callers can still tell closed from unknown. Once past, they go too.
	seedRoom(t, repo, "done", time.Now().Add(-time.Minute))
	require.NoError(t, repo.CloseRoom(ctx, "done", "", true))

	runReap(t, handler)

	_, err := repo.GetRoom(ctx, "done")
	assert.True(t, errors.Is(err, repository.ErrNotFound))
	active, err := repo.ActiveRoomIDs(ctx)
	require.NoError(t, err)
	assert.Empty(t, active)
}

func TestRoomReap_EmptySweepSucceeds(t *testing.T) {
	handler, _ := newReapStack(t)
	runReap(t, handler)
}
