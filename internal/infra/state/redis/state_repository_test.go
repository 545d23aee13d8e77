package redisstate_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"huddle/internal/domain"
	redisstate "huddle/internal/infra/state/redis"
	"huddle/internal/repository"
)

func newTestRepo(t *testing.T, historyCap int) (*redisstate.RedisStateRepository, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return redisstate.NewRedisStateRepository(client, "test:", historyCap, time.Minute), mr
}

func testRoom(id string) *domain.Room {
	now := time.Now().UTC()
	return &domain.Room{
		ID:         id,
		Name:       "room " + id,
		Passphrase: "brave-falcon-42-" + id,
		ShortCode:  "CODE" + id,
		Status:     domain.RoomWaiting,
		CreatedAt:  now,
		ExpiresAt:  now.Add(time.Hour),
	}
}

func addMember(t *testing.T, repo *redisstate.RedisStateRepository, roomID, memberID string, wantAdmin bool) *domain.Member {
	t.Helper()
	stored, err := repo.AddMember(context.Background(), roomID, &domain.Member{
		ID:          memberID,
		RoomID:      roomID,
		DisplayName: "user-" + memberID,
		JoinedAt:    time.Now().UTC(),
	}, wantAdmin)
	require.NoError(t, err)
	return stored
}

func TestCreateRoom_RoundtripAndAliases(t *testing.T) {
	repo, _ := newTestRepo(t, 100)
	ctx := context.Background()
	room := testRoom("r1")

	require.NoError(t, repo.CreateRoom(ctx, room, time.Hour))

	loaded, err := repo.GetRoom(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, room.Name, loaded.Name)
	assert.Equal(t, domain.RoomWaiting, loaded.Status)
	assert.Empty(t, loaded.AdminMemberID)
	assert.WithinDuration(t, room.ExpiresAt, loaded.ExpiresAt, time.Second)

	// Both aliases resolve to the room.
	id, err := repo.LookupRoomID(ctx, room.ShortCode)
	require.NoError(t, err)
	assert.Equal(t, "r1", id)
	id, err = repo.LookupRoomID(ctx, room.Passphrase)
	require.NoError(t, err)
	assert.Equal(t, "r1", id)

	active, err := repo.ActiveRoomIDs(ctx)
	require.NoError(t, err)
	assert.Contains(t, active, "r1")

	_, err = repo.LookupRoomID(ctx, "nope")
	assert.True(t, errors.Is(err, repository.ErrNotFound))
}

func TestCreateRoom_AliasCollision(t *testing.T) {
	repo, _ := newTestRepo(t, 100)
	ctx := context.Background()

	first := testRoom("r1")
	require.NoError(t, repo.CreateRoom(ctx, first, time.Hour))

	second := testRoom("r2")
	second.Passphrase = first.Passphrase
	err := repo.CreateRoom(ctx, second, time.Hour)
	assert.True(t, errors.Is(err, repository.ErrDuplicateEntry))

	// The colliding attempt must not have stored anything.
	_, err = repo.GetRoom(ctx, "r2")
	assert.True(t, errors.Is(err, repository.ErrNotFound))
}

func TestRoomLifecycle_Transitions(t *testing.T) {
	repo, _ := newTestRepo(t, 100)
	ctx := context.Background()
	require.NoError(t, repo.CreateRoom(ctx, testRoom("r1"), time.Hour))

	admin := addMember(t, repo, "r1", "m-admin", true)
	require.Equal(t, domain.RoleAdmin, admin.Role)
	addMember(t, repo, "r1", "m-2", false)

	// Only the admin may start.
	err := repo.StartRoom(ctx, "r1", "m-2")
	assert.True(t, errors.Is(err, repository.ErrNotAuthorized))

	require.NoError(t, repo.StartRoom(ctx, "r1", "m-admin"))
	room, err := repo.GetRoom(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, domain.RoomChatting, room.Status)

	// chatting -> chatting is not a legal transition.
	err = repo.StartRoom(ctx, "r1", "m-admin")
	assert.True(t, errors.Is(err, repository.ErrInvalidState))

	require.NoError(t, repo.CloseRoom(ctx, "r1", "m-admin", false))
	room, err = repo.GetRoom(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, domain.RoomClosed, room.Status)

	// Closed is terminal: every further transition reports it as such.
	err = repo.CloseRoom(ctx, "r1", "m-admin", false)
	assert.True(t, errors.Is(err, repository.ErrRoomClosed))
	err = repo.StartRoom(ctx, "r1", "m-admin")
	assert.True(t, errors.Is(err, repository.ErrRoomClosed))
}

func TestCloseRoom_ForceSkipsAdminCheck(t *testing.T) {
	repo, _ := newTestRepo(t, 100)
	ctx := context.Background()
	require.NoError(t, repo.CreateRoom(ctx, testRoom("r1"), time.Hour))
	addMember(t, repo, "r1", "m-admin", true)

	err := repo.CloseRoom(ctx, "r1", "", false)
	assert.True(t, errors.Is(err, repository.ErrNotAuthorized))

	require.NoError(t, repo.CloseRoom(ctx, "r1", "", true))
}

func TestAddMember_SingleAdmin(t *testing.T) {
	repo, _ := newTestRepo(t, 100)
	ctx := context.Background()
	require.NoError(t, repo.CreateRoom(ctx, testRoom("r1"), time.Hour))

	first := addMember(t, repo, "r1", "m-1", true)
	assert.Equal(t, domain.RoleAdmin, first.Role)
	assert.Equal(t, domain.ConnAttached, first.ConnectionState)

	// A later creator-flagged join does not displace the existing admin.
	second := addMember(t, repo, "r1", "m-2", true)
	assert.Equal(t, domain.RoleParticipant, second.Role)

	room, err := repo.GetRoom(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, "m-1", room.AdminMemberID)

	members, err := repo.ListMembers(ctx, "r1")
	require.NoError(t, err)
	require.Len(t, members, 2)
	adminCount := 0
	for _, m := range members {
		if m.Role == domain.RoleAdmin {
			adminCount++
		}
	}
	assert.Equal(t, 1, adminCount)
}

func TestAddMember_ClosedOrMissingRoom(t *testing.T) {
	repo, _ := newTestRepo(t, 100)
	ctx := context.Background()

	_, err := repo.AddMember(ctx, "ghost", &domain.Member{ID: "m-1", JoinedAt: time.Now()}, false)
	assert.True(t, errors.Is(err, repository.ErrNotFound))

	require.NoError(t, repo.CreateRoom(ctx, testRoom("r1"), time.Hour))
	addMember(t, repo, "r1", "m-admin", true)
	require.NoError(t, repo.CloseRoom(ctx, "r1", "m-admin", false))

	_, err = repo.AddMember(ctx, "r1", &domain.Member{ID: "m-late", JoinedAt: time.Now()}, false)
	assert.True(t, errors.Is(err, repository.ErrRoomClosed))
}

func TestPromoteMember_TransfersRoleAtomically(t *testing.T) {
	repo, _ := newTestRepo(t, 100)
	ctx := context.Background()
	require.NoError(t, repo.CreateRoom(ctx, testRoom("r1"), time.Hour))
	addMember(t, repo, "r1", "m-admin", true)
	addMember(t, repo, "r1", "m-2", false)

	require.NoError(t, repo.PromoteMember(ctx, "r1", "m-admin", "m-2"))

	newAdmin, err := repo.GetMember(ctx, "r1", "m-2")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAdmin, newAdmin.Role)
	oldAdmin, err := repo.GetMember(ctx, "r1", "m-admin")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleParticipant, oldAdmin.Role)

	room, err := repo.GetRoom(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, "m-2", room.AdminMemberID)

	// The old admin lost its authority with the transfer.
	err = repo.PromoteMember(ctx, "r1", "m-admin", "m-admin")
	assert.True(t, errors.Is(err, repository.ErrNotAuthorized))

	err = repo.PromoteMember(ctx, "r1", "m-2", "m-ghost")
	assert.True(t, errors.Is(err, repository.ErrMemberNotFound))
}

func TestRemoveMember_KickSemantics(t *testing.T) {
	repo, _ := newTestRepo(t, 100)
	ctx := context.Background()
	require.NoError(t, repo.CreateRoom(ctx, testRoom("r1"), time.Hour))
	addMember(t, repo, "r1", "m-admin", true)
	addMember(t, repo, "r1", "m-2", false)

	err := repo.RemoveMember(ctx, "r1", "m-2", "m-admin")
	assert.True(t, errors.Is(err, repository.ErrNotAuthorized))

	// The admin cannot kick itself out of its own room.
	err = repo.RemoveMember(ctx, "r1", "m-admin", "m-admin")
	assert.True(t, errors.Is(err, repository.ErrInvalidState))

	require.NoError(t, repo.RemoveMember(ctx, "r1", "m-admin", "m-2"))

	// A kicked id is gone for good: rejoining with it must fail.
	_, err = repo.GetMember(ctx, "r1", "m-2")
	assert.True(t, errors.Is(err, repository.ErrMemberNotFound))

	err = repo.RemoveMember(ctx, "r1", "m-admin", "m-2")
	assert.True(t, errors.Is(err, repository.ErrMemberNotFound))
}

func TestSetConnectionState(t *testing.T) {
	repo, _ := newTestRepo(t, 100)
	ctx := context.Background()
	require.NoError(t, repo.CreateRoom(ctx, testRoom("r1"), time.Hour))
	addMember(t, repo, "r1", "m-1", true)

	require.NoError(t, repo.SetConnectionState(ctx, "r1", "m-1", domain.ConnDetached))
	member, err := repo.GetMember(ctx, "r1", "m-1")
	require.NoError(t, err)
	assert.Equal(t, domain.ConnDetached, member.ConnectionState)
	assert.Equal(t, domain.RoleAdmin, member.Role, "role survives the state flip")

	err = repo.SetConnectionState(ctx, "r1", "m-ghost", domain.ConnAttached)
	assert.True(t, errors.Is(err, repository.ErrMemberNotFound))
}

func startedRoom(t *testing.T, repo *redisstate.RedisStateRepository, id string) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, repo.CreateRoom(ctx, testRoom(id), time.Hour))
	addMember(t, repo, id, "m-admin", true)
	require.NoError(t, repo.StartRoom(ctx, id, "m-admin"))
}

func TestAppendMessage_GaplessSequence(t *testing.T) {
	repo, _ := newTestRepo(t, 100)
	ctx := context.Background()
	startedRoom(t, repo, "r1")

	for i := 1; i <= 5; i++ {
		msg, duplicate, err := repo.AppendMessage(ctx, "r1", "m-admin",
			fmt.Sprintf("message %d", i), fmt.Sprintf("cmid-%d", i), time.Now())
		require.NoError(t, err)
		assert.False(t, duplicate)
		assert.Equal(t, int64(i), msg.Seq)
	}

	history, err := repo.RecentMessages(ctx, "r1", 100)
	require.NoError(t, err)
	require.Len(t, history, 5)
	for i, msg := range history {
		assert.Equal(t, int64(i+1), msg.Seq, "history is oldest first with no gaps")
	}
}

func TestAppendMessage_ConcurrentSendersStayGapless(t *testing.T) {
	repo, _ := newTestRepo(t, 100)
	ctx := context.Background()
	startedRoom(t, repo, "r1")

	const senders = 20
	var wg sync.WaitGroup
	seqs := make(chan int64, senders)
	for i := 0; i < senders; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			msg, _, err := repo.AppendMessage(ctx, "r1", "m-admin",
				fmt.Sprintf("concurrent %d", i), fmt.Sprintf("cmid-c-%d", i), time.Now())
			if assert.NoError(t, err) {
				seqs <- msg.Seq
			}
		}(i)
	}
	wg.Wait()
	close(seqs)

	seen := make(map[int64]bool)
	for seq := range seqs {
		assert.False(t, seen[seq], "seq %d assigned twice", seq)
		seen[seq] = true
	}
	require.Len(t, seen, senders)
	for i := int64(1); i <= senders; i++ {
		assert.True(t, seen[i], "seq %d missing", i)
	}
}

func TestAppendMessage_DuplicateClientMsgID(t *testing.T) {
	repo, _ := newTestRepo(t, 100)
	ctx := context.Background()
	startedRoom(t, repo, "r1")

	first, duplicate, err := repo.AppendMessage(ctx, "r1", "m-admin", "hello", "cmid-1", time.Now())
	require.NoError(t, err)
	require.False(t, duplicate)

	// The retry resolves to the original seq and appends nothing.
	retry, duplicate, err := repo.AppendMessage(ctx, "r1", "m-admin", "hello", "cmid-1", time.Now())
	require.NoError(t, err)
	assert.True(t, duplicate)
	assert.Equal(t, first.Seq, retry.Seq)

	history, err := repo.RecentMessages(ctx, "r1", 100)
	require.NoError(t, err)
	assert.Len(t, history, 1)

	// The counter did not advance either: the next fresh send is seq 2.
	next, _, err := repo.AppendMessage(ctx, "r1", "m-admin", "world", "cmid-2", time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(2), next.Seq)
}

func TestAppendMessage_HistoryBounded(t *testing.T) {
	repo, _ := newTestRepo(t, 3)
	ctx := context.Background()
	startedRoom(t, repo, "r1")

	for i := 1; i <= 5; i++ {
		_, _, err := repo.AppendMessage(ctx, "r1", "m-admin",
			fmt.Sprintf("message %d", i), "", time.Now())
		require.NoError(t, err)
	}

	history, err := repo.RecentMessages(ctx, "r1", 100)
	require.NoError(t, err)
	require.Len(t, history, 3, "oldest entries are evicted at the cap")
	assert.Equal(t, int64(3), history[0].Seq)
	assert.Equal(t, int64(5), history[2].Seq)
}

func TestAppendMessage_StateAndMembershipGates(t *testing.T) {
	repo, _ := newTestRepo(t, 100)
	ctx := context.Background()

	// Waiting room: exists, but not accepting messages.
	require.NoError(t, repo.CreateRoom(ctx, testRoom("r1"), time.Hour))
	addMember(t, repo, "r1", "m-admin", true)
	_, _, err := repo.AppendMessage(ctx, "r1", "m-admin", "early", "cmid-1", time.Now())
	assert.True(t, errors.Is(err, repository.ErrInvalidState))

	require.NoError(t, repo.StartRoom(ctx, "r1", "m-admin"))

	// Non-members cannot send.
	_, _, err = repo.AppendMessage(ctx, "r1", "m-ghost", "hi", "cmid-2", time.Now())
	assert.True(t, errors.Is(err, repository.ErrNotInRoom))

	// Detached members cannot send either.
	require.NoError(t, repo.SetConnectionState(ctx, "r1", "m-admin", domain.ConnDetached))
	_, _, err = repo.AppendMessage(ctx, "r1", "m-admin", "hi", "cmid-3", time.Now())
	assert.True(t, errors.Is(err, repository.ErrNotInRoom))

	// Closed room reads as closed, not merely invalid.
	require.NoError(t, repo.SetConnectionState(ctx, "r1", "m-admin", domain.ConnAttached))
	require.NoError(t, repo.CloseRoom(ctx, "r1", "m-admin", false))
	_, _, err = repo.AppendMessage(ctx, "r1", "m-admin", "late", "cmid-4", time.Now())
	assert.True(t, errors.Is(err, repository.ErrRoomClosed))
}

func TestRecentMessages_Limit(t *testing.T) {
	repo, _ := newTestRepo(t, 100)
	ctx := context.Background()
	startedRoom(t, repo, "r1")

	for i := 1; i <= 10; i++ {
		_, _, err := repo.AppendMessage(ctx, "r1", "m-admin",
			fmt.Sprintf("message %d", i), "", time.Now())
		require.NoError(t, err)
	}

	recent, err := repo.RecentMessages(ctx, "r1", 4)
	require.NoError(t, err)
	require.Len(t, recent, 4)
	assert.Equal(t, int64(7), recent[0].Seq)
	assert.Equal(t, int64(10), recent[3].Seq)

	// An empty room has an empty history, not an error.
	startedRoom(t, repo, "r2")
	recent, err = repo.RecentMessages(ctx, "r2", 4)
	require.NoError(t, err)
	assert.Empty(t, recent)
}

func TestTypingIndicators(t *testing.T) {
	repo, _ := newTestRepo(t, 100)
	ctx := context.Background()

	typing, err := repo.SetTyping(ctx, "r1", "m-1", 6*time.Second)
	require.NoError(t, err)
	assert.Equal(t, []string{"m-1"}, typing)

	typing, err = repo.SetTyping(ctx, "r1", "m-2", 6*time.Second)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"m-1", "m-2"}, typing)

	typing, err = repo.ClearTyping(ctx, "r1", "m-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"m-2"}, typing)
}

func TestTypingIndicators_ExpireWithoutRefresh(t *testing.T) {
	repo, _ := newTestRepo(t, 100)
	ctx := context.Background()

	// A deadline already in the past models a member whose indicator was
	// never refreshed.
	_, err := repo.SetTyping(ctx, "r1", "m-stale", -time.Second)
	require.NoError(t, err)

	typing, err := repo.SetTyping(ctx, "r1", "m-fresh", 6*time.Second)
	require.NoError(t, err)
	assert.Equal(t, []string{"m-fresh"}, typing, "stale indicators are swept on every touch")
}

func TestCleanupRoom_RemovesEverything(t *testing.T) {
	repo, mr := newTestRepo(t, 100)
	ctx := context.Background()
	room := testRoom("r1")
	require.NoError(t, repo.CreateRoom(ctx, room, time.Hour))
	addMember(t, repo, "r1", "m-admin", true)
	require.NoError(t, repo.StartRoom(ctx, "r1", "m-admin"))
	_, _, err := repo.AppendMessage(ctx, "r1", "m-admin", "bye", "cmid-1", time.Now())
	require.NoError(t, err)

	require.NoError(t, repo.CleanupRoom(ctx, "r1"))

	_, err = repo.GetRoom(ctx, "r1")
	assert.True(t, errors.Is(err, repository.ErrNotFound))
	_, err = repo.LookupRoomID(ctx, room.ShortCode)
	assert.True(t, errors.Is(err, repository.ErrNotFound))
	_, err = repo.LookupRoomID(ctx, room.Passphrase)
	assert.True(t, errors.Is(err, repository.ErrNotFound))

	active, err := repo.ActiveRoomIDs(ctx)
	require.NoError(t, err)
	assert.NotContains(t, active, "r1")

	assert.Empty(t, mr.Keys(), "no keys may outlive the room")
}

func TestCheckRateLimit(t *testing.T) {
	repo, _ := newTestRepo(t, 100)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		exceeded, err := repo.CheckRateLimit(ctx, "rl:1.2.3.4", 3, time.Minute)
		require.NoError(t, err)
		assert.False(t, exceeded)
	}
	exceeded, err := repo.CheckRateLimit(ctx, "rl:1.2.3.4", 3, time.Minute)
	require.NoError(t, err)
	assert.True(t, exceeded)
}
