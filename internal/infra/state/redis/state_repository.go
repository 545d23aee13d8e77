package redisstate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"

	"huddle/internal/domain"
	"huddle/internal/repository"
)

// RedisStateRepository implements repository.StateRepository on a shared
// Redis. Every mutation that races on a shared invariant runs as one Lua
// script, so the script execution itself is the per-room serialization point:
// no instance can observe or interleave a half-applied transition.
type RedisStateRepository struct {
	client     *redis.Client
	keyPrefix  string
	historyCap int
	dedupTTL   time.Duration
}

const (
	defaultHistoryCap = 100
	defaultDedupTTL   = 10 * time.Minute
)

// NewRedisStateRepository creates the repository. historyCap and dedupTTL
// fall back to defaults when zero.
func NewRedisStateRepository(client *redis.Client, keyPrefix string, historyCap int, dedupTTL time.Duration) *RedisStateRepository {
	if client == nil {
		panic("redis client cannot be nil for RedisStateRepository")
	}
	if keyPrefix == "" {
		keyPrefix = "hud:"
	}
	if historyCap <= 0 {
		historyCap = defaultHistoryCap
	}
	if dedupTTL <= 0 {
		dedupTTL = defaultDedupTTL
	}
	return &RedisStateRepository{
		client:     client,
		keyPrefix:  keyPrefix,
		historyCap: historyCap,
		dedupTTL:   dedupTTL,
	}
}

// --- Key generation helpers ---

func (r *RedisStateRepository) roomMetaKey(roomID string) string {
	return fmt.Sprintf("%sroom:%s:meta", r.keyPrefix, roomID)
}

func (r *RedisStateRepository) roomSeqKey(roomID string) string {
	return fmt.Sprintf("%sroom:%s:seq", r.keyPrefix, roomID)
}

func (r *RedisStateRepository) roomHistoryKey(roomID string) string {
	return fmt.Sprintf("%sroom:%s:history", r.keyPrefix, roomID)
}

func (r *RedisStateRepository) roomDedupKey(roomID string) string {
	return fmt.Sprintf("%sroom:%s:dedup", r.keyPrefix, roomID)
}

func (r *RedisStateRepository) roomMembersKey(roomID string) string {
	return fmt.Sprintf("%sroom:%s:members", r.keyPrefix, roomID)
}

func (r *RedisStateRepository) roomTypingKey(roomID string) string {
	return fmt.Sprintf("%sroom:%s:typing", r.keyPrefix, roomID)
}

func (r *RedisStateRepository) phraseKey(passphrase string) string {
	return fmt.Sprintf("%sphrase:%s", r.keyPrefix, passphrase)
}

func (r *RedisStateRepository) codeKey(shortCode string) string {
	return fmt.Sprintf("%scode:%s", r.keyPrefix, shortCode)
}

func (r *RedisStateRepository) activeRoomsKey() string {
	return r.keyPrefix + "rooms:active"
}

// RoomChannel is the pub/sub topic carrying a room's fanout frames. The hub
// subscribes with the same prefix the repository publishes with.
func RoomChannel(keyPrefix, roomID string) string {
	if keyPrefix == "" {
		keyPrefix = "hud:"
	}
	return fmt.Sprintf("%sroom:%s:events", keyPrefix, roomID)
}

// --- Lua scripts ---
//
// Scripts signal business failures with error replies; mapScriptErr turns
// those back into repository sentinels.

var joinScript = redis.NewScript(`
local status = redis.call('HGET', KEYS[1], 'status')
if not status then return redis.error_reply('no_room') end
if status == 'closed' then return redis.error_reply('room_closed') end
local role = 'participant'
local admin = redis.call('HGET', KEYS[1], 'admin_member_id')
if ARGV[6] == '1' and (not admin or admin == '') then
  role = 'admin'
  redis.call('HSET', KEYS[1], 'admin_member_id', ARGV[1])
end
local member = cjson.encode({
  id = ARGV[1], roomId = ARGV[2], displayName = ARGV[3], avatarGlyph = ARGV[4],
  role = role, connectionState = 'attached', joinedAt = ARGV[5],
})
redis.call('HSET', KEYS[2], ARGV[1], member)
return member
`)

var startScript = redis.NewScript(`
local status = redis.call('HGET', KEYS[1], 'status')
if not status then return redis.error_reply('no_room') end
if status == 'closed' then return redis.error_reply('room_closed') end
if redis.call('HGET', KEYS[1], 'admin_member_id') ~= ARGV[1] then
  return redis.error_reply('not_authorized')
end
if status ~= 'waiting' then return redis.error_reply('invalid_state') end
redis.call('HSET', KEYS[1], 'status', 'chatting')
return 'OK'
`)

var closeScript = redis.NewScript(`
local status = redis.call('HGET', KEYS[1], 'status')
if not status then return redis.error_reply('no_room') end
if status == 'closed' then return redis.error_reply('room_closed') end
if ARGV[2] ~= '1' and redis.call('HGET', KEYS[1], 'admin_member_id') ~= ARGV[1] then
  return redis.error_reply('not_authorized')
end
redis.call('HSET', KEYS[1], 'status', 'closed')
return 'OK'
`)

var promoteScript = redis.NewScript(`
local status = redis.call('HGET', KEYS[1], 'status')
if not status then return redis.error_reply('no_room') end
if status == 'closed' then return redis.error_reply('room_closed') end
if redis.call('HGET', KEYS[1], 'admin_member_id') ~= ARGV[1] then
  return redis.error_reply('not_authorized')
end
local tj = redis.call('HGET', KEYS[2], ARGV[2])
if not tj then return redis.error_reply('member_not_found') end
local cj = redis.call('HGET', KEYS[2], ARGV[1])
if not cj then return redis.error_reply('not_in_room') end
local target = cjson.decode(tj)
local caller = cjson.decode(cj)
target['role'] = 'admin'
caller['role'] = 'participant'
redis.call('HSET', KEYS[2], ARGV[2], cjson.encode(target))
redis.call('HSET', KEYS[2], ARGV[1], cjson.encode(caller))
redis.call('HSET', KEYS[1], 'admin_member_id', ARGV[2])
return 'OK'
`)

var kickScript = redis.NewScript(`
local status = redis.call('HGET', KEYS[1], 'status')
if not status then return redis.error_reply('no_room') end
if status == 'closed' then return redis.error_reply('room_closed') end
if redis.call('HGET', KEYS[1], 'admin_member_id') ~= ARGV[1] then
  return redis.error_reply('not_authorized')
end
if ARGV[1] == ARGV[2] then return redis.error_reply('invalid_state') end
if redis.call('HEXISTS', KEYS[2], ARGV[2]) == 0 then
  return redis.error_reply('member_not_found')
end
redis.call('HDEL', KEYS[2], ARGV[2])
redis.call('ZREM', KEYS[3], ARGV[2])
return 'OK'
`)

// sendScript is the whole sequencing step: status gate, attached-member gate,
// dedup short-circuit, INCR, bounded append, dedup record. Returning the
// stored JSON lets the caller broadcast exactly what history holds.
var sendScript = redis.NewScript(`
local status = redis.call('HGET', KEYS[1], 'status')
if not status then return redis.error_reply('no_room') end
if status == 'closed' then return redis.error_reply('room_closed') end
if status ~= 'chatting' then return redis.error_reply('invalid_state') end
local mj = redis.call('HGET', KEYS[2], ARGV[1])
if not mj then return redis.error_reply('not_in_room') end
if cjson.decode(mj)['connectionState'] ~= 'attached' then
  return redis.error_reply('not_in_room')
end
if ARGV[4] ~= '' then
  local prev = redis.call('HGET', KEYS[5], ARGV[4])
  if prev then return {tonumber(prev), 1, ''} end
end
local seq = redis.call('INCR', KEYS[3])
local msg = {
  roomId = ARGV[7], seq = seq, authorMemberId = ARGV[1],
  content = ARGV[2], sentAt = ARGV[3],
}
if ARGV[4] ~= '' then msg['clientMsgId'] = ARGV[4] end
local encoded = cjson.encode(msg)
redis.call('RPUSH', KEYS[4], encoded)
redis.call('LTRIM', KEYS[4], 0 - tonumber(ARGV[5]), -1)
if ARGV[4] ~= '' then
  redis.call('HSET', KEYS[5], ARGV[4], seq)
  redis.call('PEXPIRE', KEYS[5], tonumber(ARGV[6]))
end
return {seq, 0, encoded}
`)

var connStateScript = redis.NewScript(`
local mj = redis.call('HGET', KEYS[1], ARGV[1])
if not mj then return redis.error_reply('member_not_found') end
local m = cjson.decode(mj)
m['connectionState'] = ARGV[2]
redis.call('HSET', KEYS[1], ARGV[1], cjson.encode(m))
return 'OK'
`)

var typingSetScript = redis.NewScript(`
redis.call('ZADD', KEYS[1], tonumber(ARGV[2]), ARGV[1])
redis.call('ZREMRANGEBYSCORE', KEYS[1], '-inf', ARGV[3])
return redis.call('ZRANGE', KEYS[1], 0, -1)
`)

var typingClearScript = redis.NewScript(`
redis.call('ZREM', KEYS[1], ARGV[1])
redis.call('ZREMRANGEBYSCORE', KEYS[1], '-inf', ARGV[2])
return redis.call('ZRANGE', KEYS[1], 0, -1)
`)

// mapScriptErr translates Lua error replies into repository sentinels.
// Redis prefixes single-word error replies with "ERR ", so strip it before
// matching.
func mapScriptErr(err error) error {
	if err == nil {
		return nil
	}
	switch strings.TrimPrefix(err.Error(), "ERR ") {
	case "no_room":
		return repository.ErrNotFound
	case "room_closed":
		return repository.ErrRoomClosed
	case "invalid_state":
		return repository.ErrInvalidState
	case "not_authorized":
		return repository.ErrNotAuthorized
	case "not_in_room":
		return repository.ErrNotInRoom
	case "member_not_found":
		return repository.ErrMemberNotFound
	}
	return err
}

// --- Room lifecycle ---

func (r *RedisStateRepository) CreateRoom(ctx context.Context, room *domain.Room, ttl time.Duration) error {
	phraseKey := r.phraseKey(room.Passphrase)
	codeKey := r.codeKey(room.ShortCode)

	ok, err := r.client.SetNX(ctx, phraseKey, room.ID, ttl).Result()
	if err != nil {
		return fmt.Errorf("redis: reserve passphrase for room %s: %w", room.ID, err)
	}
	if !ok {
		return repository.ErrDuplicateEntry
	}
	ok, err = r.client.SetNX(ctx, codeKey, room.ID, ttl).Result()
	if err == nil && !ok {
		err = repository.ErrDuplicateEntry
	}
	if err != nil {
		// Roll the passphrase reservation back so the alias is not orphaned.
		if delErr := r.client.Del(ctx, phraseKey).Err(); delErr != nil {
			logrus.WithError(delErr).WithField("room_id", room.ID).Warn("Failed to release passphrase after short code conflict")
		}
		if errors.Is(err, repository.ErrDuplicateEntry) {
			return err
		}
		return fmt.Errorf("redis: reserve short code for room %s: %w", room.ID, err)
	}

	pipe := r.client.TxPipeline()
	pipe.HSet(ctx, r.roomMetaKey(room.ID), map[string]interface{}{
		"id":              room.ID,
		"name":            room.Name,
		"avatar_glyph":    room.AvatarGlyph,
		"passphrase":      room.Passphrase,
		"short_code":      room.ShortCode,
		"status":          string(room.Status),
		"admin_member_id": room.AdminMemberID,
		"created_at":      room.CreatedAt.UTC().Format(time.RFC3339Nano),
		"expires_at":      room.ExpiresAt.UTC().Format(time.RFC3339Nano),
	})
	pipe.Expire(ctx, r.roomMetaKey(room.ID), ttl)
	pipe.SAdd(ctx, r.activeRoomsKey(), room.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: store room %s: %w", room.ID, err)
	}
	return nil
}

func (r *RedisStateRepository) GetRoom(ctx context.Context, roomID string) (*domain.Room, error) {
	fields, err := r.client.HGetAll(ctx, r.roomMetaKey(roomID)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: get room %s: %w", roomID, err)
	}
	if len(fields) == 0 {
		return nil, repository.ErrRoomNotFound
	}
	room := &domain.Room{
		ID:            fields["id"],
		Name:          fields["name"],
		AvatarGlyph:   fields["avatar_glyph"],
		Passphrase:    fields["passphrase"],
		ShortCode:     fields["short_code"],
		Status:        domain.RoomStatus(fields["status"]),
		AdminMemberID: fields["admin_member_id"],
	}
	room.CreatedAt, _ = time.Parse(time.RFC3339Nano, fields["created_at"])
	room.ExpiresAt, _ = time.Parse(time.RFC3339Nano, fields["expires_at"])
	return room, nil
}

func (r *RedisStateRepository) LookupRoomID(ctx context.Context, alias string) (string, error) {
	for _, key := range []string{r.codeKey(alias), r.phraseKey(alias)} {
		roomID, err := r.client.Get(ctx, key).Result()
		if err == nil {
			return roomID, nil
		}
		if !errors.Is(err, redis.Nil) {
			return "", fmt.Errorf("redis: lookup alias %q: %w", alias, err)
		}
	}
	return "", repository.ErrRoomNotFound
}

func (r *RedisStateRepository) StartRoom(ctx context.Context, roomID, callerMemberID string) error {
	err := startScript.Run(ctx, r.client, []string{r.roomMetaKey(roomID)}, callerMemberID).Err()
	return mapScriptErr(err)
}

func (r *RedisStateRepository) CloseRoom(ctx context.Context, roomID, callerMemberID string, force bool) error {
	forceArg := "0"
	if force {
		forceArg = "1"
	}
	err := closeScript.Run(ctx, r.client, []string{r.roomMetaKey(roomID)}, callerMemberID, forceArg).Err()
	return mapScriptErr(err)
}

func (r *RedisStateRepository) CleanupRoom(ctx context.Context, roomID string) error {
	// Alias keys are derived from the meta record, so read it before deleting.
	fields, err := r.client.HGetAll(ctx, r.roomMetaKey(roomID)).Result()
	if err != nil {
		return fmt.Errorf("redis: read room %s for cleanup: %w", roomID, err)
	}
	keys := []string{
		r.roomMetaKey(roomID),
		r.roomSeqKey(roomID),
		r.roomHistoryKey(roomID),
		r.roomDedupKey(roomID),
		r.roomMembersKey(roomID),
		r.roomTypingKey(roomID),
	}
	if p := fields["passphrase"]; p != "" {
		keys = append(keys, r.phraseKey(p))
	}
	if c := fields["short_code"]; c != "" {
		keys = append(keys, r.codeKey(c))
	}
	pipe := r.client.TxPipeline()
	pipe.Del(ctx, keys...)
	pipe.SRem(ctx, r.activeRoomsKey(), roomID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: cleanup room %s: %w", roomID, err)
	}
	return nil
}

func (r *RedisStateRepository) TouchRoom(ctx context.Context, roomID string, ttl time.Duration) error {
	pipe := r.client.Pipeline()
	for _, key := range []string{
		r.roomMetaKey(roomID),
		r.roomSeqKey(roomID),
		r.roomHistoryKey(roomID),
		r.roomMembersKey(roomID),
		r.roomTypingKey(roomID),
	} {
		pipe.Expire(ctx, key, ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: refresh TTL for room %s: %w", roomID, err)
	}
	return nil
}

func (r *RedisStateRepository) ActiveRoomIDs(ctx context.Context) ([]string, error) {
	ids, err := r.client.SMembers(ctx, r.activeRoomsKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: list active rooms: %w", err)
	}
	return ids, nil
}

// --- Membership ---

func (r *RedisStateRepository) AddMember(ctx context.Context, roomID string, member *domain.Member, wantAdmin bool) (*domain.Member, error) {
	adminArg := "0"
	if wantAdmin {
		adminArg = "1"
	}
	res, err := joinScript.Run(ctx, r.client,
		[]string{r.roomMetaKey(roomID), r.roomMembersKey(roomID)},
		member.ID, roomID, member.DisplayName, member.AvatarGlyph,
		member.JoinedAt.UTC().Format(time.RFC3339Nano), adminArg,
	).Text()
	if err != nil {
		return nil, mapScriptErr(err)
	}
	var stored domain.Member
	if err := json.Unmarshal([]byte(res), &stored); err != nil {
		return nil, fmt.Errorf("redis: decode stored member for room %s: %w", roomID, err)
	}
	return &stored, nil
}

func (r *RedisStateRepository) GetMember(ctx context.Context, roomID, memberID string) (*domain.Member, error) {
	raw, err := r.client.HGet(ctx, r.roomMembersKey(roomID), memberID).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, repository.ErrMemberNotFound
		}
		return nil, fmt.Errorf("redis: get member %s in room %s: %w", memberID, roomID, err)
	}
	var member domain.Member
	if err := json.Unmarshal([]byte(raw), &member); err != nil {
		return nil, fmt.Errorf("redis: decode member %s in room %s: %w", memberID, roomID, err)
	}
	return &member, nil
}

func (r *RedisStateRepository) ListMembers(ctx context.Context, roomID string) ([]domain.Member, error) {
	raw, err := r.client.HGetAll(ctx, r.roomMembersKey(roomID)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: list members of room %s: %w", roomID, err)
	}
	members := make([]domain.Member, 0, len(raw))
	for id, entry := range raw {
		var member domain.Member
		if err := json.Unmarshal([]byte(entry), &member); err != nil {
			logrus.WithError(err).WithFields(logrus.Fields{
				"room_id":   roomID,
				"member_id": id,
			}).Warn("Skipping undecodable member entry")
			continue
		}
		members = append(members, member)
	}
	sort.Slice(members, func(i, j int) bool {
		if members[i].JoinedAt.Equal(members[j].JoinedAt) {
			return members[i].ID < members[j].ID
		}
		return members[i].JoinedAt.Before(members[j].JoinedAt)
	})
	return members, nil
}

func (r *RedisStateRepository) PromoteMember(ctx context.Context, roomID, callerMemberID, targetMemberID string) error {
	err := promoteScript.Run(ctx, r.client,
		[]string{r.roomMetaKey(roomID), r.roomMembersKey(roomID)},
		callerMemberID, targetMemberID,
	).Err()
	return mapScriptErr(err)
}

func (r *RedisStateRepository) RemoveMember(ctx context.Context, roomID, callerMemberID, targetMemberID string) error {
	err := kickScript.Run(ctx, r.client,
		[]string{r.roomMetaKey(roomID), r.roomMembersKey(roomID), r.roomTypingKey(roomID)},
		callerMemberID, targetMemberID,
	).Err()
	return mapScriptErr(err)
}

func (r *RedisStateRepository) SetConnectionState(ctx context.Context, roomID, memberID string, state domain.ConnectionState) error {
	err := connStateScript.Run(ctx, r.client,
		[]string{r.roomMembersKey(roomID)},
		memberID, string(state),
	).Err()
	return mapScriptErr(err)
}

// --- Message pipeline ---

func (r *RedisStateRepository) AppendMessage(ctx context.Context, roomID, authorMemberID, content, clientMsgID string, sentAt time.Time) (*domain.Message, bool, error) {
	sentAtStr := sentAt.UTC().Format(time.RFC3339Nano)
	res, err := sendScript.Run(ctx, r.client,
		[]string{
			r.roomMetaKey(roomID),
			r.roomMembersKey(roomID),
			r.roomSeqKey(roomID),
			r.roomHistoryKey(roomID),
			r.roomDedupKey(roomID),
		},
		authorMemberID, content, sentAtStr, clientMsgID,
		r.historyCap, r.dedupTTL.Milliseconds(), roomID,
	).Slice()
	if err != nil {
		return nil, false, mapScriptErr(err)
	}
	if len(res) != 3 {
		return nil, false, fmt.Errorf("redis: unexpected send reply shape for room %s", roomID)
	}
	seq, ok := res[0].(int64)
	if !ok {
		return nil, false, fmt.Errorf("redis: unexpected seq type %T for room %s", res[0], roomID)
	}
	duplicate := res[1] == int64(1)
	if duplicate {
		// Same clientMsgId seen before: report the previously assigned seq,
		// nothing was re-appended.
		return &domain.Message{
			RoomID:         roomID,
			Seq:            seq,
			AuthorMemberID: authorMemberID,
			Content:        content,
			ClientMsgID:    clientMsgID,
			SentAt:         sentAt.UTC(),
		}, true, nil
	}
	encoded, _ := res[2].(string)
	var msg domain.Message
	if err := json.Unmarshal([]byte(encoded), &msg); err != nil {
		return nil, false, fmt.Errorf("redis: decode stored message for room %s: %w", roomID, err)
	}
	return &msg, false, nil
}

func (r *RedisStateRepository) RecentMessages(ctx context.Context, roomID string, limit int) ([]domain.Message, error) {
	if limit <= 0 || limit > r.historyCap {
		limit = r.historyCap
	}
	entries, err := r.client.LRange(ctx, r.roomHistoryKey(roomID), int64(-limit), -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: get recent messages for room %s: %w", roomID, err)
	}
	messages := make([]domain.Message, 0, len(entries))
	for _, entry := range entries {
		var msg domain.Message
		if err := json.Unmarshal([]byte(entry), &msg); err != nil {
			logrus.WithError(err).WithField("room_id", roomID).Warn("Skipping undecodable history entry")
			continue
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

// --- Typing indicators ---

func (r *RedisStateRepository) SetTyping(ctx context.Context, roomID, memberID string, ttl time.Duration) ([]string, error) {
	now := time.Now()
	deadline := now.Add(ttl).UnixMilli()
	res, err := typingSetScript.Run(ctx, r.client,
		[]string{r.roomTypingKey(roomID)},
		memberID, deadline, now.UnixMilli(),
	).StringSlice()
	if err != nil {
		return nil, fmt.Errorf("redis: set typing for room %s: %w", roomID, err)
	}
	return res, nil
}

func (r *RedisStateRepository) ClearTyping(ctx context.Context, roomID, memberID string) ([]string, error) {
	res, err := typingClearScript.Run(ctx, r.client,
		[]string{r.roomTypingKey(roomID)},
		memberID, time.Now().UnixMilli(),
	).StringSlice()
	if err != nil {
		return nil, fmt.Errorf("redis: clear typing for room %s: %w", roomID, err)
	}
	return res, nil
}

// --- Fanout ---

func (r *RedisStateRepository) Publish(ctx context.Context, roomID string, frame []byte) error {
	channel := RoomChannel(r.keyPrefix, roomID)
	cmd := r.client.Publish(ctx, channel, frame)
	if err := cmd.Err(); err != nil {
		logrus.WithFields(logrus.Fields{
			"channel":      channel,
			"payload_size": len(frame),
			"room_id":      roomID,
		}).WithError(err).Error("Redis publish failed")
		return fmt.Errorf("redis: publish to channel %s: %w", channel, err)
	}
	return nil
}

// --- Instance health / limits ---

// CheckRateLimit increments the counter behind key and reports whether the
// caller exceeded limit inside the window.
func (r *RedisStateRepository) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	pipe := r.client.Pipeline()
	incrCmd := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("redis: rate limit pipeline for key %s: %w", key, err)
	}
	count, err := incrCmd.Result()
	if err != nil {
		return false, fmt.Errorf("redis: rate limit incr result for key %s: %w", key, err)
	}
	return count > int64(limit), nil
}

func (r *RedisStateRepository) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis: ping: %w", err)
	}
	return nil
}
