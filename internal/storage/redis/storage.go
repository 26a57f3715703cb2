package redis

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mcoot/cardroom/internal/model"
	"github.com/mcoot/cardroom/internal/storage"
)

// errContention is returned when an optimistic transaction keeps losing races
var errContention = errors.New("redis: transaction retries exhausted")

// Storage is a Redis-backed implementation of the storage interface.
// Multi-key invariants (unique indexes, room capacity) are kept with
// WATCH/MULTI/EXEC and a bounded retry loop.
type Storage struct {
	client *redis.Client
	cfg    Config
}

// New creates a new Redis storage instance
func New(cfg Config) (*Storage, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, err
	}

	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns

	client := redis.NewClient(opts)

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}

	return NewWithClient(client, cfg), nil
}

// NewWithClient creates a Redis storage with an existing client (for testing)
func NewWithClient(client *redis.Client, cfg Config) *Storage {
	if cfg.MaxTxRetries <= 0 {
		cfg.MaxTxRetries = DefaultConfig().MaxTxRetries
	}
	return &Storage{
		client: client,
		cfg:    cfg,
	}
}

// Close closes the Redis connection
func (s *Storage) Close() error {
	return s.client.Close()
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func getJSON[T any](ctx context.Context, c getter, key string, notFound error) (*T, error) {
	data, err := c.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, notFound
		}
		return nil, err
	}

	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// transact runs fn under WATCH on keys, retrying when another client
// modified a watched key before EXEC.
func (s *Storage) transact(ctx context.Context, fn func(tx *redis.Tx) error, keys ...string) error {
	for i := 0; i < s.cfg.MaxTxRetries; i++ {
		err := s.client.Watch(ctx, fn, keys...)
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
	}
	return errContention
}

func score(t time.Time) float64 {
	return float64(t.UnixMilli())
}

// Identity operations

func (s *Storage) CreateIdentity(ctx context.Context, identity *model.Identity) error {
	data, err := json.Marshal(identity)
	if err != nil {
		return err
	}

	keys := []string{identityKey(identity.ID)}
	if identity.Provider == model.ProviderGuest {
		keys = append(keys, guestNameIndexKey(identity.DisplayName))
	}
	if identity.Subject != "" {
		keys = append(keys, subjectIndexKey(identity.Provider, identity.Subject))
	}

	return s.transact(ctx, func(tx *redis.Tx) error {
		taken, err := tx.Exists(ctx, keys...).Result()
		if err != nil {
			return err
		}
		if taken > 0 {
			return model.ErrDuplicateIdentity
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, identityKey(identity.ID), data, 0)
			for _, key := range keys[1:] {
				pipe.Set(ctx, key, string(identity.ID), 0)
			}
			pipe.ZAdd(ctx, identitiesIndexKey(), redis.Z{Score: score(identity.CreatedAt), Member: string(identity.ID)})
			return nil
		})
		return err
	}, keys...)
}

func (s *Storage) GetIdentity(ctx context.Context, id model.IdentityID) (*model.Identity, error) {
	return getJSON[model.Identity](ctx, s.client, identityKey(id), model.ErrIdentityNotFound)
}

func (s *Storage) getIdentityByIndex(ctx context.Context, indexKey string) (*model.Identity, error) {
	id, err := s.client.Get(ctx, indexKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, model.ErrIdentityNotFound
		}
		return nil, err
	}
	return s.GetIdentity(ctx, model.IdentityID(id))
}

func (s *Storage) GetGuestIdentityByName(ctx context.Context, displayName string) (*model.Identity, error) {
	return s.getIdentityByIndex(ctx, guestNameIndexKey(displayName))
}

func (s *Storage) GetIdentityBySubject(ctx context.Context, provider model.Provider, subject string) (*model.Identity, error) {
	return s.getIdentityByIndex(ctx, subjectIndexKey(provider, subject))
}

func (s *Storage) UpdateIdentity(ctx context.Context, identity *model.Identity) error {
	data, err := json.Marshal(identity)
	if err != nil {
		return err
	}

	keys := []string{identityKey(identity.ID)}
	if identity.Provider == model.ProviderGuest {
		keys = append(keys, guestNameIndexKey(identity.DisplayName))
	}

	return s.transact(ctx, func(tx *redis.Tx) error {
		existing, err := getJSON[model.Identity](ctx, tx, identityKey(identity.ID), model.ErrIdentityNotFound)
		if err != nil {
			return err
		}

		renamed := identity.Provider == model.ProviderGuest && identity.DisplayName != existing.DisplayName
		if renamed {
			taken, err := tx.Exists(ctx, guestNameIndexKey(identity.DisplayName)).Result()
			if err != nil {
				return err
			}
			if taken > 0 {
				return model.ErrDuplicateIdentity
			}
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if renamed {
				pipe.Del(ctx, guestNameIndexKey(existing.DisplayName))
				pipe.Set(ctx, guestNameIndexKey(identity.DisplayName), string(identity.ID), 0)
			}
			pipe.Set(ctx, identityKey(identity.ID), data, 0)
			return nil
		})
		return err
	}, keys...)
}

func (s *Storage) DeleteIdentity(ctx context.Context, id model.IdentityID) error {
	keys := []string{identityKey(id), identityTokensKey(id), identityRoomsKey(id), hostedRoomsKey(id)}

	return s.transact(ctx, func(tx *redis.Tx) error {
		identity, err := getJSON[model.Identity](ctx, tx, identityKey(id), model.ErrIdentityNotFound)
		if err != nil {
			return err
		}
		tokens, err := tx.SMembers(ctx, identityTokensKey(id)).Result()
		if err != nil {
			return err
		}
		joined, err := tx.SMembers(ctx, identityRoomsKey(id)).Result()
		if err != nil {
			return err
		}
		hosted, err := tx.SMembers(ctx, hostedRoomsKey(id)).Result()
		if err != nil {
			return err
		}
		hostedMembers := make(map[string][]string, len(hosted))
		for _, code := range hosted {
			members, err := tx.HKeys(ctx, roomMembersKey(model.RoomCode(code))).Result()
			if err != nil {
				return err
			}
			hostedMembers[code] = members
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, identityKey(id))
			pipe.ZRem(ctx, identitiesIndexKey(), string(id))
			if identity.Provider == model.ProviderGuest {
				pipe.Del(ctx, guestNameIndexKey(identity.DisplayName))
			}
			if identity.Subject != "" {
				pipe.Del(ctx, subjectIndexKey(identity.Provider, identity.Subject))
			}

			for _, value := range tokens {
				pipe.Del(ctx, tokenKey(value))
				pipe.ZRem(ctx, tokenExpiryIndexKey(), value)
			}
			pipe.Del(ctx, identityTokensKey(id))

			for _, code := range joined {
				pipe.HDel(ctx, roomMembersKey(model.RoomCode(code)), string(id))
			}
			pipe.Del(ctx, identityRoomsKey(id))

			for code, members := range hostedMembers {
				rc := model.RoomCode(code)
				for _, member := range members {
					pipe.SRem(ctx, identityRoomsKey(model.IdentityID(member)), code)
				}
				pipe.Del(ctx, roomKey(rc), roomMembersKey(rc))
				pipe.ZRem(ctx, roomsIndexKey(), code)
			}
			pipe.Del(ctx, hostedRoomsKey(id))
			return nil
		})
		return err
	}, keys...)
}

func (s *Storage) ListIdentities(ctx context.Context, page model.Page) ([]*model.Identity, error) {
	start := int64(max(page.Offset, 0))
	stop := int64(-1)
	if page.Limit > 0 {
		stop = start + int64(page.Limit) - 1
	}

	ids, err := s.client.ZRange(ctx, identitiesIndexKey(), start, stop).Result()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []*model.Identity{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = identityKey(model.IdentityID(id))
	}
	return mgetJSON[model.Identity](ctx, s.client, keys)
}

// mgetJSON fetches keys in one round trip, skipping any that have vanished
func mgetJSON[T any](ctx context.Context, client *redis.Client, keys []string) ([]*T, error) {
	values, err := client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	out := make([]*T, 0, len(values))
	for _, val := range values {
		str, ok := val.(string)
		if !ok {
			continue
		}
		var v T
		if err := json.Unmarshal([]byte(str), &v); err != nil {
			return nil, err
		}
		out = append(out, &v)
	}
	return out, nil
}

// Session token operations

func (s *Storage) SaveToken(ctx context.Context, token *model.SessionToken) error {
	data, err := json.Marshal(token)
	if err != nil {
		return err
	}

	// Key lifetime is relative to issue time so it is independent of the
	// wall clock Redis runs on; the sweep uses the expiry index instead.
	ttl := token.ExpiresAt.Sub(token.IssuedAt) + s.cfg.TokenGrace
	if ttl <= 0 {
		ttl = s.cfg.TokenGrace
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, tokenKey(token.Value), data, ttl)
	pipe.ZAdd(ctx, tokenExpiryIndexKey(), redis.Z{Score: score(token.ExpiresAt), Member: token.Value})
	pipe.SAdd(ctx, identityTokensKey(token.IdentityID), token.Value)
	_, err = pipe.Exec(ctx)
	return err
}

func (s *Storage) GetToken(ctx context.Context, value string) (*model.SessionToken, error) {
	return getJSON[model.SessionToken](ctx, s.client, tokenKey(value), model.ErrTokenNotFound)
}

func (s *Storage) RevokeToken(ctx context.Context, value string, at time.Time) error {
	key := tokenKey(value)
	return s.transact(ctx, func(tx *redis.Tx) error {
		token, err := getJSON[model.SessionToken](ctx, tx, key, model.ErrTokenNotFound)
		if errors.Is(err, model.ErrTokenNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if token.RevokedAt != nil {
			return nil
		}

		token.RevokedAt = &at
		data, err := json.Marshal(token)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, redis.KeepTTL)
			return nil
		})
		return err
	}, key)
}

func (s *Storage) RevokeTokensForIdentity(ctx context.Context, id model.IdentityID, at time.Time) error {
	values, err := s.client.SMembers(ctx, identityTokensKey(id)).Result()
	if err != nil {
		return err
	}
	for _, value := range values {
		if err := s.RevokeToken(ctx, value, at); err != nil {
			return err
		}
	}
	return nil
}

func (s *Storage) DeleteToken(ctx context.Context, value string) error {
	token, err := s.GetToken(ctx, value)
	if errors.Is(err, model.ErrTokenNotFound) {
		_, err = s.client.ZRem(ctx, tokenExpiryIndexKey(), value).Result()
		return err
	}
	if err != nil {
		return err
	}

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, tokenKey(value))
	pipe.ZRem(ctx, tokenExpiryIndexKey(), value)
	pipe.SRem(ctx, identityTokensKey(token.IdentityID), value)
	_, err = pipe.Exec(ctx)
	return err
}

func (s *Storage) DeleteExpiredTokens(ctx context.Context, now time.Time) (int, error) {
	values, err := s.client.ZRangeByScore(ctx, tokenExpiryIndexKey(), &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(now.UnixMilli(), 10),
	}).Result()
	if err != nil {
		return 0, err
	}
	if len(values) == 0 {
		return 0, nil
	}

	keys := make([]string, len(values))
	for i, v := range values {
		keys[i] = tokenKey(v)
	}
	tokens, err := mgetJSON[model.SessionToken](ctx, s.client, keys)
	if err != nil {
		return 0, err
	}

	members := make([]any, len(values))
	for i, v := range values {
		members[i] = v
	}

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, keys...)
	pipe.ZRem(ctx, tokenExpiryIndexKey(), members...)
	for _, token := range tokens {
		pipe.SRem(ctx, identityTokensKey(token.IdentityID), token.Value)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return len(values), nil
}

// Room operations

func (s *Storage) CreateRoom(ctx context.Context, room *model.Room, host model.Membership) error {
	roomData, err := json.Marshal(room)
	if err != nil {
		return err
	}
	hostData, err := json.Marshal(host)
	if err != nil {
		return err
	}

	key := roomKey(room.Code)
	return s.transact(ctx, func(tx *redis.Tx) error {
		exists, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return err
		}
		if exists > 0 {
			return model.ErrRoomCodeTaken
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, roomData, 0)
			pipe.HSet(ctx, roomMembersKey(room.Code), string(host.IdentityID), hostData)
			pipe.ZAdd(ctx, roomsIndexKey(), redis.Z{Score: score(room.CreatedAt), Member: string(room.Code)})
			pipe.SAdd(ctx, identityRoomsKey(host.IdentityID), string(room.Code))
			pipe.SAdd(ctx, hostedRoomsKey(room.HostID), string(room.Code))
			return nil
		})
		return err
	}, key)
}

func (s *Storage) GetRoom(ctx context.Context, code model.RoomCode) (*model.Room, error) {
	return getJSON[model.Room](ctx, s.client, roomKey(code), model.ErrNotFound)
}

func (s *Storage) RoomExists(ctx context.Context, code model.RoomCode) (bool, error) {
	exists, err := s.client.Exists(ctx, roomKey(code)).Result()
	if err != nil {
		return false, err
	}
	return exists > 0, nil
}

func (s *Storage) SetRoomStatus(ctx context.Context, code model.RoomCode, status model.RoomStatus) error {
	key := roomKey(code)
	return s.transact(ctx, func(tx *redis.Tx) error {
		room, err := getJSON[model.Room](ctx, tx, key, model.ErrNotFound)
		if err != nil {
			return err
		}
		room.Status = status
		data, err := json.Marshal(room)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			return nil
		})
		return err
	}, key)
}

func (s *Storage) ListRooms(ctx context.Context, query storage.RoomQuery) ([]*model.Room, error) {
	codes, err := s.client.ZRange(ctx, roomsIndexKey(), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	if len(codes) == 0 {
		return []*model.Room{}, nil
	}

	memberOf := map[string]bool{}
	if query.Viewer != "" && !query.AllVisibility {
		joined, err := s.client.SMembers(ctx, identityRoomsKey(query.Viewer)).Result()
		if err != nil {
			return nil, err
		}
		for _, code := range joined {
			memberOf[code] = true
		}
	}

	keys := make([]string, len(codes))
	for i, code := range codes {
		keys[i] = roomKey(model.RoomCode(code))
	}
	all, err := mgetJSON[model.Room](ctx, s.client, keys)
	if err != nil {
		return nil, err
	}

	rooms := make([]*model.Room, 0, len(all))
	for _, room := range all {
		if query.MatchesRoom(room, memberOf[string(room.Code)]) {
			rooms = append(rooms, room)
		}
	}
	storage.SortRooms(rooms, query.Sort)
	return storage.Window(rooms, query.Limit, query.Offset), nil
}

// Membership operations

type hashGetter interface {
	HGetAll(ctx context.Context, key string) *redis.MapStringStringCmd
}

func loadMembers(ctx context.Context, c hashGetter, code model.RoomCode) ([]model.Membership, error) {
	raw, err := c.HGetAll(ctx, roomMembersKey(code)).Result()
	if err != nil {
		return nil, err
	}

	members := make([]model.Membership, 0, len(raw))
	for _, data := range raw {
		var m model.Membership
		if err := json.Unmarshal([]byte(data), &m); err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	sort.Slice(members, func(i, j int) bool {
		if !members[i].JoinedAt.Equal(members[j].JoinedAt) {
			return members[i].JoinedAt.Before(members[j].JoinedAt)
		}
		return members[i].IdentityID < members[j].IdentityID
	})
	return members, nil
}

func (s *Storage) GetMembers(ctx context.Context, code model.RoomCode) ([]model.Membership, error) {
	exists, err := s.RoomExists(ctx, code)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, model.ErrNotFound
	}
	return loadMembers(ctx, s.client, code)
}

func (s *Storage) JoinRoom(ctx context.Context, code model.RoomCode, fn storage.JoinFunc) (*model.Membership, error) {
	var joined *model.Membership

	err := s.transact(ctx, func(tx *redis.Tx) error {
		joined = nil

		room, err := getJSON[model.Room](ctx, tx, roomKey(code), model.ErrNotFound)
		if err != nil {
			return err
		}
		members, err := loadMembers(ctx, tx, code)
		if err != nil {
			return err
		}

		membership, err := fn(room, members)
		if err != nil || membership == nil {
			return err
		}
		data, err := json.Marshal(membership)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, roomMembersKey(code), string(membership.IdentityID), data)
			pipe.SAdd(ctx, identityRoomsKey(membership.IdentityID), string(code))
			return nil
		})
		if err == nil {
			joined = membership
		}
		return err
	}, roomKey(code), roomMembersKey(code))
	if err != nil {
		return nil, err
	}
	return joined, nil
}
