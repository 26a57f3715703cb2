package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/suite"

	"github.com/mcoot/cardroom/internal/model"
	"github.com/mcoot/cardroom/internal/storage"
	"github.com/mcoot/cardroom/internal/storage/storagetest"
)

func newTestStorage(t *testing.T) (*Storage, *miniredis.Miniredis) {
	mini := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{
		Addr:     mini.Addr(),
		PoolSize: 32,
	})
	return NewWithClient(client, DefaultConfig()), mini
}

func TestStorageConformance(t *testing.T) {
	suite.Run(t, &storagetest.Suite{
		NewStorage: func(t *testing.T) storage.Storage {
			s, _ := newTestStorage(t)
			return s
		},
	})
}

type StorageSuite struct {
	suite.Suite
	mini    *miniredis.Miniredis
	storage *Storage
	ctx     context.Context
	now     time.Time
}

func TestStorageSuite(t *testing.T) {
	suite.Run(t, new(StorageSuite))
}

func (s *StorageSuite) SetupTest() {
	s.storage, s.mini = newTestStorage(s.T())
	s.ctx = context.Background()
	s.now = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
}

func (s *StorageSuite) TearDownTest() {
	if s.storage != nil {
		_ = s.storage.Close()
	}
}

func (s *StorageSuite) TestTokenKeyCarriesTTL() {
	token := &model.SessionToken{
		Value: "tok-1", IdentityID: "id-1", IssuedAt: s.now, ExpiresAt: s.now.Add(12 * time.Hour),
	}
	s.Require().NoError(s.storage.SaveToken(s.ctx, token))

	ttl := s.mini.TTL(tokenKey("tok-1"))
	s.Equal(12*time.Hour+DefaultConfig().TokenGrace, ttl)
}

func (s *StorageSuite) TestRevokeKeepsTTL() {
	token := &model.SessionToken{
		Value: "tok-1", IdentityID: "id-1", IssuedAt: s.now, ExpiresAt: s.now.Add(time.Hour),
	}
	s.Require().NoError(s.storage.SaveToken(s.ctx, token))
	s.Require().NoError(s.storage.RevokeToken(s.ctx, "tok-1", s.now))

	s.Greater(s.mini.TTL(tokenKey("tok-1")), time.Duration(0))
}

func (s *StorageSuite) TestTokenKeyExpiryLooksUnknown() {
	token := &model.SessionToken{
		Value: "tok-1", IdentityID: "id-1", IssuedAt: s.now, ExpiresAt: s.now.Add(time.Hour),
	}
	s.Require().NoError(s.storage.SaveToken(s.ctx, token))

	s.mini.FastForward(2*time.Hour + time.Second)

	_, err := s.storage.GetToken(s.ctx, "tok-1")
	s.ErrorIs(err, model.ErrTokenNotFound)

	// The sweep still clears the stale index entry.
	removed, err := s.storage.DeleteExpiredTokens(s.ctx, s.now.Add(2*time.Hour))
	s.Require().NoError(err)
	s.Equal(1, removed)
}

func (s *StorageSuite) TestDeleteExpiredTokensCleansIdentityIndex() {
	token := &model.SessionToken{
		Value: "tok-1", IdentityID: "id-1", IssuedAt: s.now, ExpiresAt: s.now.Add(time.Hour),
	}
	s.Require().NoError(s.storage.SaveToken(s.ctx, token))

	_, err := s.storage.DeleteExpiredTokens(s.ctx, s.now.Add(time.Hour))
	s.Require().NoError(err)

	members, err := s.mini.Members(identityTokensKey("id-1"))
	if err == nil {
		s.Empty(members)
	}
}

func (s *StorageSuite) TestCreateRoomIndexesHost() {
	room := &model.Room{
		Code: "ABC234", Name: "Table", HostID: "host", MaxPlayers: 4,
		Visibility: model.VisibilityPrivate, Status: model.RoomStatusActive, CreatedAt: s.now,
	}
	host := model.Membership{RoomCode: "ABC234", IdentityID: "host", Role: model.RolePlayer, JoinedAt: s.now}
	s.Require().NoError(s.storage.CreateRoom(s.ctx, room, host))

	joined, err := s.mini.Members(identityRoomsKey("host"))
	s.Require().NoError(err)
	s.Equal([]string{"ABC234"}, joined)

	hosted, err := s.mini.Members(hostedRoomsKey("host"))
	s.Require().NoError(err)
	s.Equal([]string{"ABC234"}, hosted)
}

func (s *StorageSuite) TestKeysAreNamespaced() {
	s.Equal("cardroom:identity:abc", identityKey("abc"))
	s.Equal("cardroom:idx:guest_name:Alice", guestNameIndexKey("Alice"))
	s.Equal("cardroom:idx:subject:google:123", subjectIndexKey(model.ProviderGoogle, "123"))
	s.Equal("cardroom:room_members:ABC234", roomMembersKey("ABC234"))
}
