package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/cardroom/internal/model"
	"github.com/mcoot/cardroom/internal/storage"
	"github.com/mcoot/cardroom/internal/storage/storagetest"
)

func TestStorageConformance(t *testing.T) {
	suite.Run(t, &storagetest.Suite{
		NewStorage: func(t *testing.T) storage.Storage { return New() },
	})
}

type StorageSuite struct {
	suite.Suite
	storage *Storage
	ctx     context.Context
}

func TestStorageSuite(t *testing.T) {
	suite.Run(t, new(StorageSuite))
}

func (s *StorageSuite) SetupTest() {
	s.storage = New()
	s.ctx = context.Background()
}

func (s *StorageSuite) TestReturnedIdentityIsACopy() {
	identity := &model.Identity{
		ID:          "id-1",
		Provider:    model.ProviderGuest,
		DisplayName: "Alice",
		Password:    &model.PasswordCredential{Algorithm: model.AlgorithmBcrypt, Hash: "h1"},
		CreatedAt:   time.Now(),
	}
	s.Require().NoError(s.storage.CreateIdentity(s.ctx, identity))

	got, err := s.storage.GetIdentity(s.ctx, "id-1")
	s.Require().NoError(err)
	got.Password.Hash = "tampered"
	got.DisplayName = "Mallory"

	again, err := s.storage.GetIdentity(s.ctx, "id-1")
	s.Require().NoError(err)
	s.Equal("h1", again.Password.Hash)
	s.Equal("Alice", again.DisplayName)
}

func (s *StorageSuite) TestJoinFuncSeesCopies() {
	room := &model.Room{Code: "ABC234", HostID: "host", MaxPlayers: 4, Status: model.RoomStatusActive, Visibility: model.VisibilityPublic}
	s.Require().NoError(s.storage.CreateRoom(s.ctx, room, model.Membership{RoomCode: "ABC234", IdentityID: "host", Role: model.RolePlayer}))

	_, err := s.storage.JoinRoom(s.ctx, "ABC234", func(r *model.Room, members []model.Membership) (*model.Membership, error) {
		r.MaxPlayers = 99
		members[0].Role = model.RoleSpectator
		return nil, nil
	})
	s.Require().NoError(err)

	got, err := s.storage.GetRoom(s.ctx, "ABC234")
	s.Require().NoError(err)
	s.Equal(4, got.MaxPlayers)

	members, err := s.storage.GetMembers(s.ctx, "ABC234")
	s.Require().NoError(err)
	s.Equal(model.RolePlayer, members[0].Role)
}

func (s *StorageSuite) TestRenamingGuestMovesNameIndex() {
	identity := &model.Identity{ID: "id-1", Provider: model.ProviderGuest, DisplayName: "Alice"}
	s.Require().NoError(s.storage.CreateIdentity(s.ctx, identity))

	identity.DisplayName = "Alicia"
	s.Require().NoError(s.storage.UpdateIdentity(s.ctx, identity))

	_, err := s.storage.GetGuestIdentityByName(s.ctx, "Alice")
	s.ErrorIs(err, model.ErrIdentityNotFound)
	got, err := s.storage.GetGuestIdentityByName(s.ctx, "Alicia")
	s.Require().NoError(err)
	s.Equal(model.IdentityID("id-1"), got.ID)
}
