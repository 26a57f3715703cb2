// Package storagetest holds the behaviour every storage backend must share.
// Backends run it from their own tests:
//
//	suite.Run(t, &storagetest.Suite{NewStorage: func(t *testing.T) storage.Storage { ... }})
package storagetest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/cardroom/internal/model"
	"github.com/mcoot/cardroom/internal/storage"
)

// Suite is a testify suite run against a fresh store per test
type Suite struct {
	suite.Suite

	// NewStorage returns an empty store. It is called once per test.
	NewStorage func(t *testing.T) storage.Storage

	Store storage.Storage
	Ctx   context.Context
	Now   time.Time
}

func (s *Suite) SetupTest() {
	s.Store = s.NewStorage(s.T())
	s.Ctx = context.Background()
	s.Now = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
}

func (s *Suite) TearDownTest() {
	if s.Store != nil {
		_ = s.Store.Close()
	}
}

func (s *Suite) guest(id, name string) *model.Identity {
	return &model.Identity{
		ID:          model.IdentityID(id),
		Provider:    model.ProviderGuest,
		Role:        model.RoleGuest,
		DisplayName: name,
		CreatedAt:   s.Now,
		UpdatedAt:   s.Now,
	}
}

func (s *Suite) oauthUser(id, name, subject string) *model.Identity {
	return &model.Identity{
		ID:          model.IdentityID(id),
		Provider:    model.ProviderGoogle,
		Role:        model.RoleUser,
		DisplayName: name,
		Subject:     subject,
		CreatedAt:   s.Now,
		UpdatedAt:   s.Now,
	}
}

func (s *Suite) mustCreate(identity *model.Identity) {
	s.Require().NoError(s.Store.CreateIdentity(s.Ctx, identity))
}

func (s *Suite) room(code string, host model.IdentityID, visibility model.Visibility, maxPlayers, maxSpectators int) *model.Room {
	return &model.Room{
		Code:          model.RoomCode(code),
		Name:          "Room " + code,
		HostID:        host,
		MaxPlayers:    maxPlayers,
		MaxSpectators: maxSpectators,
		Visibility:    visibility,
		Status:        model.RoomStatusActive,
		CreatedAt:     s.Now,
	}
}

func (s *Suite) mustCreateRoom(room *model.Room) {
	host := model.Membership{RoomCode: room.Code, IdentityID: room.HostID, Role: model.RolePlayer, JoinedAt: room.CreatedAt}
	s.Require().NoError(s.Store.CreateRoom(s.Ctx, room, host))
}

func (s *Suite) join(code model.RoomCode, id model.IdentityID, role model.MemberRole) (*model.Membership, error) {
	return s.Store.JoinRoom(s.Ctx, code, func(room *model.Room, members []model.Membership) (*model.Membership, error) {
		if existing := model.FindMember(members, id); existing != nil {
			return nil, nil
		}
		players, spectators := model.CountMembers(members)
		if role == model.RolePlayer && players >= room.MaxPlayers {
			return nil, model.ErrRoomFull
		}
		if role == model.RoleSpectator && spectators >= room.MaxSpectators {
			return nil, model.ErrSpectatorsFull
		}
		return &model.Membership{RoomCode: code, IdentityID: id, Role: role, JoinedAt: s.Now}, nil
	})
}

func (s *Suite) roomCodes(rooms []*model.Room) []model.RoomCode {
	codes := make([]model.RoomCode, 0, len(rooms))
	for _, r := range rooms {
		codes = append(codes, r.Code)
	}
	return codes
}

// Identity tests

func (s *Suite) TestCreateAndGetIdentity() {
	alice := s.guest("id-alice", "Alice")
	alice.Password = &model.PasswordCredential{Algorithm: model.AlgorithmBcrypt, Hash: "$2a$04$abc"}
	s.mustCreate(alice)

	got, err := s.Store.GetIdentity(s.Ctx, "id-alice")
	s.Require().NoError(err)
	s.Equal("Alice", got.DisplayName)
	s.Equal(model.ProviderGuest, got.Provider)
	s.Equal(model.RoleGuest, got.Role)
	s.Require().NotNil(got.Password)
	s.Equal(model.AlgorithmBcrypt, got.Password.Algorithm)
	s.Equal("$2a$04$abc", got.Password.Hash)
	s.WithinDuration(s.Now, got.CreatedAt, time.Millisecond)
}

func (s *Suite) TestGetIdentityNotFound() {
	_, err := s.Store.GetIdentity(s.Ctx, "nobody")
	s.ErrorIs(err, model.ErrIdentityNotFound)

	_, err = s.Store.GetGuestIdentityByName(s.Ctx, "nobody")
	s.ErrorIs(err, model.ErrIdentityNotFound)

	_, err = s.Store.GetIdentityBySubject(s.Ctx, model.ProviderGoogle, "sub")
	s.ErrorIs(err, model.ErrIdentityNotFound)
}

func (s *Suite) TestGuestDisplayNameIsUnique() {
	s.mustCreate(s.guest("id-1", "Alice"))

	err := s.Store.CreateIdentity(s.Ctx, s.guest("id-2", "Alice"))
	s.ErrorIs(err, model.ErrDuplicateIdentity)

	got, err := s.Store.GetGuestIdentityByName(s.Ctx, "Alice")
	s.Require().NoError(err)
	s.Equal(model.IdentityID("id-1"), got.ID)
}

func (s *Suite) TestOAuthIdentitiesMayShareGuestNames() {
	s.mustCreate(s.guest("id-1", "Alice"))
	s.mustCreate(s.oauthUser("id-2", "Alice", "sub-a"))
	s.mustCreate(s.oauthUser("id-3", "Alice", "sub-b"))

	got, err := s.Store.GetGuestIdentityByName(s.Ctx, "Alice")
	s.Require().NoError(err)
	s.Equal(model.IdentityID("id-1"), got.ID)
}

func (s *Suite) TestOAuthSubjectIsUnique() {
	s.mustCreate(s.oauthUser("id-1", "Alice", "sub-a"))

	err := s.Store.CreateIdentity(s.Ctx, s.oauthUser("id-2", "Other", "sub-a"))
	s.ErrorIs(err, model.ErrDuplicateIdentity)

	got, err := s.Store.GetIdentityBySubject(s.Ctx, model.ProviderGoogle, "sub-a")
	s.Require().NoError(err)
	s.Equal(model.IdentityID("id-1"), got.ID)

	_, err = s.Store.GetIdentityBySubject(s.Ctx, model.ProviderApple, "sub-a")
	s.ErrorIs(err, model.ErrIdentityNotFound)
}

func (s *Suite) TestUpdateIdentity() {
	alice := s.guest("id-alice", "Alice")
	s.mustCreate(alice)

	alice.Password = &model.PasswordCredential{Algorithm: model.AlgorithmSHA256, Hash: "deadbeef"}
	alice.Role = model.RoleUser
	alice.UpdatedAt = s.Now.Add(time.Hour)
	s.Require().NoError(s.Store.UpdateIdentity(s.Ctx, alice))

	got, err := s.Store.GetIdentity(s.Ctx, "id-alice")
	s.Require().NoError(err)
	s.Equal(model.RoleUser, got.Role)
	s.Require().NotNil(got.Password)
	s.Equal(model.AlgorithmSHA256, got.Password.Algorithm)
	s.WithinDuration(s.Now.Add(time.Hour), got.UpdatedAt, time.Millisecond)
}

func (s *Suite) TestUpdateIdentityNotFound() {
	err := s.Store.UpdateIdentity(s.Ctx, s.guest("ghost", "Ghost"))
	s.ErrorIs(err, model.ErrIdentityNotFound)
}

func (s *Suite) TestListIdentitiesPaged() {
	for i := 0; i < 5; i++ {
		identity := s.guest(fmt.Sprintf("id-%d", i), fmt.Sprintf("Guest %d", i))
		identity.CreatedAt = s.Now.Add(time.Duration(i) * time.Minute)
		s.mustCreate(identity)
	}

	first, err := s.Store.ListIdentities(s.Ctx, model.Page{Limit: 2})
	s.Require().NoError(err)
	s.Require().Len(first, 2)
	s.Equal(model.IdentityID("id-0"), first[0].ID)
	s.Equal(model.IdentityID("id-1"), first[1].ID)

	rest, err := s.Store.ListIdentities(s.Ctx, model.Page{Limit: 10, Offset: 3})
	s.Require().NoError(err)
	s.Require().Len(rest, 2)
	s.Equal(model.IdentityID("id-3"), rest[0].ID)
}

func (s *Suite) TestDeleteIdentityCascades() {
	s.mustCreate(s.guest("id-host", "Host"))
	s.mustCreate(s.oauthUser("id-other", "Other", "sub-o"))
	s.Require().NoError(s.Store.SaveToken(s.Ctx, &model.SessionToken{
		Value: "tok-host", IdentityID: "id-host", IssuedAt: s.Now, ExpiresAt: s.Now.Add(time.Hour),
	}))

	s.mustCreateRoom(s.room("HOSTED", "id-host", model.VisibilityPublic, 4, 0))
	s.mustCreateRoom(s.room("OTHERS", "id-other", model.VisibilityPublic, 4, 0))
	_, err := s.join("OTHERS", "id-host", model.RolePlayer)
	s.Require().NoError(err)

	s.Require().NoError(s.Store.DeleteIdentity(s.Ctx, "id-host"))

	_, err = s.Store.GetIdentity(s.Ctx, "id-host")
	s.ErrorIs(err, model.ErrIdentityNotFound)
	_, err = s.Store.GetGuestIdentityByName(s.Ctx, "Host")
	s.ErrorIs(err, model.ErrIdentityNotFound)
	_, err = s.Store.GetToken(s.Ctx, "tok-host")
	s.ErrorIs(err, model.ErrTokenNotFound)
	_, err = s.Store.GetRoom(s.Ctx, "HOSTED")
	s.ErrorIs(err, model.ErrNotFound)

	members, err := s.Store.GetMembers(s.Ctx, "OTHERS")
	s.Require().NoError(err)
	s.Len(members, 1)
	s.Equal(model.IdentityID("id-other"), members[0].IdentityID)

	// The display name is free again.
	s.mustCreate(s.guest("id-new", "Host"))
}

func (s *Suite) TestDeleteIdentityNotFound() {
	s.ErrorIs(s.Store.DeleteIdentity(s.Ctx, "ghost"), model.ErrIdentityNotFound)
}

// Session token tests

func (s *Suite) TestSaveAndGetToken() {
	s.mustCreate(s.guest("id-alice", "Alice"))
	token := &model.SessionToken{
		Value: "tok-1", IdentityID: "id-alice", IssuedAt: s.Now, ExpiresAt: s.Now.Add(12 * time.Hour),
	}
	s.Require().NoError(s.Store.SaveToken(s.Ctx, token))

	got, err := s.Store.GetToken(s.Ctx, "tok-1")
	s.Require().NoError(err)
	s.Equal(model.IdentityID("id-alice"), got.IdentityID)
	s.Nil(got.RevokedAt)
	s.WithinDuration(s.Now.Add(12*time.Hour), got.ExpiresAt, time.Millisecond)
}

func (s *Suite) TestGetTokenNotFound() {
	_, err := s.Store.GetToken(s.Ctx, "missing")
	s.ErrorIs(err, model.ErrTokenNotFound)
}

func (s *Suite) TestRevokeToken() {
	s.mustCreate(s.guest("id-alice", "Alice"))
	s.Require().NoError(s.Store.SaveToken(s.Ctx, &model.SessionToken{
		Value: "tok-1", IdentityID: "id-alice", IssuedAt: s.Now, ExpiresAt: s.Now.Add(time.Hour),
	}))

	s.Require().NoError(s.Store.RevokeToken(s.Ctx, "tok-1", s.Now.Add(time.Minute)))
	s.Require().NoError(s.Store.RevokeToken(s.Ctx, "tok-1", s.Now.Add(2*time.Minute)))
	s.Require().NoError(s.Store.RevokeToken(s.Ctx, "unknown", s.Now))

	got, err := s.Store.GetToken(s.Ctx, "tok-1")
	s.Require().NoError(err)
	s.Require().NotNil(got.RevokedAt)
	s.WithinDuration(s.Now.Add(time.Minute), *got.RevokedAt, time.Millisecond)
}

func (s *Suite) TestRevokeTokensForIdentity() {
	s.mustCreate(s.guest("id-alice", "Alice"))
	s.mustCreate(s.guest("id-bob", "Bob"))
	for _, t := range []*model.SessionToken{
		{Value: "a1", IdentityID: "id-alice", IssuedAt: s.Now, ExpiresAt: s.Now.Add(time.Hour)},
		{Value: "a2", IdentityID: "id-alice", IssuedAt: s.Now, ExpiresAt: s.Now.Add(time.Hour)},
		{Value: "b1", IdentityID: "id-bob", IssuedAt: s.Now, ExpiresAt: s.Now.Add(time.Hour)},
	} {
		s.Require().NoError(s.Store.SaveToken(s.Ctx, t))
	}

	s.Require().NoError(s.Store.RevokeTokensForIdentity(s.Ctx, "id-alice", s.Now))

	for _, v := range []string{"a1", "a2"} {
		got, err := s.Store.GetToken(s.Ctx, v)
		s.Require().NoError(err)
		s.NotNil(got.RevokedAt, v)
	}
	got, err := s.Store.GetToken(s.Ctx, "b1")
	s.Require().NoError(err)
	s.Nil(got.RevokedAt)
}

func (s *Suite) TestDeleteToken() {
	s.mustCreate(s.guest("id-alice", "Alice"))
	s.Require().NoError(s.Store.SaveToken(s.Ctx, &model.SessionToken{
		Value: "tok-1", IdentityID: "id-alice", IssuedAt: s.Now, ExpiresAt: s.Now.Add(time.Hour),
	}))

	s.Require().NoError(s.Store.DeleteToken(s.Ctx, "tok-1"))
	s.Require().NoError(s.Store.DeleteToken(s.Ctx, "tok-1"))

	_, err := s.Store.GetToken(s.Ctx, "tok-1")
	s.ErrorIs(err, model.ErrTokenNotFound)
}

func (s *Suite) TestDeleteExpiredTokens() {
	s.mustCreate(s.guest("id-alice", "Alice"))
	for _, t := range []*model.SessionToken{
		{Value: "old-1", IdentityID: "id-alice", IssuedAt: s.Now.Add(-2 * time.Hour), ExpiresAt: s.Now.Add(-time.Hour)},
		{Value: "old-2", IdentityID: "id-alice", IssuedAt: s.Now.Add(-2 * time.Hour), ExpiresAt: s.Now},
		{Value: "fresh", IdentityID: "id-alice", IssuedAt: s.Now, ExpiresAt: s.Now.Add(time.Hour)},
	} {
		s.Require().NoError(s.Store.SaveToken(s.Ctx, t))
	}

	removed, err := s.Store.DeleteExpiredTokens(s.Ctx, s.Now)
	s.Require().NoError(err)
	s.Equal(2, removed)

	_, err = s.Store.GetToken(s.Ctx, "old-1")
	s.ErrorIs(err, model.ErrTokenNotFound)
	_, err = s.Store.GetToken(s.Ctx, "fresh")
	s.NoError(err)
}

// Room tests

func (s *Suite) TestCreateRoomWithHostMembership() {
	s.mustCreate(s.oauthUser("id-host", "Host", "sub-h"))
	s.mustCreateRoom(s.room("ABC234", "id-host", model.VisibilityPrivate, 4, 2))

	room, err := s.Store.GetRoom(s.Ctx, "ABC234")
	s.Require().NoError(err)
	s.Equal(model.IdentityID("id-host"), room.HostID)
	s.Equal(4, room.MaxPlayers)
	s.Equal(2, room.MaxSpectators)
	s.Equal(model.VisibilityPrivate, room.Visibility)
	s.Equal(model.RoomStatusActive, room.Status)

	members, err := s.Store.GetMembers(s.Ctx, "ABC234")
	s.Require().NoError(err)
	s.Require().Len(members, 1)
	s.Equal(model.IdentityID("id-host"), members[0].IdentityID)
	s.Equal(model.RolePlayer, members[0].Role)
}

func (s *Suite) TestCreateRoomCodeTaken() {
	s.mustCreate(s.oauthUser("id-host", "Host", "sub-h"))
	s.mustCreateRoom(s.room("ABC234", "id-host", model.VisibilityPublic, 4, 0))

	room := s.room("ABC234", "id-host", model.VisibilityPublic, 4, 0)
	err := s.Store.CreateRoom(s.Ctx, room, model.Membership{RoomCode: room.Code, IdentityID: "id-host", Role: model.RolePlayer})
	s.ErrorIs(err, model.ErrRoomCodeTaken)
}

func (s *Suite) TestGetRoomNotFound() {
	_, err := s.Store.GetRoom(s.Ctx, "NOPE22")
	s.ErrorIs(err, model.ErrNotFound)

	_, err = s.Store.GetMembers(s.Ctx, "NOPE22")
	s.ErrorIs(err, model.ErrNotFound)
}

func (s *Suite) TestRoomExists() {
	s.mustCreate(s.oauthUser("id-host", "Host", "sub-h"))
	s.mustCreateRoom(s.room("ABC234", "id-host", model.VisibilityPublic, 4, 0))

	exists, err := s.Store.RoomExists(s.Ctx, "ABC234")
	s.Require().NoError(err)
	s.True(exists)

	exists, err = s.Store.RoomExists(s.Ctx, "ZZZ999")
	s.Require().NoError(err)
	s.False(exists)
}

func (s *Suite) TestSetRoomStatus() {
	s.mustCreate(s.oauthUser("id-host", "Host", "sub-h"))
	s.mustCreateRoom(s.room("ABC234", "id-host", model.VisibilityPublic, 4, 0))

	s.Require().NoError(s.Store.SetRoomStatus(s.Ctx, "ABC234", model.RoomStatusArchived))

	room, err := s.Store.GetRoom(s.Ctx, "ABC234")
	s.Require().NoError(err)
	s.Equal(model.RoomStatusArchived, room.Status)

	s.ErrorIs(s.Store.SetRoomStatus(s.Ctx, "ZZZ999", model.RoomStatusArchived), model.ErrNotFound)
}

func (s *Suite) TestListRoomsVisibility() {
	s.mustCreate(s.oauthUser("id-a", "A", "sub-a"))
	s.mustCreate(s.oauthUser("id-b", "B", "sub-b"))
	s.mustCreate(s.oauthUser("id-c", "C", "sub-c"))

	s.mustCreateRoom(s.room("PUBLIC", "id-a", model.VisibilityPublic, 4, 0))
	private := s.room("SECRET", "id-a", model.VisibilityPrivate, 4, 0)
	private.CreatedAt = s.Now.Add(time.Minute)
	s.mustCreateRoom(private)
	_, err := s.join("SECRET", "id-b", model.RolePlayer)
	s.Require().NoError(err)

	active := model.RoomStatusActive
	for _, tc := range []struct {
		viewer model.IdentityID
		want   []model.RoomCode
	}{
		{"", []model.RoomCode{"PUBLIC"}},
		{"id-a", []model.RoomCode{"SECRET", "PUBLIC"}},
		{"id-b", []model.RoomCode{"SECRET", "PUBLIC"}},
		{"id-c", []model.RoomCode{"PUBLIC"}},
	} {
		rooms, err := s.Store.ListRooms(s.Ctx, storage.RoomQuery{Status: active, Viewer: tc.viewer})
		s.Require().NoError(err)
		s.Equal(tc.want, s.roomCodes(rooms), "viewer %q", tc.viewer)
	}

	all, err := s.Store.ListRooms(s.Ctx, storage.RoomQuery{AllVisibility: true})
	s.Require().NoError(err)
	s.ElementsMatch([]model.RoomCode{"PUBLIC", "SECRET"}, s.roomCodes(all))
}

func (s *Suite) TestListRoomsStatusSortAndPaging() {
	s.mustCreate(s.oauthUser("id-a", "A", "sub-a"))
	for i, name := range []string{"charlie", "alpha", "bravo"} {
		room := s.room(fmt.Sprintf("ROOM%02d", i), "id-a", model.VisibilityPublic, 4, 0)
		room.Name = name
		room.CreatedAt = s.Now.Add(time.Duration(i) * time.Minute)
		s.mustCreateRoom(room)
	}
	s.Require().NoError(s.Store.SetRoomStatus(s.Ctx, "ROOM01", model.RoomStatusArchived))

	active, err := s.Store.ListRooms(s.Ctx, storage.RoomQuery{Status: model.RoomStatusActive, AllVisibility: true})
	s.Require().NoError(err)
	s.Equal([]model.RoomCode{"ROOM02", "ROOM00"}, s.roomCodes(active))

	archived, err := s.Store.ListRooms(s.Ctx, storage.RoomQuery{Status: model.RoomStatusArchived, AllVisibility: true})
	s.Require().NoError(err)
	s.Equal([]model.RoomCode{"ROOM01"}, s.roomCodes(archived))

	byName, err := s.Store.ListRooms(s.Ctx, storage.RoomQuery{AllVisibility: true, Sort: model.SortName})
	s.Require().NoError(err)
	s.Equal([]model.RoomCode{"ROOM01", "ROOM02", "ROOM00"}, s.roomCodes(byName))

	page, err := s.Store.ListRooms(s.Ctx, storage.RoomQuery{AllVisibility: true, Sort: model.SortOldest, Limit: 1, Offset: 1})
	s.Require().NoError(err)
	s.Equal([]model.RoomCode{"ROOM01"}, s.roomCodes(page))
}

// Membership tests

func (s *Suite) TestJoinRoomPersistsMembership() {
	s.mustCreate(s.oauthUser("id-host", "Host", "sub-h"))
	s.mustCreate(s.oauthUser("id-b", "B", "sub-b"))
	s.mustCreateRoom(s.room("ABC234", "id-host", model.VisibilityPublic, 4, 1))

	m, err := s.join("ABC234", "id-b", model.RoleSpectator)
	s.Require().NoError(err)
	s.Require().NotNil(m)
	s.Equal(model.RoleSpectator, m.Role)

	members, err := s.Store.GetMembers(s.Ctx, "ABC234")
	s.Require().NoError(err)
	s.Len(members, 2)
	b := model.FindMember(members, "id-b")
	s.Require().NotNil(b)
	s.Equal(model.RoleSpectator, b.Role)
}

func (s *Suite) TestJoinRoomWritesNothingOnRejection() {
	s.mustCreate(s.oauthUser("id-host", "Host", "sub-h"))
	s.mustCreate(s.oauthUser("id-b", "B", "sub-b"))
	s.mustCreateRoom(s.room("ABC234", "id-host", model.VisibilityPublic, 4, 0))

	_, err := s.join("ABC234", "id-b", model.RoleSpectator)
	s.ErrorIs(err, model.ErrSpectatorsFull)

	// Re-join by an existing member returns no new membership.
	m, err := s.join("ABC234", "id-host", model.RolePlayer)
	s.Require().NoError(err)
	s.Nil(m)

	members, err := s.Store.GetMembers(s.Ctx, "ABC234")
	s.Require().NoError(err)
	s.Len(members, 1)
}

func (s *Suite) TestJoinRoomNotFound() {
	_, err := s.join("NOPE22", "id-b", model.RolePlayer)
	s.ErrorIs(err, model.ErrNotFound)
}

func (s *Suite) TestConcurrentJoinsNeverExceedCapacity() {
	const maxPlayers = 4
	const joiners = 12

	s.mustCreate(s.oauthUser("id-host", "Host", "sub-h"))
	for i := 0; i < joiners; i++ {
		s.mustCreate(s.oauthUser(fmt.Sprintf("id-%d", i), fmt.Sprintf("P%d", i), fmt.Sprintf("sub-%d", i)))
	}
	s.mustCreateRoom(s.room("RACE22", "id-host", model.VisibilityPublic, maxPlayers, 0))

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		full      int
		other     []error
	)
	start := make(chan struct{})
	for i := 0; i < joiners; i++ {
		wg.Add(1)
		go func(id model.IdentityID) {
			defer wg.Done()
			<-start
			_, err := s.join("RACE22", id, model.RolePlayer)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, model.ErrRoomFull):
				full++
			default:
				other = append(other, err)
			}
		}(model.IdentityID(fmt.Sprintf("id-%d", i)))
	}
	close(start)
	wg.Wait()

	s.Empty(other)
	s.Equal(maxPlayers-1, succeeded)
	s.Equal(joiners-(maxPlayers-1), full)

	members, err := s.Store.GetMembers(s.Ctx, "RACE22")
	s.Require().NoError(err)
	players, _ := model.CountMembers(members)
	s.Equal(maxPlayers, players)
}
