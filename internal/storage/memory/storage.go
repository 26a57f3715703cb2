package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/mcoot/cardroom/internal/model"
	"github.com/mcoot/cardroom/internal/storage"
)

// Storage is an in-memory implementation of the storage interface.
// A single lock serializes writers, which is what makes JoinRoom atomic.
type Storage struct {
	mu sync.RWMutex

	identities     map[model.IdentityID]*model.Identity
	guestNameIndex map[string]model.IdentityID
	subjectIndex   map[subjectKey]model.IdentityID
	tokens         map[string]*model.SessionToken
	rooms          map[model.RoomCode]*model.Room
	members        map[model.RoomCode][]model.Membership
}

type subjectKey struct {
	provider model.Provider
	subject  string
}

// New creates a new in-memory storage instance
func New() *Storage {
	return &Storage{
		identities:     make(map[model.IdentityID]*model.Identity),
		guestNameIndex: make(map[string]model.IdentityID),
		subjectIndex:   make(map[subjectKey]model.IdentityID),
		tokens:         make(map[string]*model.SessionToken),
		rooms:          make(map[model.RoomCode]*model.Room),
		members:        make(map[model.RoomCode][]model.Membership),
	}
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

// Close is a no-op for the in-memory store
func (s *Storage) Close() error {
	return nil
}

// Identity operations

func (s *Storage) CreateIdentity(ctx context.Context, identity *model.Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.identities[identity.ID]; ok {
		return model.ErrDuplicateIdentity
	}
	if identity.Provider == model.ProviderGuest {
		if _, ok := s.guestNameIndex[identity.DisplayName]; ok {
			return model.ErrDuplicateIdentity
		}
	}
	if identity.Subject != "" {
		if _, ok := s.subjectIndex[subjectKey{identity.Provider, identity.Subject}]; ok {
			return model.ErrDuplicateIdentity
		}
	}

	s.putIdentity(cloneIdentity(identity))
	return nil
}

func (s *Storage) putIdentity(identity *model.Identity) {
	s.identities[identity.ID] = identity
	if identity.Provider == model.ProviderGuest {
		s.guestNameIndex[identity.DisplayName] = identity.ID
	}
	if identity.Subject != "" {
		s.subjectIndex[subjectKey{identity.Provider, identity.Subject}] = identity.ID
	}
}

func (s *Storage) GetIdentity(ctx context.Context, id model.IdentityID) (*model.Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	identity, ok := s.identities[id]
	if !ok {
		return nil, model.ErrIdentityNotFound
	}
	return cloneIdentity(identity), nil
}

func (s *Storage) GetGuestIdentityByName(ctx context.Context, displayName string) (*model.Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.guestNameIndex[displayName]
	if !ok {
		return nil, model.ErrIdentityNotFound
	}
	return cloneIdentity(s.identities[id]), nil
}

func (s *Storage) GetIdentityBySubject(ctx context.Context, provider model.Provider, subject string) (*model.Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.subjectIndex[subjectKey{provider, subject}]
	if !ok {
		return nil, model.ErrIdentityNotFound
	}
	return cloneIdentity(s.identities[id]), nil
}

func (s *Storage) UpdateIdentity(ctx context.Context, identity *model.Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.identities[identity.ID]
	if !ok {
		return model.ErrIdentityNotFound
	}
	if identity.Provider == model.ProviderGuest && identity.DisplayName != existing.DisplayName {
		if _, taken := s.guestNameIndex[identity.DisplayName]; taken {
			return model.ErrDuplicateIdentity
		}
	}

	s.dropIndexes(existing)
	s.putIdentity(cloneIdentity(identity))
	return nil
}

func (s *Storage) dropIndexes(identity *model.Identity) {
	if identity.Provider == model.ProviderGuest {
		delete(s.guestNameIndex, identity.DisplayName)
	}
	if identity.Subject != "" {
		delete(s.subjectIndex, subjectKey{identity.Provider, identity.Subject})
	}
}

func (s *Storage) DeleteIdentity(ctx context.Context, id model.IdentityID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	identity, ok := s.identities[id]
	if !ok {
		return model.ErrIdentityNotFound
	}
	s.dropIndexes(identity)
	delete(s.identities, id)

	for value, token := range s.tokens {
		if token.IdentityID == id {
			delete(s.tokens, value)
		}
	}

	for code, room := range s.rooms {
		if room.HostID == id {
			delete(s.rooms, code)
			delete(s.members, code)
			continue
		}
		members := s.members[code]
		kept := members[:0]
		for _, m := range members {
			if m.IdentityID != id {
				kept = append(kept, m)
			}
		}
		s.members[code] = kept
	}
	return nil
}

func (s *Storage) ListIdentities(ctx context.Context, page model.Page) ([]*model.Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := make([]*model.Identity, 0, len(s.identities))
	for _, identity := range s.identities {
		all = append(all, cloneIdentity(identity))
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.Before(all[j].CreatedAt)
		}
		return all[i].ID < all[j].ID
	})
	return storage.Window(all, page.Limit, page.Offset), nil
}

// Session token operations

func (s *Storage) SaveToken(ctx context.Context, token *model.SessionToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[token.Value] = cloneToken(token)
	return nil
}

func (s *Storage) GetToken(ctx context.Context, value string) (*model.SessionToken, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	token, ok := s.tokens[value]
	if !ok {
		return nil, model.ErrTokenNotFound
	}
	return cloneToken(token), nil
}

func (s *Storage) RevokeToken(ctx context.Context, value string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if token, ok := s.tokens[value]; ok && token.RevokedAt == nil {
		token.RevokedAt = &at
	}
	return nil
}

func (s *Storage) RevokeTokensForIdentity(ctx context.Context, id model.IdentityID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, token := range s.tokens {
		if token.IdentityID == id && token.RevokedAt == nil {
			revokedAt := at
			token.RevokedAt = &revokedAt
		}
	}
	return nil
}

func (s *Storage) DeleteToken(ctx context.Context, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tokens, value)
	return nil
}

func (s *Storage) DeleteExpiredTokens(ctx context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for value, token := range s.tokens {
		if token.IsExpired(now) {
			delete(s.tokens, value)
			removed++
		}
	}
	return removed, nil
}

// Room operations

func (s *Storage) CreateRoom(ctx context.Context, room *model.Room, host model.Membership) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.rooms[room.Code]; ok {
		return model.ErrRoomCodeTaken
	}
	r := *room
	s.rooms[room.Code] = &r
	s.members[room.Code] = []model.Membership{host}
	return nil
}

func (s *Storage) GetRoom(ctx context.Context, code model.RoomCode) (*model.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	room, ok := s.rooms[code]
	if !ok {
		return nil, model.ErrNotFound
	}
	r := *room
	return &r, nil
}

func (s *Storage) RoomExists(ctx context.Context, code model.RoomCode) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.rooms[code]
	return ok, nil
}

func (s *Storage) SetRoomStatus(ctx context.Context, code model.RoomCode, status model.RoomStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	room, ok := s.rooms[code]
	if !ok {
		return model.ErrNotFound
	}
	room.Status = status
	return nil
}

func (s *Storage) ListRooms(ctx context.Context, query storage.RoomQuery) ([]*model.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var rooms []*model.Room
	for code, room := range s.rooms {
		member := query.Viewer != "" && model.FindMember(s.members[code], query.Viewer) != nil
		if !query.MatchesRoom(room, member) {
			continue
		}
		r := *room
		rooms = append(rooms, &r)
	}
	storage.SortRooms(rooms, query.Sort)
	return storage.Window(rooms, query.Limit, query.Offset), nil
}

// Membership operations

func (s *Storage) GetMembers(ctx context.Context, code model.RoomCode) ([]model.Membership, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.rooms[code]; !ok {
		return nil, model.ErrNotFound
	}
	return append([]model.Membership(nil), s.members[code]...), nil
}

func (s *Storage) JoinRoom(ctx context.Context, code model.RoomCode, fn storage.JoinFunc) (*model.Membership, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	room, ok := s.rooms[code]
	if !ok {
		return nil, model.ErrNotFound
	}
	r := *room
	members := append([]model.Membership(nil), s.members[code]...)

	membership, err := fn(&r, members)
	if err != nil || membership == nil {
		return membership, err
	}
	s.members[code] = append(s.members[code], *membership)
	return membership, nil
}

func cloneIdentity(identity *model.Identity) *model.Identity {
	c := *identity
	if identity.Password != nil {
		p := *identity.Password
		c.Password = &p
	}
	return &c
}

func cloneToken(token *model.SessionToken) *model.SessionToken {
	c := *token
	if token.RevokedAt != nil {
		at := *token.RevokedAt
		c.RevokedAt = &at
	}
	return &c
}
