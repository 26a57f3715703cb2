package sqldb

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/cardroom/internal/model"
	"github.com/mcoot/cardroom/internal/storage"
	"github.com/mcoot/cardroom/internal/storage/storagetest"
)

func TestSQLiteConformance(t *testing.T) {
	suite.Run(t, &storagetest.Suite{
		NewStorage: func(t *testing.T) storage.Storage {
			store, err := OpenSQLite(filepath.Join(t.TempDir(), "cardroom.db"))
			if err != nil {
				t.Fatalf("OpenSQLite() error: %v", err)
			}
			return store
		},
	})
}

type SQLiteSuite struct {
	suite.Suite
	path string
	ctx  context.Context
}

func TestSQLiteSuite(t *testing.T) {
	suite.Run(t, new(SQLiteSuite))
}

func (s *SQLiteSuite) SetupTest() {
	s.path = filepath.Join(s.T().TempDir(), "cardroom.db")
	s.ctx = context.Background()
}

func (s *SQLiteSuite) TestOpenRequiresPath() {
	_, err := OpenSQLite("   ")
	s.Error(err)
}

func (s *SQLiteSuite) TestDataSurvivesReopen() {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	store, err := OpenSQLite(s.path)
	s.Require().NoError(err)
	s.Require().NoError(store.CreateIdentity(s.ctx, &model.Identity{
		ID: "id-alice", Provider: model.ProviderGuest, Role: model.RoleGuest,
		DisplayName: "Alice", CreatedAt: now, UpdatedAt: now,
	}))
	s.Require().NoError(store.Close())

	reopened, err := OpenSQLite(s.path)
	s.Require().NoError(err)
	defer func() { _ = reopened.Close() }()

	got, err := reopened.GetGuestIdentityByName(s.ctx, "Alice")
	s.Require().NoError(err)
	s.Equal(model.IdentityID("id-alice"), got.ID)
	s.Nil(got.Password)
	s.Empty(got.Subject)
}

func (s *SQLiteSuite) TestEnsureSchemaIsIdempotent() {
	store, err := OpenSQLite(s.path)
	s.Require().NoError(err)
	defer func() { _ = store.Close() }()

	s.NoError(store.EnsureSchema(s.ctx))
	s.NoError(store.EnsureSchema(s.ctx))
}

func (s *SQLiteSuite) TestRenameGuestOntoTakenNameIsDuplicate() {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	store, err := OpenSQLite(s.path)
	s.Require().NoError(err)
	defer func() { _ = store.Close() }()

	for _, name := range []string{"Alice", "Bob"} {
		s.Require().NoError(store.CreateIdentity(s.ctx, &model.Identity{
			ID: model.IdentityID("id-" + name), Provider: model.ProviderGuest, Role: model.RoleGuest,
			DisplayName: name, CreatedAt: now, UpdatedAt: now,
		}))
	}

	bob, err := store.GetIdentity(s.ctx, "id-Bob")
	s.Require().NoError(err)
	bob.DisplayName = "Alice"
	s.ErrorIs(store.UpdateIdentity(s.ctx, bob), model.ErrDuplicateIdentity)
}
