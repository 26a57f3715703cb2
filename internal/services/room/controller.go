package room

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mcoot/cardroom/internal/dependencies/clock"
	"github.com/mcoot/cardroom/internal/dependencies/random"
	"github.com/mcoot/cardroom/internal/model"
	"github.com/mcoot/cardroom/internal/storage"
)

const (
	// CodeLength is the length of generated room codes
	CodeLength = 6
	// CodeAlphabet is the characters used in room codes (avoid confusing chars)
	CodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	// maxCodeAttempts bounds retries when a generated code is already taken
	maxCodeAttempts = 10
)

// Config holds listing limits
type Config struct {
	DefaultPageSize int
	MaxPageSize     int
}

// DefaultConfig returns default room configuration
func DefaultConfig() Config {
	return Config{
		DefaultPageSize: 50,
		MaxPageSize:     200,
	}
}

// Notifier receives room changes after they are committed
type Notifier interface {
	Publish(event model.RoomEvent)
}

// Controller coordinates room creation and membership
type Controller struct {
	storage  storage.Storage
	clock    clock.Clock
	random   random.Random
	logger   *slog.Logger
	cfg      Config
	notifier Notifier
}

// NewController creates a new room Controller
func NewController(
	storage storage.Storage,
	clock clock.Clock,
	random random.Random,
	logger *slog.Logger,
	cfg Config,
) *Controller {
	defaults := DefaultConfig()
	if cfg.DefaultPageSize <= 0 {
		cfg.DefaultPageSize = defaults.DefaultPageSize
	}
	if cfg.MaxPageSize <= 0 {
		cfg.MaxPageSize = defaults.MaxPageSize
	}
	return &Controller{
		storage: storage,
		clock:   clock,
		random:  random,
		logger:  logger.With(slog.String("component", "rooms")),
		cfg:     cfg,
	}
}

// SetNotifier registers a receiver for join and archive events
func (c *Controller) SetNotifier(n Notifier) {
	c.notifier = n
}

func (c *Controller) publish(event model.RoomEvent) {
	if c.notifier != nil {
		c.notifier.Publish(event)
	}
}

// CreateRoom creates a room with host seated as its first player
func (c *Controller) CreateRoom(ctx context.Context, spec model.RoomSpec, host *model.Identity) (*model.RoomView, error) {
	if host == nil {
		return nil, model.ErrUnauthenticated
	}
	if !host.Role.CanCreateRooms() {
		return nil, model.ErrForbidden
	}
	spec, err := spec.Normalized()
	if err != nil {
		return nil, err
	}

	now := c.clock.Now()
	for range maxCodeAttempts {
		code, err := c.generateCode(ctx)
		if err != nil {
			return nil, err
		}

		room := &model.Room{
			Code:          code,
			Name:          spec.Name,
			HostID:        host.ID,
			MaxPlayers:    spec.MaxPlayers,
			MaxSpectators: *spec.MaxSpectators,
			Visibility:    spec.Visibility,
			Status:        model.RoomStatusActive,
			CreatedAt:     now,
		}
		membership := model.Membership{
			RoomCode:   code,
			IdentityID: host.ID,
			Role:       model.RolePlayer,
			JoinedAt:   now,
		}

		err = c.storage.CreateRoom(ctx, room, membership)
		if errors.Is(err, model.ErrRoomCodeTaken) {
			// Someone else claimed the code between the check and the insert
			continue
		}
		if err != nil {
			return nil, err
		}

		c.logger.Info("room created",
			slog.String("room", string(code)),
			slog.String("host", string(host.ID)),
		)
		return c.view(room, []model.Membership{membership}, host), nil
	}
	return nil, fmt.Errorf("%w: no free code after %d attempts", model.ErrRoomCodeTaken, maxCodeAttempts)
}

// generateCode picks a code not currently in use
func (c *Controller) generateCode(ctx context.Context) (model.RoomCode, error) {
	for range maxCodeAttempts {
		code := model.RoomCode(c.random.String(CodeLength, CodeAlphabet))
		exists, err := c.storage.RoomExists(ctx, code)
		if err != nil {
			return "", err
		}
		if !exists {
			return code, nil
		}
	}
	return "", fmt.Errorf("%w: no free code after %d attempts", model.ErrRoomCodeTaken, maxCodeAttempts)
}

// Join seats identity in the room as a player or spectator. Joining a room
// the identity already belongs to returns the room unchanged, whatever role
// was asked for.
func (c *Controller) Join(ctx context.Context, code model.RoomCode, identity *model.Identity, asSpectator bool) (*model.RoomView, error) {
	if identity == nil {
		return nil, model.ErrUnauthenticated
	}
	code = code.Normalize()
	role := model.RolePlayer
	if asSpectator {
		role = model.RoleSpectator
	}

	var (
		joined  *model.Room
		members []model.Membership
	)
	membership, err := c.storage.JoinRoom(ctx, code, func(room *model.Room, current []model.Membership) (*model.Membership, error) {
		joined = room
		members = current

		if !room.IsActive() {
			return nil, model.ErrNotJoinable
		}
		if model.FindMember(current, identity.ID) != nil {
			return nil, nil
		}

		players, spectators := model.CountMembers(current)
		if role == model.RolePlayer && players >= room.MaxPlayers {
			return nil, model.ErrRoomFull
		}
		if role == model.RoleSpectator && spectators >= room.MaxSpectators {
			return nil, model.ErrSpectatorsFull
		}
		return &model.Membership{
			RoomCode:   code,
			IdentityID: identity.ID,
			Role:       role,
			JoinedAt:   c.clock.Now(),
		}, nil
	})
	if err != nil {
		return nil, err
	}

	if membership != nil {
		members = append(members, *membership)
		c.logger.Info("room joined",
			slog.String("room", string(code)),
			slog.String("identity", string(identity.ID)),
			slog.String("role", string(role)),
		)
		players, spectators := model.CountMembers(members)
		c.publish(model.RoomEvent{
			Type:           model.EventMemberJoined,
			RoomCode:       code,
			IdentityID:     identity.ID,
			Role:           role,
			PlayerCount:    players,
			SpectatorCount: spectators,
			Status:         joined.Status,
			At:             membership.JoinedAt,
		})
	}
	return c.view(joined, members, identity), nil
}

// List returns the active rooms viewer may see: public rooms plus private
// rooms they belong to. A nil viewer sees public rooms only. Guests may not
// browse rooms.
func (c *Controller) List(ctx context.Context, filter model.RoomFilter, viewer *model.Identity) ([]*model.RoomView, error) {
	query := storage.RoomQuery{
		Status: model.RoomStatusActive,
		Sort:   model.SortNewest,
	}
	if viewer != nil {
		if !viewer.Role.CanListRooms() {
			return nil, model.ErrForbidden
		}
		query.Viewer = viewer.ID
		query.AllVisibility = viewer.Role.SeesPrivateRooms()
	}
	page := filter.Page.Clamp(c.cfg.DefaultPageSize, c.cfg.MaxPageSize)
	query.Limit = page.Limit
	query.Offset = page.Offset

	return c.listViews(ctx, query, viewer)
}

// Get returns one room. Private rooms look missing to non-members.
func (c *Controller) Get(ctx context.Context, code model.RoomCode, viewer *model.Identity) (*model.RoomView, error) {
	code = code.Normalize()
	room, err := c.storage.GetRoom(ctx, code)
	if err != nil {
		return nil, err
	}
	members, err := c.storage.GetMembers(ctx, code)
	if err != nil {
		return nil, err
	}
	if !c.canSee(room, members, viewer) {
		return nil, model.ErrNotFound
	}
	return c.view(room, members, viewer), nil
}

func (c *Controller) canSee(room *model.Room, members []model.Membership, viewer *model.Identity) bool {
	if room.Visibility == model.VisibilityPublic {
		return true
	}
	if viewer == nil {
		return false
	}
	return viewer.Role.SeesPrivateRooms() || model.FindMember(members, viewer.ID) != nil
}

// Admin operations

// ListAll returns rooms regardless of visibility or membership
func (c *Controller) ListAll(ctx context.Context, filter model.AdminRoomFilter, admin *model.Identity) ([]*model.RoomView, error) {
	if admin == nil || !admin.Role.CanAdminister() {
		return nil, model.ErrForbidden
	}
	sort := filter.Sort
	if sort == "" {
		sort = model.SortNewest
	}
	page := filter.Page.Clamp(c.cfg.DefaultPageSize, c.cfg.MaxPageSize)
	return c.listViews(ctx, storage.RoomQuery{
		Status:        filter.Status,
		AllVisibility: true,
		Sort:          sort,
		Limit:         page.Limit,
		Offset:        page.Offset,
	}, admin)
}

// Archive closes a room to new joins. Archiving is terminal and repeat calls
// are no-ops.
func (c *Controller) Archive(ctx context.Context, code model.RoomCode, admin *model.Identity) (*model.RoomView, error) {
	if admin == nil || !admin.Role.CanAdminister() {
		return nil, model.ErrForbidden
	}
	code = code.Normalize()
	room, err := c.storage.GetRoom(ctx, code)
	if err != nil {
		return nil, err
	}
	archived := false
	if room.IsActive() {
		if err := c.storage.SetRoomStatus(ctx, code, model.RoomStatusArchived); err != nil {
			return nil, err
		}
		room.Status = model.RoomStatusArchived
		archived = true
		c.logger.Info("room archived", slog.String("room", string(code)))
	}
	members, err := c.storage.GetMembers(ctx, code)
	if err != nil {
		return nil, err
	}
	if archived {
		players, spectators := model.CountMembers(members)
		c.publish(model.RoomEvent{
			Type:           model.EventRoomArchived,
			RoomCode:       code,
			PlayerCount:    players,
			SpectatorCount: spectators,
			Status:         room.Status,
			At:             c.clock.Now(),
		})
	}
	return c.view(room, members, admin), nil
}

func (c *Controller) listViews(ctx context.Context, query storage.RoomQuery, viewer *model.Identity) ([]*model.RoomView, error) {
	rooms, err := c.storage.ListRooms(ctx, query)
	if err != nil {
		return nil, err
	}
	views := make([]*model.RoomView, 0, len(rooms))
	for _, room := range rooms {
		members, err := c.storage.GetMembers(ctx, room.Code)
		if errors.Is(err, model.ErrNotFound) {
			// Deleted since the listing was taken
			continue
		}
		if err != nil {
			return nil, err
		}
		views = append(views, c.view(room, members, viewer))
	}
	return views, nil
}

// view builds the viewer-specific projection of a room
func (c *Controller) view(room *model.Room, members []model.Membership, viewer *model.Identity) *model.RoomView {
	players, spectators := model.CountMembers(members)
	v := &model.RoomView{
		Room:           *room,
		PlayerCount:    players,
		SpectatorCount: spectators,
		Joinable:       room.IsActive() && players < room.MaxPlayers,
	}
	if viewer != nil {
		v.IsJoined = model.FindMember(members, viewer.ID) != nil
		if v.IsJoined || viewer.Role.CanAdminister() {
			v.Members = append([]model.Membership(nil), members...)
		}
	}
	return v
}
