package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/mcoot/cardroom/internal/model"
	"github.com/mcoot/cardroom/internal/storage"
)

const selectRoom = `SELECT code, name, host_id, max_players, max_spectators, visibility, status, created_at FROM rooms`

func scanRoom(row scanner) (*model.Room, error) {
	var (
		room      model.Room
		createdAt int64
	)
	err := row.Scan(&room.Code, &room.Name, &room.HostID, &room.MaxPlayers, &room.MaxSpectators,
		&room.Visibility, &room.Status, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	room.CreatedAt = fromMillis(createdAt)
	return &room, nil
}

func (s *Store) CreateRoom(ctx context.Context, room *model.Room, host model.Membership) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx, s.rebind(`INSERT INTO rooms
		(code, name, host_id, max_players, max_spectators, visibility, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`),
		string(room.Code), room.Name, string(room.HostID), room.MaxPlayers, room.MaxSpectators,
		string(room.Visibility), string(room.Status), toMillis(room.CreatedAt))
	if isUniqueViolation(err) {
		return model.ErrRoomCodeTaken
	}
	if err != nil {
		return err
	}
	if err = s.insertMember(ctx, tx, host); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) insertMember(ctx context.Context, q querier, m model.Membership) error {
	_, err := q.ExecContext(ctx, s.rebind(`INSERT INTO memberships (room_code, identity_id, role, joined_at)
		VALUES (?, ?, ?, ?)`),
		string(m.RoomCode), string(m.IdentityID), string(m.Role), toMillis(m.JoinedAt))
	return err
}

func (s *Store) GetRoom(ctx context.Context, code model.RoomCode) (*model.Room, error) {
	return scanRoom(s.db.QueryRowContext(ctx, s.rebind(selectRoom+` WHERE code = ?`), string(code)))
}

func (s *Store) RoomExists(ctx context.Context, code model.RoomCode) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, s.rebind(`SELECT COUNT(*) FROM rooms WHERE code = ?`), string(code)).Scan(&n)
	return n > 0, err
}

func (s *Store) SetRoomStatus(ctx context.Context, code model.RoomCode, status model.RoomStatus) error {
	result, err := s.db.ExecContext(ctx, s.rebind(`UPDATE rooms SET status = ? WHERE code = ?`),
		string(status), string(code))
	if err != nil {
		return err
	}
	return expectOneRow(result, model.ErrNotFound)
}

func (s *Store) ListRooms(ctx context.Context, query storage.RoomQuery) ([]*model.Room, error) {
	var (
		where []string
		args  []any
	)
	if query.Status != "" {
		where = append(where, `r.status = ?`)
		args = append(args, string(query.Status))
	}
	if !query.AllVisibility {
		if query.Viewer == "" {
			where = append(where, `r.visibility = 'public'`)
		} else {
			where = append(where, `(r.visibility = 'public' OR EXISTS (
				SELECT 1 FROM memberships m WHERE m.room_code = r.code AND m.identity_id = ?))`)
			args = append(args, string(query.Viewer))
		}
	}

	stmt := strings.Replace(selectRoom, "FROM rooms", "FROM rooms r", 1)
	if len(where) > 0 {
		stmt += ` WHERE ` + strings.Join(where, ` AND `)
	}
	stmt += ` ORDER BY ` + roomOrder(query.Sort)
	if query.Limit > 0 {
		stmt += ` LIMIT ?`
		args = append(args, query.Limit)
	} else {
		stmt += ` ` + s.noLimit()
	}
	stmt += ` OFFSET ?`
	args = append(args, max(query.Offset, 0))

	rows, err := s.db.QueryContext(ctx, s.rebind(stmt), args...)
	if err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	defer func() { _ = rows.Close() }()

	rooms := []*model.Room{}
	for rows.Next() {
		room, err := scanRoom(rows)
		if err != nil {
			return nil, err
		}
		rooms = append(rooms, room)
	}
	return rooms, rows.Err()
}

func roomOrder(order model.RoomSort) string {
	switch order {
	case model.SortOldest:
		return `r.created_at ASC, r.code ASC`
	case model.SortName:
		return `r.name ASC, r.code ASC`
	default:
		return `r.created_at DESC, r.code ASC`
	}
}

func (s *Store) GetMembers(ctx context.Context, code model.RoomCode) ([]model.Membership, error) {
	exists, err := s.RoomExists(ctx, code)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, model.ErrNotFound
	}
	return s.members(ctx, s.db, code)
}

func (s *Store) members(ctx context.Context, q querier, code model.RoomCode) ([]model.Membership, error) {
	rows, err := q.QueryContext(ctx, s.rebind(`SELECT room_code, identity_id, role, joined_at
		FROM memberships WHERE room_code = ? ORDER BY joined_at, identity_id`), string(code))
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	members := []model.Membership{}
	for rows.Next() {
		var (
			m        model.Membership
			joinedAt int64
		)
		if err := rows.Scan(&m.RoomCode, &m.IdentityID, &m.Role, &joinedAt); err != nil {
			return nil, err
		}
		m.JoinedAt = fromMillis(joinedAt)
		members = append(members, m)
	}
	return members, rows.Err()
}

// JoinRoom locks the room row (PostgreSQL) or the whole database (SQLite,
// BEGIN IMMEDIATE) for the duration of fn.
func (s *Store) JoinRoom(ctx context.Context, code model.RoomCode, fn storage.JoinFunc) (_ *model.Membership, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	room, err := scanRoom(tx.QueryRowContext(ctx, s.rebind(selectRoom+` WHERE code = ?`+s.forUpdate()), string(code)))
	if err != nil {
		return nil, err
	}
	members, err := s.members(ctx, tx, code)
	if err != nil {
		return nil, err
	}

	membership, err := fn(room, members)
	if err != nil {
		return nil, err
	}
	if membership == nil {
		return nil, tx.Rollback()
	}
	if err = s.insertMember(ctx, tx, *membership); err != nil {
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		return nil, err
	}
	return membership, nil
}
