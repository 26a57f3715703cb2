package storage

import (
	"sort"

	"github.com/mcoot/cardroom/internal/model"
)

// SortRooms orders rooms in place. Ties fall back to code so pages are stable.
func SortRooms(rooms []*model.Room, order model.RoomSort) {
	sort.SliceStable(rooms, func(i, j int) bool {
		a, b := rooms[i], rooms[j]
		switch order {
		case model.SortOldest:
			if !a.CreatedAt.Equal(b.CreatedAt) {
				return a.CreatedAt.Before(b.CreatedAt)
			}
		case model.SortName:
			if a.Name != b.Name {
				return a.Name < b.Name
			}
		default:
			if !a.CreatedAt.Equal(b.CreatedAt) {
				return a.CreatedAt.After(b.CreatedAt)
			}
		}
		return a.Code < b.Code
	})
}

// Window applies offset/limit to an already filtered and sorted slice.
// A non-positive limit means no limit.
func Window[T any](items []T, limit, offset int) []T {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return []T{}
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

// MatchesRoom reports whether a room passes the query's status and visibility
// filters. memberOf says whether the query's viewer is a member.
func (q RoomQuery) MatchesRoom(room *model.Room, memberOf bool) bool {
	if q.Status != "" && room.Status != q.Status {
		return false
	}
	if q.AllVisibility || room.Visibility == model.VisibilityPublic {
		return true
	}
	return q.Viewer != "" && memberOf
}
