package api_test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/cardroom/internal/api"
	"github.com/mcoot/cardroom/internal/api/apierr"
	"github.com/mcoot/cardroom/internal/api/response"
	"github.com/mcoot/cardroom/internal/factory"
	"github.com/mcoot/cardroom/internal/model"
	"github.com/mcoot/cardroom/internal/testutil"
)

type APISuite struct {
	suite.Suite
	app     *factory.TestApp
	handler http.Handler
}

func TestAPISuite(t *testing.T) {
	suite.Run(t, new(APISuite))
}

func (s *APISuite) SetupTest() {
	s.app = factory.NewTestApp()
	s.handler = api.NewRouter(api.RouterConfig{
		Logger:         testutil.NopLogger(),
		AuthService:    s.app.AuthService,
		RoomController: s.app.RoomController,
		Streams:        s.app.Streams,
		RetryAfter:     time.Minute,
	})
}

func (s *APISuite) TearDownTest() {
	s.NoError(s.app.Close())
}

func (s *APISuite) request(method, path string, body any, token string) *httptest.ResponseRecorder {
	reqBody := bytes.NewBuffer(nil)
	if body != nil {
		b, err := json.Marshal(body)
		s.Require().NoError(err)
		reqBody = bytes.NewBuffer(b)
	}

	req := httptest.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rr := httptest.NewRecorder()
	s.handler.ServeHTTP(rr, req)
	return rr
}

func (s *APISuite) decode(rr *httptest.ResponseRecorder, v any) {
	s.Require().NoError(json.Unmarshal(rr.Body.Bytes(), v), rr.Body.String())
}

func (s *APISuite) errorCode(rr *httptest.ResponseRecorder) string {
	var body apierr.ErrorResponse
	s.decode(rr, &body)
	return body.Error.Code
}

func (s *APISuite) login(body map[string]string) response.AuthResponse {
	rr := s.request(http.MethodPost, "/api/v1/auth/login", body, "")
	s.Require().Equal(http.StatusOK, rr.Code, rr.Body.String())
	var resp response.AuthResponse
	s.decode(rr, &resp)
	return resp
}

func (s *APISuite) guest(name string) response.AuthResponse {
	return s.login(map[string]string{"provider": "guest", "display_name": name})
}

func (s *APISuite) user(subject, name string) response.AuthResponse {
	return s.login(map[string]string{"provider": "google", "id_token": "valid:" + subject + ":" + name})
}

func (s *APISuite) admin(subject string) response.AuthResponse {
	resp := s.user(subject, "Admin "+subject)
	_, err := s.app.AuthService.SetRole(s.T().Context(), model.IdentityID(resp.Identity.ID), model.RoleAdmin)
	s.Require().NoError(err)
	return resp
}

func (s *APISuite) createRoom(token string, body map[string]any) response.Room {
	rr := s.request(http.MethodPost, "/api/v1/rooms", body, token)
	s.Require().Equal(http.StatusCreated, rr.Code, rr.Body.String())
	var room response.Room
	s.decode(rr, &room)
	return room
}

func (s *APISuite) TestHealthCheck() {
	rr := s.request(http.MethodGet, "/api/v1/health", nil, "")
	s.Equal(http.StatusOK, rr.Code)
	s.Contains(rr.Body.String(), "ok")
	s.NotEmpty(rr.Header().Get("X-Request-ID"))
}

func (s *APISuite) TestUnknownRoute() {
	rr := s.request(http.MethodGet, "/api/v1/lobbies", nil, "")
	s.Equal(http.StatusNotFound, rr.Code)
	s.Equal("ROUTE_NOT_FOUND", s.errorCode(rr))
}

func (s *APISuite) TestGuestLoginAndMe() {
	resp := s.guest("Bob")
	s.Equal("Bob", resp.Identity.DisplayName)
	s.Equal("guest", resp.Identity.Role)
	s.NotEmpty(resp.SessionToken)

	rr := s.request(http.MethodGet, "/api/v1/auth/me", nil, resp.SessionToken)
	s.Equal(http.StatusOK, rr.Code)
	var me response.Identity
	s.decode(rr, &me)
	s.Equal(resp.Identity.ID, me.ID)
}

func (s *APISuite) TestSessionCookie() {
	rr := s.request(http.MethodPost, "/api/v1/auth/login", map[string]string{"provider": "guest", "display_name": "Cookie"}, "")
	s.Require().Equal(http.StatusOK, rr.Code)
	s.Equal("no-store", rr.Header().Get("Cache-Control"))

	cookies := rr.Result().Cookies()
	s.Require().Len(cookies, 1)
	s.Equal("session", cookies[0].Name)
	s.True(cookies[0].HttpOnly)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
	req.AddCookie(cookies[0])
	rr = httptest.NewRecorder()
	s.handler.ServeHTTP(rr, req)
	s.Equal(http.StatusOK, rr.Code)

	req = httptest.NewRequest(http.MethodPost, "/api/v1/auth/logout", nil)
	req.AddCookie(cookies[0])
	rr = httptest.NewRecorder()
	s.handler.ServeHTTP(rr, req)
	s.Equal(http.StatusNoContent, rr.Code)
	cleared := rr.Result().Cookies()
	s.Require().Len(cleared, 1)
	s.Equal(-1, cleared[0].MaxAge)
}

func (s *APISuite) TestUnauthorizedWithoutToken() {
	rr := s.request(http.MethodGet, "/api/v1/auth/me", nil, "")
	s.Equal(http.StatusUnauthorized, rr.Code)
	s.Equal(apierr.CodeUnauthorized, s.errorCode(rr))

	rr = s.request(http.MethodGet, "/api/v1/auth/me", nil, "forged")
	s.Equal(http.StatusUnauthorized, rr.Code)
}

func (s *APISuite) TestLoginErrors() {
	rr := s.request(http.MethodPost, "/api/v1/auth/login", map[string]string{"provider": "myspace"}, "")
	s.Equal(http.StatusBadRequest, rr.Code)
	s.Equal(apierr.CodeUnsupportedProvider, s.errorCode(rr))

	rr = s.request(http.MethodPost, "/api/v1/auth/login", map[string]string{"provider": "google", "id_token": "garbage"}, "")
	s.Equal(http.StatusUnauthorized, rr.Code)
	s.Equal(apierr.CodeInvalidToken, s.errorCode(rr))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewBufferString("{not json"))
	rr = httptest.NewRecorder()
	s.handler.ServeHTTP(rr, req)
	s.Equal(http.StatusBadRequest, rr.Code)
	s.Equal(apierr.CodeInvalidRequest, s.errorCode(rr))
}

func (s *APISuite) TestProviderOutageIsBadGateway() {
	s.app.StubVerifier.SetUnavailable(true)
	rr := s.request(http.MethodPost, "/api/v1/auth/login", map[string]string{"provider": "apple", "id_token": "valid:x"}, "")
	s.Equal(http.StatusBadGateway, rr.Code)
	s.Equal(apierr.CodeProviderUnavailable, s.errorCode(rr))
}

func (s *APISuite) TestGuestPasswordScenario() {
	first := s.login(map[string]string{"provider": "guest", "display_name": "Alice", "password": "pw1"})
	s.True(first.Identity.HasPassword)

	rr := s.request(http.MethodPost, "/api/v1/auth/login",
		map[string]string{"provider": "guest", "display_name": "Alice", "password": "pw2"}, "")
	s.Equal(http.StatusUnauthorized, rr.Code)
	s.Equal(apierr.CodeInvalidCredentials, s.errorCode(rr))

	second := s.login(map[string]string{"provider": "guest", "display_name": "Alice", "password": "pw1"})
	s.Equal(first.Identity.ID, second.Identity.ID)

	// The first session was replaced by the second login
	rr = s.request(http.MethodGet, "/api/v1/auth/me", nil, first.SessionToken)
	s.Equal(http.StatusUnauthorized, rr.Code)

	rr = s.request(http.MethodPost, "/api/v1/auth/password",
		map[string]string{"current_password": "pw1", "new_password": "pw2"}, second.SessionToken)
	s.Equal(http.StatusOK, rr.Code, rr.Body.String())

	rr = s.request(http.MethodGet, "/api/v1/auth/me", nil, second.SessionToken)
	s.Equal(http.StatusUnauthorized, rr.Code)

	third := s.login(map[string]string{"provider": "guest", "display_name": "Alice", "password": "pw2"})
	s.Equal(first.Identity.ID, third.Identity.ID)
}

func (s *APISuite) TestLoginThrottle() {
	s.login(map[string]string{"provider": "guest", "display_name": "Target", "password": "right"})

	bad := map[string]string{"provider": "guest", "display_name": "Target", "password": "wrong"}
	for range 10 {
		rr := s.request(http.MethodPost, "/api/v1/auth/login", bad, "")
		s.Require().Equal(http.StatusUnauthorized, rr.Code)
	}

	rr := s.request(http.MethodPost, "/api/v1/auth/login",
		map[string]string{"provider": "guest", "display_name": "Target", "password": "right"}, "")
	s.Equal(http.StatusTooManyRequests, rr.Code)
	s.Equal("60", rr.Header().Get("Retry-After"))
	s.Equal(apierr.CodeRateLimited, s.errorCode(rr))

	s.app.MockClock.Advance(61 * time.Second)
	s.login(map[string]string{"provider": "guest", "display_name": "Target", "password": "right"})
}

func (s *APISuite) TestPasswordChangeThrottle() {
	target := s.login(map[string]string{"provider": "guest", "display_name": "Target", "password": "right"})

	guess := map[string]string{"current_password": "wrong", "new_password": "mine"}
	for range 10 {
		rr := s.request(http.MethodPost, "/api/v1/auth/password", guess, target.SessionToken)
		s.Require().Equal(http.StatusUnauthorized, rr.Code)
	}

	rr := s.request(http.MethodPost, "/api/v1/auth/password",
		map[string]string{"current_password": "right", "new_password": "mine"}, target.SessionToken)
	s.Equal(http.StatusTooManyRequests, rr.Code)
	s.Equal("60", rr.Header().Get("Retry-After"))
	s.Equal(apierr.CodeRateLimited, s.errorCode(rr))
}

func (s *APISuite) TestLogout() {
	resp := s.guest("Leaver")

	rr := s.request(http.MethodPost, "/api/v1/auth/logout", nil, resp.SessionToken)
	s.Equal(http.StatusNoContent, rr.Code)

	rr = s.request(http.MethodGet, "/api/v1/auth/me", nil, resp.SessionToken)
	s.Equal(http.StatusUnauthorized, rr.Code)
}

func (s *APISuite) TestTwoPlayersOneSpectator() {
	host := s.user("host", "Host")
	room := s.createRoom(host.SessionToken, map[string]any{
		"name":           "Heads Up",
		"max_players":    2,
		"max_spectators": 1,
		"visibility":     "public",
	})
	s.Equal(1, room.PlayerCount)
	s.True(room.IsJoined)
	s.Len(room.Members, 1)

	path := "/api/v1/rooms/" + room.Code + "/join"

	second := s.guest("Second")
	rr := s.request(http.MethodPost, path, nil, second.SessionToken)
	s.Require().Equal(http.StatusOK, rr.Code, rr.Body.String())

	watcher := s.guest("Watcher")
	rr = s.request(http.MethodPost, path, map[string]bool{"spectator": true}, watcher.SessionToken)
	s.Require().Equal(http.StatusOK, rr.Code)
	var view response.Room
	s.decode(rr, &view)
	s.Equal(2, view.PlayerCount)
	s.Equal(1, view.SpectatorCount)

	late := s.guest("Late")
	rr = s.request(http.MethodPost, path, nil, late.SessionToken)
	s.Equal(http.StatusConflict, rr.Code)
	s.Equal(apierr.CodeRoomFull, s.errorCode(rr))

	rr = s.request(http.MethodPost, path, map[string]bool{"spectator": true}, late.SessionToken)
	s.Equal(http.StatusConflict, rr.Code)
	s.Equal(apierr.CodeSpectatorsFull, s.errorCode(rr))

	// Idempotent for existing members
	rr = s.request(http.MethodPost, path, map[string]bool{"spectator": true}, second.SessionToken)
	s.Equal(http.StatusOK, rr.Code)
}

func (s *APISuite) TestRoomPermissions() {
	g := s.guest("Guesty")

	rr := s.request(http.MethodPost, "/api/v1/rooms", map[string]any{"name": "Mine"}, g.SessionToken)
	s.Equal(http.StatusForbidden, rr.Code)

	rr = s.request(http.MethodGet, "/api/v1/rooms", nil, g.SessionToken)
	s.Equal(http.StatusForbidden, rr.Code)

	rr = s.request(http.MethodPost, "/api/v1/rooms", map[string]any{"name": "x"}, "")
	s.Equal(http.StatusUnauthorized, rr.Code)

	u := s.user("u", "User")
	rr = s.request(http.MethodPost, "/api/v1/rooms", map[string]any{"name": "  ", "max_players": 2}, u.SessionToken)
	s.Equal(http.StatusBadRequest, rr.Code)
}

func (s *APISuite) TestVisibility() {
	host := s.user("host", "Host")
	public := s.createRoom(host.SessionToken, map[string]any{"name": "Open", "visibility": "public"})
	private := s.createRoom(host.SessionToken, map[string]any{"name": "Closed"})
	s.Equal("private", private.Visibility)

	rr := s.request(http.MethodGet, "/api/v1/rooms", nil, "")
	s.Equal(http.StatusOK, rr.Code)
	var anon response.RoomList
	s.decode(rr, &anon)
	s.Require().Len(anon.Rooms, 1)
	s.Equal(public.Code, anon.Rooms[0].Code)
	s.Empty(anon.Rooms[0].Members)

	rr = s.request(http.MethodGet, "/api/v1/rooms", nil, host.SessionToken)
	var mine response.RoomList
	s.decode(rr, &mine)
	s.Len(mine.Rooms, 2)

	other := s.user("other", "Other")
	rr = s.request(http.MethodGet, "/api/v1/rooms/"+private.Code, nil, other.SessionToken)
	s.Equal(http.StatusNotFound, rr.Code)

	// Joining by code works even though the room is not listed
	rr = s.request(http.MethodPost, "/api/v1/rooms/"+private.Code+"/join", nil, other.SessionToken)
	s.Equal(http.StatusOK, rr.Code)

	rr = s.request(http.MethodGet, "/api/v1/rooms/"+private.Code, nil, other.SessionToken)
	s.Equal(http.StatusOK, rr.Code)

	rr = s.request(http.MethodGet, "/api/v1/rooms?limit=abc", nil, "")
	s.Equal(http.StatusBadRequest, rr.Code)
}

func (s *APISuite) TestAdminEndpoints() {
	u := s.user("plain", "Plain")
	rr := s.request(http.MethodGet, "/api/v1/admin/verify", nil, u.SessionToken)
	s.Equal(http.StatusForbidden, rr.Code)

	a := s.admin("boss")
	rr = s.request(http.MethodGet, "/api/v1/admin/verify", nil, a.SessionToken)
	s.Equal(http.StatusOK, rr.Code)

	rr = s.request(http.MethodGet, "/api/v1/admin/users?limit=10", nil, a.SessionToken)
	s.Equal(http.StatusOK, rr.Code)
	var users response.IdentityList
	s.decode(rr, &users)
	s.Len(users.Identities, 2)

	rr = s.request(http.MethodPatch, "/api/v1/admin/users/"+u.Identity.ID+"/role", map[string]string{"role": "emperor"}, a.SessionToken)
	s.Equal(http.StatusBadRequest, rr.Code)

	rr = s.request(http.MethodPatch, "/api/v1/admin/users/"+u.Identity.ID+"/role", map[string]string{"role": "guest"}, a.SessionToken)
	s.Equal(http.StatusOK, rr.Code)
	var demoted response.Identity
	s.decode(rr, &demoted)
	s.Equal("guest", demoted.Role)

	rr = s.request(http.MethodPatch, "/api/v1/admin/users/nobody/role", map[string]string{"role": "user"}, a.SessionToken)
	s.Equal(http.StatusNotFound, rr.Code)
	s.Equal(apierr.CodeIdentityNotFound, s.errorCode(rr))

	rr = s.request(http.MethodDelete, "/api/v1/admin/users/"+a.Identity.ID, nil, a.SessionToken)
	s.Equal(http.StatusBadRequest, rr.Code)

	rr = s.request(http.MethodDelete, "/api/v1/admin/users/"+u.Identity.ID, nil, a.SessionToken)
	s.Equal(http.StatusNoContent, rr.Code)

	rr = s.request(http.MethodGet, "/api/v1/auth/me", nil, u.SessionToken)
	s.Equal(http.StatusUnauthorized, rr.Code)
}

func (s *APISuite) TestAdminRooms() {
	host := s.user("host", "Host")
	room := s.createRoom(host.SessionToken, map[string]any{"name": "Secret"})
	a := s.admin("boss")

	rr := s.request(http.MethodGet, "/api/v1/admin/rooms?sort=name", nil, a.SessionToken)
	s.Equal(http.StatusOK, rr.Code)
	var list response.RoomList
	s.decode(rr, &list)
	s.Require().Len(list.Rooms, 1)
	s.Len(list.Rooms[0].Members, 1)

	rr = s.request(http.MethodGet, "/api/v1/admin/rooms?sort=loudest", nil, a.SessionToken)
	s.Equal(http.StatusBadRequest, rr.Code)

	rr = s.request(http.MethodDelete, "/api/v1/admin/rooms/"+room.Code, nil, a.SessionToken)
	s.Equal(http.StatusOK, rr.Code)
	var archived response.Room
	s.decode(rr, &archived)
	s.Equal("archived", archived.Status)
	s.False(archived.Joinable)

	rr = s.request(http.MethodDelete, "/api/v1/admin/rooms/"+room.Code, nil, a.SessionToken)
	s.Equal(http.StatusOK, rr.Code)

	rr = s.request(http.MethodGet, "/api/v1/admin/rooms?status=archived", nil, a.SessionToken)
	s.decode(rr, &list)
	s.Len(list.Rooms, 1)

	joiner := s.user("late", "Late")
	rr = s.request(http.MethodPost, "/api/v1/rooms/"+room.Code+"/join", nil, joiner.SessionToken)
	s.Equal(http.StatusConflict, rr.Code)
	s.Equal(apierr.CodeNotJoinable, s.errorCode(rr))

	rr = s.request(http.MethodDelete, "/api/v1/admin/rooms/NOPE00", nil, a.SessionToken)
	s.Equal(http.StatusNotFound, rr.Code)
}

// nextEvent reads one server-sent event, skipping keepalive comments
func (s *APISuite) nextEvent(r *bufio.Reader) (name, data string) {
	for {
		line, err := r.ReadString('\n')
		s.Require().NoError(err)
		line = strings.TrimRight(line, "\n")
		switch {
		case line == "":
			if name != "" {
				return name, data
			}
		case strings.HasPrefix(line, ":"):
		case strings.HasPrefix(line, "event: "):
			name = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			data += strings.TrimPrefix(line, "data: ")
		}
	}
}

func (s *APISuite) TestRoomEventStream() {
	host := s.user("host", "Host")
	room := s.createRoom(host.SessionToken, map[string]any{"name": "Live", "visibility": "public", "max_spectators": 1})

	srv := httptest.NewServer(s.handler)
	defer srv.Close()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/v1/rooms/"+room.Code+"/events", nil)
	s.Require().NoError(err)
	req.Header.Set("Authorization", "Bearer "+host.SessionToken)
	resp, err := (&http.Client{Timeout: 5 * time.Second}).Do(req)
	s.Require().NoError(err)
	defer func() { _ = resp.Body.Close() }()
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	s.Equal("text/event-stream", resp.Header.Get("Content-Type"))

	events := bufio.NewReader(resp.Body)
	name, _ := s.nextEvent(events)
	s.Equal("connected", name)

	bob := s.guest("Bob")
	rr := s.request(http.MethodPost, "/api/v1/rooms/"+room.Code+"/join", map[string]any{"spectator": true}, bob.SessionToken)
	s.Require().Equal(http.StatusOK, rr.Code)

	name, data := s.nextEvent(events)
	s.Equal(string(model.EventMemberJoined), name)
	var joined struct {
		Room           string `json:"room"`
		IdentityID     string `json:"identity_id"`
		Role           string `json:"role"`
		PlayerCount    int    `json:"player_count"`
		SpectatorCount int    `json:"spectator_count"`
	}
	s.Require().NoError(json.Unmarshal([]byte(data), &joined))
	s.Equal(room.Code, joined.Room)
	s.Equal(bob.Identity.ID, joined.IdentityID)
	s.Equal("spectator", joined.Role)
	s.Equal(1, joined.PlayerCount)
	s.Equal(1, joined.SpectatorCount)

	admin := s.admin("boss")
	rr = s.request(http.MethodDelete, "/api/v1/admin/rooms/"+room.Code, nil, admin.SessionToken)
	s.Require().Equal(http.StatusOK, rr.Code)

	name, data = s.nextEvent(events)
	s.Equal(string(model.EventRoomArchived), name)
	s.Contains(data, `"status":"archived"`)
}

func (s *APISuite) TestRoomEventStreamHidesPrivateRooms() {
	host := s.user("host", "Host")
	room := s.createRoom(host.SessionToken, map[string]any{"name": "Secret"})
	outsider := s.user("out", "Outsider")

	rr := s.request(http.MethodGet, "/api/v1/rooms/"+room.Code+"/events", nil, outsider.SessionToken)
	s.Equal(http.StatusNotFound, rr.Code)
	s.Equal(apierr.CodeRoomNotFound, s.errorCode(rr))

	rr = s.request(http.MethodGet, "/api/v1/rooms/"+room.Code+"/events", nil, "")
	s.Equal(http.StatusUnauthorized, rr.Code)
}
