package middleware

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/cardroom/internal/testutil"
)

type MiddlewareSuite struct {
	suite.Suite
	logs   *testutil.LogCapture
	logger *slog.Logger
}

func TestMiddlewareSuite(t *testing.T) {
	suite.Run(t, new(MiddlewareSuite))
}

func (s *MiddlewareSuite) SetupTest() {
	s.logger, s.logs = testutil.CaptureLogger()
}

func (s *MiddlewareSuite) lastLog() map[string]any {
	entry := s.logs.Last()
	s.Require().NotNil(entry, "no log records")
	return entry
}

func (s *MiddlewareSuite) TestLoggingAssignsRequestID() {
	var seen string
	h := Logging(s.logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestID(r.Context())
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte("hello"))
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/v1/rooms", nil))

	s.NotEmpty(seen)
	s.Equal(seen, rr.Header().Get(RequestIDHeader))

	entry := s.lastLog()
	s.Equal("INFO", entry["level"])
	s.Equal(seen, entry["request_id"])
	s.Equal(float64(http.StatusCreated), entry["status"])
	s.Equal(float64(5), entry["size"])
}

func (s *MiddlewareSuite) TestLoggingReusesInboundRequestID() {
	const inbound = "6f1c3f8e-3a47-4d47-9a55-3b2f5f0c6d11"
	h := Logging(s.logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, inbound)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	s.Equal(inbound, rr.Header().Get(RequestIDHeader))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "not a uuid\nforged=1")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	s.NotEqual("not a uuid\nforged=1", rr.Header().Get(RequestIDHeader))
}

func (s *MiddlewareSuite) TestLoggingLevelFollowsStatus() {
	h := Logging(s.logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	s.Equal("WARN", s.lastLog()["level"])

	h = Logging(s.logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	s.Equal("ERROR", s.lastLog()["level"])
}

func (s *MiddlewareSuite) TestLoggingWriterSupportsFlush() {
	h := Logging(s.logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("chunk"))
		s.NoError(http.NewResponseController(w).Flush())
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/stream", nil))

	s.True(rec.Flushed)
	s.Equal("chunk", rec.Body.String())
}

func (s *MiddlewareSuite) TestRecoveryUsesHandler() {
	called := false
	h := Recovery(s.logger, func(w http.ResponseWriter, _ *http.Request, err any) {
		called = true
		s.Equal("kaboom", err)
		w.WriteHeader(http.StatusTeapot)
	})(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("kaboom")
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	s.True(called)
	s.Equal(http.StatusTeapot, rr.Code)
	s.Equal("panic recovered", s.lastLog()["msg"])
}

func (s *MiddlewareSuite) TestRecoveryDefaultHandler() {
	h := Recovery(s.logger, nil)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("kaboom")
	}))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	s.Equal(http.StatusInternalServerError, rr.Code)
}

func (s *MiddlewareSuite) TestRecoveryRepanicsOnAbort() {
	h := Recovery(s.logger, nil)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic(http.ErrAbortHandler)
	}))
	s.PanicsWithValue(http.ErrAbortHandler, func() {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	})
}
