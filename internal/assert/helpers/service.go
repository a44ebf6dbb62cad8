package helpers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	glog "github.com/gin-contrib/slog"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/space-operator/spo-go/pkg/api"
)

type (
	// FakeService is a scripted stand-in for the hosted service. It accepts
	// WebSocket sessions on /ws and signature submissions over REST
	FakeService struct {
		server      *httptest.Server
		handlers    map[api.Method]MethodHandler
		sockets     []*serviceSocket
		requests    []Request
		submissions []api.SubmitSignatureParams
		rejectSubs  bool
		mu          sync.Mutex
	}

	// Request is a request frame as received by the FakeService
	Request struct {
		ID     api.RequestID   `json:"id"`
		Method api.Method      `json:"method"`
		Params json.RawMessage `json:"params"`
	}

	// MethodHandler returns the frames to write in reply to a request. It
	// may return nothing and leave replying to a later Push
	MethodHandler func(Request) []any

	serviceSocket struct {
		conn *websocket.Conn
		mu   sync.Mutex
	}
)

// WaitTimeout bounds the polling helpers
const WaitTimeout = 2 * time.Second

var ErrNoSession = errors.New("no open session")

var upgrader = websocket.Upgrader{
	CheckOrigin: func(*http.Request) bool {
		return true
	},
}

// NewFakeService starts a FakeService that is shut down with the test
func NewFakeService(t *testing.T) *FakeService {
	t.Helper()
	gin.SetMode(gin.TestMode)

	s := &FakeService{
		handlers: map[api.Method]MethodHandler{},
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(glog.SetLogger(
		glog.WithLogger(func(_ *gin.Context, _ *slog.Logger) *slog.Logger {
			return slog.Default()
		}),
	))
	router.GET("/ws", s.handleSocket)
	router.POST("/signature/submit", s.handleSubmit)

	s.server = httptest.NewServer(router)
	t.Cleanup(s.Close)
	return s
}

// URL returns the base URL for REST calls
func (s *FakeService) URL() string {
	return s.server.URL
}

// WSURL returns the WebSocket endpoint
func (s *FakeService) WSURL() string {
	return "ws" + strings.TrimPrefix(s.server.URL, "http") + "/ws"
}

// Handle scripts the reply to a method
func (s *FakeService) Handle(method api.Method, h MethodHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[method] = h
}

// RejectSubmissions makes the submit endpoint answer success=false
func (s *FakeService) RejectSubmissions() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rejectSubs = true
}

// Requests returns every request frame received so far
func (s *FakeService) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

// RequestsFor returns the received requests for one method
func (s *FakeService) RequestsFor(method api.Method) []Request {
	var res []Request
	for _, r := range s.Requests() {
		if r.Method == method {
			res = append(res, r)
		}
	}
	return res
}

// WaitRequests blocks until at least n requests for method have arrived
func (s *FakeService) WaitRequests(
	t *testing.T, method api.Method, n int,
) []Request {
	t.Helper()
	require.Eventually(t, func() bool {
		return len(s.RequestsFor(method)) >= n
	}, WaitTimeout, 10*time.Millisecond)
	return s.RequestsFor(method)
}

// WaitSessions blocks until n sessions have been accepted
func (s *FakeService) WaitSessions(t *testing.T, n int) {
	t.Helper()
	require.Eventually(t, func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		return len(s.sockets) >= n
	}, WaitTimeout, 10*time.Millisecond)
}

// Submissions returns the signatures received on the REST endpoint
func (s *FakeService) Submissions() []api.SubmitSignatureParams {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]api.SubmitSignatureParams(nil), s.submissions...)
}

// Push writes a frame to the most recent session
func (s *FakeService) Push(frame any) error {
	data, err := json.Marshal(frame)
	if err != nil {
		return err
	}
	return s.PushRaw(websocket.TextMessage, data)
}

// PushRaw writes raw bytes to the most recent session
func (s *FakeService) PushRaw(typ int, data []byte) error {
	sock := s.latest()
	if sock == nil {
		return ErrNoSession
	}
	return sock.write(typ, data)
}

// DropSessions closes every session without a close handshake
func (s *FakeService) DropSessions() {
	s.mu.Lock()
	sockets := s.sockets
	s.mu.Unlock()
	for _, sock := range sockets {
		_ = sock.conn.Close()
	}
}

// Close drops all sessions and stops the server
func (s *FakeService) Close() {
	s.DropSessions()
	s.server.Close()
}

func (s *FakeService) latest() *serviceSocket {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.sockets) == 0 {
		return nil
	}
	return s.sockets[len(s.sockets)-1]
}

func (s *FakeService) handleSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	sock := &serviceSocket{conn: conn}

	s.mu.Lock()
	s.sockets = append(s.sockets, sock)
	s.mu.Unlock()

	defer func() { _ = conn.Close() }()
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var req Request
		if err := json.Unmarshal(data, &req); err != nil {
			continue
		}
		for _, frame := range s.reply(req) {
			out, err := json.Marshal(frame)
			if err != nil {
				continue
			}
			if err := sock.write(websocket.TextMessage, out); err != nil {
				return
			}
		}
	}
}

func (s *FakeService) reply(req Request) []any {
	s.mu.Lock()
	s.requests = append(s.requests, req)
	h, ok := s.handlers[req.Method]
	s.mu.Unlock()

	if !ok {
		return []any{ErrFrame(req.ID, "unknown method")}
	}
	return h(req)
}

func (s *FakeService) handleSubmit(c *gin.Context) {
	var params api.SubmitSignatureParams
	if err := c.ShouldBindJSON(&params); err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: err.Error()})
		return
	}

	s.mu.Lock()
	s.submissions = append(s.submissions, params)
	ok := !s.rejectSubs
	s.mu.Unlock()

	c.JSON(http.StatusOK, api.SubmitSignatureOutput{Success: ok})
}

func (s *serviceSocket) write(typ int, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteMessage(typ, data)
}
