package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/gookit/color"
	"github.com/gorilla/websocket"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/suite"

	"talk-hub/auth"
	"talk-hub/domain"
	"talk-hub/gateway"
	"talk-hub/repositories"
	"talk-hub/runtime"
	"talk-hub/runtime/workers"
	"talk-hub/services"
)

const readTimeout = 3 * time.Second

type BaseChatSuite struct {
	suite.Suite
	Config  Config
	baseURL string
	cleanup []func()
}

// SetupSuite loads the environment configuration and, when no external
// server is targeted, boots the whole stack in-process.
func (s *BaseChatSuite) SetupSuite() {
	var err error
	s.Config, err = LoadConfig()
	s.Require().NoError(err)

	if s.Config.ServerAddr != "" {
		s.baseURL = "http://" + s.Config.ServerAddr
		return
	}
	s.startInProcess()
}

func (s *BaseChatSuite) TearDownSuite() {
	for i := len(s.cleanup) - 1; i >= 0; i-- {
		s.cleanup[i]()
	}
}

func (s *BaseChatSuite) startInProcess() {
	db, err := badger.Open(badger.DefaultOptions("").
		WithInMemory(true).
		WithLoggingLevel(badger.ERROR))
	s.Require().NoError(err)

	log := logs.GetLoggerFromLevel(slog.LevelError)
	tokens := auth.NewTokenService("e2e_signing_secret", time.Hour)
	supervisor := workers.NewSupervisor(log, 100*time.Millisecond)
	registry := runtime.NewRegistry()
	orchestrator := runtime.NewOrchestrator(log, supervisor, registry,
		repositories.NewMessageRepository(db, log), 256, nil, time.Minute)
	orchestrator.EnsureGroup(domain.Group{ID: domain.DefaultGroupID, Name: "大群"})

	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = orchestrator.Start(ctx) }()

	authService := services.NewAuthService(repositories.NewUserRepository(db), tokens)
	chatService := services.NewChatService(orchestrator)
	handler := gateway.NewHandler(log, authService, chatService, tokens, 256)

	server := httptest.NewServer(handler.Routes())
	s.baseURL = server.URL
	s.cleanup = append(s.cleanup,
		func() { _ = db.Close() },
		func() { orchestrator.Stop() },
		cancel,
		server.Close,
	)
}

// Step prints a colorized header for one scenario step in the logs.
func (s *BaseChatSuite) Step(name string) {
	header := fmt.Sprintf("  ====== %s ======", name)
	if s.Config.Colours {
		header = color.New(color.BgBlack, color.FgGreen).Render(header)
	}
	s.T().Log(header)
}

// PostJSON posts a JSON body and decodes the JSON response.
func (s *BaseChatSuite) PostJSON(path string, body any) (int, map[string]string) {
	raw, err := json.Marshal(body)
	s.Require().NoError(err)

	resp, err := http.Post(s.baseURL+path, "application/json", bytes.NewReader(raw))
	s.Require().NoError(err, "Failed to reach server at "+s.baseURL)
	defer resp.Body.Close()

	responseBody, err := io.ReadAll(resp.Body)
	s.Require().NoError(err)

	if s.Config.DebugJSON {
		s.T().Logf("POST %s [%d]\nREQUEST: %s\nRESPONSE: %s",
			path, resp.StatusCode, raw, responseBody)
	}

	decoded := map[string]string{}
	s.Require().NoError(json.Unmarshal(responseBody, &decoded))
	return resp.StatusCode, decoded
}

// Login returns a session token for existing credentials.
func (s *BaseChatSuite) Login(username, password string) string {
	status, body := s.PostJSON("/login", map[string]string{
		"username": username, "password": password,
	})
	s.Require().Equal(http.StatusOK, status)
	s.Require().NotEmpty(body["token"])
	return body["token"]
}

// DialRealtime opens an authenticated WebSocket connection.
func (s *BaseChatSuite) DialRealtime(token string) *websocket.Conn {
	wsURL := strings.Replace(s.baseURL, "http://", "ws://", 1) + "/ws?token=" + token
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if resp != nil {
		defer resp.Body.Close()
	}
	s.Require().NoError(err, "WebSocket handshake failed")
	s.cleanup = append(s.cleanup, func() { _ = conn.Close() })
	return conn
}

// SendEvent writes one envelope frame on the channel.
func (s *BaseChatSuite) SendEvent(conn *websocket.Conn, event string, data any) {
	raw, err := json.Marshal(data)
	s.Require().NoError(err)
	frame, err := json.Marshal(gateway.Envelope{Event: event, Data: raw})
	s.Require().NoError(err)

	if s.Config.DebugJSON {
		s.T().Logf("WS SEND: %s", frame)
	}
	s.Require().NoError(conn.WriteMessage(websocket.TextMessage, frame))
}

// WaitForEvent reads frames until the wanted event arrives, skipping
// interleaved deliveries (a sender receives its own newMessage too).
func (s *BaseChatSuite) WaitForEvent(conn *websocket.Conn, event string) json.RawMessage {
	deadline := time.Now().Add(readTimeout)
	for {
		s.Require().NoError(conn.SetReadDeadline(deadline))
		_, raw, err := conn.ReadMessage()
		s.Require().NoError(err, "Timeout waiting for event "+event)

		if s.Config.DebugJSON {
			s.T().Logf("WS RECV: %s", raw)
		}

		var envelope gateway.Envelope
		s.Require().NoError(json.Unmarshal(raw, &envelope))
		if envelope.Event == event {
			return envelope.Data
		}
	}
}
