package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/Netflix/go-env"
	"github.com/gorilla/websocket"
	"github.com/mama165/sdk-go/logs"

	"talk-hub/gateway"
)

// Exit codes for the client application.
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

// Config defines the client-side environment variables.
type Config struct {
	ServerAddr string `env:"TALK_SERVER_ADDR,default=localhost:3001"`
	Username   string `env:"TALK_USERNAME,required=true"`
	Password   string `env:"TALK_PASSWORD,required=true"`
	GroupID    string `env:"TALK_GROUP_ID,default=bigGroup"`
	LogLevel   string `env:"LOG_LEVEL,default=INFO"`
}

func main() {
	// The main function manages the OS exit code based on run()'s return.
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Client error: %v\n", err)
	}
	os.Exit(code)
}

// run handles login, the WebSocket session, and stdin forwarding.
func run() (int, error) {
	// 1. Load configuration from environment variables.
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}

	log := logs.GetLoggerFromString(config.LogLevel)

	// 2. Setup context to handle termination signals (Ctrl+C).
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Obtain a session token, registering the identity on first use.
	token, err := login(config)
	if err != nil {
		if err = register(config); err != nil {
			return exitRuntime, fmt.Errorf("registration failed: %w", err)
		}
		if token, err = login(config); err != nil {
			return exitRuntime, fmt.Errorf("login failed after registration: %w", err)
		}
	}

	// 4. Open the realtime channel and join the group.
	wsURL := fmt.Sprintf("ws://%s/ws?token=%s", config.ServerAddr, token)
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return exitRuntime, fmt.Errorf("could not connect to server at %s: %w", config.ServerAddr, err)
	}
	defer func() {
		log.Info("Closing connection...")
		_ = conn.Close()
	}()

	if err := writeEvent(conn, gateway.EventJoinGroup, config.GroupID); err != nil {
		return exitRuntime, err
	}
	if err := writeEvent(conn, gateway.EventGetMessages, config.GroupID); err != nil {
		return exitRuntime, err
	}

	log.Info(fmt.Sprintf(">>> Connected to %s! Listening group %s (Ctrl+C to quit)...",
		config.ServerAddr, config.GroupID))

	// 5. Reception loop, runs until the server closes the connection.
	go func() {
		defer stop()
		for {
			var envelope gateway.Envelope
			if err := conn.ReadJSON(&envelope); err != nil {
				return
			}
			printEvent(log, envelope)
		}
	}()

	// 6. Forward stdin lines as messages.
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			payload := gateway.SendMessagePayload{GroupID: config.GroupID, Body: scanner.Text()}
			if err := writeEvent(conn, gateway.EventSendMessage, payload); err != nil {
				return
			}
		}
	}()

	<-ctx.Done()
	return exitOK, nil
}

func printEvent(log *slog.Logger, envelope gateway.Envelope) {
	switch envelope.Event {
	case gateway.EventNewMessage:
		var msg gateway.WireMessage
		if err := json.Unmarshal(envelope.Data, &msg); err == nil {
			log.Info(fmt.Sprintf("[%s] %s: %s", msg.GroupID, msg.Sender, msg.Body))
		}
	case gateway.EventGroupMessages:
		var history []gateway.WireMessage
		if err := json.Unmarshal(envelope.Data, &history); err == nil {
			for _, msg := range history {
				log.Info(fmt.Sprintf("[%s] %s: %s", msg.GroupID, msg.Sender, msg.Body))
			}
		}
	case gateway.EventError:
		log.Info(fmt.Sprintf("server error: %s", envelope.Data))
	}
}

func writeEvent(conn *websocket.Conn, event string, data any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return conn.WriteJSON(gateway.Envelope{Event: event, Data: raw})
}

func login(config Config) (string, error) {
	body, err := credentialsBody(config)
	if err != nil {
		return "", err
	}

	resp, err := http.Post(fmt.Sprintf("http://%s/login", config.ServerAddr), "application/json", body)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("login rejected with status %d", resp.StatusCode)
	}

	var payload struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", err
	}
	return payload.Token, nil
}

func register(config Config) error {
	body, err := credentialsBody(config)
	if err != nil {
		return err
	}

	resp, err := http.Post(fmt.Sprintf("http://%s/register", config.ServerAddr), "application/json", body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("registration rejected with status %d", resp.StatusCode)
	}
	return nil
}

func credentialsBody(config Config) (*bytes.Reader, error) {
	raw, err := json.Marshal(map[string]string{
		"username": config.Username,
		"password": config.Password,
	})
	if err != nil {
		return nil, err
	}
	return bytes.NewReader(raw), nil
}
