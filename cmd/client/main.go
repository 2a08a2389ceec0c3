package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"direct-chat/internal"

	"github.com/gookit/color"
	"github.com/gorilla/websocket"
	"github.com/kelseyhightower/envconfig"
)

// Exit codes for the client application.
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

// Config defines the client-side environment variables.
type Config struct {
	ServerURL string `envconfig:"CHAT_SERVER_URL" default:"http://localhost:8080"`
	Username  string `envconfig:"CHAT_USERNAME" required:"true"`
	Password  string `envconfig:"CHAT_PASSWORD" required:"true"`
	Peer      string `envconfig:"CHAT_PEER" required:"true"`
	LogLevel  string `envconfig:"LOG_LEVEL" default:"INFO"`
}

// incoming covers both server frame shapes: the one-time history replay
// and live chat events.
type incoming struct {
	Type     string `json:"type"`
	Messages []struct {
		Sender    string `json:"sender"`
		Content   string `json:"content"`
		Timestamp string `json:"timestamp"`
	} `json:"messages"`
	Sender    string `json:"sender"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Client error: %v\n", err)
	}
	os.Exit(code)
}

// run handles login, the websocket lifecycle, and the interactive send
// loop.
func run() (int, error) {
	// 1. Load configuration from environment variables.
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	log := internal.GetLoggerFromString(config.LogLevel)

	// 2. Setup context to handle termination signals (Ctrl+C).
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Authenticate. Unknown accounts are registered transparently so a
	// first run needs no extra step.
	token, err := login(config)
	if err != nil {
		return exitRuntime, err
	}

	// 4. Open the chat connection.
	wsURL, err := chatURL(config.ServerURL, config.Peer, token)
	if err != nil {
		return exitConfig, err
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return exitRuntime, fmt.Errorf("could not connect to %s: %w", wsURL, err)
	}
	defer func() {
		log.Info("Closing connection...")
		_ = conn.Close()
	}()

	color.Green.Printf(">>> Connected as %s, chatting with %s (Ctrl+C to quit)\n",
		config.Username, config.Peer)

	// 5. Reception loop in the background; rendering happens as frames
	// arrive so history prints before the prompt is usable.
	go receive(ctx, conn, config.Username)

	// 6. Interactive send loop.
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			continue
		case line == "/quit":
			return exitOK, nil
		case strings.HasPrefix(line, "/find "):
			if err := find(config, token, strings.TrimPrefix(line, "/find ")); err != nil {
				color.Red.Printf("search failed: %v\n", err)
			}
		default:
			payload, _ := json.Marshal(map[string]string{"message": line})
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				if ctx.Err() != nil {
					return exitOK, nil
				}
				return exitRuntime, fmt.Errorf("send failed: %w", err)
			}
		}
	}
	return exitOK, scanner.Err()
}

func receive(ctx context.Context, conn *websocket.Conn, self string) {
	for {
		var frame incoming
		if err := conn.ReadJSON(&frame); err != nil {
			if ctx.Err() == nil {
				color.Red.Println("connection lost")
			}
			return
		}

		if frame.Type == "history" {
			color.Gray.Printf("--- %d earlier message(s) ---\n", len(frame.Messages))
			for _, m := range frame.Messages {
				printLine(m.Timestamp, m.Sender, m.Content, self)
			}
			continue
		}
		printLine(frame.Timestamp, frame.Sender, frame.Message, self)
	}
}

func printLine(timestamp, sender, content, self string) {
	if sender == self {
		color.Cyan.Printf("[%s] %s: %s\n", timestamp, sender, content)
		return
	}
	color.Yellow.Printf("[%s] %s: %s\n", timestamp, sender, content)
}

// login obtains a session token, registering the account on the first
// attempt if it does not exist yet.
func login(config Config) (string, error) {
	token, err := credentialCall(config, "/api/login")
	if err == nil {
		return token, nil
	}
	return credentialCall(config, "/api/register")
}

func credentialCall(config Config, path string) (string, error) {
	body, _ := json.Marshal(map[string]string{
		"username": config.Username,
		"password": config.Password,
	})

	resp, err := http.Post(config.ServerURL+path, "application/json", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("calling %s: %w", path, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("%s returned %d: %s", path, resp.StatusCode, raw)
	}

	var payload struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return "", fmt.Errorf("decoding %s response: %w", path, err)
	}
	return payload.Token, nil
}

func find(config Config, token, query string) error {
	endpoint := fmt.Sprintf("%s/api/search?q=%s&token=%s",
		config.ServerURL, url.QueryEscape(query), url.QueryEscape(token))
	resp, err := http.Get(endpoint)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	var payload struct {
		Hits []struct {
			Room    string `json:"Room"`
			Sender  string `json:"Sender"`
			Content string `json:"Content"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return err
	}

	color.Gray.Printf("--- %d hit(s) ---\n", len(payload.Hits))
	for _, hit := range payload.Hits {
		color.Magenta.Printf("[%s] %s: %s\n", hit.Room, hit.Sender, hit.Content)
	}
	return nil
}

// chatURL rewrites the HTTP base URL into the websocket endpoint for
// the given peer.
func chatURL(base, peer, token string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid server url %q: %w", base, err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	u.Path = "/ws/chat/" + peer
	u.RawQuery = url.Values{"token": {token}}.Encode()
	return u.String(), nil
}
