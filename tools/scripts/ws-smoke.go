// Package main provides a CI-friendly end-to-end smoke test for a running
// messagely server.
//
// It validates:
//   - registration and bearer tokens for two fresh users
//   - websocket handshake, subprotocol selection and hello/ack
//   - message.new delivered live to the recipient
//   - message.read delivered live to the sender
//   - a second mark-read is rejected with already_read
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/coder/websocket"
)

const (
	defaultSubprotocol = "messagely.realtime.v1"
	maxReadBytes       = 1 << 20 // 1MiB
	protocolVersion    = 1
)

type envelope struct {
	V       int             `json:"v"`
	Type    string          `json:"type"`
	ID      string          `json:"id"`
	TS      time.Time       `json:"ts"`
	Payload json.RawMessage `json:"payload"`
}

type errorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type message struct {
	ID           int64      `json:"id"`
	FromUsername string     `json:"from_username"`
	ToUsername   string     `json:"to_username"`
	Body         string     `json:"body"`
	ReadAt       *time.Time `json:"read_at"`
}

type smokeClient struct {
	name  string
	conn  *websocket.Conn
	inbox chan envelope
	errCh chan error
}

func main() {
	var (
		baseURL = flag.String("url", "http://127.0.0.1:8080", "Server base URL")
		origin  = flag.String("origin", "http://localhost", "Origin header to send (browser-like WS handshake)")
		text    = flag.String("text", "hello from the smoke test", "Message body to send")
		timeout = flag.Duration("timeout", 7*time.Second, "Per-step timeout")
		verbose = flag.Bool("v", false, "Verbose output")
	)
	flag.Parse()

	base, err := validateBaseURL(*baseURL)
	if err != nil {
		fatalf("invalid -url: %v", err)
	}

	root := context.Background()
	httpc := &http.Client{Timeout: *timeout}
	suffix := strconv.FormatInt(time.Now().UnixNano(), 36)

	sender := "smoke_a_" + suffix
	recipient := "smoke_b_" + suffix
	senderTok := mustRegister(httpc, base, sender)
	recipientTok := mustRegister(httpc, base, recipient)

	a := mustConnect(root, sender, base, *origin, senderTok, *timeout)
	defer closeWS(a.conn)
	b := mustConnect(root, recipient, base, *origin, recipientTok, *timeout)
	defer closeWS(b.conn)

	if *verbose {
		fmt.Printf("connected: %s %s origin=%q\n", sender, recipient, *origin)
	}

	var sent struct {
		Message message `json:"message"`
	}
	mustCall(httpc, http.MethodPost, base.JoinPath("messages").String(), senderTok,
		map[string]string{"to_username": recipient, "body": *text}, http.StatusCreated, &sent)

	var live message
	env := b.mustReadUntilType(root, "message.new", *timeout)
	if err := json.Unmarshal(env.Payload, &live); err != nil {
		fatalf("decode message.new: %v", err)
	}
	if live.ID != sent.Message.ID || live.Body != *text || live.FromUsername != sender {
		fatalf("message.new mismatch: got=%+v want id=%d", live, sent.Message.ID)
	}

	readURL := base.JoinPath("messages", strconv.FormatInt(sent.Message.ID, 10), "read").String()
	mustCall(httpc, http.MethodPost, readURL, recipientTok, nil, http.StatusOK, nil)

	env = a.mustReadUntilType(root, "message.read", *timeout)
	var read message
	if err := json.Unmarshal(env.Payload, &read); err != nil {
		fatalf("decode message.read: %v", err)
	}
	if read.ID != sent.Message.ID || read.ReadAt == nil {
		fatalf("message.read mismatch: %+v", read)
	}

	var again struct {
		Error errorPayload `json:"error"`
	}
	mustCall(httpc, http.MethodPost, readURL, recipientTok, nil, http.StatusConflict, &again)
	if again.Error.Code != "already_read" {
		fatalf("second mark-read: code=%q", again.Error.Code)
	}

	fmt.Printf("OK: message_id=%d sender=%s recipient=%s\n", sent.Message.ID, sender, recipient)
}

func validateBaseURL(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
	if strings.TrimSpace(u.Host) == "" {
		return nil, errors.New("missing host")
	}
	return u, nil
}

func wsURL(base *url.URL) string {
	u := *base.JoinPath("ws")
	if u.Scheme == "https" {
		u.Scheme = "wss"
	} else {
		u.Scheme = "ws"
	}
	return u.String()
}

func mustRegister(c *http.Client, base *url.URL, username string) string {
	var out struct {
		Token string `json:"token"`
	}
	mustCall(c, http.MethodPost, base.JoinPath("auth", "register").String(), "", map[string]string{
		"username":   username,
		"password":   "smoke-" + username,
		"first_name": "Smoke",
		"last_name":  "Test",
		"phone":      "+15550100",
	}, http.StatusCreated, &out)
	if out.Token == "" {
		fatalf("register %s: empty token", username)
	}
	return out.Token
}

func mustCall(c *http.Client, method, target, bearer string, body any, wantStatus int, out any) {
	var rdr io.Reader
	if body != nil {
		rdr = bytes.NewReader(mustJSON(body))
	}
	req, err := http.NewRequest(method, target, rdr)
	if err != nil {
		fatalf("build %s %s: %v", method, target, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.Do(req)
	if err != nil {
		fatalf("%s %s: %v", method, target, err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxReadBytes))
	if resp.StatusCode != wantStatus {
		fatalf("%s %s: status=%d want=%d body=%s", method, target, resp.StatusCode, wantStatus, raw)
	}
	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			fatalf("%s %s: decode: %v", method, target, err)
		}
	}
}

func mustConnect(parent context.Context, name string, base *url.URL, origin, bearer string, stepTimeout time.Duration) *smokeClient {
	ctx, cancel := context.WithTimeout(parent, stepTimeout)
	defer cancel()

	h := http.Header{}
	if strings.TrimSpace(origin) != "" {
		h.Set("Origin", origin)
	}
	h.Set("Authorization", "Bearer "+bearer)

	conn, resp, err := websocket.Dial(ctx, wsURL(base), &websocket.DialOptions{
		Subprotocols: []string{defaultSubprotocol},
		HTTPHeader:   h,
	})
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		fatalf("connect %s: %v", name, err)
	}
	if got := conn.Subprotocol(); got != defaultSubprotocol {
		fatalf("subprotocol mismatch: got=%q want=%q", got, defaultSubprotocol)
	}

	conn.SetReadLimit(maxReadBytes)

	c := &smokeClient{
		name:  name,
		conn:  conn,
		inbox: make(chan envelope, 64),
		errCh: make(chan error, 1),
	}
	c.startReadLoop()

	mustWriteWithTimeout(parent, conn, envelope{
		V:       protocolVersion,
		Type:    "hello",
		ID:      name + "-hello",
		TS:      time.Now().UTC(),
		Payload: json.RawMessage(`{}`),
	}, stepTimeout)

	ack := c.mustReadUntilType(parent, "hello.ack", stepTimeout)
	var p struct {
		SessionID string `json:"session_id"`
		Username  string `json:"username"`
	}
	if err := json.Unmarshal(ack.Payload, &p); err != nil {
		fatalf("unmarshal hello.ack payload (%s): %v", name, err)
	}
	if p.Username != name || p.SessionID == "" {
		fatalf("hello.ack mismatch (%s): %+v", name, p)
	}
	return c
}

func (c *smokeClient) startReadLoop() {
	go func() {
		defer close(c.inbox)

		for {
			_, data, err := c.conn.Read(context.Background())
			if err != nil {
				select {
				case c.errCh <- err:
				default:
				}
				return
			}

			var env envelope
			if err := json.Unmarshal(data, &env); err != nil {
				select {
				case c.errCh <- fmt.Errorf("bad json: %w", err):
				default:
				}
				return
			}

			select {
			case c.inbox <- env:
			default:
				select {
				case c.errCh <- errors.New("inbox overflow: consumer too slow"):
				default:
				}
				return
			}
		}
	}()
}

func (c *smokeClient) mustReadUntilType(parent context.Context, wantType string, stepTimeout time.Duration) envelope {
	ctx, cancel := context.WithTimeout(parent, stepTimeout)
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			fatalf("timeout waiting for %q (%s): %v", wantType, c.name, ctx.Err())
		case err := <-c.errCh:
			fatalf("connection error while waiting for %q (%s): %v", wantType, c.name, err)
		case env, ok := <-c.inbox:
			if !ok {
				fatalf("connection closed while waiting for %q (%s)", wantType, c.name)
			}
			if env.Type == wantType {
				return env
			}
			if env.Type == "error" {
				var ep errorPayload
				_ = json.Unmarshal(env.Payload, &ep)
				fatalf("server error (%s): code=%q msg=%q", c.name, ep.Code, ep.Message)
			}
		}
	}
}

func mustWriteWithTimeout(parent context.Context, conn *websocket.Conn, env envelope, stepTimeout time.Duration) {
	ctx, cancel := context.WithTimeout(parent, stepTimeout)
	defer cancel()

	if err := conn.Write(ctx, websocket.MessageText, mustJSON(env)); err != nil {
		fatalf("write failed: %v", err)
	}
}

func mustJSON(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}

func closeWS(conn *websocket.Conn) {
	_ = conn.Close(websocket.StatusNormalClosure, "bye")
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "FAIL: "+format+"\n", args...)
	os.Exit(1)
}
