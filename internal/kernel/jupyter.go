package kernel

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// protocolVersion is the Jupyter messaging protocol version we speak.
const protocolVersion = "5.3"

// Client starts kernels on a Jupyter server.
type Client struct {
	baseURL    *url.URL
	token      string
	timeout    time.Duration
	httpClient *http.Client
	dialer     *websocket.Dialer
}

// NewClient creates a Client for the Jupyter server at serverURL.
// timeout bounds each wait for a kernel reply and each REST call.
func NewClient(serverURL, token string, timeout time.Duration) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(serverURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid server URL %q: %w", serverURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid server URL %q: scheme must be http or https", serverURL)
	}
	return &Client{
		baseURL: u,
		token:   token,
		timeout: timeout,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		dialer: &websocket.Dialer{
			HandshakeTimeout: timeout,
		},
	}, nil
}

type kernelModel struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Start creates a kernel and connects to its channels.
func (c *Client) Start(ctx context.Context, kernelName string) (Session, error) {
	body, err := json.Marshal(map[string]string{"name": kernelName})
	if err != nil {
		return nil, err
	}

	resp, err := c.do(ctx, http.MethodPost, "/api/kernels", body)
	if err != nil {
		return nil, fmt.Errorf("failed to start kernel %s: %w", kernelName, err)
	}
	defer resp.Body.Close()

	var km kernelModel
	if err := json.NewDecoder(resp.Body).Decode(&km); err != nil {
		return nil, fmt.Errorf("failed to decode kernel model: %w", err)
	}
	if km.ID == "" {
		return nil, fmt.Errorf("server returned a kernel without an id")
	}

	s := &jupyterSession{
		client:    c,
		kernelID:  km.ID,
		sessionID: uuid.NewString(),
	}

	conn, err := c.dialChannels(ctx, km.ID, s.sessionID)
	if err != nil {
		// Do not leak the kernel we just created.
		c.deleteKernel(context.Background(), km.ID)
		return nil, err
	}
	s.conn = conn
	return s, nil
}

func (c *Client) do(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	var r io.Reader
	if body != nil {
		r = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL.String()+path, r)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.authorize(req.Header)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		resp.Body.Close()
		return nil, fmt.Errorf("%s %s: %s: %s", method, path, resp.Status, strings.TrimSpace(string(msg)))
	}
	return resp, nil
}

func (c *Client) authorize(h http.Header) {
	if c.token != "" {
		h.Set("Authorization", "token "+c.token)
	}
}

func (c *Client) dialChannels(ctx context.Context, kernelID, sessionID string) (*websocket.Conn, error) {
	u := *c.baseURL
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/api/kernels/" + kernelID + "/channels"
	u.RawQuery = url.Values{"session_id": {sessionID}}.Encode()

	h := http.Header{}
	c.authorize(h)

	conn, resp, err := c.dialer.DialContext(ctx, u.String(), h)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to kernel channels: %w", err)
	}
	return conn, nil
}

func (c *Client) deleteKernel(ctx context.Context, kernelID string) error {
	resp, err := c.do(ctx, http.MethodDelete, "/api/kernels/"+kernelID, nil)
	if err != nil {
		return fmt.Errorf("failed to shut down kernel %s: %w", kernelID, err)
	}
	resp.Body.Close()
	return nil
}

// message is a Jupyter protocol message as carried over the websocket.
type message struct {
	Header       header         `json:"header"`
	ParentHeader header         `json:"parent_header"`
	Metadata     map[string]any `json:"metadata"`
	Content      map[string]any `json:"content"`
	Channel      string         `json:"channel"`
	Buffers      []any          `json:"buffers"`
}

type header struct {
	MsgID    string `json:"msg_id,omitempty"`
	MsgType  string `json:"msg_type,omitempty"`
	Session  string `json:"session,omitempty"`
	Username string `json:"username,omitempty"`
	Date     string `json:"date,omitempty"`
	Version  string `json:"version,omitempty"`
}

type jupyterSession struct {
	client    *Client
	kernelID  string
	sessionID string

	mu     sync.Mutex
	conn   *websocket.Conn
	closed error
	once   sync.Once
}

func (s *jupyterSession) executeRequest(code string) message {
	return message{
		Header: header{
			MsgID:    uuid.NewString(),
			MsgType:  "execute_request",
			Session:  s.sessionID,
			Username: "nbcelltests",
			Date:     time.Now().UTC().Format(time.RFC3339Nano),
			Version:  protocolVersion,
		},
		Metadata: map[string]any{},
		Content: map[string]any{
			"code":             code,
			"silent":           false,
			"store_history":    true,
			"user_expressions": map[string]any{},
			"allow_stdin":      false,
			"stop_on_error":    true,
		},
		Channel: "shell",
		Buffers: []any{},
	}
}

// Run sends code as one execute_request and waits until both the
// execute_reply and the idle status for that request have arrived.
func (s *jupyterSession) Run(ctx context.Context, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed != nil {
		return s.closed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if s.client.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.client.timeout)
		defer cancel()
	}
	deadline, _ := ctx.Deadline()

	req := s.executeRequest(code)
	s.conn.SetWriteDeadline(deadline)
	if err := s.conn.WriteJSON(req); err != nil {
		return s.fail(fmt.Errorf("failed to send execute_request: %w", err))
	}

	// A blocked read returns as soon as ctx is done.
	s.conn.SetReadDeadline(deadline)
	stop := context.AfterFunc(ctx, func() {
		s.conn.SetReadDeadline(time.Now())
	})
	defer stop()

	var (
		gotReply bool
		gotIdle  bool
		execErr  *ExecutionError
	)
	for !gotReply || !gotIdle {
		var msg message
		if err := s.conn.ReadJSON(&msg); err != nil {
			if errors.Is(ctx.Err(), context.Canceled) {
				return s.fail(ctx.Err())
			}
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				return s.fail(ErrTimeout)
			}
			return s.fail(fmt.Errorf("failed to read kernel message: %w", err))
		}
		if msg.ParentHeader.MsgID != req.Header.MsgID {
			continue
		}

		switch msg.Header.MsgType {
		case "execute_reply":
			gotReply = true
			if status, _ := msg.Content["status"].(string); status == "error" && execErr == nil {
				execErr = executionError(msg.Content)
			}
		case "status":
			if state, _ := msg.Content["execution_state"].(string); state == "idle" {
				gotIdle = true
			}
		case "error":
			execErr = executionError(msg.Content)
		}
	}

	if execErr != nil {
		return execErr
	}
	return nil
}

// fail closes the channel after an unrecoverable read or write error.
// The kernel state is unknown afterwards, so later fragments are refused.
func (s *jupyterSession) fail(err error) error {
	s.closed = fmt.Errorf("%w: %w", ErrSessionClosed, err)
	s.conn.Close()
	return err
}

// Stop closes the channels and shuts the kernel down.
func (s *jupyterSession) Stop(ctx context.Context) error {
	var err error
	s.once.Do(func() {
		s.mu.Lock()
		if s.closed == nil {
			s.closed = ErrSessionClosed
			s.conn.Close()
		}
		s.mu.Unlock()
		err = s.client.deleteKernel(ctx, s.kernelID)
	})
	return err
}

func executionError(content map[string]any) *ExecutionError {
	e := &ExecutionError{}
	e.EName, _ = content["ename"].(string)
	e.EValue, _ = content["evalue"].(string)
	if tb, ok := content["traceback"].([]any); ok {
		for _, line := range tb {
			if s, ok := line.(string); ok {
				e.Traceback = append(e.Traceback, s)
			}
		}
	}
	return e
}
