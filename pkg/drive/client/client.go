// Package client talks to the Drive Files API over HTTP.
// It implements store.API and the sharing endpoints.
package client

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

	"github.com/jamesainslie/drive/pkg/drive/logging"
	"github.com/jamesainslie/drive/pkg/drive/store"
	"github.com/jamesainslie/drive/pkg/drive/types"
)

// DefaultTimeout bounds a single request when Config.Timeout is zero.
const DefaultTimeout = 30 * time.Second

// ErrTransport wraps failures that produced no usable response.
var ErrTransport = errors.New("transport error")

// Config holds client configuration.
type Config struct {
	BaseURL string
	Token   string
	Timeout time.Duration

	// OnUnauthorized runs after any 401, once the token has been dropped.
	OnUnauthorized func()

	// HTTPClient overrides the default transport.
	HTTPClient *http.Client
}

// Client is a Files API client. It is safe for concurrent use.
type Client struct {
	baseURL        string
	httpClient     *http.Client
	onUnauthorized func()
	userID         string
	log            *logging.Logger

	mu    *sync.RWMutex
	token *string
}

// New creates a client.
func New(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout:   10 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				MaxIdleConns:        100,
				IdleConnTimeout:     90 * time.Second,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		}
	}
	token := cfg.Token
	return &Client{
		baseURL:        strings.TrimRight(cfg.BaseURL, "/"),
		httpClient:     hc,
		onUnauthorized: cfg.OnUnauthorized,
		log:            logging.Get("client"),
		mu:             &sync.RWMutex{},
		token:          &token,
	}
}

// AsUser returns a client whose listings show userID's drive.
// The returned client shares the credential of c.
func (c *Client) AsUser(userID string) *Client {
	cp := *c
	cp.userID = userID
	return &cp
}

// SetToken replaces the bearer token.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	*c.token = token
}

// Token returns the current bearer token.
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return *c.token
}

// applyAuth adds the auth header to a request if a token is set.
func (c *Client) applyAuth(req *http.Request) {
	if token := c.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
}

// List returns the children of opts.ParentID.
func (c *Client) List(ctx context.Context, opts store.ListOptions) ([]*types.Node, error) {
	q := url.Values{}
	if opts.ParentID != nil {
		q.Set("parentId", *opts.ParentID)
	}
	userID := opts.UserID
	if userID == "" {
		userID = c.userID
	}
	if userID != "" {
		q.Set("userId", userID)
	}
	path := "/api/files"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var list nodeList
	if err := c.do(ctx, http.MethodGet, path, nil, "", &list); err != nil {
		return nil, err
	}
	return wireNodes(list), nil
}

// Get returns a single node.
func (c *Client) Get(ctx context.Context, id string) (*types.Node, error) {
	var n types.Node
	if err := c.do(ctx, http.MethodGet, "/api/files/"+url.PathEscape(id), nil, "", &n); err != nil {
		return nil, err
	}
	return wireNode(&n), nil
}

// CreateFolder creates a folder under parentID (nil = root).
func (c *Client) CreateFolder(ctx context.Context, name string, parentID *string) (*types.Node, error) {
	body := struct {
		Name     string  `json:"name"`
		ParentID *string `json:"parentId"`
	}{name, parentID}
	return c.nodeCall(ctx, http.MethodPost, "/api/folders", body)
}

// Rename renames id.
func (c *Client) Rename(ctx context.Context, id, name string) (*types.Node, error) {
	body := struct {
		Name string `json:"name"`
	}{name}
	return c.nodeCall(ctx, http.MethodPatch, "/api/files/"+url.PathEscape(id)+"/rename", body)
}

// Move reparents id under dest (nil = root).
func (c *Client) Move(ctx context.Context, id string, dest *string) (*types.Node, error) {
	return c.nodeCall(ctx, http.MethodPatch, "/api/files/"+url.PathEscape(id)+"/move", destination{dest})
}

// Copy duplicates id under dest (nil = root).
func (c *Client) Copy(ctx context.Context, id string, dest *string) (*types.Node, error) {
	return c.nodeCall(ctx, http.MethodPost, "/api/files/"+url.PathEscape(id)+"/copy", destination{dest})
}

// Delete removes id and, on the server, its subtree.
func (c *Client) Delete(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/files/"+url.PathEscape(id), nil, "", nil)
}

// Download streams the content of a file. The caller closes the reader.
func (c *Client) Download(ctx context.Context, id string) (io.ReadCloser, error) {
	resp, err := c.send(ctx, http.MethodGet, "/api/files/"+url.PathEscape(id)+"/download", nil, "")
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

type destination struct {
	DestinationID *string `json:"destinationId"`
}

func (c *Client) nodeCall(ctx context.Context, method, path string, body any) (*types.Node, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	var n types.Node
	if err := c.do(ctx, method, path, bytes.NewReader(data), "application/json", &n); err != nil {
		return nil, err
	}
	return wireNode(&n), nil
}

// do sends a request and decodes a JSON response into out (nil discards it).
func (c *Client) do(ctx context.Context, method, path string, body io.Reader, contentType string, out any) error {
	resp, err := c.send(ctx, method, path, body, contentType)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: %s %s: decode response: %v", ErrTransport, method, path, err)
	}
	return nil
}

// send performs the request and turns non-2xx responses into *APIError.
// On success the caller owns resp.Body.
func (c *Client) send(ctx context.Context, method, path string, body io.Reader, contentType string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	c.applyAuth(req)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: %s %s: %v", ErrTransport, method, path, err)
	}
	c.log.Debug("request", "method", method, "path", path, "status", resp.StatusCode, "elapsed", time.Since(start))

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}
	defer resp.Body.Close()

	apiErr := decodeError(resp)
	if resp.StatusCode == http.StatusUnauthorized {
		c.SetToken("")
		if c.onUnauthorized != nil {
			c.onUnauthorized()
		}
	}
	return nil, apiErr
}

// nodeList accepts both a bare array and a {"files": [...]} wrapper.
type nodeList []*types.Node

func (l *nodeList) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var wrapped struct {
			Files []*types.Node `json:"files"`
		}
		if err := json.Unmarshal(trimmed, &wrapped); err != nil {
			return err
		}
		*l = wrapped.Files
		return nil
	}
	var nodes []*types.Node
	if err := json.Unmarshal(trimmed, &nodes); err != nil {
		return err
	}
	*l = nodes
	return nil
}

func wireNode(n *types.Node) *types.Node {
	n.ParentID = types.NormalizeParent(n.ParentID)
	if n.Extension == "" && n.Kind == types.KindFile {
		n.Extension = types.ExtensionOf(n.Name)
	}
	return n
}

func wireNodes(nodes []*types.Node) []*types.Node {
	out := make([]*types.Node, 0, len(nodes))
	for _, n := range nodes {
		if n != nil {
			out = append(out, wireNode(n))
		}
	}
	return out
}

var _ store.API = (*Client)(nil)
