package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/mbakke/listsync/internal/common"
)

// Client is the operation surface the rest of the client programs against.
type Client interface {
	Register(ctx context.Context, email, name, password string) error
	Login(ctx context.Context, email, password string) error
	IsLoggedIn() bool

	GetLists(ctx context.Context) ([]List, error)
	CreateList(ctx context.Context, name string) (*List, error)
	UpdateListName(ctx context.Context, listID, name string) (*List, error)
	DeleteList(ctx context.Context, listID string) error
	ShareList(ctx context.Context, listID, email string) error
	AddItem(ctx context.Context, listID, name string) (*Item, error)
	ToggleItem(ctx context.Context, itemID string) (*Item, error)
	DeleteItem(ctx context.Context, itemID string) error

	// Subscribe opens the websocket broadcast channel and delivers events
	// until ctx is cancelled or the connection drops.
	Subscribe(ctx context.Context) (<-chan Event, error)
}

type HTTPClient struct {
	baseURL     string
	httpClient  *http.Client
	accessToken string
}

func NewHTTPClient(baseURL string) *HTTPClient {
	return &HTTPClient{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{},
	}
}

func (c *HTTPClient) IsLoggedIn() bool { return c.accessToken != "" }

func (c *HTTPClient) Register(ctx context.Context, email, name, password string) error {
	body := map[string]string{"email": email, "name": name, "password": password}
	return c.call(ctx, http.MethodPost, "/api/register", body, nil)
}

func (c *HTTPClient) Login(ctx context.Context, email, password string) error {
	body := map[string]string{"email": email, "password": password}
	var out struct {
		AccessToken string `json:"accessToken"`
	}
	if err := c.call(ctx, http.MethodPost, "/api/login", body, &out); err != nil {
		return err
	}
	c.accessToken = out.AccessToken
	return nil
}

func (c *HTTPClient) GetLists(ctx context.Context) ([]List, error) {
	var out []List
	if err := c.call(ctx, http.MethodGet, "/api/lists", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *HTTPClient) CreateList(ctx context.Context, name string) (*List, error) {
	var out List
	if err := c.call(ctx, http.MethodPost, "/api/lists", map[string]string{"name": name}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) UpdateListName(ctx context.Context, listID, name string) (*List, error) {
	var out List
	path := "/api/lists/" + url.PathEscape(listID)
	if err := c.call(ctx, http.MethodPatch, path, map[string]string{"name": name}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) DeleteList(ctx context.Context, listID string) error {
	return c.call(ctx, http.MethodDelete, "/api/lists/"+url.PathEscape(listID), nil, nil)
}

func (c *HTTPClient) ShareList(ctx context.Context, listID, email string) error {
	path := "/api/lists/" + url.PathEscape(listID) + "/share"
	return c.call(ctx, http.MethodPost, path, map[string]string{"email": email}, nil)
}

func (c *HTTPClient) AddItem(ctx context.Context, listID, name string) (*Item, error) {
	var out Item
	path := "/api/lists/" + url.PathEscape(listID) + "/items"
	if err := c.call(ctx, http.MethodPost, path, map[string]string{"name": name}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) ToggleItem(ctx context.Context, itemID string) (*Item, error) {
	var out Item
	path := "/api/items/" + url.PathEscape(itemID) + "/toggle"
	if err := c.call(ctx, http.MethodPost, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) DeleteItem(ctx context.Context, itemID string) error {
	return c.call(ctx, http.MethodDelete, "/api/items/"+url.PathEscape(itemID), nil, nil)
}

func (c *HTTPClient) Subscribe(ctx context.Context) (<-chan Event, error) {
	wsURL := "ws" + strings.TrimPrefix(c.baseURL, "http") + "/ws?token=" + url.QueryEscape(c.accessToken)

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("subscribe error: %w", err)
	}

	events := make(chan Event)

	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	go func() {
		defer close(events)
		defer conn.Close()
		for {
			var ev Event
			if err := conn.ReadJSON(&ev); err != nil {
				return
			}
			select {
			case events <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()

	return events, nil
}

// call performs one JSON round trip and maps error responses back onto the
// shared sentinel errors so callers can use errors.Is on both sides of the
// wire.
func (c *HTTPClient) call(ctx context.Context, method, path string, body, out any) error {
	var buf io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		buf = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, buf)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.accessToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return decodeError(resp)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode error: %w", err)
		}
	}
	return nil
}

func decodeError(resp *http.Response) error {
	var e struct {
		Error string `json:"error"`
		Code  string `json:"code"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&e)

	switch e.Code {
	case "unauthenticated":
		return common.ErrUnauthenticated
	case "unauthorized":
		return common.ErrUnauthorized
	case "user_not_found":
		return common.ErrUserNotFound
	case "not_found":
		return common.ErrNotFound
	case "list_not_empty":
		return common.ErrListNotEmpty
	case "email_taken":
		return common.ErrEmailTaken
	case "validation":
		return common.ErrValidation
	default:
		return fmt.Errorf("server error: %s (%d)", e.Error, resp.StatusCode)
	}
}
