package httpapi

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gorilla/websocket"
	"github.com/mbakke/listsync/internal/common"
	"github.com/mbakke/listsync/internal/dbx"
	"github.com/mbakke/listsync/internal/logging"
	"github.com/mbakke/listsync/internal/server/auth"
	"github.com/mbakke/listsync/internal/server/broadcast"
	"github.com/mbakke/listsync/internal/server/config"
	"github.com/mbakke/listsync/internal/server/models"
	itemsrepo "github.com/mbakke/listsync/internal/server/repositories/items"
	listsrepo "github.com/mbakke/listsync/internal/server/repositories/lists"
	usersrepo "github.com/mbakke/listsync/internal/server/repositories/users"
	"github.com/mbakke/listsync/internal/server/services"
	"github.com/stretchr/testify/require"
)

// minimal in-memory repositories so the whole HTTP surface can be exercised
// without a database; transaction boundaries are satisfied by sqlmock.

type memUsers struct {
	byEmail map[string]*models.User
	byID    map[string]*models.User
}

func (m *memUsers) Create(ctx context.Context, u *models.User) error {
	if _, ok := m.byEmail[u.Email]; ok {
		return common.ErrEmailTaken
	}
	m.byEmail[u.Email] = u
	m.byID[u.ID] = u
	return nil
}

func (m *memUsers) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	if u, ok := m.byEmail[email]; ok {
		return u, nil
	}
	return nil, common.ErrNotFound
}

func (m *memUsers) GetByID(ctx context.Context, id string) (*models.User, error) {
	if u, ok := m.byID[id]; ok {
		return u, nil
	}
	return nil, common.ErrNotFound
}

type memList struct {
	id      string
	name    string
	ownerID string
	members []string
}

type memLists struct {
	users *memUsers
	items *memItems
	lists map[string]*memList
}

func (m *memLists) Create(ctx context.Context, id, name, ownerID string) error {
	m.lists[id] = &memList{id: id, name: name, ownerID: ownerID}
	return nil
}

func (m *memLists) GetAccess(ctx context.Context, listID string) (*models.Access, error) {
	l, ok := m.lists[listID]
	if !ok {
		return nil, common.ErrNotFound
	}
	return &models.Access{ListID: listID, OwnerID: l.ownerID, MemberIDs: append([]string(nil), l.members...)}, nil
}

func (m *memLists) UpdateName(ctx context.Context, listID, name string) error {
	l, ok := m.lists[listID]
	if !ok {
		return common.ErrNotFound
	}
	l.name = name
	return nil
}

func (m *memLists) Delete(ctx context.Context, listID string) error {
	if _, ok := m.lists[listID]; !ok {
		return common.ErrNotFound
	}
	delete(m.lists, listID)
	return nil
}

func (m *memLists) AddShare(ctx context.Context, listID, userID string) error {
	l, ok := m.lists[listID]
	if !ok {
		return common.ErrNotFound
	}
	l.members = append(l.members, userID)
	return nil
}

func (m *memLists) ListForUser(ctx context.Context, userID string) ([]models.List, error) {
	result := []models.List{}
	for _, l := range m.lists {
		visible := l.ownerID == userID
		for _, id := range l.members {
			if id == userID {
				visible = true
			}
		}
		if !visible {
			continue
		}

		owner := m.users.byID[l.ownerID]
		out := models.List{ID: l.id, Name: l.name, Owner: owner.Ref(), SharedWith: []models.UserRef{}, Items: []models.Item{}}
		for _, id := range l.members {
			out.SharedWith = append(out.SharedWith, m.users.byID[id].Ref())
		}
		for _, it := range m.items.items {
			if it.ListID == l.id {
				out.Items = append(out.Items, *it)
			}
		}
		result = append(result, out)
	}
	return result, nil
}

type memItems struct {
	items map[string]*models.Item
}

func (m *memItems) Create(ctx context.Context, item *models.Item) error {
	cp := *item
	m.items[item.ID] = &cp
	return nil
}

func (m *memItems) Get(ctx context.Context, id string) (*models.Item, error) {
	if it, ok := m.items[id]; ok {
		cp := *it
		return &cp, nil
	}
	return nil, common.ErrNotFound
}

func (m *memItems) SetCompleted(ctx context.Context, id string, completed bool) error {
	it, ok := m.items[id]
	if !ok {
		return common.ErrNotFound
	}
	it.Completed = completed
	return nil
}

func (m *memItems) Delete(ctx context.Context, id string) error {
	if _, ok := m.items[id]; !ok {
		return common.ErrNotFound
	}
	delete(m.items, id)
	return nil
}

func (m *memItems) CountForList(ctx context.Context, listID string) (int, error) {
	n := 0
	for _, it := range m.items {
		if it.ListID == listID {
			n++
		}
	}
	return n, nil
}

type memRepoManager struct {
	users *memUsers
	lists *memLists
	items *memItems
}

func (m *memRepoManager) RunMigrations(context.Context, *sql.DB) error { return nil }
func (m *memRepoManager) Users(dbx.DBTX) usersrepo.Repository          { return m.users }
func (m *memRepoManager) Lists(dbx.DBTX) listsrepo.Repository          { return m.lists }
func (m *memRepoManager) Items(dbx.DBTX) itemsrepo.Repository          { return m.items }

type fixture struct {
	srv    *httptest.Server
	hub    *broadcast.Hub
	mock   sqlmock.Sqlmock
	secret string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	// every guarded mutation opens a transaction; allow them in any order
	mock.MatchExpectationsInOrder(false)

	users := &memUsers{byEmail: map[string]*models.User{}, byID: map[string]*models.User{}}
	items := &memItems{items: map[string]*models.Item{}}
	lists := &memLists{users: users, items: items, lists: map[string]*memList{}}
	rm := &memRepoManager{users: users, lists: lists, items: items}

	logger := logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
	cfg := &config.Config{SecretKey: "test-secret", AccessTokenValidityDuration: time.Hour}

	hub := broadcast.NewHub(logger)
	us := services.NewUserService(db, rm, cfg)
	ls := services.NewListService(db, rm, hub, logger)

	server := NewServer(":0", logger, us, ls, hub, cfg.SecretKey)
	srv := httptest.NewServer(server.Router())
	t.Cleanup(srv.Close)
	t.Cleanup(hub.Close)

	return &fixture{srv: srv, hub: hub, mock: mock, secret: cfg.SecretKey}
}

func (f *fixture) allowTx(n int) {
	for i := 0; i < n; i++ {
		f.mock.ExpectBegin()
		f.mock.ExpectCommit()
	}
}

func (f *fixture) allowTxRollback(n int) {
	for i := 0; i < n; i++ {
		f.mock.ExpectBegin()
		f.mock.ExpectRollback()
	}
}

func (f *fixture) do(t *testing.T, method, path, token string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, f.srv.URL+path, &buf)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func (f *fixture) registerAndLogin(t *testing.T, email string) string {
	t.Helper()
	resp := f.do(t, http.MethodPost, "/api/register", "", map[string]string{
		"email": email, "name": "Tester", "password": "pw",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = f.do(t, http.MethodPost, "/api/login", "", map[string]string{
		"email": email, "password": "pw",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out struct {
		AccessToken string `json:"accessToken"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.NotEmpty(t, out.AccessToken)
	return out.AccessToken
}

func TestGetLists_RequiresToken(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, http.MethodGet, "/api/lists", "", nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = f.do(t, http.MethodGet, "/api/lists", "garbage", nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestCreateAndFetchList(t *testing.T) {
	f := newFixture(t)
	token := f.registerAndLogin(t, "alice@example.com")

	resp := f.do(t, http.MethodPost, "/api/lists", token, map[string]string{"name": "Groceries"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created models.List
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	require.Equal(t, "Groceries", created.Name)
	require.Equal(t, "alice@example.com", created.Owner.Email)

	resp = f.do(t, http.MethodGet, "/api/lists", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var lists []models.List
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&lists))
	require.Len(t, lists, 1)
	require.Equal(t, created.ID, lists[0].ID)
}

func TestDeleteList_NotEmptyConflict(t *testing.T) {
	f := newFixture(t)
	token := f.registerAndLogin(t, "alice@example.com")

	resp := f.do(t, http.MethodPost, "/api/lists", token, map[string]string{"name": "Groceries"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var list models.List
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))

	f.allowTx(1)
	resp = f.do(t, http.MethodPost, "/api/lists/"+list.ID+"/items", token, map[string]string{"name": "Milk"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	f.allowTxRollback(1)
	resp = f.do(t, http.MethodDelete, "/api/lists/"+list.ID, token, nil)
	require.Equal(t, http.StatusConflict, resp.StatusCode)

	var errOut struct {
		Code string `json:"code"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&errOut))
	require.Equal(t, "list_not_empty", errOut.Code)
}

func TestShareList_UnknownEmail(t *testing.T) {
	f := newFixture(t)
	token := f.registerAndLogin(t, "alice@example.com")

	resp := f.do(t, http.MethodPost, "/api/lists", token, map[string]string{"name": "Groceries"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var list models.List
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))

	f.allowTxRollback(1)
	resp = f.do(t, http.MethodPost, "/api/lists/"+list.ID+"/share", token, map[string]string{"email": "ghost@example.com"})
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	var errOut struct {
		Code string `json:"code"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&errOut))
	require.Equal(t, "user_not_found", errOut.Code)
}

func TestSharedMemberSeesAndTogglesItems(t *testing.T) {
	f := newFixture(t)
	aliceToken := f.registerAndLogin(t, "alice@example.com")
	bobToken := f.registerAndLogin(t, "bob@example.com")

	resp := f.do(t, http.MethodPost, "/api/lists", aliceToken, map[string]string{"name": "Groceries"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var list models.List
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))

	f.allowTx(1)
	resp = f.do(t, http.MethodPost, "/api/lists/"+list.ID+"/items", aliceToken, map[string]string{"name": "Milk"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var item models.Item
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&item))
	require.False(t, item.Completed)

	// before the share, Bob sees nothing and cannot toggle
	resp = f.do(t, http.MethodGet, "/api/lists", bobToken, nil)
	var bobLists []models.List
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&bobLists))
	require.Empty(t, bobLists)

	f.allowTxRollback(1)
	resp = f.do(t, http.MethodPost, "/api/items/"+item.ID+"/toggle", bobToken, nil)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)

	f.allowTx(1)
	resp = f.do(t, http.MethodPost, "/api/lists/"+list.ID+"/share", aliceToken, map[string]string{"email": "bob@example.com"})
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	// the share takes effect on Bob's very next request
	resp = f.do(t, http.MethodGet, "/api/lists", bobToken, nil)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&bobLists))
	require.Len(t, bobLists, 1)
	require.Equal(t, "Milk", bobLists[0].Items[0].Name)

	f.allowTx(1)
	resp = f.do(t, http.MethodPost, "/api/items/"+item.ID+"/toggle", bobToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var toggled models.Item
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&toggled))
	require.True(t, toggled.Completed)

	// Alice's next fetch returns the toggled state
	resp = f.do(t, http.MethodGet, "/api/lists", aliceToken, nil)
	var aliceLists []models.List
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&aliceLists))
	require.Len(t, aliceLists, 1)
	require.True(t, aliceLists[0].Items[0].Completed)
}

func TestMutationPublishesToWebsocketSubscriber(t *testing.T) {
	f := newFixture(t)
	token := f.registerAndLogin(t, "alice@example.com")

	wsURL := "ws" + strings.TrimPrefix(f.srv.URL, "http") + "/ws?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	resp := f.do(t, http.MethodPost, "/api/lists", token, map[string]string{"name": "Groceries"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var ev broadcast.Event
	require.NoError(t, json.Unmarshal(data, &ev))
	require.Equal(t, common.BroadcastChannelName, ev.Channel)
	require.Equal(t, common.ListUpdatedEventName, ev.Event)
}

func TestWebsocket_RequiresToken(t *testing.T) {
	f := newFixture(t)

	wsURL := "ws" + strings.TrimPrefix(f.srv.URL, "http") + "/ws"
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestLogin_WrongPassword(t *testing.T) {
	f := newFixture(t)
	f.registerAndLogin(t, "alice@example.com")

	resp := f.do(t, http.MethodPost, "/api/login", "", map[string]string{
		"email": "alice@example.com", "password": "wrong",
	})
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestAuthTokenRoundTrip(t *testing.T) {
	f := newFixture(t)
	token := f.registerAndLogin(t, "alice@example.com")

	userID, err := auth.GetUserIDFromToken(token, []byte(f.secret))
	require.NoError(t, err)
	require.NotEmpty(t, userID)

	// list created via the API is owned by the token's principal
	resp := f.do(t, http.MethodPost, "/api/lists", token, map[string]string{"name": "Mine"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var list models.List
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	require.Equal(t, userID, list.Owner.ID)
}
