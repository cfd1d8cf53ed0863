package handlers_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/avvvet/bingo-rooms/internal/bingo"
	"github.com/avvvet/bingo-rooms/internal/roomsvc/handlers"
	"github.com/avvvet/bingo-rooms/internal/roomsvc/service"
	"github.com/avvvet/bingo-rooms/internal/roomsvc/store"
	"github.com/go-chi/chi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "test-secret"

type apiResponse struct {
	Message string          `json:"message"`
	Code    int             `json:"code"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

type testAPI struct {
	t      *testing.T
	server *httptest.Server
	h      *handlers.Handler
}

func newAPI(t *testing.T) *testAPI {
	t.Helper()
	svc := service.NewRoomService(store.NewMemoryStore(), service.Options{Source: bingo.NewSeededSource(1, 2)})
	h := handlers.NewHandler(svc, "8080")
	h.InitAuth(secret)

	r := chi.NewRouter()
	h.SetRoutes(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return &testAPI{t: t, server: srv, h: h}
}

func (a *testAPI) token(claims map[string]interface{}) string {
	a.t.Helper()
	_, tok, err := a.h.TokenAuth().Encode(claims)
	require.NoError(a.t, err)
	return tok
}

func (a *testAPI) admin() string {
	return a.token(map[string]interface{}{"sub": "1", "role": "ADMIN", "name": "Host"})
}

func (a *testAPI) player(sub string) string {
	return a.token(map[string]interface{}{"sub": sub, "name": "Player " + sub, "email": sub + "@example.com"})
}

func (a *testAPI) do(method, path, token string, body interface{}) (int, apiResponse) {
	a.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(a.t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, a.server.URL+path, &buf)
	require.NoError(a.t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	res, err := http.DefaultClient.Do(req)
	require.NoError(a.t, err)
	defer res.Body.Close()

	var out apiResponse
	if res.Header.Get("Content-Type") == "application/json" {
		require.NoError(a.t, json.NewDecoder(res.Body).Decode(&out))
	}
	return res.StatusCode, out
}

func TestHealth(t *testing.T) {
	api := newAPI(t)
	code, body := api.do(http.MethodGet, "/v1/health", "", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body.Message, "8080")
}

func TestAuth(t *testing.T) {
	api := newAPI(t)

	code, _ := api.do(http.MethodGet, "/v1/rooms", "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)

	code, body := api.do(http.MethodGet, "/v1/rooms", api.token(map[string]interface{}{"sub": "alice"}), nil)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "unauthorized", body.Error)

	code, body = api.do(http.MethodPost, "/v1/rooms", api.player("2"), map[string]string{"name": "mine"})
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, "forbidden", body.Error)

	code, body = api.do(http.MethodGet, "/v1/me", api.player("2"), nil)
	require.Equal(t, http.StatusOK, code)
	var me struct {
		ID    int64  `json:"id"`
		Name  string `json:"name"`
		Email string `json:"email"`
		Role  string `json:"role"`
	}
	require.NoError(t, json.Unmarshal(body.Data, &me))
	assert.Equal(t, int64(2), me.ID)
	assert.Equal(t, "Player 2", me.Name)
	assert.Equal(t, "PLAYER", me.Role)

	code, _ = api.do(http.MethodGet, "/v1/admin/users", api.player("2"), nil)
	assert.Equal(t, http.StatusForbidden, code)
	code, body = api.do(http.MethodGet, "/v1/admin/users", api.admin(), nil)
	assert.Equal(t, http.StatusOK, code)
	var users []json.RawMessage
	require.NoError(t, json.Unmarshal(body.Data, &users))
	assert.Len(t, users, 2)
}

func TestRoomFlow(t *testing.T) {
	api := newAPI(t)
	admin, player := api.admin(), api.player("7")

	code, body := api.do(http.MethodPost, "/v1/rooms", admin, map[string]interface{}{"name": "Office", "prize": "Cake", "code": "cake1"})
	require.Equal(t, http.StatusCreated, code, body.Message)
	var room struct {
		Code   string `json:"code"`
		Status string `json:"status"`
		Prize  string `json:"prize"`
	}
	require.NoError(t, json.Unmarshal(body.Data, &room))
	assert.Equal(t, "CAKE1", room.Code)
	assert.Equal(t, "WAITING", room.Status)
	assert.Equal(t, "Cake", room.Prize)

	code, body = api.do(http.MethodPost, "/v1/rooms", admin, map[string]interface{}{"name": "Again", "code": "CAKE1"})
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "conflict", body.Error)

	code, body = api.do(http.MethodPost, "/v1/rooms/CAKE1/join", player, nil)
	require.Equal(t, http.StatusOK, code, body.Message)
	var joined struct {
		Room struct {
			IsParticipating bool `json:"isParticipating"`
			PlayersCount    int  `json:"playersCount"`
		} `json:"room"`
		Card struct {
			Cells []bingo.Cell `json:"cells"`
		} `json:"card"`
	}
	require.NoError(t, json.Unmarshal(body.Data, &joined))
	assert.True(t, joined.Room.IsParticipating)
	assert.Equal(t, 1, joined.Room.PlayersCount)
	require.Len(t, joined.Card.Cells, bingo.GridSize)

	code, body = api.do(http.MethodPost, "/v1/rooms/CAKE1/mark", player, map[string]interface{}{"position": 25, "marked": true})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "validation", body.Error)

	code, _ = api.do(http.MethodPost, "/v1/rooms/CAKE1/mark", player, map[string]interface{}{"position": 3})
	assert.Equal(t, http.StatusBadRequest, code)

	code, body = api.do(http.MethodPost, "/v1/rooms/CAKE1/mark", player, map[string]interface{}{"position": 3, "marked": true})
	require.Equal(t, http.StatusOK, code, body.Message)
	var cell bingo.Cell
	require.NoError(t, json.Unmarshal(body.Data, &cell))
	assert.True(t, cell.Marked)
	assert.Equal(t, joined.Card.Cells[3].Value, cell.Value)

	code, _ = api.do(http.MethodPost, "/v1/rooms/CAKE1/draw", player, nil)
	assert.Equal(t, http.StatusForbidden, code)

	code, body = api.do(http.MethodPost, "/v1/rooms/CAKE1/draw", admin, nil)
	require.Equal(t, http.StatusOK, code, body.Message)

	code, body = api.do(http.MethodPost, "/v1/rooms/CAKE1/claim", player, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	assert.Equal(t, "invalid_claim", body.Error)

	code, body = api.do(http.MethodGet, "/v1/rooms/cake1", player, nil)
	require.Equal(t, http.StatusOK, code)
	var detail struct {
		Room struct {
			Status string `json:"status"`
		} `json:"room"`
		Draws []struct {
			Number int `json:"number"`
		} `json:"draws"`
		Card *struct{} `json:"card"`
	}
	require.NoError(t, json.Unmarshal(body.Data, &detail))
	assert.Equal(t, "RUNNING", detail.Room.Status)
	assert.Len(t, detail.Draws, 1)
	assert.NotNil(t, detail.Card)

	code, _ = api.do(http.MethodPost, "/v1/rooms/CAKE1/close", admin, nil)
	require.Equal(t, http.StatusOK, code)

	code, body = api.do(http.MethodPost, "/v1/rooms/CAKE1/close", admin, nil)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "conflict", body.Error)

	code, _ = api.do(http.MethodPost, "/v1/rooms/CAKE1/draw", admin, nil)
	assert.Equal(t, http.StatusConflict, code)

	code, body = api.do(http.MethodGet, "/v1/me/history", player, nil)
	require.Equal(t, http.StatusOK, code)
	var history []struct {
		Code string `json:"code"`
		Won  bool   `json:"won"`
	}
	require.NoError(t, json.Unmarshal(body.Data, &history))
	require.Len(t, history, 1)
	assert.False(t, history[0].Won)

	code, body = api.do(http.MethodPost, "/v1/rooms/NOPE/join", player, nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "not_found", body.Error)
}

func TestCreateRoomRejectsBadBody(t *testing.T) {
	api := newAPI(t)
	req, err := http.NewRequest(http.MethodPost, api.server.URL+"/v1/rooms", bytes.NewBufferString("{not json"))
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+api.admin())
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
}
