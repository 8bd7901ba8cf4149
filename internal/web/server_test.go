package web

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hemo-board/internal/board"
	"hemo-board/internal/identity"
	"hemo-board/internal/metrics"
	"hemo-board/internal/model"
	"hemo-board/internal/store"
)

var fixedNow = time.Date(2025, 3, 5, 10, 0, 0, 0, time.UTC)

type harness struct {
	t    *testing.T
	mem  *store.Memory
	srv  *Server
	ts   *httptest.Server
	tok  *identity.Tokens
	mail *captureMailer
}

type sentMail struct {
	to, subject, body string
}

type captureMailer struct {
	mu   sync.Mutex
	sent []sentMail
}

func (m *captureMailer) Send(to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMail{to: to, subject: subject, body: body})
	return nil
}

func (m *captureMailer) last(t *testing.T) sentMail {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	require.NotEmpty(t, m.sent, "expected a login mail")
	return m.sent[len(m.sent)-1]
}

func newHarness(t *testing.T, authMode, user string) *harness {
	t.Helper()
	mem := store.NewMemory()
	ctx := context.Background()
	require.NoError(t, mem.UpsertProfile(ctx, model.Profile{UserID: "u-ed", Email: "ed@hosp.es", Role: model.RoleEditor}))
	require.NoError(t, mem.UpsertProfile(ctx, model.Profile{UserID: "u-view", Email: "view@hosp.es", Role: model.RoleViewer}))

	reg := prometheus.NewRegistry()
	sink, err := metrics.NewPromSink(reg)
	require.NoError(t, err)
	tok := identity.NewTokens("test-secret", time.Hour)
	mail := &captureMailer{}

	srv, err := NewServer(ServerConfig{
		Addr:     "127.0.0.1:0",
		AuthMode: authMode,
		Backend:  mem,
		Service:  board.NewService(mem, board.Options{Increment: 10, Metrics: sink}),
		Identity: identity.NewSession(mem, user),
		Tokens:   tok,
		Mailer:   mail,
		Gatherer: reg,
		Now:      func() time.Time { return fixedNow },
	})
	require.NoError(t, err)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		srv.Close()
		ts.Close()
		_ = mem.Close()
	})
	return &harness{t: t, mem: mem, srv: srv, ts: ts, tok: tok, mail: mail}
}

func (h *harness) do(method, path, token string, body any) (*http.Response, []byte) {
	h.t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(h.t, err)
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, h.ts.URL+path, rd)
	require.NoError(h.t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(h.t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(h.t, err)
	return resp, raw
}

func decodeData[T any](t *testing.T, raw []byte) T {
	t.Helper()
	var env struct {
		Data T `json:"data"`
	}
	require.NoError(t, json.Unmarshal(raw, &env), string(raw))
	return env.Data
}

func (h *harness) addCard(name string, row model.Row, token string) model.Card {
	h.t.Helper()
	resp, raw := h.do(http.MethodPost, "/api/cards", token, model.CardDraft{Name: name, Proc: model.ProcICP, Day: "2025-03-03", Row: row})
	require.Equal(h.t, http.StatusCreated, resp.StatusCode, string(raw))
	return decodeData[model.Card](h.t, raw)
}

type weekCell struct {
	Day   string       `json:"day"`
	Row   model.Row    `json:"row"`
	Cards []model.Card `json:"cards"`
}

func (h *harness) cell(query string, day string, row model.Row) []string {
	h.t.Helper()
	resp, raw := h.do(http.MethodGet, "/api/weeks/2025-03-03"+query, "", nil)
	require.Equal(h.t, http.StatusOK, resp.StatusCode, string(raw))
	data := decodeData[struct {
		Grid struct {
			Cells []weekCell `json:"cells"`
		} `json:"grid"`
	}](h.t, raw)
	var names []string
	for _, c := range data.Grid.Cells {
		if c.Day == day && c.Row == row {
			for _, card := range c.Cards {
				names = append(names, card.Name)
			}
		}
	}
	return names
}

func TestHealth(t *testing.T) {
	h := newHarness(t, "none", "u-ed")
	resp, raw := h.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok\n", string(raw))
}

func TestNewServerValidatesConfig(t *testing.T) {
	mem := store.NewMemory()
	defer mem.Close()
	svc := board.NewService(mem, board.Options{})
	_, err := NewServer(ServerConfig{Addr: "", Backend: mem, Service: svc})
	assert.Error(t, err)
	_, err = NewServer(ServerConfig{Addr: ":0", AuthMode: "magic", Backend: mem, Service: svc})
	assert.Error(t, err)
	_, err = NewServer(ServerConfig{Addr: ":0", AuthMode: "token", Backend: mem, Service: svc})
	assert.Error(t, err)
	_, err = NewServer(ServerConfig{Addr: ":0", AuthMode: "token", Backend: mem, Service: svc, Tokens: identity.NewTokens("s", time.Hour)})
	assert.ErrorContains(t, err, "mailer")
}

func TestCreateMoveAndSearch(t *testing.T) {
	h := newHarness(t, "none", "u-ed")
	h.addCard("A", model.RowSala1, "")
	b := h.addCard("B", model.RowSala1, "")
	h.addCard("C", model.RowSala1, "")

	resp, raw := h.do(http.MethodPost, "/api/cards/"+b.ID+"/move", "", map[string]string{"dir": "up"})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))
	res := decodeData[board.MoveResult](t, raw)
	assert.True(t, res.Moved)
	assert.Equal(t, 3, res.Writes)

	assert.Equal(t, []string{"B", "A", "C"}, h.cell("", "2025-03-03", model.RowSala1))
	assert.Equal(t, []string{"B"}, h.cell("?q=b", "2025-03-03", model.RowSala1))
	// "c" also matches the ICP procedure of every card.
	assert.Equal(t, []string{"B", "A", "C"}, h.cell("?q=c", "2025-03-03", model.RowSala1))

	d := h.addCard("D", model.RowSala1, "")
	assert.Equal(t, int64(40), d.Ord)
}

func TestMoveLeftWrapsInCardWeek(t *testing.T) {
	h := newHarness(t, "none", "u-ed")
	c := h.addCard("A", model.RowSala2, "")
	resp, raw := h.do(http.MethodPost, "/api/cards/"+c.ID+"/move", "", map[string]string{"dir": "left"})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))
	res := decodeData[board.MoveResult](t, raw)
	assert.Equal(t, "2025-03-07", res.Card.Day)

	resp, raw = h.do(http.MethodPost, "/api/cards/"+c.ID+"/move", "", map[string]string{"dir": "row-up"})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))
	res = decodeData[board.MoveResult](t, raw)
	assert.Equal(t, model.RowSala1, res.Card.Row)

	resp, _ = h.do(http.MethodPost, "/api/cards/"+c.ID+"/move", "", map[string]string{"dir": "sideways"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestErrorsMapToStatus(t *testing.T) {
	h := newHarness(t, "none", "u-ed")
	resp, raw := h.do(http.MethodPost, "/api/cards", "", model.CardDraft{Proc: "Bypass", Day: "2025-03-03", Row: model.RowSala1})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, string(raw), "unknown procedure")

	resp, _ = h.do(http.MethodDelete, "/api/cards/missing", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = h.do(http.MethodGet, "/api/weeks/not-a-date", "", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestViewerIsForbidden(t *testing.T) {
	h := newHarness(t, "none", "view@hosp.es")
	resp, raw := h.do(http.MethodPost, "/api/cards", "", model.CardDraft{Proc: model.ProcICP, Day: "2025-03-03", Row: model.RowSala1})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Contains(t, string(raw), `"error"`)

	resp, _ = h.do(http.MethodGet, "/api/weeks/2025-03-03", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, raw = h.do(http.MethodGet, "/api/me", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	me := decodeData[struct {
		Role    model.Role `json:"role"`
		CanEdit bool       `json:"canEdit"`
	}](t, raw)
	assert.Equal(t, model.RoleViewer, me.Role)
	assert.False(t, me.CanEdit)
}

func TestTokenAuth(t *testing.T) {
	h := newHarness(t, "token", "")

	resp, _ := h.do(http.MethodPost, "/api/login", "", map[string]string{"email": "nobody@hosp.es"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, raw := h.do(http.MethodPost, "/api/login", "", map[string]string{"email": "ED@hosp.es"})
	require.Equal(t, http.StatusAccepted, resp.StatusCode, string(raw))
	assert.NotContains(t, string(raw), `"token"`, "the session token only travels by mail")

	mail := h.mail.last(t)
	assert.Equal(t, "ed@hosp.es", mail.to)
	link, err := url.Parse(mail.body)
	require.NoError(t, err)
	assert.Equal(t, "/api/login/verify", link.Path)
	magic := link.Query().Get("token")
	require.NotEmpty(t, magic)

	resp, _ = h.do(http.MethodPost, "/api/cards", magic, model.CardDraft{Proc: model.ProcICP, Day: "2025-03-03", Row: model.RowSala1})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, "a login link is not a session")

	resp, raw = h.do(http.MethodGet, "/api/login/verify?token="+url.QueryEscape(magic), "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))
	login := decodeData[loginResponse](t, raw)
	assert.Equal(t, model.RoleEditor, login.Role)
	assert.Equal(t, "u-ed", login.User.ID)

	resp, _ = h.do(http.MethodPost, "/api/cards", "", model.CardDraft{Proc: model.ProcICP, Day: "2025-03-03", Row: model.RowSala1})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, "anonymous writes need sign in")

	resp, _ = h.do(http.MethodGet, "/api/weeks/2025-03-03", "tampered."+login.Token, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	c := h.addCard("A", model.RowSala3, login.Token)
	require.NotNil(t, c.CreatedBy)
	assert.Equal(t, "u-ed", *c.CreatedBy)
}

func TestVerifyRejectsSessionAndGarbage(t *testing.T) {
	h := newHarness(t, "token", "")
	session, _, err := h.tok.Issue("u-ed")
	require.NoError(t, err)

	resp, _ := h.do(http.MethodPost, "/api/login/verify", "", map[string]string{"token": session})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = h.do(http.MethodGet, "/api/login/verify?token=garbage", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = h.do(http.MethodGet, "/api/login/verify", "", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestViewerMoveDoesNotRevealCards(t *testing.T) {
	h := newHarness(t, "none", "view@hosp.es")
	resp, raw := h.do(http.MethodPost, "/api/cards/missing/move", "", map[string]string{"dir": "left"})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode, string(raw))

	c, err := h.mem.Insert(context.Background(), model.Card{Name: "x", Proc: model.ProcICP, Day: "2025-03-03", Row: model.RowSala1, Ord: 10})
	require.NoError(t, err)
	resp, raw = h.do(http.MethodPost, "/api/cards/"+c.ID+"/move", "", map[string]string{"dir": "right"})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode, string(raw))
}

func TestLoginDisabledWithoutTokenMode(t *testing.T) {
	h := newHarness(t, "none", "u-ed")
	resp, _ := h.do(http.MethodPost, "/api/login", "", map[string]string{"email": "ed@hosp.es"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestEditToggleDeleteAndDetail(t *testing.T) {
	h := newHarness(t, "none", "u-ed")
	c := h.addCard("Ana", model.RowSala1, "")

	resp, raw := h.do(http.MethodPatch, "/api/cards/"+c.ID, "", map[string]string{"dx": "angor **inestable**"})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))

	resp, raw = h.do(http.MethodGet, "/api/cards/"+c.ID, "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	detail := decodeData[cardResponse](t, raw)
	assert.Equal(t, "angor **inestable**", detail.Card.Dx)
	assert.Contains(t, detail.HTML, "<strong>inestable</strong>")

	resp, raw = h.do(http.MethodPost, "/api/cards/"+c.ID+"/toggle-done", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, decodeData[model.Card](t, raw).Done)

	resp, _ = h.do(http.MethodPatch, "/api/cards/"+c.ID, "", map[string]string{"day": "2025-03-04"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = h.do(http.MethodDelete, "/api/cards/"+c.ID, "", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestExportCSV(t *testing.T) {
	h := newHarness(t, "none", "u-ed")
	h.addCard("Ana", model.RowSala1, "")
	resp, raw := h.do(http.MethodGet, "/api/weeks/2025-03-05/export.csv", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, `attachment; filename="pizarra_2025-03-03_a_2025-03-07.csv"`, resp.Header.Get("Content-Disposition"))
	assert.Contains(t, string(raw), "2025-03-03,Sala 1,1,Ana")
}

func TestMetricsEndpoint(t *testing.T) {
	h := newHarness(t, "none", "u-ed")
	h.addCard("Ana", model.RowSala1, "")
	resp, raw := h.do(http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(raw), `board_actions_total{action="add",result="ok"} 1`)
}

func TestWebsocketPushesChanges(t *testing.T) {
	h := newHarness(t, "none", "u-ed")
	url := "ws" + strings.TrimPrefix(h.ts.URL, "http") + "/api/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	var ev wsEvent
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, "hello", ev.Type)

	require.Eventually(t, func() bool { return h.srv.hub.count() == 1 }, time.Second, 5*time.Millisecond)
	_, err = h.mem.Insert(context.Background(), model.Card{Name: "x", Day: "2025-03-03", Row: model.RowSala1, Ord: 1})
	require.NoError(t, err)

	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, "changed", ev.Type)
}
