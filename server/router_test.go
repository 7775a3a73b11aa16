package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"skill-duel/server/agent"
	"skill-duel/server/engine"
	"skill-duel/server/session"
	"skill-duel/server/store"
)

type stubArchive struct {
	rows []store.MatchSummary
	err  error
}

func (s stubArchive) RecentMatches(context.Context, int) ([]store.MatchSummary, error) {
	return s.rows, s.err
}

func newTestServer(t *testing.T, archive archiveLister) *httptest.Server {
	t.Helper()
	mgr := session.NewManager(session.Options{
		Rules:     engine.DefaultRules(),
		Scheduler: engine.Immediate{},
		Seeds:     engine.NewSeedStream(7),
	})
	srv := httptest.NewServer(Router(mgr, archive, zap.NewNop()))
	t.Cleanup(func() {
		srv.Close()
		mgr.Close()
	})
	return srv
}

func do(t *testing.T, method, url, body string) (*http.Response, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	out := map[string]any{}
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp, out
}

type created struct {
	ID          string            `json:"id"`
	Observation agent.Observation `json:"observation"`
}

func createMatch(t *testing.T, base string) created {
	t.Helper()
	resp, err := http.Post(base+"/api/matches", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var c created
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&c))
	return c
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, nil)
	resp, body := do(t, http.MethodGet, srv.URL+"/api/health", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["ok"])
}

func TestMatchLifecycle(t *testing.T) {
	srv := newTestServer(t, nil)
	c := createMatch(t, srv.URL)
	require.Len(t, c.Observation.Hand, 3)
	base := srv.URL + "/api/matches/" + c.ID

	resp, body := do(t, http.MethodGet, base, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, c.ID, body["match_id"])

	cardID := c.Observation.Hand[0].ID
	resp, body = do(t, http.MethodPost, base+"/select", `{"card_id":`+itoa(cardID)+`}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["accepted"])

	resp, _ = do(t, http.MethodPost, base+"/restart", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = do(t, http.MethodDelete, base, "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, _ = do(t, http.MethodGet, base, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSelectRejections(t *testing.T) {
	srv := newTestServer(t, nil)
	c := createMatch(t, srv.URL)
	base := srv.URL + "/api/matches/" + c.ID

	inHand := map[int]bool{}
	for _, h := range c.Observation.Hand {
		inHand[h.ID] = true
	}
	missing := 0
	for _, card := range engine.Catalog() {
		if !inHand[card.ID] {
			missing = card.ID
			break
		}
	}

	resp, body := do(t, http.MethodPost, base+"/select", `{"card_id":`+itoa(missing)+`}`)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, "card_not_in_hand", body["reason"])

	resp, body = do(t, http.MethodPost, base+"/select", `{}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "card_id is required", body["error"])

	resp, _ = do(t, http.MethodPost, srv.URL+"/api/matches/"+uuid.NewString()+"/select", `{"card_id":1}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = do(t, http.MethodPost, base+"/select", `not json`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body = do(t, http.MethodPost, base+"/pass", "")
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "pass_not_allowed", body["reason"])

	resp, _ = do(t, http.MethodGet, srv.URL+"/api/matches/not-a-uuid", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRecentMatches(t *testing.T) {
	srv := newTestServer(t, nil)
	resp, _ := do(t, http.MethodGet, srv.URL+"/api/matches/recent", "")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	srv = newTestServer(t, stubArchive{rows: []store.MatchSummary{{ID: 3, Verdict: engine.Draw, Rounds: 6}}})
	resp, body := do(t, http.MethodGet, srv.URL+"/api/matches/recent?limit=5", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	rows, ok := body["rows"].([]any)
	require.True(t, ok)
	require.Len(t, rows, 1)
	assert.Equal(t, "draw", rows[0].(map[string]any)["verdict"])

	srv = newTestServer(t, stubArchive{err: errors.New("down")})
	resp, _ = do(t, http.MethodGet, srv.URL+"/api/matches/recent", "")
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func itoa(n int) string {
	b, _ := json.Marshal(n)
	return string(b)
}
