package session

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"skill-duel/server/agent"
	"skill-duel/server/engine"
	"skill-duel/server/store"
)

type fakeRecorder struct {
	mu       sync.Mutex
	nextID   int64
	created  []int64
	rounds   map[int64][]int
	verdicts map[int64]engine.Verdict
}

func newFakeRecorder() *fakeRecorder {
	return &fakeRecorder{rounds: map[int64][]int{}, verdicts: map[int64]engine.Verdict{}}
}

func (f *fakeRecorder) CreateMatch(_ context.Context, _ uuid.UUID, _ engine.Rules, _ int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	f.created = append(f.created, f.nextID)
	return f.nextID, nil
}

func (f *fakeRecorder) InsertRound(_ context.Context, id int64, rec store.RoundRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rounds[id] = append(f.rounds[id], rec.Round)
	return nil
}

func (f *fakeRecorder) CompleteMatch(_ context.Context, id int64, v engine.Verdict) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.verdicts[id] = v
	return nil
}

func newTestManager(rules engine.Rules, rec Recorder) *Manager {
	opts := Options{
		Rules:     rules,
		Scheduler: engine.Immediate{},
		Seeds:     engine.NewSeedStream(99),
	}
	if rec != nil {
		opts.Recorder = rec
	}
	return NewManager(opts)
}

func drain(sub *Subscriber) []Message {
	var out []Message
	for {
		select {
		case b, ok := <-sub.Send:
			if !ok {
				return out
			}
			var m Message
			if err := json.Unmarshal(b, &m); err == nil {
				out = append(out, m)
			}
		default:
			return out
		}
	}
}

func types(msgs []Message) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.Type
	}
	return out
}

// bestMove picks the hardest in-range hit, else anything affordable, else -1.
func bestMove(o agent.Observation) int {
	best, bestDmg := -1, -1
	for _, c := range o.Hand {
		if !c.Affordable {
			continue
		}
		dmg := c.Damage
		if c.Range < o.Snapshot.Distance {
			dmg = 0
		}
		if dmg > bestDmg {
			best, bestDmg = c.ID, dmg
		}
	}
	return best
}

func TestCreateAndSelectBroadcasts(t *testing.T) {
	rec := newFakeRecorder()
	m := newTestManager(engine.DefaultRules(), rec)
	s, err := m.Create()
	require.NoError(t, err)

	got, err := m.Get(s.ID)
	require.NoError(t, err)
	assert.Same(t, s, got)

	sub, obs, err := s.Subscribe()
	require.NoError(t, err)
	assert.Equal(t, 1, obs.Snapshot.Round)
	assert.True(t, obs.CanSelect)

	after, err := m.Select(s.ID, bestMove(obs))
	require.NoError(t, err)
	assert.Equal(t, 2, after.Snapshot.Round)

	msgs := drain(sub)
	assert.Equal(t, []string{MsgRoundResolved, MsgRoundStarted, MsgObservation}, types(msgs))
	assert.Len(t, msgs[0].Log, 4)

	require.NoError(t, m.Delete(s.ID))
	_, ok := <-sub.Send
	assert.False(t, ok, "subscriber channel closes on delete")

	rec.mu.Lock()
	defer rec.mu.Unlock()
	require.Len(t, rec.created, 1)
	assert.Equal(t, []int{1}, rec.rounds[rec.created[0]])
}

func TestSelectErrors(t *testing.T) {
	m := newTestManager(engine.DefaultRules(), nil)
	_, err := m.Select(uuid.New(), 1)
	assert.ErrorIs(t, err, ErrNotFound)

	s, err := m.Create()
	require.NoError(t, err)

	inHand := map[int]bool{}
	for _, c := range s.Match.Hands().Player {
		inHand[c.ID] = true
	}
	missing := 0
	for _, c := range engine.Catalog() {
		if !inHand[c.ID] {
			missing = c.ID
			break
		}
	}
	_, err = m.Select(s.ID, missing)
	assert.ErrorIs(t, err, engine.ErrCardNotInHand)

	_, err = m.Pass(s.ID)
	assert.ErrorIs(t, err, engine.ErrPassNotAllowed)

	assert.ErrorIs(t, m.Delete(uuid.New()), ErrNotFound)
}

func TestPlayToVerdictIsArchived(t *testing.T) {
	rules := engine.DefaultRules()
	rules.MaxHp = 1
	rules.StartDistance = 0
	rec := newFakeRecorder()
	m := newTestManager(rules, rec)
	s, err := m.Create()
	require.NoError(t, err)

	for i := 0; i < 200 && s.Match.Snapshot().Phase != engine.MatchOver; i++ {
		obs := s.Observation()
		if id := bestMove(obs); id >= 0 {
			_, err = m.Select(s.ID, id)
		} else {
			_, err = m.Pass(s.ID)
		}
		require.NoError(t, err)
	}
	snap := s.Match.Snapshot()
	require.Equal(t, engine.MatchOver, snap.Phase)

	obs := s.Observation()
	assert.False(t, obs.CanSelect)
	assert.False(t, obs.CanPass)

	m.Close()
	assert.Zero(t, m.Len())

	rec.mu.Lock()
	defer rec.mu.Unlock()
	id := rec.created[0]
	assert.Equal(t, snap.Verdict, rec.verdicts[id])
	assert.Len(t, rec.rounds[id], snap.Round)
}

func TestRestartOpensNewArchiveRow(t *testing.T) {
	rec := newFakeRecorder()
	m := newTestManager(engine.DefaultRules(), rec)
	s, err := m.Create()
	require.NoError(t, err)

	_, err = m.Select(s.ID, bestMove(s.Observation()))
	require.NoError(t, err)

	obs, err := m.Restart(s.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, obs.Snapshot.Round)
	assert.Equal(t, 10, obs.Snapshot.Player.Hp)

	require.NoError(t, m.Delete(s.ID))
	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.Len(t, rec.created, 2)
}

func TestStaleRoundAfterRestartIsDropped(t *testing.T) {
	rec := newFakeRecorder()
	m := newTestManager(engine.DefaultRules(), rec)
	s, err := m.Create()
	require.NoError(t, err)
	before := s.Match.Snapshot()

	_, err = m.Restart(s.ID)
	require.NoError(t, err)
	sub, _, err := s.Subscribe()
	require.NoError(t, err)

	// a resolution from the first generation arriving after the restart
	stale := before
	stale.Phase = engine.MatchOver
	stale.Verdict = engine.PlayerWins
	s.roundResolved(nil, stale)
	assert.Empty(t, drain(sub))

	current := s.Match.Snapshot()
	assert.Equal(t, uint64(1), current.Generation)
	s.roundStarted(s.Match.Hands(), current)
	assert.Equal(t, []string{MsgRoundStarted}, types(drain(sub)))

	require.NoError(t, m.Delete(s.ID))
	rec.mu.Lock()
	defer rec.mu.Unlock()
	require.Len(t, rec.created, 2)
	assert.Empty(t, rec.rounds[rec.created[1]])
	assert.Empty(t, rec.verdicts)
}

func TestWebsocketSelectFlow(t *testing.T) {
	m := newTestManager(engine.DefaultRules(), nil)
	defer m.Close()
	s, err := m.Create()
	require.NoError(t, err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.ServeWS(w, r, s.ID)
	}))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()

	read := func() Message {
		t.Helper()
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
		var msg Message
		require.NoError(t, conn.ReadJSON(&msg))
		return msg
	}

	first := read()
	require.Equal(t, MsgObservation, first.Type)
	require.NotNil(t, first.Observation)

	require.NoError(t, conn.WriteJSON(clientMessage{Type: "bogus"}))
	rej := read()
	assert.Equal(t, MsgRejected, rej.Type)

	require.NoError(t, conn.WriteJSON(clientMessage{Type: "select", CardID: bestMove(*first.Observation)}))
	resolved := read()
	assert.Equal(t, MsgRoundResolved, resolved.Type)
	require.NotNil(t, resolved.Snapshot)
	assert.Equal(t, 1, resolved.Snapshot.Round)
}
