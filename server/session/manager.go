package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"skill-duel/server/agent"
	"skill-duel/server/engine"
	"skill-duel/server/store"
)

var ErrNotFound = errors.New("match not found")

// Message is what subscribers receive.
type Message struct {
	Type        string             `json:"type"`
	Observation *agent.Observation `json:"observation,omitempty"`
	Snapshot    *engine.Snapshot   `json:"snapshot,omitempty"`
	Events      []engine.Event     `json:"events,omitempty"`
	Log         []string           `json:"log,omitempty"`
	Verdict     engine.Verdict     `json:"verdict,omitempty"`
	Reason      string             `json:"reason,omitempty"`
	Error       string             `json:"error,omitempty"`
}

const (
	MsgObservation   = "observation"
	MsgRoundStarted  = "round_started"
	MsgRoundResolved = "round_resolved"
	MsgMatchOver     = "match_over"
	MsgRejected      = "rejected"
)

type Options struct {
	Rules          engine.Rules
	Scheduler      engine.Scheduler
	SelectionDelay time.Duration
	NextRoundDelay time.Duration
	Seeds          *engine.SeedStream
	Recorder       Recorder // optional
	Logger         *zap.Logger
}

// Manager owns every live match, keyed by a random id.
type Manager struct {
	opts Options
	log  *zap.Logger

	mu       sync.Mutex
	sessions map[uuid.UUID]*Session
}

func NewManager(opts Options) *Manager {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Seeds == nil {
		opts.Seeds = engine.NewSeedStream(engine.SecureBaseSeed())
	}
	if opts.Scheduler == nil {
		opts.Scheduler = engine.TimerScheduler{}
	}
	return &Manager{opts: opts, log: opts.Logger, sessions: map[uuid.UUID]*Session{}}
}

// Session is one live match plus its subscribers.
type Session struct {
	ID    uuid.UUID
	Seed  int64
	Match *engine.Match

	log     *zap.Logger
	archive *archiver

	mu     sync.Mutex
	subs   map[*Subscriber]struct{}
	closed bool
	gen    uint64 // mirrors the match generation; bumped by Manager.Restart
}

func (m *Manager) Create() (*Session, error) {
	m.mu.Lock()
	seed := m.opts.Seeds.Next()
	m.mu.Unlock()

	match, err := engine.NewMatch(engine.Config{
		Rules:          m.opts.Rules,
		Rand:           engine.NewRand(seed),
		Scheduler:      m.opts.Scheduler,
		SelectionDelay: m.opts.SelectionDelay,
		NextRoundDelay: m.opts.NextRoundDelay,
	})
	if err != nil {
		return nil, fmt.Errorf("new match: %w", err)
	}
	s := &Session{
		ID:    uuid.New(),
		Seed:  seed,
		Match: match,
		subs:  map[*Subscriber]struct{}{},
	}
	s.log = m.log.With(zap.String("match_id", s.ID.String()))
	if m.opts.Recorder != nil {
		s.archive = newArchiver(m.opts.Recorder, s.log, s.ID, m.opts.Rules, seed)
		s.archive.enqueue(archiveJob{start: true})
	}
	s.wire()

	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()
	s.log.Info("match created", zap.Int64("seed", seed))
	return s, nil
}

// wire hooks the match callbacks into broadcasting and archiving.
func (s *Session) wire() {
	s.Match.OnRoundStarted(s.roundStarted)
	s.Match.OnRoundResolved(s.roundResolved)
}

func (s *Session) roundStarted(h engine.Hands, snap engine.Snapshot) {
	obs := agent.Observe(s.ID.String(), h.Player, snap, nil)
	s.publish(snap.Generation, Message{Type: MsgRoundStarted, Observation: &obs}, nil)
}

// roundResolved also reports the verdict, so a round and the match_over it
// caused always reach subscribers and the archive together and in order.
func (s *Session) roundResolved(events []engine.Event, snap engine.Snapshot) {
	log := make([]string, len(events))
	for i, ev := range events {
		log[i] = ev.Message()
	}
	s.log.Debug("round resolved",
		zap.Uint64("generation", snap.Generation),
		zap.Int("round", snap.Round),
		zap.Int("distance", snap.Distance),
		zap.Int("player_hp", snap.Player.Hp),
		zap.Int("opponent_hp", snap.Opponent.Hp))

	var job *archiveJob
	if s.archive != nil {
		rec, err := store.NewRoundRecord(events, snap)
		if err != nil {
			s.log.Error("build round record", zap.Error(err))
		} else {
			job = &archiveJob{round: &rec}
		}
	}
	if !s.publish(snap.Generation, Message{Type: MsgRoundResolved, Snapshot: &snap, Events: events, Log: log}, job) {
		return
	}
	if snap.Phase != engine.MatchOver {
		return
	}
	s.log.Info("match over", zap.String("verdict", string(snap.Verdict)))
	s.publish(snap.Generation, Message{Type: MsgMatchOver, Verdict: snap.Verdict}, &archiveJob{verdict: snap.Verdict})
}

// publish broadcasts msg and queues job unless gen predates the latest
// restart. The check and the queueing share one lock with Restart, so a stale
// round can never land in the replay's archive row.
func (s *Session) publish(gen uint64, msg Message, job *archiveJob) bool {
	b, err := json.Marshal(msg)
	if err != nil {
		s.log.Error("encode message", zap.Error(err))
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		s.log.Debug("stale callback dropped", zap.String("type", msg.Type), zap.Uint64("generation", gen))
		return false
	}
	s.sendLocked(msg.Type, b)
	if job != nil && s.archive != nil && !s.closed {
		s.archive.enqueue(*job)
	}
	return true
}

func (s *Session) Observation() agent.Observation {
	return agent.BuildObservation(s.ID.String(), s.Match)
}

func (m *Manager) Get(id uuid.UUID) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return s, nil
}

func (m *Manager) Select(id uuid.UUID, cardID int) (agent.Observation, error) {
	s, err := m.Get(id)
	if err != nil {
		return agent.Observation{}, err
	}
	if err := s.Match.SelectPlayerCard(cardID); err != nil {
		s.log.Debug("selection rejected", zap.Int("card_id", cardID), zap.Error(err))
		return agent.Observation{}, err
	}
	obs := s.Observation()
	s.broadcast(Message{Type: MsgObservation, Observation: &obs})
	return obs, nil
}

func (m *Manager) Pass(id uuid.UUID) (agent.Observation, error) {
	s, err := m.Get(id)
	if err != nil {
		return agent.Observation{}, err
	}
	if err := s.Match.Pass(); err != nil {
		return agent.Observation{}, err
	}
	obs := s.Observation()
	s.broadcast(Message{Type: MsgObservation, Observation: &obs})
	return obs, nil
}

// Restart resets the match and opens a new archive row for the replay.
func (m *Manager) Restart(id uuid.UUID) (agent.Observation, error) {
	s, err := m.Get(id)
	if err != nil {
		return agent.Observation{}, err
	}
	s.mu.Lock()
	s.gen++
	if s.archive != nil && !s.closed {
		s.archive.enqueue(archiveJob{start: true})
	}
	s.mu.Unlock()
	s.Match.Restart()
	s.log.Info("match restarted")
	return s.Observation(), nil
}

// Delete drops the match, disconnects its subscribers and flushes the archive.
func (m *Manager) Delete(id uuid.UUID) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return ErrNotFound
	}
	s.close()
	s.log.Info("match deleted")
	return nil
}

// Close deletes every match.
func (m *Manager) Close() {
	m.mu.Lock()
	all := make([]*Session, 0, len(m.sessions))
	for id, s := range m.sessions {
		all = append(all, s)
		delete(m.sessions, id)
	}
	m.mu.Unlock()
	for _, s := range all {
		s.close()
	}
}

func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

func (s *Session) close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	subs := s.subs
	s.subs = map[*Subscriber]struct{}{}
	arch := s.archive
	s.mu.Unlock()

	for sub := range subs {
		sub.close()
	}
	if arch != nil {
		arch.close()
	}
}

// Subscriber receives encoded messages for one session.
type Subscriber struct {
	Send chan []byte
	once sync.Once
}

func (sub *Subscriber) close() { sub.once.Do(func() { close(sub.Send) }) }

const subscriberBuffer = 64

// Subscribe registers a new listener and returns the current observation so
// the caller can render before the next push.
func (s *Session) Subscribe() (*Subscriber, agent.Observation, error) {
	sub := &Subscriber{Send: make(chan []byte, subscriberBuffer)}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, agent.Observation{}, ErrNotFound
	}
	s.subs[sub] = struct{}{}
	s.mu.Unlock()
	return sub, s.Observation(), nil
}

func (s *Session) Unsubscribe(sub *Subscriber) {
	s.mu.Lock()
	_, ok := s.subs[sub]
	delete(s.subs, sub)
	s.mu.Unlock()
	if ok {
		sub.close()
	}
}

// broadcast never blocks: a subscriber whose buffer is full misses the message.
func (s *Session) broadcast(msg Message) {
	b, err := json.Marshal(msg)
	if err != nil {
		s.log.Error("encode message", zap.Error(err))
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sendLocked(msg.Type, b)
}

func (s *Session) sendLocked(typ string, b []byte) {
	for sub := range s.subs {
		select {
		case sub.Send <- b:
		default:
			s.log.Warn("subscriber lagging; message dropped", zap.String("type", typ))
		}
	}
}
