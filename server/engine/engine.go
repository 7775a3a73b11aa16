package engine

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

var (
	ErrAlreadySelected      = errors.New("a card was already selected this round")
	ErrInsufficientMp       = errors.New("not enough mana for that card")
	ErrCardNotInHand        = errors.New("card is not in the current hand")
	ErrNotAwaitingSelection = errors.New("match is not awaiting a selection")
	ErrPassNotAllowed       = errors.New("cannot pass while a card is affordable")
	ErrInvalidRules         = errors.New("invalid rules")
)

// RejectReason maps a selection error to its wire name, or "" for other errors.
func RejectReason(err error) string {
	switch {
	case errors.Is(err, ErrAlreadySelected):
		return "already_selected"
	case errors.Is(err, ErrInsufficientMp):
		return "insufficient_mp"
	case errors.Is(err, ErrCardNotInHand):
		return "card_not_in_hand"
	case errors.Is(err, ErrNotAwaitingSelection):
		return "not_awaiting_selection"
	case errors.Is(err, ErrPassNotAllowed):
		return "pass_not_allowed"
	}
	return ""
}

type Config struct {
	Rules     Rules
	Rand      Rand      // dealing; required
	Policy    Policy    // opponent; defaults to RandomPolicy over Rand
	Scheduler Scheduler // defaults to Immediate

	SelectionDelay time.Duration // both selections in -> resolution
	NextRoundDelay time.Duration // resolution -> next deal
}

func (r Rules) Validate() error {
	if r.MaxHp <= 0 || r.MaxMp <= 0 {
		return fmt.Errorf("%w: max hp and max mp must be positive", ErrInvalidRules)
	}
	if r.StartDistance < 0 || r.MpRegenPerRound < 0 || r.HealAmount < 0 || r.RestoreMpAmount < 0 || r.BlockThreshold < 0 {
		return fmt.Errorf("%w: amounts must not be negative", ErrInvalidRules)
	}
	if r.HandSize <= 0 || 2*r.HandSize > len(catalog) {
		return fmt.Errorf("hand size %d: %w", r.HandSize, ErrCatalogExhausted)
	}
	return nil
}

// Match is the round controller. It owns all match state; callers interact
// through the exported methods, which are safe for concurrent use. Callbacks
// run after the internal lock is released.
type Match struct {
	mu  sync.Mutex
	cfg Config
	gen uint64 // bumped on restart; stale scheduled steps check it

	player   *Combatant
	opponent *Combatant
	distance int
	round    int
	phase    Phase
	verdict  Verdict

	hands        Hands
	playerPick   *SkillCard
	opponentPick *SkillCard

	onStarted  []func(Hands, Snapshot)
	onResolved []func([]Event, Snapshot)
	onOver     []func(Verdict)
}

// NewMatch validates the rules, builds fresh state and deals round 1.
func NewMatch(cfg Config) (*Match, error) {
	if err := cfg.Rules.Validate(); err != nil {
		return nil, err
	}
	if cfg.Rand == nil {
		return nil, errors.New("engine: Config.Rand is required")
	}
	if cfg.Policy == nil {
		cfg.Policy = RandomPolicy{Rand: cfg.Rand}
	}
	if cfg.Scheduler == nil {
		cfg.Scheduler = Immediate{}
	}
	m := &Match{cfg: cfg}
	m.mu.Lock()
	m.resetLocked()
	m.mu.Unlock()
	return m, nil
}

// OnRoundStarted registers fn to receive every new deal.
func (m *Match) OnRoundStarted(fn func(Hands, Snapshot)) {
	m.mu.Lock()
	m.onStarted = append(m.onStarted, fn)
	m.mu.Unlock()
}

// OnRoundResolved registers fn to receive each round's ordered events and
// the post-resolution snapshot.
func (m *Match) OnRoundResolved(fn func([]Event, Snapshot)) {
	m.mu.Lock()
	m.onResolved = append(m.onResolved, fn)
	m.mu.Unlock()
}

func (m *Match) OnMatchOver(fn func(Verdict)) {
	m.mu.Lock()
	m.onOver = append(m.onOver, fn)
	m.mu.Unlock()
}

// Restart discards the whole match state and begins round 1.
func (m *Match) Restart() {
	m.mu.Lock()
	m.gen++
	notify := m.resetLocked()
	m.mu.Unlock()
	notify()
}

// Hands returns the current deal.
func (m *Match) Hands() Hands {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Hands{
		Player:   append([]SkillCard(nil), m.hands.Player...),
		Opponent: append([]SkillCard(nil), m.hands.Opponent...),
	}
}

func (m *Match) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

// State is a consistent read of the deal, the public snapshot and the
// player's pending card, all taken under one lock.
type State struct {
	Hands      Hands
	Snapshot   Snapshot
	PlayerPick *SkillCard
}

func (m *Match) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := State{
		Hands: Hands{
			Player:   append([]SkillCard(nil), m.hands.Player...),
			Opponent: append([]SkillCard(nil), m.hands.Opponent...),
		},
		Snapshot: m.snapshotLocked(),
	}
	if m.playerPick != nil {
		pick := *m.playerPick
		st.PlayerPick = &pick
	}
	return st
}

// SelectPlayerCard records the player's choice for the current round. A
// rejected selection leaves the match untouched.
func (m *Match) SelectPlayerCard(cardID int) error {
	m.mu.Lock()
	if err := m.checkSelectableLocked(); err != nil {
		m.mu.Unlock()
		return err
	}
	card, ok := handContains(m.hands.Player, cardID)
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("card %d: %w", cardID, ErrCardNotInHand)
	}
	if !m.player.CanAfford(card) {
		m.mu.Unlock()
		return fmt.Errorf("card %d costs %d, have %d: %w", cardID, card.MpCost, m.player.Mp, ErrInsufficientMp)
	}
	m.playerPick = &card
	gen := m.gen
	m.mu.Unlock()

	m.cfg.Scheduler.After(m.cfg.SelectionDelay, func() { m.resolve(gen) })
	return nil
}

// Pass submits the first dealt card when nothing in hand is affordable; the
// card then fails its mana gate during resolution.
func (m *Match) Pass() error {
	m.mu.Lock()
	if err := m.checkSelectableLocked(); err != nil {
		m.mu.Unlock()
		return err
	}
	if len(Affordable(m.hands.Player, m.player.Mp)) > 0 {
		m.mu.Unlock()
		return ErrPassNotAllowed
	}
	card := m.hands.Player[0]
	m.playerPick = &card
	gen := m.gen
	m.mu.Unlock()

	m.cfg.Scheduler.After(m.cfg.SelectionDelay, func() { m.resolve(gen) })
	return nil
}

func (m *Match) checkSelectableLocked() error {
	if m.phase != AwaitingSelections {
		return fmt.Errorf("phase %s: %w", m.phase, ErrNotAwaitingSelection)
	}
	if m.playerPick != nil {
		return ErrAlreadySelected
	}
	return nil
}

func (m *Match) resetLocked() func() {
	r := m.cfg.Rules
	m.player = NewCombatant(r.PlayerName, Player, r.MaxHp, r.MaxMp)
	m.opponent = NewCombatant(r.OpponentName, Opponent, r.MaxHp, r.MaxMp)
	m.distance = r.StartDistance
	m.round = 0
	m.verdict = NoVerdict
	return m.startRoundLocked()
}

// startRoundLocked runs Dealing and leaves the match in AwaitingSelections
// with the opponent's choice already made.
func (m *Match) startRoundLocked() func() {
	m.phase = Dealing
	m.round++
	m.player.RestoreMp(m.cfg.Rules.MpRegenPerRound)
	m.opponent.RestoreMp(m.cfg.Rules.MpRegenPerRound)

	hands, err := Deal(m.cfg.Rand, m.cfg.Rules.HandSize)
	if err != nil {
		// Rules were validated in NewMatch; reaching this is a programming error.
		panic(err)
	}
	m.hands = hands
	m.playerPick = nil
	pick := m.cfg.Policy.Choose(hands.Opponent, m.opponent.Mp)
	m.opponentPick = &pick
	m.phase = AwaitingSelections

	dealt := Hands{
		Player:   append([]SkillCard(nil), hands.Player...),
		Opponent: append([]SkillCard(nil), hands.Opponent...),
	}
	snap := m.snapshotLocked()
	subs := append([]func(Hands, Snapshot){}, m.onStarted...)
	return func() {
		for _, fn := range subs {
			fn(dealt, snap)
		}
	}
}

// resolve is the single entry to Resolving. Stale or duplicate calls are no-ops.
func (m *Match) resolve(gen uint64) {
	m.mu.Lock()
	if gen != m.gen || m.phase != AwaitingSelections || m.playerPick == nil || m.opponentPick == nil {
		m.mu.Unlock()
		return
	}
	m.phase = Resolving
	res := Resolve(m.cfg.Rules, m.player, m.opponent, *m.playerPick, *m.opponentPick, m.distance)
	m.distance = res.Distance
	m.phase = RoundComplete

	verdict, over := Evaluate(m.player, m.opponent)
	if over {
		m.phase = MatchOver
		m.verdict = verdict
	}
	snap := m.snapshotLocked()
	resolved := append([]func([]Event, Snapshot){}, m.onResolved...)
	overSubs := append([]func(Verdict){}, m.onOver...)
	m.mu.Unlock()

	for _, fn := range resolved {
		fn(res.Events, snap)
	}
	if over {
		for _, fn := range overSubs {
			fn(verdict)
		}
		return
	}
	m.cfg.Scheduler.After(m.cfg.NextRoundDelay, func() { m.nextRound(gen) })
}

func (m *Match) nextRound(gen uint64) {
	m.mu.Lock()
	if gen != m.gen || m.phase != RoundComplete {
		m.mu.Unlock()
		return
	}
	notify := m.startRoundLocked()
	m.mu.Unlock()
	notify()
}

func (m *Match) snapshotLocked() Snapshot {
	return Snapshot{
		Round:    m.round,
		Phase:    m.phase,
		Distance: m.distance,
		Player:   m.player.View(),
		Opponent: m.opponent.View(),
		Verdict:  m.verdict,

		Generation: m.gen,
	}
}
