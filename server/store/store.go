package store

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"skill-duel/server/engine"
)

//go:embed schema.sql
var schema embed.FS

// DB is the write-mostly archive of finished rounds and verdicts. Nothing in
// it is ever loaded back into a live match.
type DB struct{ *pgxpool.Pool }

func Open(ctx context.Context, dsn string) (*DB, error) {
	p, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("open pool: %w", err)
	}
	return &DB{p}, nil
}

func (db *DB) Close()                         { db.Pool.Close() }
func (db *DB) Ping(ctx context.Context) error { return db.Pool.Ping(ctx) }

func Migrate(ctx context.Context, db *DB) error {
	sqlBytes, err := schema.ReadFile("schema.sql")
	if err != nil {
		return err
	}
	_, err = db.Exec(ctx, string(sqlBytes))
	return err
}

// CreateMatch opens an archive row for one playthrough of a session. A
// restart opens a new row under the same session id.
func (db *DB) CreateMatch(ctx context.Context, sessionID uuid.UUID, rules engine.Rules, deckSeed int64) (int64, error) {
	rulesJSON, err := json.Marshal(rules)
	if err != nil {
		return 0, err
	}
	var id int64
	err = db.QueryRow(ctx, `
		INSERT INTO matches(session_id, player_name, opponent_name, rules, deck_seed)
		VALUES ($1,$2,$3,$4,$5)
		RETURNING id
	`, sessionID, rules.PlayerName, rules.OpponentName, rulesJSON, deckSeed).Scan(&id)
	return id, err
}

// RoundRecord is one resolved round as archived.
type RoundRecord struct {
	Round          int
	PlayerCardID   int
	OpponentCardID int
	Distance       int
	PlayerHp       int
	PlayerMp       int
	OpponentHp     int
	OpponentMp     int
	Events         []engine.Event
	Log            []string
}

// NewRoundRecord pulls the chosen cards out of the event stream and pairs them
// with the post-resolution snapshot.
func NewRoundRecord(events []engine.Event, snap engine.Snapshot) (RoundRecord, error) {
	rec := RoundRecord{
		Round:          snap.Round,
		PlayerCardID:   -1,
		OpponentCardID: -1,
		Distance:       snap.Distance,
		PlayerHp:       snap.Player.Hp,
		PlayerMp:       snap.Player.Mp,
		OpponentHp:     snap.Opponent.Hp,
		OpponentMp:     snap.Opponent.Mp,
		Events:         events,
		Log:            make([]string, len(events)),
	}
	for i, ev := range events {
		rec.Log[i] = ev.Message()
		if ev.Kind != engine.EventCardChosen {
			continue
		}
		if ev.Side == engine.Player {
			rec.PlayerCardID = ev.Card.ID
		} else {
			rec.OpponentCardID = ev.Card.ID
		}
	}
	if rec.PlayerCardID < 0 || rec.OpponentCardID < 0 {
		return RoundRecord{}, errors.New("round events are missing a chosen card")
	}
	return rec, nil
}

func (db *DB) InsertRound(ctx context.Context, matchID int64, rec RoundRecord) error {
	eventsJSON, err := json.Marshal(rec.Events)
	if err != nil {
		return err
	}
	tx, err := db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) // safe if already committed

	if _, err := tx.Exec(ctx, `
		INSERT INTO match_rounds(
			match_id, round, player_card_id, opponent_card_id, distance,
			player_hp, player_mp, opponent_hp, opponent_mp, events, log
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
	`, matchID, rec.Round, rec.PlayerCardID, rec.OpponentCardID, rec.Distance,
		rec.PlayerHp, rec.PlayerMp, rec.OpponentHp, rec.OpponentMp, eventsJSON, rec.Log); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `UPDATE matches SET rounds = GREATEST(rounds, $2) WHERE id = $1`, matchID, rec.Round); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (db *DB) CompleteMatch(ctx context.Context, matchID int64, verdict engine.Verdict) error {
	_, err := db.Exec(ctx, `UPDATE matches SET ended_at = now(), verdict = $2 WHERE id = $1`, matchID, string(verdict))
	return err
}

// MatchSummary is one finished match for listings.
type MatchSummary struct {
	ID           int64          `json:"id"`
	SessionID    uuid.UUID      `json:"session_id"`
	PlayerName   string         `json:"player_name"`
	OpponentName string         `json:"opponent_name"`
	Verdict      engine.Verdict `json:"verdict"`
	Rounds       int            `json:"rounds"`
	StartedAt    time.Time      `json:"started_at"`
	EndedAt      time.Time      `json:"ended_at"`
}

// RecentMatches lists finished matches, newest first.
func (db *DB) RecentMatches(ctx context.Context, limit int) ([]MatchSummary, error) {
	rows, err := db.Query(ctx, `
		SELECT id, session_id, player_name, opponent_name, verdict, rounds, started_at, ended_at
		  FROM matches
		 WHERE ended_at IS NOT NULL
		 ORDER BY ended_at DESC
		 LIMIT $1
	`, ClampLimit(limit))
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (MatchSummary, error) {
		var s MatchSummary
		var verdict string
		err := row.Scan(&s.ID, &s.SessionID, &s.PlayerName, &s.OpponentName, &verdict, &s.Rounds, &s.StartedAt, &s.EndedAt)
		s.Verdict = engine.Verdict(verdict)
		return s, err
	})
}

// ClampLimit keeps listing sizes in [1, 100], defaulting to 20.
func ClampLimit(n int) int {
	switch {
	case n <= 0:
		return 20
	case n > 100:
		return 100
	}
	return n
}
