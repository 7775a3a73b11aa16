package session

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"skill-duel/server/engine"
	"skill-duel/server/store"
)

// Recorder is the archive a session writes to. *store.DB implements it.
type Recorder interface {
	CreateMatch(ctx context.Context, sessionID uuid.UUID, rules engine.Rules, deckSeed int64) (int64, error)
	InsertRound(ctx context.Context, matchID int64, rec store.RoundRecord) error
	CompleteMatch(ctx context.Context, matchID int64, verdict engine.Verdict) error
}

const (
	archiveQueue   = 64
	archiveTimeout = 5 * time.Second
)

type archiveJob struct {
	start   bool
	round   *store.RoundRecord
	verdict engine.Verdict
}

// archiver serialises one session's writes so rows land in round order. It
// never blocks the match: a full queue drops the job with a warning.
type archiver struct {
	rec       Recorder
	log       *zap.Logger
	sessionID uuid.UUID
	rules     engine.Rules
	seed      int64

	jobs chan archiveJob
	done chan struct{}
}

func newArchiver(rec Recorder, log *zap.Logger, sessionID uuid.UUID, rules engine.Rules, seed int64) *archiver {
	a := &archiver{
		rec:       rec,
		log:       log,
		sessionID: sessionID,
		rules:     rules,
		seed:      seed,
		jobs:      make(chan archiveJob, archiveQueue),
		done:      make(chan struct{}),
	}
	go a.run()
	return a
}

func (a *archiver) enqueue(j archiveJob) {
	select {
	case a.jobs <- j:
	default:
		a.log.Warn("archive queue full; dropping write", zap.String("session_id", a.sessionID.String()))
	}
}

// close drains queued jobs and waits for the worker.
func (a *archiver) close() {
	close(a.jobs)
	<-a.done
}

func (a *archiver) run() {
	defer close(a.done)
	var matchID int64 // 0 until the first start succeeds
	for j := range a.jobs {
		ctx, cancel := context.WithTimeout(context.Background(), archiveTimeout)
		switch {
		case j.start:
			id, err := a.rec.CreateMatch(ctx, a.sessionID, a.rules, a.seed)
			if err != nil {
				a.log.Error("archive create match", zap.Error(err))
				matchID = 0
			} else {
				matchID = id
			}
		case matchID == 0:
			// no row to attach to
		case j.round != nil:
			if err := a.rec.InsertRound(ctx, matchID, *j.round); err != nil {
				a.log.Error("archive round", zap.Int64("match_id", matchID), zap.Int("round", j.round.Round), zap.Error(err))
			}
		case j.verdict != engine.NoVerdict:
			if err := a.rec.CompleteMatch(ctx, matchID, j.verdict); err != nil {
				a.log.Error("archive verdict", zap.Int64("match_id", matchID), zap.Error(err))
			}
		}
		cancel()
	}
}
