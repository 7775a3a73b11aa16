package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"skill-duel/server/agent"
	"skill-duel/server/engine"
	"skill-duel/server/session"
	"skill-duel/server/store"
)

// archiveLister is the read side of the archive used by /api/matches/recent.
type archiveLister interface {
	RecentMatches(ctx context.Context, limit int) ([]store.MatchSummary, error)
}

// Router wires the HTTP surface. archive may be nil when no database is set.
func Router(mgr *session.Manager, archive archiveLister, log *zap.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(log))

	r.Get("/api/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "matches": mgr.Len()})
	})

	r.Route("/api/matches", func(r chi.Router) {
		r.Post("/", func(w http.ResponseWriter, r *http.Request) {
			s, err := mgr.Create()
			if err != nil {
				writeErr(w, err)
				return
			}
			writeJSON(w, http.StatusCreated, map[string]any{"id": s.ID, "observation": s.Observation()})
		})

		// Registered before /{id} so "recent" never parses as an id.
		r.Get("/recent", func(w http.ResponseWriter, r *http.Request) {
			if archive == nil {
				writeJSON(w, http.StatusServiceUnavailable, errBody{Error: "archive disabled"})
				return
			}
			limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
			ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
			defer cancel()
			rows, err := archive.RecentMatches(ctx, limit)
			if err != nil {
				log.Error("recent matches", zap.Error(err))
				writeJSON(w, http.StatusInternalServerError, errBody{Error: "archive query failed"})
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"rows": rows})
		})

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", withID(func(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
				s, err := mgr.Get(id)
				if err != nil {
					writeErr(w, err)
					return
				}
				writeJSON(w, http.StatusOK, s.Observation())
			}))

			r.Post("/select", withID(func(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
				var in agent.SelectionIn
				if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
					writeJSON(w, http.StatusBadRequest, errBody{Error: "malformed body"})
					return
				}
				s, err := mgr.Get(id)
				if err != nil {
					writeErr(w, err)
					return
				}
				if err := agent.Validate(s.Observation(), in); err != nil {
					writeErr(w, err)
					return
				}
				obs, err := mgr.Select(id, *in.CardID)
				if err != nil {
					writeErr(w, err)
					return
				}
				writeJSON(w, http.StatusOK, map[string]any{"accepted": true, "observation": obs})
			}))

			r.Post("/pass", withID(func(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
				obs, err := mgr.Pass(id)
				if err != nil {
					writeErr(w, err)
					return
				}
				writeJSON(w, http.StatusOK, map[string]any{"accepted": true, "observation": obs})
			}))

			r.Post("/restart", withID(func(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
				obs, err := mgr.Restart(id)
				if err != nil {
					writeErr(w, err)
					return
				}
				writeJSON(w, http.StatusOK, obs)
			}))

			r.Delete("/", withID(func(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
				if err := mgr.Delete(id); err != nil {
					writeErr(w, err)
					return
				}
				w.WriteHeader(http.StatusNoContent)
			}))

			r.Get("/ws", withID(mgr.ServeWS))
		})
	})

	return r
}

type errBody struct {
	Error  string `json:"error"`
	Reason string `json:"reason,omitempty"`
}

func withID(h func(http.ResponseWriter, *http.Request, uuid.UUID)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeJSON(w, http.StatusNotFound, errBody{Error: session.ErrNotFound.Error()})
			return
		}
		h(w, r, id)
	}
}

// writeErr maps session and engine errors onto status codes.
func writeErr(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, session.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, agent.ErrCardIDRequired):
		status = http.StatusBadRequest
	case errors.Is(err, engine.ErrCardNotInHand), errors.Is(err, engine.ErrInsufficientMp):
		status = http.StatusUnprocessableEntity
	case engine.RejectReason(err) != "":
		status = http.StatusConflict
	}
	writeJSON(w, status, errBody{Error: err.Error(), Reason: engine.RejectReason(err)})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func requestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.Debug("http",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("took", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())))
		})
	}
}
