// Package server exposes the conversation over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/comigor/healthchat/internal/config"
	"github.com/comigor/healthchat/internal/conversation"
	"github.com/comigor/healthchat/internal/logger"
)

const maxBodyBytes = 1 << 20

// Handler serves one conversation store.
type Handler struct {
	store *conversation.Store
	ui    config.UIConfig
}

// New creates the HTTP handler for store.
func New(store *conversation.Store, ui config.UIConfig) *Handler {
	return &Handler{store: store, ui: ui}
}

// Router wires the routes with request id and panic recovery.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)

	r.Get("/", h.handleTranscript)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Route("/api", h.RegisterRoutes)
	return r
}

// RegisterRoutes registers the JSON API.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/turns", h.handleListTurns)
	r.Post("/turns", h.handleSubmit)
	r.Get("/draft", h.handleGetDraft)
	r.Put("/draft", h.handleSetDraft)
}

type textPayload struct {
	Text string `json:"text"`
}

func (h *Handler) handleListTurns(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"sessionId": h.store.SessionID(),
		"turns":     h.store.Turns(),
	})
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	payload, err := decodeText(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	if !h.store.Submit(payload.Text) {
		respondJSON(w, http.StatusOK, map[string]bool{"accepted": false})
		return
	}
	respondJSON(w, http.StatusAccepted, map[string]bool{"accepted": true})
}

func (h *Handler) handleGetDraft(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, textPayload{Text: h.store.Draft()})
}

func (h *Handler) handleSetDraft(w http.ResponseWriter, r *http.Request) {
	payload, err := decodeText(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.store.SetDraft(payload.Text)
	w.WriteHeader(http.StatusNoContent)
}

// handleTranscript renders the conversation as plain text, oldest first.
func (h *Handler) handleTranscript(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")

	var b strings.Builder
	fmt.Fprintf(&b, "%s\n%s\n\n", h.ui.Title, h.ui.Subtitle)

	turns := h.store.Turns()
	if len(turns) == 0 {
		b.WriteString(h.ui.EmptyState)
		b.WriteString("\n")
	}
	for _, t := range turns {
		fmt.Fprintf(&b, "%s: %s\n", t.Sender.Label(), t.Text)
	}
	io.WriteString(w, b.String())
}

func decodeText(r *http.Request) (textPayload, error) {
	var payload textPayload
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&payload); err != nil {
		return textPayload{}, errors.New("invalid request body")
	}
	return payload, nil
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		logger.L.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"requestId", middleware.GetReqID(r.Context()))
	})
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.L.Error("failed to encode response", "error", err)
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// Run serves handler on addr until ctx is cancelled, then shuts down gracefully.
func Run(ctx context.Context, addr string, handler http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.L.Info("starting server", "address", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.L.Warn("server shutdown error", "error", err)
		}
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
