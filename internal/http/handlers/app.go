package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"server/internal/domain"
	"server/internal/infra"
	"server/internal/pipeline"
	"server/internal/storage"
)

// App bundles the dependencies the HTTP handlers need. Everything is
// injected at startup; handlers hold no mutable state of their own.
type App struct {
	Config    *infra.Config
	Logger    *infra.Logger
	Pipeline  *pipeline.Pipeline
	Saved     *storage.FileStore
	Generated *storage.FileStore
}

// NewApp wires the handler container.
func NewApp(cfg *infra.Config, logger *infra.Logger, p *pipeline.Pipeline, saved, generated *storage.FileStore) *App {
	return &App{Config: cfg, Logger: logger, Pipeline: p, Saved: saved, Generated: generated}
}

type errorResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

type artifactResponse struct {
	OK       bool   `json:"ok"`
	Filename string `json:"filename"`
	URL      string `json:"url"`
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, message string) {
	a.json(w, code, errorResponse{OK: false, Error: message})
}

// fail maps a pipeline error onto the HTTP status policy: one status per
// error class, the same policy on every route.
func (a *App) fail(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		a.error(w, http.StatusNotFound, "not found")
	case errors.Is(err, domain.ErrMissingField):
		a.error(w, http.StatusBadRequest, "missing field")
	case errors.Is(err, domain.ErrEmptyPrompt):
		a.error(w, http.StatusBadRequest, "empty prompt")
	case errors.Is(err, domain.ErrInvalidPayload):
		a.error(w, http.StatusBadRequest, "invalid payload")
	default:
		a.Logger.Error().Err(err).Msg("handlers: transform failed")
		a.error(w, http.StatusInternalServerError, err.Error())
	}
}

func decodeBody[T any](r *http.Request) (*T, error) {
	var v T
	if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
		return nil, domain.ErrMissingField
	}
	return &v, nil
}
