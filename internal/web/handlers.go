package web

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"hemo-board/internal/board"
	"hemo-board/internal/identity"
	"hemo-board/internal/model"
	"hemo-board/internal/order"
	"hemo-board/internal/perm"
	"hemo-board/internal/store"
)

type envelope struct {
	Data any `json:"data"`
}

type errorBody struct {
	Error string `json:"error"`
}

func writeData(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope{Data: v})
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorBody{Error: msg})
}

var errBadRequest = errors.New("bad request")

// writeError maps domain errors onto HTTP statuses.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, perm.ErrNotSignedIn),
		errors.Is(err, identity.ErrInvalidToken),
		errors.Is(err, identity.ErrExpiredToken):
		status = http.StatusUnauthorized
	case errors.Is(err, perm.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, store.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, order.ErrNotInCell):
		status = http.StatusConflict
	case errors.Is(err, errBadRequest),
		errors.Is(err, model.ErrUnknownProcedure),
		errors.Is(err, model.ErrUnknownRow),
		errors.Is(err, board.ErrPlacementField),
		errors.Is(err, board.ErrOutsideWindow):
		status = http.StatusBadRequest
	}
	writeJSONError(w, status, err.Error())
}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: invalid JSON body: %v", errBadRequest, err)
	}
	return nil
}

func (s *Server) weekParam(r *http.Request) (time.Time, error) {
	start, err := board.ParseWeek(chi.URLParam(r, "start"), s.cfg.Now())
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return start, nil
}

type weekResponse struct {
	Grid  board.Grid `json:"grid"`
	Total int        `json:"total"`
}

func (s *Server) handleWeek(w http.ResponseWriter, r *http.Request) {
	start, err := s.weekParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if _, _, err := s.actorForRequest(r); err != nil {
		writeError(w, err)
		return
	}
	cards, err := s.cfg.Service.Week(r.Context(), start)
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, weekResponse{
		Grid:  board.Project(cards, start, r.URL.Query().Get("q")),
		Total: len(cards),
	})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	start, err := s.weekParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if _, _, err := s.actorForRequest(r); err != nil {
		writeError(w, err)
		return
	}
	cards, err := s.cfg.Service.Week(r.Context(), start)
	if err != nil {
		writeError(w, err)
		return
	}
	var buf bytes.Buffer
	if err := board.WriteCSV(&buf, cards, start); err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", board.ExportFileName(start)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

type cardResponse struct {
	Card model.Card `json:"card"`
	HTML string     `json:"html"`
}

func (s *Server) handleCardGet(w http.ResponseWriter, r *http.Request) {
	if _, _, err := s.actorForRequest(r); err != nil {
		writeError(w, err)
		return
	}
	c, err := s.cfg.Service.Card(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, cardResponse{Card: c, HTML: cardHTML(c)})
}

func (s *Server) handleCardCreate(w http.ResponseWriter, r *http.Request) {
	a, _, err := s.actorForRequest(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var d model.CardDraft
	if err := decodeBody(r, &d); err != nil {
		writeError(w, err)
		return
	}
	c, err := s.cfg.Service.Add(r.Context(), a, d)
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusCreated, c)
}

func (s *Server) handleCardEdit(w http.ResponseWriter, r *http.Request) {
	a, _, err := s.actorForRequest(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var p model.CardPatch
	if err := decodeBody(r, &p); err != nil {
		writeError(w, err)
		return
	}
	c, err := s.cfg.Service.Edit(r.Context(), a, chi.URLParam(r, "id"), p)
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, c)
}

type moveRequest struct {
	Dir string `json:"dir"`
	// Week selects the five-day window for left/right. Defaults to the week
	// of the card's day.
	Week string `json:"week,omitempty"`
}

func (s *Server) handleCardMove(w http.ResponseWriter, r *http.Request) {
	a, _, err := s.actorForRequest(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req moveRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	id := chi.URLParam(r, "id")
	ctx := r.Context()

	var res board.MoveResult
	switch strings.ToLower(strings.TrimSpace(req.Dir)) {
	case "up":
		res, err = s.cfg.Service.MoveUp(ctx, a, id)
	case "down":
		res, err = s.cfg.Service.MoveDown(ctx, a, id)
	case "left", "right":
		delta := 1
		if strings.EqualFold(req.Dir, "left") {
			delta = -1
		}
		var week time.Time
		week, err = s.moveWeek(req.Week)
		if err == nil {
			res, err = s.cfg.Service.MoveDay(ctx, a, week, id, delta)
		}
	case "row-up":
		res, err = s.cfg.Service.MoveRow(ctx, a, id, -1)
	case "row-down":
		res, err = s.cfg.Service.MoveRow(ctx, a, id, 1)
	case "front":
		res, err = s.cfg.Service.MoveToFront(ctx, a, id)
	default:
		err = fmt.Errorf("%w: dir must be up|down|left|right|row-up|row-down|front", errBadRequest)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, res)
}

// moveWeek returns the zero time for an empty week so the service picks the
// card's own week once the caller is known to be an editor.
func (s *Server) moveWeek(week string) (time.Time, error) {
	if strings.TrimSpace(week) == "" {
		return time.Time{}, nil
	}
	start, err := board.ParseWeek(week, s.cfg.Now())
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return start, nil
}

func (s *Server) handleCardToggleDone(w http.ResponseWriter, r *http.Request) {
	a, _, err := s.actorForRequest(r)
	if err != nil {
		writeError(w, err)
		return
	}
	c, err := s.cfg.Service.ToggleDone(r.Context(), a, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, c)
}

func (s *Server) handleCardDelete(w http.ResponseWriter, r *http.Request) {
	a, _, err := s.actorForRequest(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.cfg.Service.Delete(r.Context(), a, chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
