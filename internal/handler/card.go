package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/sakif/flashcards/internal/apperror"
	"github.com/sakif/flashcards/internal/service"
)

// CardHandler serves /api/cards/.
type CardHandler struct {
	cards  *service.CardService
	logger *slog.Logger
}

func NewCardHandler(cards *service.CardService, logger *slog.Logger) *CardHandler {
	return &CardHandler{
		cards:  cards,
		logger: logger,
	}
}

type cardRequest struct {
	Collection *int64  `json:"collection"`
	Front      *string `json:"front"`
	Back       *string `json:"back"`
}

func (req cardRequest) input() service.CardInput {
	return service.CardInput{
		CollectionID: req.Collection,
		Front:        req.Front,
		Back:         req.Back,
	}
}

// HandleList returns visible cards, optionally narrowed to one collection.
//
// HTTP: GET /api/cards/?collection=<id>&limit=&offset=
func (h *CardHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	limit, offset, err := pageParams(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	var collectionID int64
	if raw := r.URL.Query().Get("collection"); raw != "" {
		collectionID, err = strconv.ParseInt(raw, 10, 64)
		if err != nil || collectionID <= 0 {
			writeError(w, h.logger, apperror.ValidationFailed("collection", "a valid collection id is required"))
			return
		}
	}

	cards, err := h.cards.List(r.Context(), user.ID, collectionID, limit, offset)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, cards)
}

// HandleCreate adds a card to a collection the requester owns.
//
// HTTP: POST /api/cards/
// REQUEST BODY: {"collection": 1, "front": "...", "back": "..."}
func (h *CardHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	var req cardRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	card, err := h.cards.Create(r.Context(), user.ID, req.input())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, card)
}

// HandleGet returns one visible card.
//
// HTTP: GET /api/cards/{id}/
func (h *CardHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	id, err := idParam(r, "card")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	card, err := h.cards.Get(r.Context(), user.ID, id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, card)
}

// HandleUpdate is PUT /api/cards/{id}/; front and back are required.
func (h *CardHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	h.update(w, r, false)
}

// HandlePatch is PATCH /api/cards/{id}/.
func (h *CardHandler) HandlePatch(w http.ResponseWriter, r *http.Request) {
	h.update(w, r, true)
}

func (h *CardHandler) update(w http.ResponseWriter, r *http.Request, partial bool) {
	user, err := currentUser(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	id, err := idParam(r, "card")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	var req cardRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	card, err := h.cards.Update(r.Context(), user.ID, id, req.input(), partial)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, card)
}

// HandleDelete is DELETE /api/cards/{id}/ → 204.
func (h *CardHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	id, err := idParam(r, "card")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	if err := h.cards.Delete(r.Context(), user.ID, id); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
