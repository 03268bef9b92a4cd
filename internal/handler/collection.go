package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/sakif/flashcards/internal/apperror"
	"github.com/sakif/flashcards/internal/model"
	"github.com/sakif/flashcards/internal/service"
)

// CollectionHandler serves /api/collections/ and /api/public-collections/.
type CollectionHandler struct {
	collections *service.CollectionService
	logger      *slog.Logger
}

func NewCollectionHandler(collections *service.CollectionService, logger *slog.Logger) *CollectionHandler {
	return &CollectionHandler{
		collections: collections,
		logger:      logger,
	}
}

// collectionRequest is the write payload. description and cards_data are
// kept raw so "absent" and "null" can be told apart.
type collectionRequest struct {
	Title       *string         `json:"title"`
	Description json.RawMessage `json:"description"`
	IsPublic    *bool           `json:"is_public"`
	CardsData   json.RawMessage `json:"cards_data"`
}

var jsonNull = []byte("null")

func (req collectionRequest) input() (service.CollectionInput, error) {
	in := service.CollectionInput{
		Title:    req.Title,
		IsPublic: req.IsPublic,
	}

	if len(req.Description) > 0 {
		in.DescriptionSet = true
		if !bytes.Equal(req.Description, jsonNull) {
			var d string
			if err := json.Unmarshal(req.Description, &d); err != nil {
				return in, apperror.ValidationFailed("description", "not a valid string")
			}
			in.Description = &d
		}
	}

	if len(req.CardsData) > 0 {
		if bytes.Equal(req.CardsData, jsonNull) {
			return in, apperror.ValidationFailed("cards_data", "this field may not be null")
		}
		if err := json.Unmarshal(req.CardsData, &in.Cards); err != nil {
			return in, apperror.ValidationFailed("cards_data", "expected a list of {id, front, back} items")
		}
		in.CardsSet = true
	}

	return in, nil
}

type cardSummary struct {
	ID    int64  `json:"id"`
	Front string `json:"front"`
	Back  string `json:"back"`
}

// collectionResponse is the public shape of a collection.
type collectionResponse struct {
	ID             int64         `json:"id"`
	Owner          string        `json:"owner"`
	Title          string        `json:"title"`
	Description    *string       `json:"description"`
	IsPublic       bool          `json:"is_public"`
	Cards          []cardSummary `json:"cards"`
	IsOwner        bool          `json:"is_owner"`
	IsFavorited    bool          `json:"is_favorited"`
	FavoritesCount int           `json:"favorites_count"`
}

type favoriteResponse struct {
	Status service.FavoriteStatus `json:"status"`
}

func newCollectionResponse(d *model.CollectionDetail, userID int64) collectionResponse {
	cards := make([]cardSummary, 0, len(d.Cards))
	for _, c := range d.Cards {
		cards = append(cards, cardSummary{ID: c.ID, Front: c.Front, Back: c.Back})
	}
	return collectionResponse{
		ID:             d.ID,
		Owner:          d.OwnerEmail,
		Title:          d.Title,
		Description:    d.Description,
		IsPublic:       d.IsPublic,
		Cards:          cards,
		IsOwner:        d.IsOwnedBy(userID),
		IsFavorited:    d.IsFavorited,
		FavoritesCount: d.FavoritesCount,
	}
}

func newCollectionList(details []model.CollectionDetail, userID int64) []collectionResponse {
	out := make([]collectionResponse, 0, len(details))
	for i := range details {
		out = append(out, newCollectionResponse(&details[i], userID))
	}
	return out
}

// HandleList returns the requester's own and favorited collections.
//
// HTTP: GET /api/collections/?limit=&offset=
func (h *CollectionHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, h.collections.List)
}

// HandlePublicList returns other users' public collections.
//
// HTTP: GET /api/public-collections/?limit=&offset=
func (h *CollectionHandler) HandlePublicList(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, h.collections.ListPublic)
}

type listFunc func(ctx context.Context, userID int64, limit, offset int) ([]model.CollectionDetail, error)

func (h *CollectionHandler) list(w http.ResponseWriter, r *http.Request, fetch listFunc) {
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

	details, err := fetch(r.Context(), user.ID, limit, offset)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, newCollectionList(details, user.ID))
}

// HandleCreate creates a collection and its cards.
//
// HTTP: POST /api/collections/
// REQUEST BODY: {"title": "...", "is_public": false, "cards_data": [{"front": "...", "back": "..."}]}
func (h *CollectionHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	var req collectionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	in, err := req.input()
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	// Ids in a create payload refer to nothing yet.
	for i := range in.Cards {
		in.Cards[i].ID = nil
	}

	detail, err := h.collections.Create(r.Context(), user.ID, in)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, newCollectionResponse(detail, user.ID))
}

// HandleGet returns one visible collection.
//
// HTTP: GET /api/collections/{id}/
func (h *CollectionHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	id, err := idParam(r, "collection")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	detail, err := h.collections.Get(r.Context(), user.ID, id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, newCollectionResponse(detail, user.ID))
}

// HandleUpdate replaces a collection (PUT) and reconciles its cards.
//
// HTTP: PUT /api/collections/{id}/
func (h *CollectionHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	h.update(w, r, false)
}

// HandlePatch partially updates a collection.
//
// HTTP: PATCH /api/collections/{id}/
func (h *CollectionHandler) HandlePatch(w http.ResponseWriter, r *http.Request) {
	h.update(w, r, true)
}

func (h *CollectionHandler) update(w http.ResponseWriter, r *http.Request, partial bool) {
	user, err := currentUser(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	id, err := idParam(r, "collection")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	var req collectionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	in, err := req.input()
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	detail, err := h.collections.Update(r.Context(), user.ID, id, in, partial)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, newCollectionResponse(detail, user.ID))
}

// HandleDelete removes a collection.
//
// HTTP: DELETE /api/collections/{id}/ → 204
func (h *CollectionHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	id, err := idParam(r, "collection")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	if err := h.collections.Delete(r.Context(), user.ID, id); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleFavorite toggles the requester's favorite on a collection.
//
// HTTP: POST /api/collections/{id}/favorite/
// RESPONSE: 200 {"status": "favorited"} or {"status": "unfavorited"}
func (h *CollectionHandler) HandleFavorite(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	id, err := idParam(r, "collection")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	status, err := h.collections.ToggleFavorite(r.Context(), user.ID, id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, favoriteResponse{Status: status})
}
