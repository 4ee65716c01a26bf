package handler

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/keywarden/keywarden-go/internal/middleware"
	"github.com/keywarden/keywarden-go/internal/service"
)

// VaultHandler handles HTTP requests for direct vault item operations.
type VaultHandler struct {
	service *service.SyncService
}

// NewVaultHandler creates a new VaultHandler.
func NewVaultHandler(svc *service.SyncService) *VaultHandler {
	return &VaultHandler{service: svc}
}

// HandleListItems handles GET /api/v1/vault requests.
func (h *VaultHandler) HandleListItems(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse("unauthorized"))
		return
	}

	items, err := h.service.ListItems(r.Context(), userID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse("internal server error"))
		return
	}

	writeJSON(w, http.StatusOK, items)
}

// HandleDeleteItem handles DELETE /api/v1/vault/{item_id} requests.
func (h *VaultHandler) HandleDeleteItem(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse("unauthorized"))
		return
	}

	itemID := chi.URLParam(r, "item_id")
	if itemID == "" || len(itemID) > 36 {
		writeJSON(w, http.StatusBadRequest, errorResponse("invalid item id"))
		return
	}

	err := h.service.DeleteItem(r.Context(), userID, itemID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrItemNotFound):
			writeJSON(w, http.StatusNotFound, errorResponse(err.Error()))
		default:
			writeJSON(w, http.StatusInternalServerError, errorResponse("internal server error"))
		}
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
