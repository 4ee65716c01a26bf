package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/keywarden/keywarden-go/internal/cursor"
	"github.com/keywarden/keywarden-go/internal/middleware"
	"github.com/keywarden/keywarden-go/internal/model"
	"github.com/keywarden/keywarden-go/internal/service"
)

// SyncHandler handles HTTP requests for the sync protocol.
type SyncHandler struct {
	service      *service.SyncService
	maxBatchSize int
}

// NewSyncHandler creates a new SyncHandler. maxBatchSize caps the number of
// mutations accepted in a single push.
func NewSyncHandler(svc *service.SyncService, maxBatchSize int) *SyncHandler {
	return &SyncHandler{service: svc, maxBatchSize: maxBatchSize}
}

// HandleGetChanges handles GET /api/v1/sync/changes requests. Query
// parameters: since (RFC 3339), cursor (opaque token from a previous page),
// limit.
func (h *SyncHandler) HandleGetChanges(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse("unauthorized"))
		return
	}

	q := model.ChangesQuery{Cursor: r.URL.Query().Get("cursor")}

	if raw := r.URL.Query().Get("since"); raw != "" {
		since, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse("invalid since timestamp, expected RFC 3339"))
			return
		}
		q.Since = &since
	}

	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			writeJSON(w, http.StatusBadRequest, errorResponse("invalid limit"))
			return
		}
		q.Limit = limit
	}

	resp, err := h.service.GetChanges(r.Context(), userID, q)
	if err != nil {
		if errors.Is(err, cursor.ErrInvalidCursor) {
			writeJSON(w, http.StatusBadRequest, errorResponse("invalid cursor"))
			return
		}
		writeJSON(w, http.StatusInternalServerError, errorResponse("internal server error"))
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// HandlePush handles POST /api/v1/sync/push requests.
func (h *SyncHandler) HandlePush(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse("unauthorized"))
		return
	}

	var req model.PushRequest
	if !decodeJSON(w, r, 10<<20, &req) {
		return
	}

	if len(req.Mutations) > h.maxBatchSize {
		msg := fmt.Sprintf("too many mutations in push request (max %d)", h.maxBatchSize)
		writeJSON(w, http.StatusBadRequest, errorResponse(msg))
		return
	}

	resp, err := h.service.Push(r.Context(), userID, req)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse("internal server error"))
		return
	}

	writeJSON(w, http.StatusOK, resp)
}
