package handlers

import (
	"net/http"

	commandbus "librefind/application/commands/bus"
	"librefind/application/queries"
	querybus "librefind/application/queries/bus"
	"librefind/domain/core/entities"
	"librefind/pkg/common"
	apperrors "librefind/pkg/errors"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// CatalogHandler serves the read side: targets, alternatives, feedback,
// duplicate checks and inventory classification.
type CatalogHandler struct {
	base
}

func NewCatalogHandler(commands *commandbus.CommandBus, queries *querybus.QueryBus, errs *apperrors.ErrorHandler, logger *zap.Logger) *CatalogHandler {
	return &CatalogHandler{base: newBase(commands, queries, errs, logger)}
}

// ListTargets handles GET /targets
func (h *CatalogHandler) ListTargets(w http.ResponseWriter, r *http.Request) {
	result, err := h.queries.Ask(r.Context(), queries.ListTargetsQuery{})
	if err != nil {
		h.errs.Handle(w, r, err)
		return
	}
	targets := result.([]*entities.ProprietaryTarget)
	common.RespondList(w, r, targets, len(targets))
}

// GetAlternatives handles GET /targets/{package}/alternatives
func (h *CatalogHandler) GetAlternatives(w http.ResponseWriter, r *http.Request) {
	result, err := h.queries.Ask(r.Context(), queries.GetAlternativesQuery{
		PackageName: chi.URLParam(r, "package"),
		ViewerID:    userID(r),
	})
	if err != nil {
		h.errs.Handle(w, r, err)
		return
	}
	alts := result.([]entities.Alternative)
	common.RespondList(w, r, alts, len(alts))
}

// ListFeedback handles GET /alternatives/{id}/feedback
func (h *CatalogHandler) ListFeedback(w http.ResponseWriter, r *http.Request) {
	result, err := h.queries.Ask(r.Context(), queries.ListFeedbackQuery{AlternativeID: chi.URLParam(r, "id")})
	if err != nil {
		h.errs.Handle(w, r, err)
		return
	}
	items := result.([]*entities.Feedback)
	common.RespondList(w, r, items, len(items))
}

// CheckDuplicate handles GET /duplicates?name=&package=
func (h *CatalogHandler) CheckDuplicate(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	result, err := h.queries.Ask(r.Context(), queries.CheckDuplicateQuery{
		Name:        q.Get("name"),
		PackageName: q.Get("package"),
	})
	if err != nil {
		h.errs.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, r, http.StatusOK, result)
}

// ClassifyInventory handles POST /inventory/classify
func (h *CatalogHandler) ClassifyInventory(w http.ResponseWriter, r *http.Request) {
	var req queries.ClassifyInventoryQuery
	if !h.decode(w, r, &req) {
		return
	}

	result, err := h.queries.Ask(r.Context(), req)
	if err != nil {
		h.errs.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, r, http.StatusOK, result)
}
