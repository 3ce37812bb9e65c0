package handlers

import (
	"net/http"

	"librefind/application/commands"
	commandbus "librefind/application/commands/bus"
	"librefind/application/queries"
	querybus "librefind/application/queries/bus"
	"librefind/domain/core/entities"
	"librefind/pkg/common"
	apperrors "librefind/pkg/errors"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// CommunityHandler serves the signed-in write side plus the caller's own
// records.
type CommunityHandler struct {
	base
}

func NewCommunityHandler(commands *commandbus.CommandBus, queries *querybus.QueryBus, errs *apperrors.ErrorHandler, logger *zap.Logger) *CommunityHandler {
	return &CommunityHandler{base: newBase(commands, queries, errs, logger)}
}

// RateAlternative handles PUT /alternatives/{id}/rating
func (h *CommunityHandler) RateAlternative(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Stars int `json:"stars"`
	}
	if !h.decode(w, r, &req) {
		return
	}

	result, err := h.commands.Send(r.Context(), commands.RateAlternativeCommand{
		UserID:        userID(r),
		AlternativeID: chi.URLParam(r, "id"),
		Stars:         req.Stars,
	})
	if err != nil {
		h.errs.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, r, http.StatusOK, result)
}

// CastVote handles POST /alternatives/{id}/votes
func (h *CommunityHandler) CastVote(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Category entities.VoteCategory `json:"category"`
	}
	if !h.decode(w, r, &req) {
		return
	}

	h.send(w, r, http.StatusOK, commands.CastVoteCommand{
		UserID:        userID(r),
		AlternativeID: chi.URLParam(r, "id"),
		Category:      req.Category,
	})
}

// SubmitFeedback handles POST /alternatives/{id}/feedback
func (h *CommunityHandler) SubmitFeedback(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Type entities.FeedbackType `json:"type"`
		Text string                `json:"text"`
	}
	if !h.decode(w, r, &req) {
		return
	}

	h.send(w, r, http.StatusCreated, commands.SubmitFeedbackCommand{
		UserID:        userID(r),
		AlternativeID: chi.URLParam(r, "id"),
		Type:          req.Type,
		Text:          req.Text,
	})
}

// VoteHelpful handles POST /alternatives/{id}/feedback/{feedbackID}/helpful
func (h *CommunityHandler) VoteHelpful(w http.ResponseWriter, r *http.Request) {
	_, err := h.commands.Send(r.Context(), commands.VoteHelpfulCommand{
		UserID:        userID(r),
		AlternativeID: chi.URLParam(r, "id"),
		FeedbackID:    chi.URLParam(r, "feedbackID"),
	})
	if err != nil {
		h.errs.Handle(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SubmitApp handles POST /submissions
func (h *CommunityHandler) SubmitApp(w http.ResponseWriter, r *http.Request) {
	var cmd commands.SubmitAppCommand
	if !h.decode(w, r, &cmd) {
		return
	}
	cmd.UserID = userID(r)
	h.send(w, r, http.StatusCreated, cmd)
}

// ProposeAlternative handles POST /proposals
func (h *CommunityHandler) ProposeAlternative(w http.ResponseWriter, r *http.Request) {
	var cmd commands.ProposeAlternativeCommand
	if !h.decode(w, r, &cmd) {
		return
	}
	cmd.UserID = userID(r)
	h.send(w, r, http.StatusCreated, cmd)
}

// MySubmissions handles GET /submissions/mine
func (h *CommunityHandler) MySubmissions(w http.ResponseWriter, r *http.Request) {
	result, err := h.queries.Ask(r.Context(), queries.MySubmissionsQuery{UserID: userID(r)})
	if err != nil {
		h.errs.Handle(w, r, err)
		return
	}
	subs := result.([]*entities.Submission)
	common.RespondList(w, r, subs, len(subs))
}

// SubmitReport handles POST /reports
func (h *CommunityHandler) SubmitReport(w http.ResponseWriter, r *http.Request) {
	var cmd commands.SubmitReportCommand
	if !h.decode(w, r, &cmd) {
		return
	}
	cmd.UserID = userID(r)
	h.send(w, r, http.StatusCreated, cmd)
}

// MyReports handles GET /reports/mine
func (h *CommunityHandler) MyReports(w http.ResponseWriter, r *http.Request) {
	result, err := h.queries.Ask(r.Context(), queries.MyReportsQuery{UserID: userID(r)})
	if err != nil {
		h.errs.Handle(w, r, err)
		return
	}
	reports := result.([]*entities.Report)
	common.RespondList(w, r, reports, len(reports))
}

// GetProfile handles GET /profile
func (h *CommunityHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	result, err := h.queries.Ask(r.Context(), queries.GetProfileQuery{UserID: userID(r)})
	if err != nil {
		h.errs.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, r, http.StatusOK, result)
}

// SetupProfile handles PUT /profile
func (h *CommunityHandler) SetupProfile(w http.ResponseWriter, r *http.Request) {
	var cmd commands.SetupProfileCommand
	if !h.decode(w, r, &cmd) {
		return
	}
	cmd.UserID = userID(r)
	h.send(w, r, http.StatusOK, cmd)
}

func (h *CommunityHandler) send(w http.ResponseWriter, r *http.Request, status int, cmd commandbus.Command) {
	result, err := h.commands.Send(r.Context(), cmd)
	if err != nil {
		h.errs.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, r, status, result)
}
