package handlers

import (
	"errors"
	"net/http"

	commandbus "librefind/application/commands/bus"
	querybus "librefind/application/queries/bus"
	"librefind/pkg/auth"
	"librefind/pkg/common"
	apperrors "librefind/pkg/errors"

	"go.uber.org/zap"
)

// maxBodyBytes bounds every JSON request body. An inventory of a few
// thousand packages fits comfortably.
const maxBodyBytes = 1 << 20

// base holds what every handler needs to talk to the buses and answer.
type base struct {
	commands *commandbus.CommandBus
	queries  *querybus.QueryBus
	errs     *apperrors.ErrorHandler
	logger   *zap.Logger
}

func newBase(commands *commandbus.CommandBus, queries *querybus.QueryBus, errs *apperrors.ErrorHandler, logger *zap.Logger) base {
	if logger == nil {
		logger = zap.NewNop()
	}
	if errs == nil {
		errs = apperrors.NewErrorHandler(logger, false)
	}
	return base{commands: commands, queries: queries, errs: errs, logger: logger}
}

// decode reads the JSON body into v, answering 400 itself on failure.
func (b base) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := common.ParseJSONBody(w, r, v, maxBodyBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			b.errs.HandleStatus(w, r, http.StatusRequestEntityTooLarge, "Request body too large")
			return false
		}
		b.errs.HandleStatus(w, r, http.StatusBadRequest, err.Error())
		return false
	}
	return true
}

// userID is the authenticated caller, or "" for anonymous requests.
func userID(r *http.Request) string {
	uid, _ := auth.SessionFromContext(r.Context()).CurrentUserID()
	return uid
}
