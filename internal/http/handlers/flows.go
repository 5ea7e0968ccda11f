package handlers

import (
	"io"
	"net/http"

	"github.com/wolfman30/podology-booking/internal/flows"
	"github.com/wolfman30/podology-booking/pkg/logging"
)

const maxActionBytes = 64 << 10

// FlowsHandler accepts actions from the booking dialogue.
type FlowsHandler struct {
	dispatcher *flows.Dispatcher
	logger     *logging.Logger
}

func NewFlowsHandler(dispatcher *flows.Dispatcher, logger *logging.Logger) *FlowsHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &FlowsHandler{dispatcher: dispatcher, logger: logger}
}

// HandleAction handles POST /flows/actions
func (h *FlowsHandler) HandleAction(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxActionBytes))
	if err != nil {
		jsonError(w, "failed to read body", http.StatusBadRequest)
		return
	}
	action, err := flows.Decode(body)
	if err != nil {
		h.logger.Warn("rejected flow action", "error", err)
		jsonError(w, err.Error(), statusFor(err))
		return
	}
	res, err := h.dispatcher.Dispatch(r.Context(), action)
	if err != nil {
		status := statusFor(err)
		if status >= http.StatusInternalServerError {
			h.logger.Error("flow action failed", "type", action.Type(), "error", err)
		}
		jsonError(w, err.Error(), status)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
