package messagingapi

import (
	"errors"
	"net/http"

	"messagely/cmd/internal/httpapi"
	"messagely/cmd/internal/messaging"
)

// writeServiceError maps messaging kinds onto status codes. Unknown errors
// are logged and surface as a generic 500.
func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, event string, err error) {
	switch {
	case errors.Is(err, messaging.ErrRecipientNotFound):
		httpapi.WriteError(w, http.StatusNotFound, httpapi.CodeRecipientNotFound, "recipient not found")
	case errors.Is(err, messaging.ErrNotFound):
		httpapi.WriteError(w, http.StatusNotFound, httpapi.CodeNotFound, "message not found")
	case errors.Is(err, messaging.ErrForbidden):
		h.log.InfoContext(r.Context(), event+".denied", "path", r.URL.Path)
		httpapi.WriteError(w, http.StatusForbidden, httpapi.CodeForbidden, "not allowed")
	case errors.Is(err, messaging.ErrAlreadyRead):
		httpapi.WriteError(w, http.StatusConflict, httpapi.CodeAlreadyRead, "message already read")
	case errors.Is(err, messaging.ErrInvalidInput):
		msg := "invalid request"
		var oe messaging.OpError
		if errors.As(err, &oe) && oe.Msg != "" {
			msg = oe.Msg
		}
		httpapi.WriteError(w, http.StatusBadRequest, httpapi.CodeInvalidRequest, msg)
	default:
		h.log.ErrorContext(r.Context(), event+".fail", "err", err)
		httpapi.WriteError(w, http.StatusInternalServerError, httpapi.CodeServerError, "internal error")
	}
}
