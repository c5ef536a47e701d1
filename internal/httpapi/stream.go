package httpapi

import (
	"context"
	"encoding/json"
	"net/http"

	"agendafit.app/internal/checkin"
)

// Stream handles Server-Sent Events for completed check-ins. Admins only.
func (a *API) Stream(w http.ResponseWriter, r *http.Request) {
	user, ok := a.requireUser(w, r)
	if !ok {
		return
	}
	if !checkin.IsAdminRole(user.Role) {
		writeError(w, r, http.StatusForbidden, codeForbidden, "Acesso negado")
		return
	}
	if a.stream == nil {
		writeError(w, r, http.StatusServiceUnavailable, codeInternal, "streaming disabled")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, r, http.StatusInternalServerError, codeInternal, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	ch := a.stream.Subscribe(ctx)

	// Send an initial comment to establish the stream
	_, _ = w.Write([]byte(": stream started\n\n"))
	flusher.Flush()

	for event := range ch {
		payload, err := json.Marshal(event)
		if err != nil {
			continue
		}
		_, _ = w.Write([]byte("event: checkin\ndata: "))
		_, _ = w.Write(payload)
		_, _ = w.Write([]byte("\n\n"))
		flusher.Flush()
	}
}
