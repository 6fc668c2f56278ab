package hitlapi

import (
	"context"
	"net/http"
)

func (a *API) handleDemo(call func(context.Context) (bool, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		running, err := call(r.Context())
		if err != nil {
			a.logger.Error(r.Context(), err, "demo generator call failed", "path", r.URL.Path)
			writeJSON(w, http.StatusBadGateway, envelope{"success": false, "error": "demo generator unavailable"})
			return
		}
		writeOK(w, envelope{"running": running})
	}
}
