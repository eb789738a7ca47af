package status

import (
	"encoding/json"
	"net/http"

	"github.com/julienschmidt/httprouter"

	"cpsim/internal/session"
)

// NewRouter builds the optional introspective HTTP endpoint: a
// read-only view of each simulated station's connection state, useful for
// a human or a test harness to poll without joining the OCPP socket
// itself. It lives outside the core packages, same as the teacher's own
// client-facing HTTP handlers.
func NewRouter(controllers []*session.Controller) http.Handler {
	router := httprouter.New()
	router.GET("/stations", func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		type stationStatus struct {
			Registered bool `json:"registered"`
		}
		out := make([]stationStatus, 0, len(controllers))
		for _, c := range controllers {
			out = append(out, stationStatus{Registered: c.IsRegistered()})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(out)
	})
	return router
}
