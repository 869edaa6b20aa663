package httpserver

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/opsremedy/remedy-controller/internal/infra/appstate"
)

const incidentsDefaultLimit = 50

type statusResponse struct {
	Uptime    string    `json:"uptime"`
	UptimeSec float64   `json:"uptimeSeconds"`
	StartTime time.Time `json:"startTime"`

	appstate.StatusSnapshot
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	if !s.appState.IsHealthy() {
		w.WriteHeader(http.StatusServiceUnavailable)

		return
	}

	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleReadyz(w http.ResponseWriter, _ *http.Request) {
	if !s.appState.IsReady() {
		w.WriteHeader(http.StatusServiceUnavailable)

		return
	}

	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	uptime := s.appState.GetUptime()

	response := statusResponse{
		Uptime:         uptime.String(),
		UptimeSec:      uptime.Seconds(),
		StartTime:      s.appState.GetStartTime(),
		StatusSnapshot: s.appState.Status(),
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	if err := json.NewEncoder(w).Encode(response); err != nil {
		s.logger.ErrorContext(ctx, "failed to encode status response",
			"error", err,
		)
	}
}

func (s *Server) handleIncidents(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	records := s.incidents.Recent(incidentsDefaultLimit)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	if err := json.NewEncoder(w).Encode(records); err != nil {
		s.logger.ErrorContext(ctx, "failed to encode incidents response",
			"error", err,
		)
	}
}
