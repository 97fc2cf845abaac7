package runtime

import (
	"net/http"
	"strings"

	jsoncodec "github.com/drblury/renderflow/internal/runtime/jsoncodec"
)

// ServiceStatus is the payload of the JSON status endpoint.
type ServiceStatus struct {
	ChannelState    string         `json:"channel_state"`
	Watching        bool           `json:"watching"`
	WatchedClientID string         `json:"watched_client_id,omitempty"`
	Forwarding      bool           `json:"forwarding"`
	LastSubmission  *JobSubmission `json:"last_submission,omitempty"`
	Resources       ResourceUsage  `json:"resources"`
}

// Status reports a point-in-time snapshot of the service.
func (s *Service) Status() ServiceStatus {
	return ServiceStatus{
		ChannelState:    s.manager.State().String(),
		Watching:        s.watcher.Watching(),
		WatchedClientID: s.watcher.ClientID(),
		Forwarding:      s.forwarder != nil,
		LastSubmission:  s.queue.LastSubmission(),
		Resources:       s.getResourceTracker().Snapshot(),
	}
}

func (s *Service) startStatusServer() {
	if !s.Conf.StatusEnabled {
		return
	}

	port := s.Conf.StatusPort
	if port == 0 {
		port = 8081
	}

	s.RegisterHTTPHandler(port, "/api/status", http.HandlerFunc(s.handleGetStatus))
}

func (s *Service) handleGetStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	// Set CORS headers based on configuration
	if s.Conf != nil && len(s.Conf.StatusCORSAllowedOrigins) > 0 {
		origin := r.Header.Get("Origin")
		allowedOrigin := s.getAllowedCORSOrigin(origin)
		if allowedOrigin != "" {
			w.Header().Set("Access-Control-Allow-Origin", allowedOrigin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		}
	}

	// Handle preflight requests
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	if err := jsoncodec.Encode(w, s.Status()); err != nil {
		s.Logger.Error("Failed to encode status", err, nil)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}

// getAllowedCORSOrigin checks if the request origin is allowed and returns
// the appropriate Access-Control-Allow-Origin value.
func (s *Service) getAllowedCORSOrigin(requestOrigin string) string {
	if s.Conf == nil {
		return ""
	}
	for _, allowed := range s.Conf.StatusCORSAllowedOrigins {
		if allowed == "*" {
			return "*"
		}
		if strings.EqualFold(allowed, requestOrigin) {
			return requestOrigin
		}
	}
	return ""
}
