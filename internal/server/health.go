package server

import (
	"context"
	"net/http"
	"time"

	"vibedb/internal/version"
)

type healthStatus struct {
	Status   string `json:"status"`
	Catalog  string `json:"catalog"`
	Version  string `json:"version"`
	PoolsLen int    `json:"active_user_pools"`
}

// handleHealth reports liveness plus catalog reachability. Unauthenticated
// so load balancers can probe it.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	rc := requestContext(r)

	status := healthStatus{
		Status:   "ok",
		Catalog:  "ok",
		Version:  version.String(),
		PoolsLen: s.pools.Len(),
	}

	pingCtx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	httpStatus := http.StatusOK
	if err := s.store.Ping(pingCtx); err != nil {
		status.Status = "degraded"
		status.Catalog = "unreachable"
		httpStatus = http.StatusServiceUnavailable
	}

	s.ok(w, rc, httpStatus, status, nil)
}
