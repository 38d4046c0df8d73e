// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-passkey.
//
// go-passkey is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package rest

import (
	"encoding/json"
	"net/http"
	"time"
)

// HealthCheckResponse represents the response for the health endpoint.
type HealthCheckResponse struct {
	Status string `json:"status"`
	Uptime string `json:"uptime"`
}

// HealthHandler reports liveness. The service keeps no external
// dependencies beyond in-process state, so reaching this handler is the
// health check.
func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodHead {
		return
	}
	_ = json.NewEncoder(w).Encode(HealthCheckResponse{
		Status: "ok",
		Uptime: time.Since(s.started).Truncate(time.Second).String(),
	})
}
