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

package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// MountChi mounts the passkey routes on a chi router.
//
// Example:
//
//	handler := passkeyhttp.NewHandler(svc)
//	r.Route("/", func(r chi.Router) {
//	    passkeyhttp.MountChi(r, handler)
//	})
func MountChi(r chi.Router, h *Handler) {
	r.Get("/", h.Home)
	r.Post("/registration/options", h.RegistrationOptions)
	r.Post("/registration/submit", h.RegistrationSubmit)
	r.Post("/authentication/options", h.AuthenticationOptions)
	r.Post("/authentication/submit", h.AuthenticationSubmit)
	r.Post("/sign-out", h.SignOut)
}

// RouteEntry represents a single route with its method, path, and handler.
type RouteEntry struct {
	Method  string
	Path    string
	Handler http.HandlerFunc
}

// Routes returns a slice of route entries for manual mounting on routers
// without direct chi support.
//
// Example:
//
//	handler := passkeyhttp.NewHandler(svc)
//	for _, route := range handler.Routes() {
//	    router.Add(route.Method, route.Path, route.Handler)
//	}
func (h *Handler) Routes() []RouteEntry {
	return []RouteEntry{
		{Method: "GET", Path: "/", Handler: h.Home},
		{Method: "POST", Path: "/registration/options", Handler: h.RegistrationOptions},
		{Method: "POST", Path: "/registration/submit", Handler: h.RegistrationSubmit},
		{Method: "POST", Path: "/authentication/options", Handler: h.AuthenticationOptions},
		{Method: "POST", Path: "/authentication/submit", Handler: h.AuthenticationSubmit},
		{Method: "POST", Path: "/sign-out", Handler: h.SignOut},
	}
}
