package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/httprate"
	"github.com/go-chi/jwtauth"
)

func (h *Handler) SetRoutes(r chi.Router) {
	// public routes
	r.Get("/", h.RootHandler)
	r.Get("/health", h.HealthHandler)
	r.Get("/checkin", h.CheckinFormHandler)
	r.With(httprate.LimitByIP(h.opts.RateLimit, 1*time.Minute)).Post("/checkin", h.SubmitCheckinHandler)

	r.Get("/qr", h.QRPageHandler)
	r.Get("/qr/image", h.QRImageHandler)
	r.Get("/qr/link", h.QRLinkHandler)

	// admin routes, secured when a secret is configured
	r.Route("/admin", func(r chi.Router) {
		if h.tokenAuth != nil {
			r.Use(jwtauth.Verify(h.tokenAuth, jwtauth.TokenFromHeader, jwtauth.TokenFromCookie, jwtauth.TokenFromQuery))
			r.Use(jwtauth.Authenticator)
		}

		r.Get("/", h.AdminHandler)
		r.Get("/records", h.RecordsHandler)
		r.Get("/export.csv", h.ExportCSVHandler)
		r.Get("/export.xlsx", h.ExportXLSXHandler)
		if h.hub != nil {
			r.Get("/ws", h.hub.HandleWebSocket)
		}
	})
}

// RootHandler keeps the single-URL page selector of printed QR codes:
// ?page=admin and ?page=qr redirect, anything else is the check-in form.
func (h *Handler) RootHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page := q.Get("page")
	q.Del("page")

	target := ""
	switch page {
	case "admin":
		target = "/admin"
	case "qr":
		target = "/qr"
	default:
		h.CheckinFormHandler(w, r)
		return
	}

	if enc := q.Encode(); enc != "" {
		target += "?" + enc
	}
	http.Redirect(w, r, target, http.StatusFound)
}
