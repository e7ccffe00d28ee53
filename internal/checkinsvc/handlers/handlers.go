package handlers

import (
	"embed"
	"encoding/json"
	"html/template"
	"mime"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/jwtauth"
	log "github.com/sirupsen/logrus"

	"github.com/avvvet/checkin-services/internal/checkinsvc/service"
	"github.com/avvvet/checkin-services/internal/checkinsvc/ws"
	"github.com/avvvet/checkin-services/internal/qr"
)

//go:embed templates/*.html
var templateFS embed.FS

var pages = template.Must(template.ParseFS(templateFS, "templates/*.html"))

type Options struct {
	Port           string
	AdminJWTSecret string
	RateLimit      int // submissions per IP per minute
	PublicBaseURL  string
	QR             qr.RenderOptions
}

type Handler struct {
	checkins  *service.CheckinService
	records   *service.RecordService
	hub       *ws.Ws
	tokenAuth *jwtauth.JWTAuth
	opts      Options

	qrMu sync.Mutex // font faces keep per-face glyph buffers
}

func NewHandler(checkins *service.CheckinService, records *service.RecordService, hub *ws.Ws, opts Options) *Handler {
	if opts.RateLimit <= 0 {
		opts.RateLimit = 60
	}
	if opts.QR.ModulePx == 0 {
		face := opts.QR.Face
		opts.QR = qr.DefaultRenderOptions()
		opts.QR.Face = face
	}
	return &Handler{
		checkins: checkins,
		records:  records,
		hub:      hub,
		opts:     opts,
	}
}

type Response struct {
	Message string      `json:"message"`
	Code    int         `json:"code"`
	Data    interface{} `json:"data"`
	Error   string      `json:"error"`
}

func (rs *Handler) CreateResponse(w http.ResponseWriter, rsp Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(rsp.Code)

	json.NewEncoder(w).Encode(rsp)
}

func (h *Handler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	h.CreateResponse(w, Response{
		Message: "checkin service is running at port " + h.opts.Port,
		Code:    http.StatusOK,
		Data:    nil,
	})
}

// InitAuth arms the admin routes. Without a secret the dashboard is open.
func (h *Handler) InitAuth() {
	if h.opts.AdminJWTSecret == "" {
		log.Warn("ADMIN_JWT_SECRET not set, admin routes are unauthenticated")
		return
	}
	h.tokenAuth = jwtauth.New("HS256", []byte(h.opts.AdminJWTSecret), nil)

	expirationTime := time.Now().Add(7 * 24 * time.Hour).Unix()

	_, tokenString, _ := h.tokenAuth.Encode(map[string]interface{}{
		"role": "admin",
		"exp":  expirationTime,
	})

	log.Debugf("DEBUG: admin JWT for testing : %s", tokenString)
}

func (h *Handler) render(w http.ResponseWriter, status int, name string, data interface{}) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := pages.ExecuteTemplate(w, name, data); err != nil {
		log.WithError(err).WithField("page", name).Error("render failed")
	}
}

// attachment marks the response as a download; non-ASCII names are encoded
// per RFC 2231.
func attachment(w http.ResponseWriter, contentType, filename string) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": filename}))
}
