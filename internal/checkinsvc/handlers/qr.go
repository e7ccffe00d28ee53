package handlers

import (
	"bytes"
	"errors"
	"net/http"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/avvvet/checkin-services/internal/qr"
)

var qrParams = []string{"type", "name", "station", "place"}

type qrView struct {
	Base       string
	Categories []string
}

type linkResponse struct {
	Link  string            `json:"link"`
	Query map[string]string `json:"query"`
}

func (h *Handler) QRPageHandler(w http.ResponseWriter, r *http.Request) {
	h.render(w, http.StatusOK, "qr", qrView{
		Base:       h.baseURL(r),
		Categories: h.checkins.Categories(),
	})
}

// baseURL is the form address codes point to: the configured public URL,
// else the address this request came in on.
func (h *Handler) baseURL(r *http.Request) string {
	if h.opts.PublicBaseURL != "" {
		return h.opts.PublicBaseURL
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if p := r.Header.Get("X-Forwarded-Proto"); p != "" {
		scheme = p
	}
	return scheme + "://" + r.Host + "/"
}

// checkinLink builds the prefilled form link from the request query. Every
// prefill key is carried, empty or not, and page is forced to the form.
func (h *Handler) checkinLink(r *http.Request) (string, map[string]string, error) {
	q := r.URL.Query()
	base := strings.TrimSpace(q.Get("base"))
	if base == "" {
		base = h.baseURL(r)
	}

	params := map[string]string{"page": "checkin"}
	for _, k := range qrParams {
		params[k] = strings.TrimSpace(q.Get(k))
	}

	link, err := qr.BuildLink(base, params)
	return link, params, err
}

func (h *Handler) QRLinkHandler(w http.ResponseWriter, r *http.Request) {
	link, params, err := h.checkinLink(r)
	if err != nil {
		h.CreateResponse(w, Response{
			Message: "invalid base url",
			Code:    http.StatusBadRequest,
			Error:   err.Error(),
		})
		return
	}
	h.CreateResponse(w, Response{
		Message: "ok",
		Code:    http.StatusOK,
		Data:    linkResponse{Link: link, Query: params},
	})
}

func (h *Handler) QRImageHandler(w http.ResponseWriter, r *http.Request) {
	link, params, err := h.checkinLink(r)
	if err != nil {
		if !errors.Is(err, qr.ErrEmptyBase) {
			log.WithError(err).Warn("qr link rejected")
		}
		h.CreateResponse(w, Response{
			Message: "invalid base url",
			Code:    http.StatusBadRequest,
			Error:   err.Error(),
		})
		return
	}

	h.qrMu.Lock()
	img, err := qr.Render(link, qrLabel(params), h.opts.QR)
	h.qrMu.Unlock()
	if err != nil {
		log.WithError(err).Error("qr render failed")
		h.CreateResponse(w, Response{
			Message: "qr generation failed",
			Code:    http.StatusInternalServerError,
			Error:   err.Error(),
		})
		return
	}

	var buf bytes.Buffer
	if err := qr.EncodePNG(&buf, img); err != nil {
		log.WithError(err).Error("qr encode failed")
		http.Error(w, "qr generation failed", http.StatusInternalServerError)
		return
	}

	attachment(w, "image/png", "checkin_qr_"+params["type"]+".png")
	w.Write(buf.Bytes())
}

// qrLabel prints the most specific place the code stands for.
func qrLabel(params map[string]string) string {
	for _, k := range []string{"place", "station", "name", "type"} {
		if v := params[k]; v != "" {
			return v
		}
	}
	return ""
}
