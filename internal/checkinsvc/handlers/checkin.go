package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/avvvet/checkin-services/internal/checkinsvc/models"
	"github.com/avvvet/checkin-services/internal/checkinsvc/service"
)

const storeFailureMessage = "체크인을 저장하지 못했습니다. 잠시 후 다시 시도해주세요."

type checkinView struct {
	Typed      bool
	Categories []string
	Type       string
	Name       string
	Location   string
	Place      string
	Locked     bool // location came from a printed school code
	Now        string
	Message    string
	Error      string
	Fields     []string
}

// submitRequest accepts either "station" or "location" for the location.
type submitRequest struct {
	Type     string `json:"type"`
	Name     string `json:"name"`
	Station  string `json:"station"`
	Location string `json:"location"`
	Place    string `json:"place"`
}

func (s submitRequest) submission() models.Submission {
	loc := s.Station
	if strings.TrimSpace(loc) == "" {
		loc = s.Location
	}
	return models.Submission{Type: s.Type, Name: s.Name, Location: loc, Place: s.Place}
}

// last returns the final value of key; repeated query keys keep the last one.
func last(q url.Values, key string) string {
	vs := q[key]
	if len(vs) == 0 {
		return ""
	}
	return strings.TrimSpace(vs[len(vs)-1])
}

func (h *Handler) newCheckinView() checkinView {
	return checkinView{
		Typed:      !h.checkins.Schema().HasSerial(),
		Categories: h.checkins.Categories(),
		Now:        time.Now().In(h.records.Location()).Format(models.TimestampLayout),
	}
}

// CheckinFormHandler serves the form, prefilled from the link a QR code
// carries.
func (h *Handler) CheckinFormHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	v := h.newCheckinView()
	v.Type = last(q, "type")
	v.Name = last(q, "name")
	v.Location = last(q, "station")
	v.Place = last(q, "place")

	if school := last(q, "school"); school != "" {
		v.Location = school
		v.Locked = true
	}

	h.render(w, http.StatusOK, "checkin", v)
}

// SubmitCheckinHandler records one check-in from a form post or a JSON body.
func (h *Handler) SubmitCheckinHandler(w http.ResponseWriter, r *http.Request) {
	asJSON := strings.HasPrefix(r.Header.Get("Content-Type"), "application/json")

	var req submitRequest
	if asJSON {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.CreateResponse(w, Response{
				Message: "invalid request body",
				Code:    http.StatusBadRequest,
				Error:   err.Error(),
			})
			return
		}
	} else {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "invalid form", http.StatusBadRequest)
			return
		}
		req = submitRequest{
			Type:     r.PostForm.Get("type"),
			Name:     r.PostForm.Get("name"),
			Station:  r.PostForm.Get("station"),
			Location: r.PostForm.Get("location"),
			Place:    r.PostForm.Get("place"),
		}
	}

	sub := req.submission()
	rec, err := h.checkins.Submit(r.Context(), sub)

	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		if asJSON {
			h.CreateResponse(w, Response{
				Message: "missing or invalid fields",
				Code:    http.StatusUnprocessableEntity,
				Data:    verr.Fields,
				Error:   verr.Error(),
			})
			return
		}
		v := h.formFrom(sub)
		v.Fields = verr.Fields
		v.Error = requiredMessage(!v.Typed)
		h.render(w, http.StatusUnprocessableEntity, "checkin", v)
		return

	case err != nil:
		log.WithError(err).Error("check-in submission failed")
		if asJSON {
			h.CreateResponse(w, Response{
				Message: storeFailureMessage,
				Code:    http.StatusBadGateway,
				Error:   "store unavailable",
			})
			return
		}
		v := h.formFrom(sub)
		v.Error = storeFailureMessage
		h.render(w, http.StatusBadGateway, "checkin", v)
		return
	}

	if asJSON {
		h.CreateResponse(w, Response{
			Message: "check-in recorded",
			Code:    http.StatusCreated,
			Data:    rec,
		})
		return
	}

	v := h.newCheckinView()
	v.Type = rec.Type
	v.Message = successMessage(rec)
	h.render(w, http.StatusOK, "checkin", v)
}

func (h *Handler) formFrom(sub models.Submission) checkinView {
	v := h.newCheckinView()
	v.Type = sub.Type
	v.Name = sub.Name
	v.Location = sub.Location
	v.Place = sub.Place
	return v
}

func requiredMessage(legacy bool) string {
	if legacy {
		return "이름과 학교를 모두 입력해주세요."
	}
	return "유형/이름/소속은 필수 항목입니다."
}

func successMessage(rec models.Record) string {
	if rec.Type == "" {
		return "체크인이 성공적으로 기록되었습니다!"
	}
	return fmt.Sprintf("체크인 완료: %s · %s · %s", rec.Type, rec.Name, rec.Location)
}
