package handlers

import (
	"fmt"
	"html/template"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/avvvet/checkin-services/internal/checkinsvc/export"
	"github.com/avvvet/checkin-services/internal/checkinsvc/models"
	"github.com/avvvet/checkin-services/internal/checkinsvc/service"
)

var filterKeys = []string{"start", "end", "name", "location", "type"}

type typeOption struct {
	Label   string
	Checked bool
}

type adminView struct {
	Typed       bool
	Total       int
	Summary     models.Summary
	Columns     []string
	Rows        [][]string
	Start       string
	End         string
	Name        string
	Location    string
	TypeOptions []typeOption
	CSVLink     template.URL
	XLSXLink    template.URL
}

type recordsResponse struct {
	Total   int             `json:"total"`
	Count   int             `json:"count"`
	Summary models.Summary  `json:"summary"`
	Records []models.Record `json:"records"`
}

// parseFilter reads the dashboard filter from the query. It reports false
// when no filter key is present at all, in which case the schema's default
// window applies.
func (h *Handler) parseFilter(q url.Values) (models.Filter, bool, error) {
	present := false
	for _, k := range filterKeys {
		if _, ok := q[k]; ok {
			present = true
			break
		}
	}
	if !present {
		return models.Filter{}, false, nil
	}

	loc := h.records.Location()
	start, err := service.ParseDate(q.Get("start"), loc)
	if err != nil {
		return models.Filter{}, true, fmt.Errorf("start: %w", err)
	}
	end, err := service.ParseDate(q.Get("end"), loc)
	if err != nil {
		return models.Filter{}, true, fmt.Errorf("end: %w", err)
	}

	f := models.Filter{
		Start:    start,
		End:      end,
		Name:     strings.TrimSpace(q.Get("name")),
		Location: strings.TrimSpace(q.Get("location")),
	}
	for _, t := range q["type"] {
		if t = strings.TrimSpace(t); t != "" {
			f.Types = append(f.Types, t)
		}
	}
	return f, true, nil
}

// query loads and filters for any admin view. It writes the error response
// itself and reports whether the caller should continue.
func (h *Handler) query(w http.ResponseWriter, r *http.Request) (models.Filter, service.Result, bool) {
	f, explicit, err := h.parseFilter(r.URL.Query())
	if err != nil {
		h.CreateResponse(w, Response{
			Message: "invalid filter",
			Code:    http.StatusBadRequest,
			Error:   err.Error(),
		})
		return f, service.Result{}, false
	}

	all, err := h.records.Load(r.Context())
	if err != nil {
		log.WithError(err).Error("loading check-ins failed")
		h.CreateResponse(w, Response{
			Message: "check-in records are unavailable",
			Code:    http.StatusBadGateway,
			Error:   "store unavailable",
		})
		return f, service.Result{}, false
	}
	if !explicit {
		f = h.records.DefaultFilter(all)
	}
	return f, h.records.Select(all, f), true
}

func (h *Handler) AdminHandler(w http.ResponseWriter, r *http.Request) {
	f, res, ok := h.query(w, r)
	if !ok {
		return
	}

	schema := h.records.Schema()
	loc := h.records.Location()

	v := adminView{
		Typed:    !schema.HasSerial(),
		Total:    res.Total,
		Summary:  service.Summarize(res.Records, loc),
		Columns:  export.Columns(schema),
		Rows:     make([][]string, 0, len(res.Records)),
		Start:    dateValue(f.Start, loc),
		End:      dateValue(f.End, loc),
		Name:     f.Name,
		Location: f.Location,
	}
	for _, rec := range res.Records {
		v.Rows = append(v.Rows, export.Row(schema, rec, loc))
	}
	v.TypeOptions = typeOptions(h.checkins.Categories(), v.Summary.ByType, f.Types)

	exportQuery := filterQuery(f, loc)
	if jwt := r.URL.Query().Get("jwt"); jwt != "" {
		exportQuery.Set("jwt", jwt)
	}
	enc := exportQuery.Encode()
	v.CSVLink = template.URL("/admin/export.csv?" + enc)
	v.XLSXLink = template.URL("/admin/export.xlsx?" + enc)

	h.render(w, http.StatusOK, "admin", v)
}

func (h *Handler) RecordsHandler(w http.ResponseWriter, r *http.Request) {
	_, res, ok := h.query(w, r)
	if !ok {
		return
	}
	h.CreateResponse(w, Response{
		Message: "ok",
		Code:    http.StatusOK,
		Data: recordsResponse{
			Total:   res.Total,
			Count:   len(res.Records),
			Summary: service.Summarize(res.Records, h.records.Location()),
			Records: res.Records,
		},
	})
}

func (h *Handler) ExportCSVHandler(w http.ResponseWriter, r *http.Request) {
	f, res, ok := h.query(w, r)
	if !ok {
		return
	}
	schema, loc := h.records.Schema(), h.records.Location()

	attachment(w, "text/csv; charset=utf-8", export.FileName(schema, f, loc, "csv"))
	if err := export.WriteCSV(w, schema, res.Records, loc); err != nil {
		log.WithError(err).Error("csv export failed")
	}
}

func (h *Handler) ExportXLSXHandler(w http.ResponseWriter, r *http.Request) {
	f, res, ok := h.query(w, r)
	if !ok {
		return
	}
	schema, loc := h.records.Schema(), h.records.Location()

	attachment(w, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", export.FileName(schema, f, loc, "xlsx"))
	if err := export.WriteXLSX(w, schema, res.Records, loc); err != nil {
		log.WithError(err).Error("xlsx export failed")
	}
}

// filterQuery is the explicit form of f, so downloads reproduce exactly what
// the dashboard shows even when f came from the default window.
func filterQuery(f models.Filter, loc *time.Location) url.Values {
	q := url.Values{}
	q.Set("start", dateValue(f.Start, loc))
	q.Set("end", dateValue(f.End, loc))
	if f.Name != "" {
		q.Set("name", f.Name)
	}
	if f.Location != "" {
		q.Set("location", f.Location)
	}
	for _, t := range f.Types {
		q.Add("type", t)
	}
	return q
}

func dateValue(t *time.Time, loc *time.Location) string {
	if t == nil {
		return ""
	}
	return t.In(loc).Format(models.DateLayout)
}

// typeOptions lists configured categories plus any other type seen in the
// data, checking the ones currently selected.
func typeOptions(categories []string, seen []models.LabelCount, selected []string) []typeOption {
	labels := append([]string{}, categories...)
	known := map[string]bool{}
	for _, c := range categories {
		known[c] = true
	}
	var extra []string
	for _, lc := range seen {
		if lc.Label != "" && !known[lc.Label] {
			known[lc.Label] = true
			extra = append(extra, lc.Label)
		}
	}
	sort.Strings(extra)
	labels = append(labels, extra...)

	checked := map[string]bool{}
	for _, s := range selected {
		checked[s] = true
	}
	opts := make([]typeOption, 0, len(labels))
	for _, l := range labels {
		opts = append(opts, typeOption{Label: l, Checked: checked[l]})
	}
	return opts
}
