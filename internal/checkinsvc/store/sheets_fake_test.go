package store

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

// fakeSheets serves the handful of Sheets v4 endpoints SheetsTable calls,
// backed by an in-memory map of worksheet title -> rows.
type fakeSheets struct {
	mu      sync.Mutex
	id      string
	sheets  map[string][][]string
	order   []string
	appends int
}

func newFakeSheets(t *testing.T, id string, titles ...string) (*fakeSheets, *httptest.Server) {
	f := &fakeSheets{id: id, sheets: map[string][][]string{}}
	for _, title := range titles {
		f.sheets[title] = nil
		f.order = append(f.order, title)
	}
	srv := httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(srv.Close)
	return f, srv
}

func (f *fakeSheets) rows(title string) [][]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return copyRows(f.sheets[title])
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func badRange(w http.ResponseWriter, rng string) {
	writeJSON(w, http.StatusBadRequest, map[string]interface{}{
		"error": map[string]interface{}{
			"code":    400,
			"message": "Unable to parse range: " + rng,
			"status":  "INVALID_ARGUMENT",
		},
	})
}

// title extracts the quoted worksheet title from an A1 range.
func rangeTitle(rng string) string {
	if !strings.HasPrefix(rng, "'") {
		return strings.SplitN(rng, "!", 2)[0]
	}
	end := strings.LastIndex(rng, "'")
	return strings.ReplaceAll(rng[1:end], "''", "'")
}

func (f *fakeSheets) serve(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	prefix := "/v4/spreadsheets/" + f.id
	path := r.URL.Path
	if !strings.HasPrefix(path, prefix) {
		writeJSON(w, http.StatusNotFound, map[string]interface{}{"error": map[string]interface{}{"code": 404, "message": "no such spreadsheet"}})
		return
	}
	rest := strings.TrimPrefix(path, prefix)

	switch {
	case rest == "" && r.Method == http.MethodGet:
		var list []map[string]interface{}
		for _, title := range f.order {
			list = append(list, map[string]interface{}{"properties": map[string]interface{}{"title": title}})
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"spreadsheetId": f.id, "sheets": list})

	case rest == ":batchUpdate" && r.Method == http.MethodPost:
		var req struct {
			Requests []struct {
				AddSheet *struct {
					Properties struct {
						Title string `json:"title"`
					} `json:"properties"`
				} `json:"addSheet"`
			} `json:"requests"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]interface{}{"error": map[string]interface{}{"code": 400, "message": err.Error()}})
			return
		}
		for _, rq := range req.Requests {
			if rq.AddSheet != nil {
				title := rq.AddSheet.Properties.Title
				f.sheets[title] = nil
				f.order = append(f.order, title)
			}
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"spreadsheetId": f.id})

	case strings.HasPrefix(rest, "/values/"):
		f.serveValues(w, r, strings.TrimPrefix(rest, "/values/"))

	default:
		writeJSON(w, http.StatusNotFound, map[string]interface{}{"error": map[string]interface{}{"code": 404, "message": fmt.Sprintf("unexpected %s %s", r.Method, path)}})
	}
}

func (f *fakeSheets) serveValues(w http.ResponseWriter, r *http.Request, rng string) {
	action := ""
	if i := strings.LastIndex(rng, ":"); i >= 0 && (strings.HasSuffix(rng, ":append") || strings.HasSuffix(rng, ":clear")) {
		action = rng[i+1:]
		rng = rng[:i]
	}
	title := rangeTitle(rng)
	rows, ok := f.sheets[title]
	if !ok {
		badRange(w, rng)
		return
	}

	var body struct {
		Values [][]string `json:"values"`
	}
	if r.Method != http.MethodGet && action != "clear" {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]interface{}{"error": map[string]interface{}{"code": 400, "message": err.Error()}})
			return
		}
	}

	switch {
	case action == "append":
		f.sheets[title] = append(rows, body.Values...)
		f.appends++
		writeJSON(w, http.StatusOK, map[string]interface{}{"spreadsheetId": f.id})
	case action == "clear":
		if len(rows) > 0 {
			rows[0] = []string{}
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"spreadsheetId": f.id, "clearedRange": rng})
	case r.Method == http.MethodPut:
		if len(body.Values) > 0 {
			if len(rows) == 0 {
				rows = append(rows, body.Values[0])
			} else {
				rows[0] = body.Values[0]
			}
			f.sheets[title] = rows
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"spreadsheetId": f.id, "updatedRange": rng})
	case r.Method == http.MethodGet:
		out := map[string]interface{}{"range": rng, "majorDimension": "ROWS"}
		if len(rows) > 0 {
			out["values"] = rows
		}
		writeJSON(w, http.StatusOK, out)
	default:
		writeJSON(w, http.StatusMethodNotAllowed, map[string]interface{}{"error": map[string]interface{}{"code": 405, "message": "method not allowed"}})
	}
}
