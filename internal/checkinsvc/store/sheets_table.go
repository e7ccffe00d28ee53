package store

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	log "github.com/sirupsen/logrus"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

const spreadsheetMimeType = "application/vnd.google-apps.spreadsheet"

// SheetsTable is one worksheet of a Google spreadsheet.
type SheetsTable struct {
	srv           *sheets.Service
	spreadsheetID string
	worksheet     string
}

type SheetsOptions struct {
	SpreadsheetID   string
	SpreadsheetName string // looked up through Drive when SpreadsheetID is empty
	Worksheet       string
	ClientOptions   []option.ClientOption
}

// CredentialOptions builds the client options for a service account given
// either as a key file path or as inline JSON.
func CredentialOptions(file, inline string) []option.ClientOption {
	opts := []option.ClientOption{
		option.WithScopes(sheets.SpreadsheetsScope, drive.DriveReadonlyScope),
	}
	if inline != "" {
		return append(opts, option.WithCredentialsJSON([]byte(inline)))
	}
	return append(opts, option.WithCredentialsFile(file))
}

func NewSheetsTable(ctx context.Context, opts SheetsOptions) (*SheetsTable, error) {
	if opts.Worksheet == "" {
		return nil, errors.New("sheets table: worksheet name is required")
	}

	srv, err := sheets.NewService(ctx, opts.ClientOptions...)
	if err != nil {
		return nil, fmt.Errorf("sheets table: create service: %w", err)
	}

	id := opts.SpreadsheetID
	if id == "" {
		id, err = findSpreadsheet(ctx, opts.SpreadsheetName, opts.ClientOptions)
		if err != nil {
			return nil, err
		}
	}

	log.Infof("sheets table bound to spreadsheet %s worksheet %q", id, opts.Worksheet)
	return &SheetsTable{srv: srv, spreadsheetID: id, worksheet: opts.Worksheet}, nil
}

// findSpreadsheet resolves a spreadsheet title to its id. The first match
// visible to the service account wins.
func findSpreadsheet(ctx context.Context, name string, clientOpts []option.ClientOption) (string, error) {
	if name == "" {
		return "", errors.New("sheets table: spreadsheet id or name is required")
	}

	dsrv, err := drive.NewService(ctx, clientOpts...)
	if err != nil {
		return "", fmt.Errorf("sheets table: create drive service: %w", err)
	}

	q := fmt.Sprintf("name = '%s' and mimeType = '%s' and trashed = false",
		strings.ReplaceAll(name, "'", `\'`), spreadsheetMimeType)
	list, err := dsrv.Files.List().Q(q).Fields("files(id, name)").PageSize(1).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("sheets table: look up spreadsheet %q: %w", name, err)
	}
	if len(list.Files) == 0 {
		return "", fmt.Errorf("sheets table: spreadsheet %q not shared with the service account", name)
	}
	return list.Files[0].Id, nil
}

// a1 quotes the worksheet title for use in an A1 range.
func (s *SheetsTable) a1(suffix string) string {
	r := "'" + strings.ReplaceAll(s.worksheet, "'", "''") + "'"
	if suffix != "" {
		r += "!" + suffix
	}
	return r
}

func (s *SheetsTable) EnsureWorksheet(ctx context.Context, header []string) error {
	ss, err := s.srv.Spreadsheets.Get(s.spreadsheetID).Fields("sheets.properties.title").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("sheets table: get spreadsheet: %w", err)
	}
	for _, sh := range ss.Sheets {
		if sh.Properties != nil && sh.Properties.Title == s.worksheet {
			return nil
		}
	}

	req := &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{{
			AddSheet: &sheets.AddSheetRequest{
				Properties: &sheets.SheetProperties{
					Title: s.worksheet,
					GridProperties: &sheets.GridProperties{
						RowCount:    1000,
						ColumnCount: 20,
					},
				},
			},
		}},
	}
	if _, err := s.srv.Spreadsheets.BatchUpdate(s.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("sheets table: add worksheet %q: %w", s.worksheet, err)
	}
	log.Infof("created worksheet %q", s.worksheet)

	return s.AppendRow(ctx, header)
}

func (s *SheetsTable) SetHeader(ctx context.Context, header []string) error {
	if _, err := s.srv.Spreadsheets.Values.Clear(s.spreadsheetID, s.a1("1:1"), &sheets.ClearValuesRequest{}).
		Context(ctx).Do(); err != nil {
		return fmt.Errorf("sheets table: clear header: %w", s.mapErr(err))
	}

	vr := &sheets.ValueRange{Values: [][]interface{}{toCells(header)}}
	if _, err := s.srv.Spreadsheets.Values.Update(s.spreadsheetID, s.a1("A1"), vr).
		ValueInputOption("RAW").Context(ctx).Do(); err != nil {
		return fmt.Errorf("sheets table: write header: %w", s.mapErr(err))
	}
	return nil
}

func (s *SheetsTable) AppendRow(ctx context.Context, row []string) error {
	vr := &sheets.ValueRange{Values: [][]interface{}{toCells(row)}}
	_, err := s.srv.Spreadsheets.Values.Append(s.spreadsheetID, s.a1("A1"), vr).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("sheets table: append row: %w", s.mapErr(err))
	}
	return nil
}

func (s *SheetsTable) GetAllValues(ctx context.Context) ([][]string, error) {
	vr, err := s.srv.Spreadsheets.Values.Get(s.spreadsheetID, s.a1("")).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("sheets table: get values: %w", s.mapErr(err))
	}

	rows := make([][]string, 0, len(vr.Values))
	for _, r := range vr.Values {
		row := make([]string, len(r))
		for i, v := range r {
			row[i] = fmt.Sprint(v)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// mapErr turns the API's "Unable to parse range" answer for a missing
// worksheet into ErrWorksheetNotFound.
func (s *SheetsTable) mapErr(err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) && gerr.Code == http.StatusBadRequest &&
		strings.Contains(gerr.Message, "Unable to parse range") {
		return fmt.Errorf("%w: %s", ErrWorksheetNotFound, s.worksheet)
	}
	return err
}

func toCells(row []string) []interface{} {
	cells := make([]interface{}, len(row))
	for i, c := range row {
		cells[i] = c
	}
	return cells
}
