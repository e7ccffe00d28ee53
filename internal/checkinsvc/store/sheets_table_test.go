package store

import (
	"context"
	"errors"
	"io"
	"net/http"
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
)

func init() {
	log.SetOutput(io.Discard)
}

func newTestSheetsTable(t *testing.T, worksheet string, existing ...string) (*SheetsTable, *fakeSheets) {
	fake, srv := newFakeSheets(t, "sid-123", existing...)
	table, err := NewSheetsTable(context.Background(), SheetsOptions{
		SpreadsheetID: "sid-123",
		Worksheet:     worksheet,
		ClientOptions: []option.ClientOption{
			option.WithEndpoint(srv.URL + "/"),
			option.WithHTTPClient(http.DefaultClient),
		},
	})
	require.NoError(t, err)
	return table, fake
}

func TestSheetsTable_EnsureWorksheetCreatesAndSeedsHeader(t *testing.T) {
	table, fake := newTestSheetsTable(t, "checkins", "Sheet1")
	ctx := context.Background()

	require.NoError(t, table.EnsureWorksheet(ctx, []string{"timestamp_kst", "type", "name", "station", "place"}))
	assert.Equal(t, [][]string{{"timestamp_kst", "type", "name", "station", "place"}}, fake.rows("checkins"))

	// second call must not seed again
	require.NoError(t, table.EnsureWorksheet(ctx, []string{"timestamp_kst"}))
	assert.Len(t, fake.rows("checkins"), 1)
}

func TestSheetsTable_AppendThenReadInOrder(t *testing.T) {
	table, _ := newTestSheetsTable(t, "Sheet1", "Sheet1")
	ctx := context.Background()

	rows := [][]string{
		{"연번", "이름", "근무장소", "근무시간"},
		{"1", "홍길동", "대도초", "2025-08-20 08:00:00"},
		{"2", "김영희", "언주초", "2025-08-20 08:05:00"},
	}
	for _, r := range rows {
		require.NoError(t, table.AppendRow(ctx, r))
	}

	got, err := table.GetAllValues(ctx)
	require.NoError(t, err)
	assert.Equal(t, rows, got)
}

func TestSheetsTable_SetHeaderReplacesFirstRow(t *testing.T) {
	table, fake := newTestSheetsTable(t, "Sheet1", "Sheet1")
	ctx := context.Background()

	require.NoError(t, table.AppendRow(ctx, []string{"No", "Name"}))
	require.NoError(t, table.AppendRow(ctx, []string{"1", "홍길동", "대도초", "2025-08-20 08:00:00"}))

	require.NoError(t, table.SetHeader(ctx, []string{"연번", "이름", "근무장소", "근무시간"}))

	rows := fake.rows("Sheet1")
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"연번", "이름", "근무장소", "근무시간"}, rows[0])
	assert.Equal(t, "홍길동", rows[1][1])
}

func TestSheetsTable_MissingWorksheet(t *testing.T) {
	table, _ := newTestSheetsTable(t, "nope", "Sheet1")

	_, err := table.GetAllValues(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrWorksheetNotFound), "got %v", err)
}

func TestNewSheetsTable_RequiresWorksheet(t *testing.T) {
	_, err := NewSheetsTable(context.Background(), SheetsOptions{SpreadsheetID: "x"})
	assert.Error(t, err)
}
