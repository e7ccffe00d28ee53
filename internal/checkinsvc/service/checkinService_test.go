package service

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avvvet/checkin-services/internal/checkinsvc/models"
	"github.com/avvvet/checkin-services/internal/checkinsvc/store"
)

func init() {
	log.SetOutput(io.Discard)
}

var kst = time.FixedZone("KST", 9*60*60)

// fixedClock returns successive instants one minute apart starting at start.
func fixedClock(start time.Time) func() time.Time {
	next := start
	return func() time.Time {
		t := next
		next = next.Add(time.Minute)
		return t
	}
}

func newTypedService(table store.Table) *CheckinService {
	return NewCheckinService(table, CheckinOptions{
		Schema:     models.TypedSchema,
		Location:   kst,
		Categories: []string{"아동안전지킴이", "자율방범대"},
		Now:        fixedClock(time.Date(2025, 8, 20, 23, 30, 0, 0, time.UTC)),
	})
}

func newLegacyService(table store.Table) *CheckinService {
	return NewCheckinService(table, CheckinOptions{
		Schema:   models.LegacySchema,
		Location: kst,
		Now:      fixedClock(time.Date(2025, 8, 20, 0, 0, 0, 0, time.UTC)),
	})
}

func TestSubmit_BlankRequiredFieldNeverAppends(t *testing.T) {
	cases := []struct {
		name   string
		sub    models.Submission
		fields []string
	}{
		{"blank name", models.Submission{Type: "자율방범대", Name: "   ", Location: "일원지구대"}, []string{"name"}},
		{"blank station", models.Submission{Type: "자율방범대", Name: "홍길동"}, []string{"location"}},
		{"blank type", models.Submission{Name: "홍길동", Location: "일원지구대"}, []string{"type"}},
		{"everything blank", models.Submission{}, []string{"type", "name", "location"}},
		{"unknown type", models.Submission{Type: "경비", Name: "홍길동", Location: "일원지구대"}, []string{"type"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			table := store.NewMemoryTable()
			svc := newTypedService(table)

			_, err := svc.Submit(context.Background(), tc.sub)

			var verr *ValidationError
			require.True(t, errors.As(err, &verr), "got %v", err)
			assert.Equal(t, tc.fields, verr.Fields)
			assert.Equal(t, 0, table.Appends())
		})
	}
}

func TestSubmit_LegacyRequiresNameAndLocation(t *testing.T) {
	table := store.NewMemoryTable()
	svc := newLegacyService(table)

	_, err := svc.Submit(context.Background(), models.Submission{Name: "홍길동"})

	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, []string{"location"}, verr.Fields)
	values, _ := table.GetAllValues(context.Background())
	assert.Empty(t, values, "header must not be touched before validation passes")
}

func TestSubmit_TypedRowLayoutAndZone(t *testing.T) {
	table := store.NewMemoryTable()
	svc := newTypedService(table)
	ctx := context.Background()
	require.NoError(t, svc.Prepare(ctx))

	rec, err := svc.Submit(ctx, models.Submission{
		Type: " 자율방범대 ", Name: "김철수", Location: "개포4동 자율방범대", Place: "달터공원 입구",
	})
	require.NoError(t, err)

	// 23:30 UTC is 08:30 the next day in Seoul
	assert.Equal(t, "2025-08-21 08:30:00", rec.Timestamp)
	assert.Nil(t, rec.Serial)

	values, err := table.GetAllValues(ctx)
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		models.TypedSchema.Header,
		{"2025-08-21 08:30:00", "자율방범대", "김철수", "개포4동 자율방범대", "달터공원 입구"},
	}, values)
}

func TestSubmit_LegacySerialCountsRowsIncludingHeader(t *testing.T) {
	table := store.NewMemoryTable()
	svc := newLegacyService(table)
	ctx := context.Background()

	for _, name := range []string{"홍길동", "김영희", "박민수"} {
		_, err := svc.Submit(ctx, models.Submission{Name: name, Location: "대도초"})
		require.NoError(t, err)
	}

	values, err := table.GetAllValues(ctx)
	require.NoError(t, err)
	require.Len(t, values, 4)
	assert.Equal(t, models.LegacySchema.Header, values[0])
	assert.Equal(t, []string{"1", "홍길동", "대도초", "2025-08-20 09:00:00"}, values[1])
	assert.Equal(t, "2", values[2][0])
	assert.Equal(t, "3", values[3][0])
}

func TestSubmit_LegacyReplacesWrongHeader(t *testing.T) {
	table := store.NewMemoryTable()
	ctx := context.Background()
	require.NoError(t, table.AppendRow(ctx, []string{"No", "Name", "Place", "Time"}))
	require.NoError(t, table.AppendRow(ctx, []string{"1", "홍길동", "대도초", "2025-08-19 09:00:00"}))

	rec, err := newLegacyService(table).Submit(ctx, models.Submission{Name: "김영희", Location: "언주초"})
	require.NoError(t, err)
	require.NotNil(t, rec.Serial)
	assert.Equal(t, 2, *rec.Serial)

	values, _ := table.GetAllValues(ctx)
	assert.Equal(t, models.LegacySchema.Header, values[0])
	assert.Len(t, values, 3)
}

func TestSubmit_LegacyUsesBackendSequence(t *testing.T) {
	table := &sequencedTable{MemoryTable: store.NewMemoryTable(), next: 40}
	rec, err := newLegacyService(table).Submit(context.Background(), models.Submission{Name: "홍길동", Location: "대도초"})
	require.NoError(t, err)
	assert.Equal(t, 41, *rec.Serial)
}

func TestSubmit_LegacySerialIgnoresStaleCache(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	ctx := context.Background()

	table := store.NewCachedTable(store.NewMemoryTable(), rdb, "legacy", time.Minute)
	svc := newLegacyService(table)

	first, err := svc.Submit(ctx, models.Submission{Name: "홍길동", Location: "대도초"})
	require.NoError(t, err)
	assert.Equal(t, 2, *first.Serial)

	stale, err := json.Marshal([][]string{models.LegacySchema.Header})
	require.NoError(t, err)
	require.NoError(t, mr.Set("checkin:values:legacy", string(stale)))

	second, err := svc.Submit(ctx, models.Submission{Name: "김영희", Location: "대도초"})
	require.NoError(t, err)
	assert.Equal(t, 3, *second.Serial)
}

func TestSubmit_StoreFailureIsReported(t *testing.T) {
	table := &failingTable{MemoryTable: store.NewMemoryTable(), failAppend: true}
	n := &recordingNotifier{}
	svc := newTypedService(table)
	svc.AddNotifier(n)

	_, err := svc.Submit(context.Background(), models.Submission{Type: "자율방범대", Name: "홍길동", Location: "일원지구대"})

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrStoreUnavailable))
	assert.True(t, errors.Is(err, errBoom))
	assert.Empty(t, n.records, "failed submissions are not announced")
}

func TestSubmit_LegacyReadFailureIsReported(t *testing.T) {
	table := &failingTable{MemoryTable: store.NewMemoryTable(), failRead: true}

	_, err := newLegacyService(table).Submit(context.Background(), models.Submission{Name: "홍길동", Location: "대도초"})
	assert.True(t, errors.Is(err, ErrStoreUnavailable))
	assert.Equal(t, 0, table.Appends())
}

func TestSubmit_NotifiesAfterAppend(t *testing.T) {
	table := store.NewMemoryTable()
	n := &recordingNotifier{err: errors.New("nats down")}
	svc := newTypedService(table)
	svc.AddNotifier(n)

	rec, err := svc.Submit(context.Background(), models.Submission{Type: "아동안전지킴이", Name: "홍길동", Location: "일원지구대"})
	require.NoError(t, err, "notifier errors are not the submitter's problem")
	require.Len(t, n.records, 1)
	assert.Equal(t, rec, n.records[0])
}

func TestSubmitThenLoad_RoundTripsInOrder(t *testing.T) {
	table := store.NewMemoryTable()
	svc := newTypedService(table)
	ctx := context.Background()
	require.NoError(t, svc.Prepare(ctx))

	subs := []models.Submission{
		{Type: "아동안전지킴이", Name: "홍길동", Location: "일원지구대", Place: "대청초"},
		{Type: "자율방범대", Name: "김철수", Location: "개포4동"},
		{Type: "아동안전지킴이", Name: "이영희", Location: "대치지구대", Place: "대곡초 후문"},
	}
	for _, s := range subs {
		_, err := svc.Submit(ctx, s)
		require.NoError(t, err)
	}

	records, err := NewRecordService(table, models.TypedSchema, kst, nil).Load(ctx)
	require.NoError(t, err)
	require.Len(t, records, len(subs))
	for i, s := range subs {
		assert.Equal(t, s.Type, records[i].Type)
		assert.Equal(t, s.Name, records[i].Name)
		assert.Equal(t, s.Location, records[i].Location)
		assert.Equal(t, s.Place, records[i].Place)
		require.NotNil(t, records[i].Time)
	}
}
