package counter

import (
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"notifly-go/internal/model"
)

func TestDay_FixedReferenceZone(t *testing.T) {
	// 2026-03-09 23:30 UTC is already 2026-03-10 08:30 in UTC+9; the host
	// locale must not matter.
	at := time.Date(2026, 3, 9, 23, 30, 0, 0, time.UTC)
	assert.Equal(t, "2026-03-10", Day(at))

	// Before 15:00 UTC the reference day matches the UTC day.
	at = time.Date(2026, 3, 9, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, "2026-03-09", Day(at))

	assert.Equal(t, "2026-03-07", DayOffset(at, 2))
}

func TestStore_Ingest(t *testing.T) {
	now := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	s := NewStore(nil)

	s.Ingest("purchase", now, nil, nil)
	s.Ingest("purchase", now, nil, nil)
	s.Ingest("open_app", now, nil, nil)

	rows := s.Rows()
	require.Len(t, rows, 2)
	assert.Equal(t, int64(2), s.Count("purchase"))
	assert.Equal(t, int64(1), s.Count("open_app"))
	assert.Equal(t, int64(0), s.Count("unknown"))

	// A new calendar day appends a new row rather than incrementing.
	s.Ingest("purchase", now.AddDate(0, 0, 1), nil, nil)
	assert.Len(t, s.Rows(), 3)
	assert.Equal(t, int64(3), s.Count("purchase"))
}

func TestStore_IngestSegmentation(t *testing.T) {
	now := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	s := NewStore(nil)

	params := func(plan string) map[string]model.Value {
		return map[string]model.Value{"plan": model.TextValue(plan)}
	}
	s.Ingest("purchase", now, params("pro"), []string{"plan"})
	s.Ingest("purchase", now, params("pro"), []string{"plan"})
	s.Ingest("purchase", now, params("free"), []string{"plan"})
	// Segmentation key absent from params: falls back to the unsegmented row.
	s.Ingest("purchase", now, nil, []string{"plan"})

	rows := s.Rows()
	require.Len(t, rows, 3)
	counts := map[string]int64{}
	for _, r := range rows {
		counts[r.SegmentValue] = r.Count
	}
	assert.Equal(t, int64(2), counts["pro"])
	assert.Equal(t, int64(1), counts["free"])
	assert.Equal(t, int64(1), counts[""])

	// Partitioned rows still sum into the event total.
	assert.Equal(t, int64(4), s.Count("purchase"))
}

// The window of COUNT_X_IN_Y_DAYS covers exactly secondaryValue+1 calendar
// days ending today, inclusive.
func TestStore_CountWithin(t *testing.T) {
	now := time.Date(2026, 5, 10, 3, 0, 0, 0, referenceZone)
	s := NewStore([]Row{
		{Date: Day(now), EventName: "open_app", Count: 2},
		{Date: DayOffset(now, 1), EventName: "open_app", Count: 1},
		{Date: DayOffset(now, 3), EventName: "open_app", Count: 5},
	})

	assert.Equal(t, int64(3), s.CountWithin("open_app", 2, now), "today and yesterday only")
	assert.Equal(t, int64(8), s.CountWithin("open_app", 3, now))
	assert.Equal(t, int64(2), s.CountWithin("open_app", 0, now), "window of a single day")
	assert.Equal(t, int64(0), s.CountWithin("other", 30, now))
}

func TestMerge(t *testing.T) {
	local := []Row{
		{Date: "2026-05-01", EventName: "purchase", Count: 2},
		{Date: "2026-05-01", EventName: "open_app", Count: 1},
	}
	remote := []Row{
		{Date: "2026-05-01", EventName: "purchase", Count: 3},
		{Date: "2026-04-30", EventName: "purchase", Count: 4},
	}

	merged := Merge(local, remote)
	require.Len(t, merged, 3)
	assert.Equal(t, totals(merged), map[string]int64{
		"2026-05-01/purchase/": 5,
		"2026-05-01/open_app/": 1,
		"2026-04-30/purchase/": 4,
	})
}

func TestMerge_CommutativeAndKeyStable(t *testing.T) {
	a := []Row{
		{Date: "2026-05-01", EventName: "purchase", Count: 2},
		{Date: "2026-05-01", EventName: "purchase", SegmentValue: "pro", Count: 1},
	}
	b := []Row{
		{Date: "2026-05-01", EventName: "purchase", Count: 3},
		{Date: "2026-05-02", EventName: "open_app", Count: 7},
	}

	assert.Equal(t, totals(Merge(a, b)), totals(Merge(b, a)), "merge totals are commutative")

	// Merging again never invents new keys.
	once := Merge(a, b)
	twice := Merge(once, nil)
	assert.Equal(t, keys(once), keys(twice))
	assert.Equal(t, totals(once), totals(twice))
}

func totals(rows []Row) map[string]int64 {
	out := map[string]int64{}
	for _, r := range rows {
		out[r.Date+"/"+r.EventName+"/"+r.SegmentValue] += r.Count
	}
	return out
}

func keys(rows []Row) []string {
	out := make([]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.Date+"/"+r.EventName+"/"+r.SegmentValue)
	}
	sort.Strings(out)
	return out
}
