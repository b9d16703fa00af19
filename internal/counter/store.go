// Package counter keeps per-day, per-event occurrence counts used by
// event-based segment conditions. Calendar days are computed in a fixed
// UTC+9 zone so the SDK's day boundaries match the backend's, regardless
// of host locale or DST.
package counter

import (
	"time"

	"notifly-go/internal/model"
)

const dayFormat = "2006-01-02"

// referenceZone is Korea Standard Time, which has no daylight saving.
var referenceZone = time.FixedZone("KST", 9*60*60)

// Day formats t as a yyyy-MM-dd calendar day in the reference zone.
// The format is fixed-width and zero-padded, so string comparison of days
// agrees with chronological order.
func Day(t time.Time) string {
	return t.In(referenceZone).Format(dayFormat)
}

// DayOffset is the calendar day `days` before t in the reference zone.
func DayOffset(t time.Time, days int) string {
	return t.In(referenceZone).AddDate(0, 0, -days).Format(dayFormat)
}

// Row is one intermediate count: how often an event fired on one calendar
// day, optionally sub-partitioned by a segmentation parameter value.
type Row struct {
	Date         string
	EventName    string
	SegmentValue string // empty = no segmentation
	Count        int64
	SampleParams map[string]model.Value
}

func (r Row) sameKey(o Row) bool {
	return r.Date == o.Date && r.EventName == o.EventName && r.SegmentValue == o.SegmentValue
}

// Store is the in-memory ordered collection of rows. It is not self-locking;
// the orchestrator serializes all access to the snapshot it belongs to.
type Store struct {
	rows []Row
}

func NewStore(rows []Row) *Store {
	return &Store{rows: rows}
}

// Ingest records one occurrence of eventName at time `at`. When one of
// segmentationKeys is present in params, the first such parameter's value
// becomes an extra key dimension, so counts for distinct values stay apart.
// A row matching the key is incremented in place, otherwise a new row with
// count 1 is appended.
func (s *Store) Ingest(eventName string, at time.Time, params map[string]model.Value, segmentationKeys []string) {
	row := Row{
		Date:         Day(at),
		EventName:    eventName,
		SegmentValue: segmentValue(params, segmentationKeys),
		Count:        1,
		SampleParams: params,
	}
	for i := range s.rows {
		if s.rows[i].sameKey(row) {
			s.rows[i].Count++
			return
		}
	}
	s.rows = append(s.rows, row)
}

func segmentValue(params map[string]model.Value, segmentationKeys []string) string {
	for _, key := range segmentationKeys {
		if v, ok := params[key]; ok {
			return v.String()
		}
	}
	return ""
}

// Count is the all-time total for eventName across every row (all days and
// all segmentation partitions).
func (s *Store) Count(eventName string) int64 {
	var total int64
	for i := range s.rows {
		if s.rows[i].EventName == eventName {
			total += s.rows[i].Count
		}
	}
	return total
}

// CountWithin totals eventName over the inclusive window of days+1 calendar
// days ending on now's day, i.e. [today-days, today] in the reference zone.
func (s *Store) CountWithin(eventName string, days int, now time.Time) int64 {
	from := DayOffset(now, days)
	today := Day(now)
	var total int64
	for i := range s.rows {
		r := &s.rows[i]
		if r.EventName == eventName && r.Date >= from && r.Date <= today {
			total += r.Count
		}
	}
	return total
}

// Rows returns a copy of the backing rows, for merging across a sync.
func (s *Store) Rows() []Row {
	out := make([]Row, len(s.rows))
	copy(out, s.rows)
	return out
}

// Replace swaps the backing rows wholesale (non-merging sync, or clear).
func (s *Store) Replace(rows []Row) {
	s.rows = rows
}

// Merge unions two row lists: rows sharing a (date, event, segment) key have
// their counts summed, local-only rows are retained unchanged, remote-only
// rows are appended. The per-key totals are commutative and idempotent with
// respect to which side a key came from.
func Merge(local, remote []Row) []Row {
	merged := make([]Row, len(local))
	copy(merged, local)
outer:
	for _, r := range remote {
		for i := range merged {
			if merged[i].sameKey(r) {
				merged[i].Count += r.Count
				continue outer
			}
		}
		merged = append(merged, r)
	}
	return merged
}
