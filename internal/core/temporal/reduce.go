package temporal

import (
	"sort"

	"github.com/agenthands/chronicle/internal/core/model"
)

// Precedes is the ledger order: ascending ValidFrom, then InsertedAt, then Seq.
// The last qualifying record in this order is the current value.
func Precedes[P any](a, b model.Record[P]) bool {
	if a.ValidFrom != b.ValidFrom {
		return a.ValidFrom < b.ValidFrom
	}
	if !a.InsertedAt.Equal(b.InsertedAt) {
		return a.InsertedAt.Before(b.InsertedAt)
	}
	return a.Seq < b.Seq
}

func SortRecords[P any](recs []model.Record[P]) {
	sort.SliceStable(recs, func(i, j int) bool { return Precedes(recs[i], recs[j]) })
}

// LatestAsOf returns the record with the greatest ValidFrom <= t.
func LatestAsOf[P any](recs []model.Record[P], t model.Timestamp) (model.Record[P], bool) {
	var best model.Record[P]
	found := false
	for _, r := range recs {
		if r.ValidFrom > t {
			continue
		}
		if !found || Precedes(best, r) {
			best = r
			found = true
		}
	}
	return best, found
}

// ReduceAsOf keeps one record per distinct subject key: the latest as of t.
// Subjects without a qualifying record are omitted. The result is sorted by
// subject key. Callers filter on payload fields only after this reduction,
// otherwise an older record could stand in for a newer one that no longer
// qualifies.
func ReduceAsOf[P any](recs []model.Record[P], t model.Timestamp) []model.Record[P] {
	latest := make(map[model.SubjectKey]model.Record[P])
	for _, r := range recs {
		if r.ValidFrom > t {
			continue
		}
		if cur, ok := latest[r.Subject]; !ok || Precedes(cur, r) {
			latest[r.Subject] = r
		}
	}

	out := make([]model.Record[P], 0, len(latest))
	for _, r := range latest {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Subject.Less(out[j].Subject) })
	return out
}
