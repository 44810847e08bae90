// Package recommend defines the contract a recommender under evaluation
// satisfies, plus small adapters around it.
package recommend

import (
	"context"
	"iter"
	"slices"

	"github.com/okian/refeval/internal/domain/record"
)

// Recommender produces identifiers related to a record, most relevant first.
// The returned sequence may be lazy or unbounded; consumers stop pulling once
// they have what they need.
type Recommender interface {
	Recommend(ctx context.Context, rec record.Record) (iter.Seq[string], error)
}

// Func adapts a plain function to Recommender.
type Func func(ctx context.Context, rec record.Record) (iter.Seq[string], error)

// Recommend calls f.
func (f Func) Recommend(ctx context.Context, rec record.Record) (iter.Seq[string], error) {
	return f(ctx, rec)
}

// Slice returns a sequence over ids.
func Slice(ids ...string) iter.Seq[string] {
	return slices.Values(ids)
}

// Take pulls at most n items from seq and stops the iteration there, so
// items past the n-th are never produced.
func Take(seq iter.Seq[string], n int) []string {
	if seq == nil || n <= 0 {
		return nil
	}
	out := make([]string, 0, min(n, 16))
	for id := range seq {
		out = append(out, id)
		if len(out) == n {
			break
		}
	}
	return out
}

// SelfAndFirstReference recommends the record itself followed by the target
// of its first reference entry, when that entry links to a record.
var SelfAndFirstReference = Func(func(_ context.Context, rec record.Record) (iter.Seq[string], error) {
	ids := []string{rec.ID}
	if id, ok := record.LinkedID(rec.Field(record.ReferencesPath).Get("0")); ok {
		ids = append(ids, id)
	}
	return Slice(ids...), nil
})
