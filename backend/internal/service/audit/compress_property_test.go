package audit

import (
	"testing"
	"time"

	auditdomain "rescue-go-app/backend/internal/domain/audit"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// recordsFromSeeds 把整型种子映射到一个小值域的记录集合，
// 制造大量可合并与不可合并的组合。
func recordsFromSeeds(seeds []int) []auditdomain.Record {
	records := make([]auditdomain.Record, 0, len(seeds))
	for _, seed := range seeds {
		if seed < 0 {
			seed = -seed
		}
		userID := uint(seed % 3)
		rec := auditdomain.Record{
			Timestamp:       compressBase.Add(time.Duration(seed%300) * time.Second),
			Action:          []string{"create", "update", "login_failed"}[seed%3],
			Success:         true,
			OccurrenceCount: 1,
		}
		if userID > 0 {
			rec.UserID = &userID
		}
		if seed%2 == 0 {
			rec.Details = map[string]any{"idx": float64(seed % 4)}
		}
		records = append(records, rec)
	}
	return records
}

func TestCompressProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("count conservation: no event is lost or invented", prop.ForAll(
		func(seeds []int) bool {
			records := recordsFromSeeds(seeds)
			out := Compress(records, DefaultCompressWindow)
			return SumOccurrences(out) == len(records)
		},
		gen.SliceOf(gen.IntRange(0, 10000)),
	))

	properties.Property("idempotence: re-compressing compressed output is a no-op", prop.ForAll(
		func(seeds []int) bool {
			records := recordsFromSeeds(seeds)
			once := Compress(records, DefaultCompressWindow)
			twice := Compress(once, DefaultCompressWindow)
			if len(once) != len(twice) {
				return false
			}
			for i := range once {
				if once[i].OccurrenceCount != twice[i].OccurrenceCount ||
					!once[i].Timestamp.Equal(twice[i].Timestamp) ||
					!once[i].SameMergeKey(twice[i]) {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.IntRange(0, 10000)),
	))

	properties.Property("last_occurrence is set exactly when a merge happened", prop.ForAll(
		func(seeds []int) bool {
			out := Compress(recordsFromSeeds(seeds), DefaultCompressWindow)
			for _, rec := range out {
				if rec.OccurrenceCount < 1 {
					return false
				}
				if (rec.OccurrenceCount > 1) != (rec.LastOccurrence != nil) {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.IntRange(0, 10000)),
	))

	properties.TestingRun(t)
}
