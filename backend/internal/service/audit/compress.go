/*
 * @Author: NEFU AB-IN
 * @Date: 2025-10-18 10:31:02
 * @FilePath: \rescue-go-app\backend\internal\service\audit\compress.go
 * @LastEditTime: 2025-10-18 10:31:08
 */
package audit

import (
	"sort"
	"strings"
	"time"

	auditdomain "rescue-go-app/backend/internal/domain/audit"
)

// DefaultCompressWindow 是刷盘前合并重复事件的时间窗口。
const DefaultCompressWindow = 60 * time.Second

// Compress 把窗口内重复的审计记录合并为一条，重复次数累加到 occurrence_count。
// 排序键为 (user_id, action, resource_type, resource_id, details, timestamp)，
// 保证相同事件相邻且合并结果与入队顺序无关。
//
// 窗口以合并候选的原始 timestamp 为锚点：只要事件与候选首次发生时间相距不超过
// window 即可合并（边界取闭区间），候选的时间戳在合并过程中不前移，因此一条
// 合并链的跨度不会超过一个窗口，对已压缩的输出再次压缩是幂等的。
func Compress(records []auditdomain.Record, window time.Duration) []auditdomain.Record {
	if len(records) == 0 {
		return nil
	}

	items := make([]compressItem, len(records))
	for i, rec := range records {
		items[i] = compressItem{rec: rec, fingerprint: rec.DetailsFingerprint()}
	}
	sort.SliceStable(items, func(i, j int) bool {
		return lessItem(items[i], items[j])
	})

	out := make([]auditdomain.Record, 0, len(items))
	fingerprints := make([]string, 0, len(items))
	for _, item := range items {
		rec := item.rec
		if rec.OccurrenceCount < 1 {
			rec.OccurrenceCount = 1
		}

		if len(out) > 0 {
			cur := &out[len(out)-1]
			if fingerprints[len(out)-1] == item.fingerprint &&
				auditdomain.EqualUintPtr(cur.UserID, rec.UserID) &&
				cur.Action == rec.Action &&
				auditdomain.EqualStringPtr(cur.ResourceType, rec.ResourceType) &&
				auditdomain.EqualUintPtr(cur.ResourceID, rec.ResourceID) &&
				!rec.Timestamp.After(cur.Timestamp.Add(window)) {
				mergeInto(cur, rec)
				continue
			}
		}

		out = append(out, rec)
		fingerprints = append(fingerprints, item.fingerprint)
	}
	return out
}

// SumOccurrences 统计一组记录代表的原始事件总数，用于校验压缩不丢事件。
func SumOccurrences(records []auditdomain.Record) int {
	total := 0
	for _, rec := range records {
		if rec.OccurrenceCount < 1 {
			total++
			continue
		}
		total += rec.OccurrenceCount
	}
	return total
}

type compressItem struct {
	rec         auditdomain.Record
	fingerprint string
}

// mergeInto 把 rec 并入候选：次数累加、last_occurrence 取最晚时间。
func mergeInto(cur *auditdomain.Record, rec auditdomain.Record) {
	cur.OccurrenceCount += rec.OccurrenceCount

	last := rec.Timestamp
	if rec.LastOccurrence != nil && rec.LastOccurrence.After(last) {
		last = *rec.LastOccurrence
	}
	if cur.LastOccurrence != nil && cur.LastOccurrence.After(last) {
		last = *cur.LastOccurrence
	}
	cur.LastOccurrence = &last
}

// lessItem 定义记录的全序：可空字段按 nil 在前排列。
func lessItem(a, b compressItem) bool {
	if c := compareUintPtr(a.rec.UserID, b.rec.UserID); c != 0 {
		return c < 0
	}
	if c := strings.Compare(a.rec.Action, b.rec.Action); c != 0 {
		return c < 0
	}
	if c := compareStringPtr(a.rec.ResourceType, b.rec.ResourceType); c != 0 {
		return c < 0
	}
	if c := compareUintPtr(a.rec.ResourceID, b.rec.ResourceID); c != 0 {
		return c < 0
	}
	if c := strings.Compare(a.fingerprint, b.fingerprint); c != 0 {
		return c < 0
	}
	return a.rec.Timestamp.Before(b.rec.Timestamp)
}

func compareUintPtr(a, b *uint) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	case *a < *b:
		return -1
	case *a > *b:
		return 1
	default:
		return 0
	}
}

func compareStringPtr(a, b *string) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	default:
		return strings.Compare(*a, *b)
	}
}
