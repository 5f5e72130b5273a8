package ledger

import (
	"sort"
	"strconv"
	"strings"
)

// MergeResult is the outcome of one reconciliation pass.
type MergeResult struct {
	Records    []TradeRecord // deduplicated, timestamp descending
	Duplicates int           // records dropped as duplicates
	Malformed  int           // records dropped as unusable
}

// economicKey identifies a broker-side execution independent of which query
// path reported it: order id (falling back to trade id), symbol, timestamp,
// price, quantity. Partial fills of one order differ in price/quantity/time
// and stay distinct; the same execution reported by the fills and the
// order-history endpoints collides and collapses to one record.
func economicKey(r TradeRecord) string {
	oid := r.OrderID
	if oid == "" {
		oid = r.ID
	}

	ts := ""
	if !r.Time.IsZero() {
		ts = strconv.FormatInt(r.Time.UnixMilli(), 10)
	}

	return strings.Join([]string{
		oid,
		r.Symbol,
		ts,
		formatFloat(r.Price),
		formatFloat(r.Quantity),
	}, keyDelimiter)
}

// Merge reconciles trade batches from up to three broker query paths into
// one deduplicated ledger slice ordered by timestamp descending.
//
// Duplicate detection runs on two levels: the full composite UID catches
// the same endpoint reporting an execution twice, and the content-derived
// economic key catches two endpoints reporting the same execution. When
// sources disagree on the same execution, precedence is
// fills > order history > fallback.
//
// Merge is stateless: callers polling incrementally own a seen-key set and
// use MergeSeen instead.
func Merge(batches ...[]TradeRecord) MergeResult {
	return MergeSeen(nil, batches...)
}

// MergeSeen behaves like Merge but also skips (and counts as duplicates)
// any record already accepted by an earlier poll. Both the composite UID
// and the economic key of accepted records go into seen: a later poll may
// report an already-applied execution through a different endpoint, where
// only the economic key can identify it.
func MergeSeen(seen map[string]bool, batches ...[]TradeRecord) MergeResult {
	var res MergeResult

	byExec := make(map[string]TradeRecord)
	uids := make(map[string]bool)

	for _, batch := range batches {
		for _, r := range batch {
			if r.Malformed() {
				res.Malformed++
				continue
			}

			uid := r.Key()
			ek := economicKey(r)
			if uids[uid] || (seen != nil && (seen[uid] || seen[ek])) {
				res.Duplicates++
				continue
			}
			uids[uid] = true

			if prev, ok := byExec[ek]; ok {
				res.Duplicates++
				// Keep the stronger source on a content collision.
				if r.Source.priority() < prev.Source.priority() {
					byExec[ek] = r
				}
				continue
			}
			byExec[ek] = r
		}
	}

	res.Records = make([]TradeRecord, 0, len(byExec))
	for _, r := range byExec {
		res.Records = append(res.Records, r)
		if seen != nil {
			seen[r.Key()] = true
			seen[economicKey(r)] = true
		}
	}

	sort.Slice(res.Records, func(i, j int) bool {
		a, b := res.Records[i], res.Records[j]
		if !a.Time.Equal(b.Time) {
			return a.Time.After(b.Time)
		}
		if a.Source != b.Source {
			return a.Source.priority() < b.Source.priority()
		}
		return a.Key() < b.Key()
	})

	return res
}
