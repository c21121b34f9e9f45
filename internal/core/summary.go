package core

import (
	"sort"
)

// GroupByDay groups records by calendar day in ascending day order. Items
// inside a day keep the order of the input slice.
func GroupByDay(records []ExpenseRecord) []DayGroup {
	index := make(map[DayKey]int)
	groups := make([]DayGroup, 0)
	for _, r := range records {
		i, ok := index[r.DayKey]
		if !ok {
			i = len(groups)
			index[r.DayKey] = i
			groups = append(groups, DayGroup{Date: r.DayKey, Items: []DayItem{}, Total: ZeroAmount})
		}
		groups[i].Items = append(groups[i].Items, r.Item())
		groups[i].Total = groups[i].Total.Add(r.Amount)
	}
	// DayKey is YYYY-MM-DD so lexical order is chronological.
	sort.SliceStable(groups, func(a, b int) bool {
		return groups[a].Date < groups[b].Date
	})
	return groups
}

// DayGroupOf returns the single group for key; an empty day has no items and
// a zero total.
func DayGroupOf(key DayKey, records []ExpenseRecord) DayGroup {
	group := DayGroup{Date: key, Items: []DayItem{}, Total: ZeroAmount}
	for _, r := range records {
		if r.DayKey != key {
			continue
		}
		group.Items = append(group.Items, r.Item())
		group.Total = group.Total.Add(r.Amount)
	}
	return group
}

// SummarizeByCategory totals records per category, sorted by total
// descending. Ties keep the order in which categories first appear.
func SummarizeByCategory(records []ExpenseRecord) []CategoryTotal {
	index := make(map[Category]int)
	totals := make([]CategoryTotal, 0)
	for _, r := range records {
		i, ok := index[r.Category]
		if !ok {
			i = len(totals)
			index[r.Category] = i
			totals = append(totals, CategoryTotal{Category: r.Category, Total: ZeroAmount})
		}
		totals[i].Total = totals[i].Total.Add(r.Amount)
		totals[i].Count++
	}
	sort.SliceStable(totals, func(a, b int) bool {
		return totals[a].Total.Cmp(totals[b].Total) > 0
	})
	return totals
}

// CoalesceEntries collapses entries sharing a (day, category) key. The last
// entry in input order wins; the result keeps first-appearance order.
func CoalesceEntries(entries []Entry) []Entry {
	type key struct {
		day DayKey
		cat Category
	}
	index := make(map[key]int)
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		k := key{day: e.DayKey, cat: e.Category}
		if i, ok := index[k]; ok {
			out[i] = e
			continue
		}
		index[k] = len(out)
		out = append(out, e)
	}
	return out
}

// Bucket is one category of a day replacement after coalescing.
type Bucket struct {
	Category Category
	Amount   Amount
	Note     string
}

// BucketItem is a validated day replacement item.
type BucketItem struct {
	Amount   Amount
	Category Category
	Note     string
}

// CoalesceBuckets sums items per category. Within a bucket the first
// non-empty note in input order is kept. Buckets keep first-appearance order.
func CoalesceBuckets(items []BucketItem) []Bucket {
	index := make(map[Category]int)
	out := make([]Bucket, 0, len(items))
	for _, it := range items {
		i, ok := index[it.Category]
		if !ok {
			index[it.Category] = len(out)
			out = append(out, Bucket{Category: it.Category, Amount: it.Amount, Note: it.Note})
			continue
		}
		out[i].Amount = out[i].Amount.Add(it.Amount)
		if out[i].Note == "" {
			out[i].Note = it.Note
		}
	}
	return out
}
