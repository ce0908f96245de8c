// Package filter computes filtered record subsets and dependent dropdown
// option sets from the record store.
package filter

import (
	"fmt"
	"sort"

	lru "github.com/hashicorp/golang-lru/v2"

	"schoolmap-api/internal/core/model"
	"schoolmap-api/internal/dataset"
)

// Apply returns every record matching the selection, in input order. A level
// set to the sentinel places no constraint; concrete values match exactly and
// case-sensitively.
func Apply(store *dataset.Store, sel model.Selection) []model.SchoolRecord {
	all := store.All()
	out := make([]model.SchoolRecord, 0, len(all))
	for _, r := range all {
		if sel.Matches(r) {
			out = append(out, r)
		}
	}
	return out
}

// Options computes the option set for level: records are restricted by the
// selection at levels strictly above it (sentinel fields ignored), the
// level's field is projected, blanks dropped, and the result deduplicated
// and sorted ascending. The sentinel itself is never included.
func Options(store *dataset.Store, sel model.Selection, level model.Level) []string {
	seen := make(map[string]struct{})
	for _, r := range store.All() {
		if !matchesAbove(r, sel, level) {
			continue
		}
		v := r.Field(level)
		if v == "" {
			continue
		}
		seen[v] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for v := range seen {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

func matchesAbove(r model.SchoolRecord, sel model.Selection, level model.Level) bool {
	for _, lv := range model.Levels() {
		if lv >= level {
			return true
		}
		if v := sel.Value(lv); v != model.All && r.Field(lv) != v {
			return false
		}
	}
	return true
}

// Engine fronts the pure functions with the store handle and an LRU memo of
// computed option sets, keyed by dataset version so a version bump leaves
// stale entries behind.
type Engine struct {
	store *dataset.Store
	memo  *lru.Cache[string, []string]
}

func NewEngine(store *dataset.Store, memoSize int) *Engine {
	e := &Engine{store: store}
	if memoSize > 0 {
		c, _ := lru.New[string, []string](memoSize)
		e.memo = c
	}
	return e
}

func (e *Engine) Store() *dataset.Store {
	return e.store
}

func (e *Engine) Apply(sel model.Selection) []model.SchoolRecord {
	return Apply(e.store, sel)
}

func (e *Engine) Options(sel model.Selection, level model.Level) []string {
	if e.memo == nil {
		return Options(e.store, sel, level)
	}
	k := memoKey(e.store.Version(), sel, level)
	if v, ok := e.memo.Get(k); ok {
		return v
	}
	v := Options(e.store, sel, level)
	e.memo.Add(k, v)
	return v
}

// FlushMemo drops every memoized option set. Called on dataset invalidation.
func (e *Engine) FlushMemo() {
	if e.memo != nil {
		e.memo.Purge()
	}
}

// memoKey covers only the selection prefix above level; lower levels never
// influence the computed set.
func memoKey(version uint64, sel model.Selection, level model.Level) string {
	k := fmt.Sprintf("v%d:%s", version, level)
	for _, lv := range model.Levels() {
		if lv >= level {
			break
		}
		k += ":" + sel.Value(lv)
	}
	return k
}
