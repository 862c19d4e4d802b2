package ledger

import (
	"strings"
	"time"
)

const (
	idPrefix = "op_"
	idLayout = "20060102T150405.000000000"
)

// idGenerator issues strictly increasing, time-ordered operation ids. Callers
// hold the ledger's write lock while calling next.
type idGenerator struct {
	now  func() time.Time
	last time.Time
}

func newIDGenerator(now func() time.Time) *idGenerator {
	if now == nil {
		now = time.Now
	}
	return &idGenerator{now: now}
}

// next returns an id for max(now, last+1ns), so ids never repeat even when the
// clock stalls or steps backwards.
func (g *idGenerator) next() (string, time.Time) {
	t := g.now().UTC()
	if !t.After(g.last) {
		t = g.last.Add(time.Nanosecond)
	}
	g.last = t
	return FormatID(t), t
}

// observe advances the generator past an id already present in storage.
func (g *idGenerator) observe(id string) {
	if t, ok := ParseID(id); ok && t.After(g.last) {
		g.last = t
	}
}

// FormatID renders t as an operation id.
func FormatID(t time.Time) string {
	return idPrefix + t.UTC().Format(idLayout)
}

// ParseID recovers the time encoded in an operation id.
func ParseID(id string) (time.Time, bool) {
	if !strings.HasPrefix(id, idPrefix) {
		return time.Time{}, false
	}
	t, err := time.Parse(idLayout, strings.TrimPrefix(id, idPrefix))
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
