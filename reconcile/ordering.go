/*
ordering.go - Chronological ordering and respno numbering

RULES:
  1. Transcripts sort by interview date. Dates that cannot be parsed, or are
     absent, sort after every dated transcript.
  2. Equal or absent dates keep their input order (stable sort).
  3. Locked transcripts keep their respno verbatim and still occupy it.
  4. Everyone else is numbered 1, 2, 3, ... in sorted order, skipping any
     number a locked transcript holds. R01..R99, then R100, R101, ...

Applying the policy to its own output changes nothing.
*/
package reconcile

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

// =============================================================================
// RESPNO FORMAT
// =============================================================================

var respnoPattern = regexp.MustCompile(`^[Rr]\s*0*(\d+)$`)

// FormatRespno renders sequence number n as a respno.
func FormatRespno(n int) string {
	if n < 10 {
		return "R0" + strconv.Itoa(n)
	}
	return "R" + strconv.Itoa(n)
}

// ParseRespno extracts the sequence number from a respno such as "R07".
// Legacy spellings ("r7", "R 7") are accepted.
func ParseRespno(s string) (int, bool) {
	m := respnoPattern.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}

// NormalizeRespno returns the canonical spelling of s, or s trimmed when it
// is not a respno.
func NormalizeRespno(s string) string {
	if n, ok := ParseRespno(s); ok {
		return FormatRespno(n)
	}
	return strings.TrimSpace(s)
}

// =============================================================================
// INTERVIEW DATES
// =============================================================================

// DefaultDateLayouts are the interview date spellings produced by the
// upload pipeline and by manual edits in the dashboard.
var DefaultDateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"01/02/2006",
	"1/2/2006",
	"01/02/06",
	"1/2/06",
	"January 2, 2006",
	"January 2 2006",
	"Jan 2, 2006",
	"Jan 2 2006",
	"Jan. 2, 2006",
	"2 January 2006",
	"2 Jan 2006",
	"Monday, January 2, 2006",
	"Mon, Jan 2, 2006",
	time.RFC3339,
}

var ordinalSuffix = regexp.MustCompile(`(\d+)(st|nd|rd|th)\b`)

// =============================================================================
// ORDERING POLICY
// =============================================================================

// OrderingPolicy sorts a project's transcripts chronologically and numbers
// them. The zero value uses DefaultDateLayouts.
type OrderingPolicy struct {
	Layouts []string
}

// DefaultOrderingPolicy returns the policy used by the dashboard.
func DefaultOrderingPolicy() OrderingPolicy {
	return OrderingPolicy{Layouts: DefaultDateLayouts}
}

// ParseDate parses an interview date. ok is false for absent or unrecognized
// values; such transcripts are unordered rather than an error.
func (p OrderingPolicy) ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	s = ordinalSuffix.ReplaceAllString(s, "$1")
	layouts := p.Layouts
	if len(layouts) == 0 {
		layouts = DefaultDateLayouts
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), true
		}
	}
	return time.Time{}, false
}

// Sort returns ts in chronological order. Input is not modified.
func (p OrderingPolicy) Sort(ts []Transcript) []Transcript {
	type keyed struct {
		t     Transcript
		at    time.Time
		dated bool
	}
	items := make([]keyed, len(ts))
	for i, t := range ts {
		at, ok := p.ParseDate(t.InterviewDate)
		items[i] = keyed{t: t, at: at, dated: ok}
	}
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if a.dated != b.dated {
			return a.dated
		}
		if !a.dated {
			return false
		}
		return a.at.Before(b.at)
	})
	out := make([]Transcript, len(items))
	for i, it := range items {
		out[i] = it.t
	}
	return out
}

// Number assigns respnos to an already sorted slice in place.
func (p OrderingPolicy) Number(sorted []Transcript) {
	held := make(map[int]bool)
	for _, t := range sorted {
		if !t.RespnoLocked {
			continue
		}
		if n, ok := ParseRespno(t.Respno); ok {
			held[n] = true
		}
	}

	seq := 1
	for i := range sorted {
		t := &sorted[i]
		if t.RespnoLocked && strings.TrimSpace(t.Respno) != "" {
			continue
		}
		for held[seq] {
			seq++
		}
		t.Respno = FormatRespno(seq)
		seq++
	}
}

// Apply sorts ts and numbers the result.
func (p OrderingPolicy) Apply(ts []Transcript) []Transcript {
	sorted := p.Sort(ts)
	p.Number(sorted)
	return sorted
}
