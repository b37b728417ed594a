package reconcile

import "strings"

// Identity is the current identity of one transcript as seen by analyses.
type Identity struct {
	TranscriptID  string
	Respno        string
	InterviewDate string
	InterviewTime string

	// Seq is the respno sequence number, used to order sheet rows.
	// Unparseable respnos sort after all numbered ones, in collection order.
	Seq int
}

const unnumberedSeq = 1 << 30

// Linker maps transcript ids to their current respno. It is built fresh
// from the post-assignment collection on every pass and never cached.
type Linker struct {
	byID     map[string]Identity
	byRespno map[string]string
}

// NewLinker indexes ts. Transcripts without an id are skipped.
func NewLinker(ts []Transcript) *Linker {
	l := &Linker{
		byID:     make(map[string]Identity, len(ts)),
		byRespno: make(map[string]string, len(ts)),
	}
	for i, t := range ts {
		if t.ID == "" {
			continue
		}
		seq, ok := ParseRespno(t.Respno)
		if !ok {
			seq = unnumberedSeq + i
		}
		// Rows copy the respno as the transcript spells it; lookups by
		// respno go through the normalized form.
		r := NormalizeRespno(t.Respno)
		l.byID[t.ID] = Identity{
			TranscriptID:  t.ID,
			Respno:        strings.TrimSpace(t.Respno),
			InterviewDate: t.InterviewDate,
			InterviewTime: t.InterviewTime,
			Seq:           seq,
		}
		if r != "" {
			if _, taken := l.byRespno[r]; !taken {
				l.byRespno[r] = t.ID
			}
		}
	}
	return l
}

// Lookup returns the identity of transcript id.
func (l *Linker) Lookup(id string) (Identity, bool) {
	ident, ok := l.byID[id]
	return ident, ok
}

// HasTranscript reports whether id is a live transcript.
func (l *Linker) HasTranscript(id string) bool {
	_, ok := l.byID[id]
	return ok
}

// HasRespno reports whether respno is currently held by a live transcript.
func (l *Linker) HasRespno(respno string) bool {
	_, ok := l.byRespno[NormalizeRespno(respno)]
	return ok
}
