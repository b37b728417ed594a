/*
duplicate.go - Detect interviews uploaded twice

Two records are duplicates when their trimmed (interview date, interview
time) pair is identical. A record missing either half is not comparable and
is never a duplicate. The first occurrence is the original; every later one
is the duplicate.

POLICY:
  - Upload: flag, and let the user confirm before creating (CheckCandidate).
  - Background sweep over persisted data: drop later duplicates silently,
    keeping first-seen order (DropDuplicateTranscripts, DropDuplicateRows).
*/
package reconcile

import "strings"

// DateTimeKey is the comparison key for duplicate detection.
type DateTimeKey struct {
	Date string
	Time string
}

func (k DateTimeKey) normalized() (DateTimeKey, bool) {
	n := DateTimeKey{Date: strings.TrimSpace(k.Date), Time: strings.TrimSpace(k.Time)}
	return n, n.Date != "" && n.Time != ""
}

// FlagDuplicates marks every occurrence after the first of each key.
func FlagDuplicates(keys []DateTimeKey) []bool {
	flags := make([]bool, len(keys))
	seen := make(map[DateTimeKey]bool, len(keys))
	for i, k := range keys {
		n, ok := k.normalized()
		if !ok {
			continue
		}
		if seen[n] {
			flags[i] = true
			continue
		}
		seen[n] = true
	}
	return flags
}

// DuplicateGroup is a set of transcripts sharing one interview date and time.
// TranscriptIDs[0] is the original.
type DuplicateGroup struct {
	InterviewDate string   `json:"interviewDate"`
	InterviewTime string   `json:"interviewTime"`
	TranscriptIDs []string `json:"transcriptIds"`
	Respnos       []string `json:"respnos"`
}

// DetectDuplicates groups the transcripts of projectID that share an
// interview date and time. Groups are ordered by their first member.
func DetectDuplicates(projectID string, transcripts []Transcript) []DuplicateGroup {
	var groups []DuplicateGroup
	index := make(map[DateTimeKey]int)
	for _, t := range transcripts {
		if t.ProjectID != projectID && t.ProjectID != "" {
			continue
		}
		n, ok := transcriptKey(t).normalized()
		if !ok {
			continue
		}
		i, seen := index[n]
		if !seen {
			index[n] = len(groups)
			groups = append(groups, DuplicateGroup{InterviewDate: n.Date, InterviewTime: n.Time})
			i = len(groups) - 1
		}
		groups[i].TranscriptIDs = append(groups[i].TranscriptIDs, t.ID)
		groups[i].Respnos = append(groups[i].Respnos, t.Respno)
	}

	out := groups[:0]
	for _, g := range groups {
		if len(g.TranscriptIDs) > 1 {
			out = append(out, g)
		}
	}
	return out
}

// CheckCandidate returns a *DuplicateError when candidate repeats the
// interview date and time of an existing transcript.
func CheckCandidate(existing []Transcript, candidate Transcript) error {
	c, ok := transcriptKey(candidate).normalized()
	if !ok {
		return nil
	}
	for _, t := range existing {
		if t.ID == candidate.ID {
			continue
		}
		if n, ok := transcriptKey(t).normalized(); ok && n == c {
			return &DuplicateError{
				ProjectID:     candidate.ProjectID,
				InterviewDate: c.Date,
				InterviewTime: c.Time,
				Existing:      t,
			}
		}
	}
	return nil
}

// DropDuplicateTranscripts keeps the first transcript of every date/time
// pair and returns the rest separately. Order is preserved.
func DropDuplicateTranscripts(ts []Transcript) (kept, dropped []Transcript) {
	keys := make([]DateTimeKey, len(ts))
	for i, t := range ts {
		keys[i] = transcriptKey(t)
	}
	for i, dup := range FlagDuplicates(keys) {
		if dup {
			dropped = append(dropped, ts[i])
			continue
		}
		kept = append(kept, ts[i])
	}
	return kept, dropped
}

// DropDuplicateRows removes, per sheet, rows repeating an earlier row's
// transcriptId or its interview date and time. It returns the cleaned
// analysis and the number of rows dropped.
func DropDuplicateRows(a Analysis) (Analysis, int) {
	out := CloneAnalysis(a)
	dropped := 0
	for _, sheet := range out.SheetNames() {
		rows := out.Data[sheet]
		keys := make([]DateTimeKey, len(rows))
		for i, row := range rows {
			keys[i] = DateTimeKey{
				Date: rowString(row, FieldInterviewDate),
				Time: rowString(row, FieldInterviewTime),
			}
		}
		flags := FlagDuplicates(keys)
		seenIDs := make(map[string]bool)
		kept := rows[:0]
		for i, row := range rows {
			tid := rowTranscriptID(row)
			if flags[i] || (tid != "" && seenIDs[tid]) {
				dropped++
				continue
			}
			if tid != "" {
				seenIDs[tid] = true
			}
			kept = append(kept, row)
		}
		out.Data[sheet] = kept
	}
	return out, dropped
}

func transcriptKey(t Transcript) DateTimeKey {
	return DateTimeKey{Date: t.InterviewDate, Time: t.InterviewTime}
}
