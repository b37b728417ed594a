/*
cascade.go - Propagate identity changes into analysis rows

WHAT IT DOES:
  1. For every row whose transcriptId is known to the Linker, overwrite the
     denormalized identity fields with the transcript's current values.
  2. Re-sort every sheet into respno order.
  3. Rename context/quote entries keyed by an old respno to the new one.
     An entry already sitting under a respno that a live respondent is
     moving into belonged to nobody live, so it is dropped rather than
     handed to the newcomer.

WHAT IT DOES NOT DO:
  Rows whose transcriptId is unknown are left exactly as they are. Removing
  them is OrphanReconciler's job; cascading never deletes anything.
  transcriptId is the only ownership key here, a row is never matched by
  its respno.
*/
package reconcile

import (
	"sort"
	"strconv"
	"strings"
)

// CascadeStats counts what a cascade changed.
type CascadeStats struct {
	RowsUpdated     int
	SheetsReordered int
	KeysRenamed     int
	KeysDropped     int
}

func (s *CascadeStats) add(o CascadeStats) {
	s.RowsUpdated += o.RowsUpdated
	s.SheetsReordered += o.SheetsReordered
	s.KeysRenamed += o.KeysRenamed
	s.KeysDropped += o.KeysDropped
}

// Cascade applies CascadeAnalysis to every analysis of projectID. Analyses
// of other projects are returned unchanged.
func Cascade(projectID string, analyses []Analysis, linker *Linker, identitySheet string) ([]Analysis, CascadeStats) {
	var total CascadeStats
	out := make([]Analysis, len(analyses))
	for i, a := range analyses {
		if !belongsTo(a, projectID) {
			out[i] = a
			continue
		}
		var stats CascadeStats
		out[i], stats = CascadeAnalysis(a, linker, identitySheet)
		total.add(stats)
	}
	return out, total
}

// CascadeAnalysis rewrites identity fields, reorders sheets and renames
// respno-keyed aux entries of one analysis. The input is not modified.
func CascadeAnalysis(a Analysis, linker *Linker, identitySheet string) (Analysis, CascadeStats) {
	out := CloneAnalysis(a)
	var stats CascadeStats
	renames := make(map[string]string)
	// respnos live rows carried before this pass
	held := make(map[string]bool)

	for _, sheet := range out.SheetNames() {
		rows := out.Data[sheet]
		for _, row := range rows {
			ident, ok := linker.Lookup(rowTranscriptID(row))
			if !ok {
				continue
			}
			old := NormalizeRespno(rowRespno(row))
			if old != "" {
				held[old] = true
			}
			if old != "" && old != NormalizeRespno(ident.Respno) {
				if _, seen := renames[old]; !seen {
					renames[old] = ident.Respno
				}
			}
			if applyIdentity(row, ident) {
				stats.RowsUpdated++
			}
		}
	}

	vacated := make(map[string]bool)
	for _, target := range renames {
		if t := NormalizeRespno(target); !held[t] {
			vacated[t] = true
		}
	}

	pos := identityPositions(out, linker, identitySheet)
	for _, sheet := range out.SheetNames() {
		if sortRows(out.Data[sheet], linker, pos) {
			stats.SheetsReordered++
		}
	}

	for _, aux := range []Aux{out.Context, out.Quotes} {
		moved, dropped := renameAux(aux, renames, vacated)
		stats.KeysRenamed += moved
		stats.KeysDropped += dropped
	}
	return out, stats
}

// applyIdentity writes ident into row and reports whether anything changed.
func applyIdentity(row Row, ident Identity) bool {
	changed := false
	set := func(key, value string) {
		if cur, ok := row[key]; ok {
			if s, isString := cur.(string); isString && s == value {
				return
			}
		}
		row[key] = value
		changed = true
	}

	_, hasRespondentID := row[FieldRespondentID]
	_, hasRespno := row[FieldRespno]
	if hasRespondentID || !hasRespno {
		set(FieldRespondentID, ident.Respno)
	}
	if hasRespno {
		set(FieldRespno, ident.Respno)
	}
	if _, ok := row[FieldInterviewDate]; ok && ident.InterviewDate != "" {
		set(FieldInterviewDate, ident.InterviewDate)
	}
	if _, ok := row[FieldInterviewTime]; ok && ident.InterviewTime != "" {
		set(FieldInterviewTime, ident.InterviewTime)
	}
	return changed
}

// identityPositions maps each transcript to its first row position in the
// identity sheet. It only breaks ties between rows sharing a respno.
func identityPositions(a Analysis, linker *Linker, identitySheet string) map[string]int {
	pos := make(map[string]int)
	for i, row := range a.Data[identitySheet] {
		tid := rowTranscriptID(row)
		if _, ok := linker.Lookup(tid); !ok {
			continue
		}
		if _, dup := pos[tid]; !dup {
			pos[tid] = i
		}
	}
	return pos
}

// sortRows stable-sorts rows in place and reports whether the order moved.
// Linked rows come first by respno sequence, whether or not the identity
// sheet lists them; rows without a live transcript keep their original
// order at the end.
func sortRows(rows []Row, linker *Linker, pos map[string]int) bool {
	type keyed struct {
		row    Row
		pos    int
		linked bool
		seq    int
		idPos  int
	}
	items := make([]keyed, len(rows))
	for i, row := range rows {
		tid := rowTranscriptID(row)
		ident, linked := linker.Lookup(tid)
		idPos, inID := pos[tid]
		if !inID {
			idPos = len(pos)
		}
		items[i] = keyed{row: row, pos: i, linked: linked, seq: ident.Seq, idPos: idPos}
	}
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if a.linked != b.linked {
			return a.linked
		}
		if !a.linked {
			return false
		}
		if a.seq != b.seq {
			return a.seq < b.seq
		}
		return a.idPos < b.idPos
	})
	moved := false
	for i := range items {
		if items[i].pos != i {
			moved = true
		}
		rows[i] = items[i].row
	}
	return moved
}

// renameAux moves entries keyed by an old respno to the new respno, in both
// the sheet level and one nested level. Entries under a vacated respno that
// is not itself being renamed are dropped first, so a moved entry never
// inherits text left behind by someone else.
func renameAux(aux Aux, renames map[string]string, vacated map[string]bool) (moved, dropped int) {
	if len(renames) == 0 || aux == nil {
		return 0, 0
	}
	for sheet, entries := range aux {
		var m, d int
		aux[sheet], m, d = renameKeys(entries, renames, vacated)
		moved += m
		dropped += d
		for k, v := range aux[sheet] {
			if nested, ok := v.(map[string]any); ok {
				aux[sheet][k], m, d = renameKeys(nested, renames, vacated)
				moved += m
				dropped += d
			}
		}
	}
	return moved, dropped
}

func renameKeys(entries map[string]any, renames map[string]string, vacated map[string]bool) (map[string]any, int, int) {
	if entries == nil {
		return nil, 0, 0
	}
	out := make(map[string]any, len(entries))
	dropped := 0
	for k, v := range entries {
		if _, ok := renameTarget(k, renames); ok {
			continue
		}
		if _, isRespno := ParseRespno(k); isRespno && vacated[NormalizeRespno(k)] {
			dropped++
			continue
		}
		out[k] = v
	}
	moved := 0
	for _, k := range sortedKeys(entries) {
		if target, ok := renameTarget(k, renames); ok {
			out[target] = entries[k]
			moved++
		}
	}
	return out, moved, dropped
}

func renameTarget(key string, renames map[string]string) (string, bool) {
	if _, ok := ParseRespno(key); !ok {
		return "", false
	}
	target, ok := renames[NormalizeRespno(key)]
	return target, ok
}

// =============================================================================
// ROW ACCESSORS
// =============================================================================

func rowTranscriptID(row Row) string {
	return rowString(row, FieldTranscriptID)
}

// rowRespno prefers Respondent ID, the column the editor displays.
func rowRespno(row Row) string {
	if s := rowString(row, FieldRespondentID); s != "" {
		return s
	}
	return rowString(row, FieldRespno)
}

func rowString(row Row, key string) string {
	switch v := row[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	default:
		return ""
	}
}

func belongsTo(a Analysis, projectID string) bool {
	return a.ProjectID == projectID || a.ProjectID == ""
}
