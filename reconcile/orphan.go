/*
orphan.go - Remove analysis rows whose transcript no longer exists

RULES:
  - A row with a transcriptId is kept only if that transcript is live.
  - A legacy row without a transcriptId is kept only if its respno is held
    by a live transcript. Rows carrying neither are not respondent rows
    (notes, blank template rows) and are always kept.
  - context/quotes entries keyed by a respno nobody holds, or by the
    transcriptId of a removed row, are purged.
  - Every sheet is judged on its own rows. A sheet is never trimmed because
    another sheet has a different length.
*/
package reconcile

// LiveIdentities answers whether an identity still exists. Linker
// implements it.
type LiveIdentities interface {
	HasTranscript(id string) bool
	HasRespno(respno string) bool
}

// RemoveOrphans applies RemoveAnalysisOrphans to every analysis of projectID.
func RemoveOrphans(projectID string, analyses []Analysis, live LiveIdentities) ([]Analysis, []OrphanReport) {
	out := make([]Analysis, len(analyses))
	var reports []OrphanReport
	for i, a := range analyses {
		if !belongsTo(a, projectID) {
			out[i] = a
			continue
		}
		var report OrphanReport
		out[i], report = RemoveAnalysisOrphans(a, live)
		if report.Removed() > 0 || report.AuxPurged > 0 {
			reports = append(reports, report)
		}
	}
	return out, reports
}

// RemoveAnalysisOrphans drops orphan rows and stale aux entries from a.
// The input is not modified.
func RemoveAnalysisOrphans(a Analysis, live LiveIdentities) (Analysis, OrphanReport) {
	out := CloneAnalysis(a)
	report := OrphanReport{AnalysisID: a.ID}
	removedIDs := make(map[string]bool)

	for _, sheet := range out.SheetNames() {
		rows := out.Data[sheet]
		kept := rows[:0]
		for _, row := range rows {
			if isOrphan(row, live) {
				if tid := rowTranscriptID(row); tid != "" {
					removedIDs[tid] = true
				}
				continue
			}
			kept = append(kept, row)
		}
		if removed := len(rows) - len(kept); removed > 0 {
			if report.RemovedBySheet == nil {
				report.RemovedBySheet = make(map[string]int)
			}
			report.RemovedBySheet[sheet] = removed
		}
		out.Data[sheet] = kept
	}

	stale := func(key string) bool {
		if removedIDs[key] {
			return true
		}
		if _, ok := ParseRespno(key); ok {
			return !live.HasRespno(key)
		}
		return false
	}
	report.AuxPurged += purgeAux(out.Context, stale)
	report.AuxPurged += purgeAux(out.Quotes, stale)
	return out, report
}

func isOrphan(row Row, live LiveIdentities) bool {
	if tid := rowTranscriptID(row); tid != "" {
		return !live.HasTranscript(tid)
	}
	if r := rowRespno(row); r != "" {
		if _, ok := ParseRespno(r); ok {
			return !live.HasRespno(r)
		}
	}
	return false
}

func purgeAux(aux Aux, stale func(string) bool) int {
	n := 0
	for _, entries := range aux {
		for k, v := range entries {
			if stale(k) {
				delete(entries, k)
				n++
				continue
			}
			if nested, ok := v.(map[string]any); ok {
				for nk := range nested {
					if stale(nk) {
						delete(nested, nk)
						n++
					}
				}
			}
		}
	}
	return n
}
