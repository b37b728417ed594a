package reconcile

import "strings"

// Assignment is the result of running RespnoAssigner over a collection.
type Assignment struct {
	// Transcripts is the project's transcripts in chronological order
	// followed by transcripts of other projects, untouched.
	Transcripts []Transcript

	// Changes lists every transcript of the project whose respno moved.
	Changes []RespnoChange

	// LockConflicts names respnos held by more than one locked transcript.
	// Locks win, so both keep the value; callers surface this to a human.
	LockConflicts []string
}

// AssignRespnos applies policy to the transcripts of projectID and returns
// the updated collection with its change set. Transcripts with an empty
// ProjectID are adopted by projectID. Nothing is persisted here.
func AssignRespnos(projectID string, transcripts []Transcript, policy OrderingPolicy) Assignment {
	var own, others []Transcript
	for _, t := range transcripts {
		switch t.ProjectID {
		case projectID:
			own = append(own, t)
		case "":
			t.ProjectID = projectID
			own = append(own, t)
		default:
			others = append(others, t)
		}
	}

	before := make(map[string]string, len(own))
	for _, t := range own {
		before[t.ID] = t.Respno
	}

	numbered := policy.Apply(own)

	var changes []RespnoChange
	for _, t := range numbered {
		if old := before[t.ID]; old != t.Respno {
			changes = append(changes, RespnoChange{TranscriptID: t.ID, Old: old, New: t.Respno})
		}
	}

	return Assignment{
		Transcripts:   append(numbered, others...),
		Changes:       changes,
		LockConflicts: lockConflicts(numbered),
	}
}

func lockConflicts(ts []Transcript) []string {
	seen := make(map[string]int)
	var conflicts []string
	for _, t := range ts {
		if !t.RespnoLocked || strings.TrimSpace(t.Respno) == "" {
			continue
		}
		r := NormalizeRespno(t.Respno)
		seen[r]++
		if seen[r] == 2 {
			conflicts = append(conflicts, r)
		}
	}
	return conflicts
}
