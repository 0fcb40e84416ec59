package match

// Stats represents high-level statistics of a matching run.
type Stats struct {
	// Patients counts the patients matched.
	Patients int
	// Rows counts the result rows emitted.
	Rows int
	// MatchesByMismatch[m] counts the donors matched at m mismatches.
	MatchesByMismatch [NumMismatchLevels]int
}

// Merge adds the field values of the two Stats objects and creates new Stats.
func (s Stats) Merge(o Stats) Stats {
	s.Patients += o.Patients
	s.Rows += o.Rows
	for i, n := range o.MatchesByMismatch {
		s.MatchesByMismatch[i] += n
	}
	return s
}
