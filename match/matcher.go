// Package match implements the patient-side of the donor search: it mirrors
// a patient's imputed genotypes into per-patient lookup structures, discovers
// candidate donor genotypes at 0-3 allele mismatches against the donor graph,
// scores donors by joint probability, and emits ranked result rows.
package match

import (
	"github.com/grailbio/base/log"
	"github.com/grailbio/hlamatch/lol"
)

// Matcher finds matching donors for patients against one donor graph. The
// donor graph is shared and read-only; a Matcher is safe for concurrent use,
// with all per-patient state created inside Match.
type Matcher struct {
	graph *lol.Graph
	db    *DonorsDB
	opts  Opts

	// auxCols is opts.DonorsInfo restricted to columns present in db.
	auxCols []string
}

// NewMatcher creates a Matcher. db may be nil, in which case requested
// auxiliary columns are skipped with a warning.
func NewMatcher(graph *lol.Graph, db *DonorsDB, opts Opts) *Matcher {
	m := &Matcher{graph: graph, db: db, opts: opts}
	for _, col := range opts.DonorsInfo {
		if db == nil || !db.Has(col) {
			log.Error.Printf("match: donors-info column %q not in donor table, skipping", col)
			continue
		}
		m.auxCols = append(m.auxCols, col)
	}
	return m
}

// AuxColumns returns the auxiliary column names appended to result rows.
func (m *Matcher) AuxColumns() []string { return m.auxCols }

// Result is the ranked match table of one patient.
type Result struct {
	PatientID uint64
	Rows      []Row
	Stats     Stats
}

// Match runs candidate discovery and scoring for one patient. Mismatch
// levels are scored in ascending order; a donor matched at a lower level is
// never reported again at a higher one, and scoring stops once the cutoff is
// reached.
func (m *Matcher) Match(p *Patient) Result {
	cands := m.findCandidates(p)
	res := Result{PatientID: p.ID}
	res.Stats.Patients = 1
	matched := make(map[uint64]bool)
	for mm := 0; mm < NumMismatchLevels && len(matched) < m.opts.Cutoff; mm++ {
		rows := m.scoreMismatch(p, cands, mm, matched)
		res.Stats.MatchesByMismatch[mm] = len(rows)
		res.Rows = append(res.Rows, rows...)
		if m.opts.Verbose {
			log.Printf("patient %d: (%d MMs) found %d matches", p.ID, mm, len(rows))
		}
	}
	res.Stats.Rows = len(res.Rows)
	return res
}
