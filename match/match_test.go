package match

import (
	"fmt"
	"testing"

	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/hlamatch/donorgraph"
	"github.com/grailbio/hlamatch/hla"
	"github.com/grailbio/hlamatch/lol"
	"github.com/grailbio/testutil"
	"github.com/grailbio/testutil/expect"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	glString1 = "A*01:01+A*02:01^B*07:02+B*08:01^C*07:01+C*07:02^DQB1*02:01+DQB1*03:01^DRB1*03:01+DRB1*07:01"
	glString2 = "A*03:01+A*11:01^B*07:02+B*08:01^C*07:01+C*07:02^DQB1*02:01+DQB1*03:01^DRB1*03:01+DRB1*07:01"
	// glDRB1Diff differs from glString1 in one DRB1 allele.
	glDRB1Diff = "A*01:01+A*02:01^B*07:02+B*08:01^C*07:01+C*07:02^DQB1*02:01+DQB1*03:01^DRB1*04:01+DRB1*07:01"
	// glClassIIFar differs from glString1 in all four Class II alleles.
	glClassIIFar = "A*01:01+A*02:01^B*07:02+B*08:01^C*07:01+C*07:02^DQB1*05:01+DQB1*06:01^DRB1*11:01+DRB1*13:01"
)

func mustGeno(t *testing.T, gl string) hla.Genotype {
	g, err := hla.ParseGenotype(gl)
	require.NoError(t, err)
	return g
}

// buildDonorGraph builds a donor graph from one in-memory imputation file.
func buildDonorGraph(t *testing.T, donorLines string) *lol.Graph {
	ctx := vcontext.Background()
	dir, cleanup := testutil.TempDir(t, "", "donors")
	defer cleanup()
	writeFile(t, dir, "donors0.csv", donorLines)
	graph, _, err := donorgraph.Build(ctx, dir, donorgraph.Opts{})
	require.NoError(t, err)
	return graph
}

// readPatient parses one in-memory patient imputation file.
func readPatient(t *testing.T, lines string) *Patient {
	ctx := vcontext.Background()
	dir, cleanup := testutil.TempDir(t, "", "patients")
	defer cleanup()
	path := writeFile(t, dir, "patient.csv", lines)
	patients, err := ReadPatients(ctx, path)
	require.NoError(t, err)
	require.Len(t, patients, 1)
	return patients[0]
}

// An identical single-genotype donor and patient yield one perfect match.
func TestMatchExact(t *testing.T) {
	graph := buildDonorGraph(t, "1001,"+glString1+",1.0,0\n")
	p := readPatient(t, "1,"+glString1+",1.0,0\n")

	res := NewMatcher(graph, nil, DefaultOpts).Match(p)
	require.Len(t, res.Rows, 1)
	row := res.Rows[0]
	expect.EQ(t, row.PatientID, uint64(1))
	expect.EQ(t, row.DonorID, uint64(1001))
	expect.EQ(t, row.Mismatches, 0)
	expect.EQ(t, row.MatchingProbability, 100.0)
	expect.EQ(t, row.AlleleProbs, [hla.NumAlleles]int{100, 100, 100, 100, 100, 100, 100, 100, 100, 100})
	expect.EQ(t, row.MostCommonMatches, [hla.NumLoci]int{2, 2, 2, 2, 2})
	expect.EQ(t, row.Permissive, "-")
	expect.EQ(t, res.Stats.MatchesByMismatch, [NumMismatchLevels]int{1, 0, 0, 0})
}

// A single DRB1 allele mismatch is found at level 1 through the class
// traversal.
func TestMatchSingleMismatch(t *testing.T) {
	graph := buildDonorGraph(t, "1001,"+glString1+",1.0,0\n")
	p := readPatient(t, "1,"+glDRB1Diff+",1.0,0\n")

	res := NewMatcher(graph, nil, DefaultOpts).Match(p)
	require.Len(t, res.Rows, 1)
	row := res.Rows[0]
	expect.EQ(t, row.DonorID, uint64(1001))
	expect.EQ(t, row.Mismatches, 1)
	expect.EQ(t, row.MatchingProbability, 100.0)
	// The patient's DRB1 alleles are (401, 701); the donor never carries 401.
	expect.EQ(t, row.AlleleProbs[8], 0)
	expect.EQ(t, row.AlleleProbs[9], 100)
	expect.EQ(t, row.MostCommonMatches, [hla.NumLoci]int{2, 2, 2, 2, 1})
}

// Donors scoring below the joint-probability threshold are dropped.
func TestMatchThreshold(t *testing.T) {
	graph := buildDonorGraph(t,
		"2001,"+glString1+",0.05,0\n"+
			"2001,"+glClassIIFar+",0.95,1\n"+
			"2002,"+glString1+",0.4,0\n"+
			"2002,"+glClassIIFar+",0.6,1\n")
	p := readPatient(t, "1,"+glString1+",1.0,0\n")

	res := NewMatcher(graph, nil, DefaultOpts).Match(p)
	require.Len(t, res.Rows, 1)
	expect.EQ(t, res.Rows[0].DonorID, uint64(2002))
	expect.EQ(t, res.Rows[0].Mismatches, 0)
	assert.InDelta(t, 40.0, res.Rows[0].MatchingProbability, 1e-4)
}

// With more matching donors than the cutoff, exactly cutoff rows come back
// and no donor repeats.
func TestMatchCutoff(t *testing.T) {
	donorLines := ""
	for id := 1; id <= 200; id++ {
		donorLines += fmt.Sprintf("%d,%s,1.0,0\n", id, glString1)
	}
	graph := buildDonorGraph(t, donorLines)
	p := readPatient(t, "1,"+glString1+",1.0,0\n")

	res := NewMatcher(graph, nil, DefaultOpts).Match(p)
	require.Len(t, res.Rows, DefaultOpts.Cutoff)
	seen := map[uint64]bool{}
	for i, row := range res.Rows {
		assert.False(t, seen[row.DonorID])
		seen[row.DonorID] = true
		// Equal scores rank by donor ID, so the first hundred IDs win.
		expect.EQ(t, row.DonorID, uint64(i+1))
	}
}

// Four allele mismatches are out of range: no row.
func TestMatchFourMismatchesExcluded(t *testing.T) {
	graph := buildDonorGraph(t, "1001,"+glString1+",1.0,0\n")
	p := readPatient(t, "1,"+glClassIIFar+",1.0,0\n")

	res := NewMatcher(graph, nil, DefaultOpts).Match(p)
	expect.EQ(t, len(res.Rows), 0)
}

// A donor matched at a lower mismatch level is not reported again at a
// higher one.
func TestMatchDonorDedupAcrossLevels(t *testing.T) {
	graph := buildDonorGraph(t, "3001,"+glString1+",1.0,0\n")
	p := readPatient(t,
		"1,"+glString1+",0.9,0\n"+
			"1,"+glDRB1Diff+",0.1,1\n")

	opts := DefaultOpts
	opts.Threshold = 0.05
	res := NewMatcher(graph, nil, opts).Match(p)
	require.Len(t, res.Rows, 1)
	expect.EQ(t, res.Rows[0].Mismatches, 0)
	assert.InDelta(t, 90.0, res.Rows[0].MatchingProbability, 1e-4)
}

// A donor whose distribution splits between a perfect-match genotype and a
// two-mismatch genotype scores only the perfect genotype's weight at level 0
// and is not reported again at level 2.
func TestMatchAggregatesJointProbability(t *testing.T) {
	graph := buildDonorGraph(t,
		"4001,"+glString1+",0.5,0\n"+
			"4001,"+glString2+",0.5,1\n")
	// The patient's single genotype matches glString1 exactly and glString2
	// at two mismatches (both A alleles differ).
	p := readPatient(t, "1,"+glString1+",1.0,0\n")

	opts := DefaultOpts
	opts.Threshold = 0.05
	res := NewMatcher(graph, nil, opts).Match(p)
	require.Len(t, res.Rows, 1)
	expect.EQ(t, res.Rows[0].Mismatches, 0)
	assert.InDelta(t, 50.0, res.Rows[0].MatchingProbability, 1e-4)
}

// Aux columns from the donor table are appended to rows.
func TestMatchAuxColumns(t *testing.T) {
	ctx := vcontext.Background()
	dir, cleanup := testutil.TempDir(t, "", "donordb")
	defer cleanup()
	dbPath := writeFile(t, dir, "donors.csv", "Donor_ID,Registry\n1001,US\n")
	db, err := ReadDonorsDB(ctx, dbPath)
	require.NoError(t, err)

	graph := buildDonorGraph(t, "1001,"+glString1+",1.0,0\n")
	p := readPatient(t, "1,"+glString1+",1.0,0\n")
	opts := DefaultOpts
	opts.DonorsInfo = []string{"Registry"}
	res := NewMatcher(graph, db, opts).Match(p)
	require.Len(t, res.Rows, 1)
	expect.EQ(t, res.Rows[0].Aux, []string{"US"})
}
