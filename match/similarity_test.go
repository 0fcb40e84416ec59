package match

import (
	"testing"

	"github.com/grailbio/hlamatch/hla"
	"github.com/grailbio/testutil/expect"
)

var allLoci = []uint8{0, 2, 4, 6, 8}

func TestSimilaritySelf(t *testing.T) {
	g := hla.Genotype{101, 201, 702, 801, 701, 702, 201, 301, 301, 701}
	sims := similarities(g, g[:], allLoci, 0, nil)
	expect.EQ(t, sims, []uint8{MaxSimilarity})
}

func TestSimilaritySwapTolerance(t *testing.T) {
	g := hla.Genotype{101, 201, 702, 801, 701, 702, 201, 301, 301, 701}
	// Swapping the alleles within any locus of the candidate must not change
	// the similarity.
	for locus := 0; locus < hla.NumLoci; locus++ {
		v := g
		k := 2 * locus
		v[k], v[k+1] = v[k+1], v[k]
		sims := similarities(g, v[:], allLoci, 0, nil)
		expect.EQ(t, sims, []uint8{MaxSimilarity})
	}
}

func TestSimilarityCountsPerLocus(t *testing.T) {
	g := hla.Genotype{101, 201, 702, 801, 701, 702, 201, 301, 301, 701}
	v := g
	v[8], v[9] = 401, 701 // one DRB1 allele differs
	sims := similarities(g, v[:], allLoci, 0, nil)
	expect.EQ(t, sims, []uint8{9})

	v[6], v[7] = 999, 998 // both DQB1 alleles differ
	sims = similarities(g, v[:], allLoci, 0, nil)
	expect.EQ(t, sims, []uint8{7})

	// Restricting the check to the Class II loci with a Class I baseline, as
	// for a Class I key match.
	sims = similarities(g, v[:], []uint8{6, 8}, hla.AllelesInClassI, nil)
	expect.EQ(t, sims, []uint8{7})
}

func TestSimilarityMultiRow(t *testing.T) {
	g := hla.Genotype{101, 201, 702, 801, 701, 702, 201, 301, 301, 701}
	v1, v2 := g, g
	v2[0] = 999
	v2[1] = 998
	rows := append(append([]hla.Allele(nil), v1[:]...), v2[:]...)
	sims := similarities(g, rows, allLoci, 0, nil)
	expect.EQ(t, sims, []uint8{10, 8})
}

func TestLocusMatches(t *testing.T) {
	a := hla.Genotype{101, 201, 702, 801, 701, 702, 201, 301, 301, 701}
	b := a
	b[2] = 703            // one B allele differs
	b[6], b[7] = 998, 999 // both DQB1 alleles differ
	expect.EQ(t, locusMatches(a, b), [hla.NumLoci]int{2, 1, 2, 0, 2})
}
