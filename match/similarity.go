package match

import "github.com/grailbio/hlamatch/hla"

const (
	// MaxSimilarity is the matched-allele count of a perfect genotype match.
	MaxSimilarity = 10
	// MinSimilarity is the lowest matched-allele count the matcher keeps; a
	// lower count means more than three mismatches.
	MinSimilarity = 7
	// NumMismatchLevels is the number of mismatch levels scored (0-3).
	NumMismatchLevels = 4
)

// similarities computes the matched-allele count between one patient genotype
// and every row of a dense candidate block. rows holds ten-allele genotypes
// packed row-major. loci lists the genotype positions (locus starts) whose
// match is uncertain; the remaining positions contribute base matched
// alleles. The counts are appended to dst, one per row, and capped at
// MaxSimilarity.
//
// Each uncertain locus is compared with pair-swap tolerance: both the ordered
// and the swapped allele pairing are tried and the larger count wins. Locus
// pairs are stored sorted ascending, so the ordered pairing already wins
// whenever the allele sets are equal.
func similarities(p hla.Genotype, rows []hla.Allele, loci []uint8, base int, dst []uint8) []uint8 {
	for len(rows) >= hla.NumAlleles {
		row := rows[:hla.NumAlleles:hla.NumAlleles]
		rows = rows[hla.NumAlleles:]
		sim := base
		for _, k := range loci {
			sim += pairMatch(p[k], p[k+1], row[k], row[k+1])
		}
		if sim > MaxSimilarity {
			sim = MaxSimilarity
		}
		dst = append(dst, uint8(sim))
	}
	return dst
}

// pairMatch counts matching alleles between two locus pairs, trying both the
// ordered and the swapped pairing.
func pairMatch(a1, b1, a2, b2 hla.Allele) int {
	s := b2i(a1 == a2) + b2i(b1 == b2)
	if s2 := b2i(a1 == b2) + b2i(b1 == a2); s2 > s {
		s = s2
	}
	return s
}

func b2i(b bool) int {
	if b {
		return 1
	}
	return 0
}

// locusMatches compares two full genotypes locus by locus with pair-swap
// tolerance, returning the per-locus matched-allele counts.
func locusMatches(a, b hla.Genotype) [hla.NumLoci]int {
	var out [hla.NumLoci]int
	for i := 0; i < hla.NumLoci; i++ {
		k := 2 * i
		out[i] = pairMatch(a[k], a[k+1], b[k], b[k+1])
	}
	return out
}
