package match

import (
	"github.com/grailbio/base/log"
	"github.com/grailbio/hlamatch/hla"
	"github.com/grailbio/hlamatch/lol"
)

// candidate is one (patient genotype, donor genotype) pairing discovered by
// the three-level traversal.
type candidate struct {
	// prob is the patient genotype's normalized probability.
	prob float64
	// sim is the matched-allele count, in [MinSimilarity, MaxSimilarity].
	sim int
}

// candidateSet maps a donor genotype's compact ID to the candidates found for
// it, keyed by the patient genotype ordinal. Insertion is max-merge on
// similarity, so discovery order is irrelevant: the stored similarity is the
// maximum observed for the triple.
type candidateSet map[int32]map[int]candidate

func (c candidateSet) merge(donorGenoID int32, ordinal int, prob float64, sim int) {
	ords := c[donorGenoID]
	if ords == nil {
		ords = map[int]candidate{}
		c[donorGenoID] = ords
	}
	if prev, ok := ords[ordinal]; ok && prev.sim >= sim {
		return
	}
	ords[ordinal] = candidate{prob: prob, sim: sim}
}

// Class I and Class II check sets: the locus start positions of the class
// whose alleles are NOT pinned by the key match, i.e. the loci whose match is
// uncertain.
var (
	classICheck  = []uint8{6, 8}    // a Class I key pins positions 0-5
	classIICheck = []uint8{0, 2, 4} // a Class II key pins positions 6-9
)

// findCandidates runs the three discovery levels for one patient against the
// donor graph and returns the merged candidate set.
//
// Level A (exact genotype, similarity 10): every donor genotype equal to a
// patient genotype. Level B (class, baseline 6 or 4): donor genotypes sharing
// a full class with a patient genotype, compared on the other class's loci.
// Level C (subclass, baseline 4 or 2): donor genotypes sharing a class minus
// one allele, compared on the other class's loci plus the dropped locus.
// Levels B and C drop pairings below MinSimilarity; max-merge keeps the best
// similarity per (donor genotype, patient ordinal).
func (m *Matcher) findCandidates(p *Patient) candidateSet {
	cands := candidateSet{}
	var sims []uint8

	// Level C: subclasses.
	loci := make([]uint8, 0, 4)
	for ref, genos := range p.bySubclass {
		ids, values := m.graph.Neighbors2nd(ref.Key)
		if len(ids) == 0 {
			continue
		}
		base := hla.AllelesInClassI - 2
		loci = loci[:0]
		if ref.ClassNum == 0 {
			loci = append(loci, classICheck...)
		} else {
			base = hla.AllelesInClassII - 2
			loci = append(loci, classIICheck...)
		}
		loci = append(loci, ref.MissingPos)
		sims = m.mergeBlock(cands, p, genos, ids, values, loci, base, sims)
	}

	// Level B: classes.
	for class, genos := range p.byClass {
		ids, values := m.graph.ClassNeighbors(class)
		if len(ids) == 0 {
			continue
		}
		check, base := classICheck, hla.AllelesInClassI
		if class.ClassNum() == 1 {
			check, base = classIICheck, hla.AllelesInClassII
		}
		sims = m.mergeBlock(cands, p, genos, ids, values, check, base, sims)
	}

	// Level A: exact genotypes.
	for geno, pg := range p.genos {
		if id, ok := m.graph.CompactID(lol.GenotypeNode(geno)); ok {
			cands.merge(id, pg.ordinal, pg.prob, MaxSimilarity)
		}
	}

	if m.opts.Verbose {
		log.Printf("patient %d: %d candidate donor genotypes", p.ID, len(cands))
	}
	return cands
}

// mergeBlock scores one dense candidate block against every linked patient
// genotype and merges the pairings that survive the minimum-similarity
// filter. The sims scratch slice is returned for reuse.
func (m *Matcher) mergeBlock(cands candidateSet, p *Patient, genos []hla.Genotype,
	ids []int32, values []hla.Allele, loci []uint8, base int, sims []uint8) []uint8 {
	for _, geno := range genos {
		pg := p.genos[geno]
		sims = similarities(geno, values, loci, base, sims[:0])
		for i, sim := range sims {
			if sim >= MinSimilarity {
				cands.merge(ids[i], pg.ordinal, pg.prob, int(sim))
			}
		}
	}
	return sims
}
