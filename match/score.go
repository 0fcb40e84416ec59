package match

import (
	"math"
	"sort"

	"github.com/grailbio/hlamatch/hla"
)

// Row is one emitted match: a donor matched to a patient at a given mismatch
// count, with the per-allele and per-locus diagnostics of the result table.
type Row struct {
	PatientID uint64
	DonorID   uint64
	// Mismatches is the allele mismatch count (0-3) of the match.
	Mismatches int
	// MatchingProbability is the donor's joint match probability, in percent.
	MatchingProbability float64
	// AlleleProbs[i] is the probability, in integer percent, that the donor
	// carries the patient's i'th allele.
	AlleleProbs [hla.NumAlleles]int
	// MostCommonMatches[l] counts matching alleles at locus l between the
	// patient's genotype and the donor's most probable genotype.
	MostCommonMatches [hla.NumLoci]int
	// Permissive is the permissiveness classification, currently a stub.
	Permissive string
	// Aux holds the requested auxiliary donor-table values, parallel to
	// Matcher.AuxColumns.
	Aux []string
}

// donorScore accumulates one donor's evidence at one mismatch level.
type donorScore struct {
	joint float64
	// bestGenoID and bestWeight track the donor's strongest contributing
	// genotype.
	bestGenoID int32
	bestWeight float32
}

// scoreMismatch scores all candidate pairings with exactly mismatch allele
// mismatches, ranks the donors, and appends rows until the cutoff is reached.
// Donors already matched at a lower level, and donors scoring below the
// threshold, are dropped.
func (m *Matcher) scoreMismatch(p *Patient, cands candidateSet, mismatch int, matched map[uint64]bool) []Row {
	wantSim := MaxSimilarity - mismatch
	scores := map[int32]*donorScore{} // donor compact ID -> score
	for donorGenoID, ords := range cands {
		for _, cand := range ords {
			if cand.sim != wantSim {
				continue
			}
			donors := m.graph.EdgesID(donorGenoID)
			for i := 0; i < donors.Len(); i++ {
				donorID, w := donors.ID(i), donors.Weight(i)
				ds := scores[donorID]
				if ds == nil {
					ds = &donorScore{}
					scores[donorID] = ds
				}
				ds.joint += cand.prob * float64(w)
				if w > ds.bestWeight {
					ds.bestGenoID, ds.bestWeight = donorGenoID, w
				}
			}
		}
	}

	type ranked struct {
		donorID int32
		donor   uint64
		joint   float64
	}
	order := make([]ranked, 0, len(scores))
	for donorID, ds := range scores {
		donor := m.graph.Key(donorID).Donor
		if matched[donor] || ds.joint < m.opts.Threshold {
			continue
		}
		order = append(order, ranked{donorID: donorID, donor: donor, joint: ds.joint})
	}
	sort.Slice(order, func(i, j int) bool {
		if order[i].joint != order[j].joint {
			return order[i].joint > order[j].joint
		}
		return order[i].donor < order[j].donor // deterministic tie-break
	})

	var rows []Row
	for _, r := range order {
		if len(matched) >= m.opts.Cutoff {
			break
		}
		matched[r.donor] = true
		rows = append(rows, m.buildRow(p, r.donorID, r.donor, r.joint, mismatch))
	}
	return rows
}

func (m *Matcher) buildRow(p *Patient, donorCID int32, donorID uint64, joint float64, mismatch int) Row {
	row := Row{
		PatientID:           p.ID,
		DonorID:             donorID,
		Mismatches:          mismatch,
		MatchingProbability: joint * 100,
		AlleleProbs:         m.alleleProbs(donorCID, p.rep),
		Permissive:          "-",
	}
	if common, ok := m.mostCommonGenotype(donorCID); ok {
		row.MostCommonMatches = locusMatches(p.rep, common)
	}
	for _, col := range m.auxCols {
		row.Aux = append(row.Aux, m.db.Value(donorID, col))
	}
	return row
}

// mostCommonGenotype returns the donor's highest-weight genotype.
func (m *Matcher) mostCommonGenotype(donorCID int32) (hla.Genotype, bool) {
	var (
		best   hla.Genotype
		bestW  float32
		founds bool
	)
	genos := m.graph.EdgesID(donorCID)
	for i := 0; i < genos.Len(); i++ {
		if w := genos.Weight(i); !founds || w > bestW {
			best, bestW, founds = genos.Key(i).Geno, w, true
		}
	}
	return best, founds
}

// alleleProbs returns, for each allele of the patient genotype, the summed
// weight of the donor's genotypes containing that allele, as an integer
// percentage.
func (m *Matcher) alleleProbs(donorCID int32, patGeno hla.Genotype) [hla.NumAlleles]int {
	var probs [hla.NumAlleles]int
	genos := m.graph.EdgesID(donorCID)
	for i, allele := range patGeno {
		p := 0.0
		for j := 0; j < genos.Len(); j++ {
			geno := genos.Key(j).Geno
			for _, a := range geno {
				if a == allele {
					p += float64(genos.Weight(j))
					break
				}
			}
		}
		probs[i] = int(math.Round(p * 100))
	}
	return probs
}
