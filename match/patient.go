package match

import (
	"context"
	"fmt"
	"io"

	"github.com/grailbio/base/compress"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/hlamatch/donorgraph"
	"github.com/grailbio/hlamatch/hla"
)

// patientGeno is one imputed genotype of a patient.
type patientGeno struct {
	// ordinal is the genotype's 0-based position in the patient's
	// imputation block. Candidate entries are keyed by it.
	ordinal int
	// prob is the genotype probability, normalized across the patient's
	// block.
	prob float64
}

// Patient holds one patient's imputed genotype distribution, indexed the way
// candidate discovery consumes it: by genotype, by class key, and by subclass
// reference. It is built per patient and discarded after scoring.
type Patient struct {
	// ID is the opaque patient identifier from the input file.
	ID uint64
	// rep is the patient's first-listed genotype; result columns that need
	// a single representative genotype use it.
	rep hla.Genotype

	genos      map[hla.Genotype]patientGeno
	byClass    map[hla.ClassKey][]hla.Genotype
	bySubclass map[hla.SubclassRef][]hla.Genotype
}

// NumGenotypes returns the number of distinct imputed genotypes.
func (p *Patient) NumGenotypes() int { return len(p.genos) }

// addGenotype links one imputed genotype into the patient's lookup maps.
// Repeated genotypes accumulate probability under their first ordinal.
func (p *Patient) addGenotype(geno hla.Genotype, prob float64, ordinal int) {
	if pg, ok := p.genos[geno]; ok {
		pg.prob += prob
		p.genos[geno] = pg
		return
	}
	p.genos[geno] = patientGeno{ordinal: ordinal, prob: prob}
	for _, class := range []hla.ClassKey{geno.ClassI(), geno.ClassII()} {
		p.byClass[class] = append(p.byClass[class], geno)
	}
	for _, ref := range geno.SubclassRefs() {
		if genos := p.bySubclass[ref]; len(genos) > 0 && genos[len(genos)-1] == geno {
			continue // duplicate ref from an equal-allele locus
		}
		p.bySubclass[ref] = append(p.bySubclass[ref], geno)
	}
}

// normalize rescales the genotype probabilities to sum to 1.
func (p *Patient) normalize(total float64) {
	for geno, pg := range p.genos {
		pg.prob /= total
		p.genos[geno] = pg
	}
}

// ReadPatients reads every patient imputation block from one file. The file
// has the same shape as a donor imputation file: a genotype index of 0 starts
// a new patient's block. Gzipped input is decompressed transparently.
func ReadPatients(ctx context.Context, path string) (patients []*Patient, err error) {
	in, err := file.Open(ctx, path)
	if err != nil {
		return nil, errors.E(err, "open patients", path)
	}
	defer file.CloseAndReport(ctx, in, &err)
	var r io.Reader = in.Reader(ctx)
	if u := compress.NewReaderPath(r, path); u != nil {
		r = u
	}

	var (
		sc    = donorgraph.NewScanner(r, path)
		rec   donorgraph.Record
		cur   *Patient
		total float64
	)
	flush := func() {
		if cur != nil {
			cur.normalize(total)
			patients = append(patients, cur)
		}
		cur, total = nil, 0
	}
	for sc.Scan(&rec) {
		if rec.Index == 0 {
			flush()
			cur = &Patient{
				ID:         rec.ID,
				rep:        rec.Geno,
				genos:      map[hla.Genotype]patientGeno{},
				byClass:    map[hla.ClassKey][]hla.Genotype{},
				bySubclass: map[hla.SubclassRef][]hla.Genotype{},
			}
		} else if cur == nil || rec.ID != cur.ID {
			return nil, errors.E(fmt.Sprintf("%s: patient %d block does not begin with index 0", path, rec.ID))
		}
		cur.addGenotype(rec.Geno, rec.Probability, rec.Index)
		total += rec.Probability
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	flush()
	return patients, nil
}
