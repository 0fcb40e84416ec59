package donorgraph

import (
	"context"
	"fmt"
	"io"
	"sort"

	"github.com/grailbio/base/compress"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/grailbio/hlamatch/hla"
	"github.com/grailbio/hlamatch/lol"
)

// Opts configures a donor graph build.
type Opts struct {
	// Verbose enables per-file progress diagnostics.
	Verbose bool
}

// Stats summarizes a donor graph build.
type Stats struct {
	// Donors is the number of donor imputation blocks processed.
	Donors int
	// Genotypes, Classes and Subclasses count the distinct keys registered
	// in their layers.
	Genotypes  int
	Classes    int
	Subclasses int
	// Edges is the number of directed edges emitted.
	Edges int
}

func (s Stats) String() string {
	return fmt.Sprintf("%d donors, %d genotypes, %d classes, %d subclasses, %d edges",
		s.Donors, s.Genotypes, s.Classes, s.Subclasses, s.Edges)
}

// builder carries the streaming state of one build: the edge list, the
// per-layer first-sighting sets, and the open donor block.
type builder struct {
	b     *lol.Builder
	stats Stats

	seenDonor    map[uint64]bool
	seenGeno     map[hla.Genotype]bool
	seenClass    map[hla.ClassKey]bool
	seenSubclass map[hla.ClassKey]bool

	// Open block of the donor currently being read. blockGenos preserves
	// first-appearance order so edge emission, and hence compact node IDs,
	// are deterministic.
	open       bool
	donor      uint64
	lastIndex  int
	blockGenos []hla.Genotype
	blockProbs map[hla.Genotype]float64
	blockTotal float64
}

// Build streams every file under donorsDir in lexicographic name order and
// finalizes the resulting edge list into the donor graph. Gzipped inputs are
// decompressed transparently. Any malformed line or structural fault aborts
// the build.
func Build(ctx context.Context, donorsDir string, opts Opts) (*lol.Graph, Stats, error) {
	paths, err := listFiles(ctx, donorsDir)
	if err != nil {
		return nil, Stats{}, err
	}
	if len(paths) == 0 {
		return nil, Stats{}, errors.E("no donor imputation files found in", donorsDir)
	}
	bd := &builder{
		b:            lol.NewBuilder(),
		seenDonor:    map[uint64]bool{},
		seenGeno:     map[hla.Genotype]bool{},
		seenClass:    map[hla.ClassKey]bool{},
		seenSubclass: map[hla.ClassKey]bool{},
		blockProbs:   map[hla.Genotype]float64{},
	}
	for _, path := range paths {
		if opts.Verbose {
			log.Printf("donorgraph: processing %s", path)
		}
		if err := bd.processFile(ctx, path); err != nil {
			return nil, Stats{}, err
		}
	}
	bd.flush()
	graph, err := bd.b.Build()
	if err != nil {
		return nil, Stats{}, err
	}
	if opts.Verbose {
		log.Printf("donorgraph: built %s", bd.stats)
	}
	return graph, bd.stats, nil
}

func listFiles(ctx context.Context, dir string) ([]string, error) {
	lister := file.List(ctx, dir, true)
	var paths []string
	for lister.Scan() {
		paths = append(paths, lister.Path())
	}
	if err := lister.Err(); err != nil {
		return nil, errors.E(err, "list donor files", dir)
	}
	sort.Strings(paths)
	return paths, nil
}

func (bd *builder) processFile(ctx context.Context, path string) (err error) {
	in, err := file.Open(ctx, path)
	if err != nil {
		return errors.E(err, "open", path)
	}
	defer file.CloseAndReport(ctx, in, &err)
	var r io.Reader = in.Reader(ctx)
	if u := compress.NewReaderPath(r, path); u != nil {
		r = u
	}
	sc := NewScanner(r, path)
	var rec Record
	for sc.Scan(&rec) {
		if err := bd.add(rec, path); err != nil {
			return err
		}
	}
	return sc.Err()
}

// add folds one record into the open donor block, flushing the previous
// block when a new one starts.
func (bd *builder) add(rec Record, path string) error {
	if rec.Index == 0 {
		bd.flush()
		if bd.seenDonor[rec.ID] {
			return errors.E(fmt.Sprintf("%s: donor %d appears in more than one imputation block", path, rec.ID))
		}
		bd.seenDonor[rec.ID] = true
		bd.open = true
		bd.donor = rec.ID
		bd.lastIndex = 0
	} else {
		if !bd.open || rec.ID != bd.donor {
			return errors.E(fmt.Sprintf("%s: donor %d block does not begin with index 0", path, rec.ID))
		}
		if rec.Index != bd.lastIndex+1 {
			return errors.E(fmt.Sprintf("%s: donor %d: genotype index %d out of order (want %d)",
				path, rec.ID, rec.Index, bd.lastIndex+1))
		}
		bd.lastIndex = rec.Index
	}
	bd.registerGenotype(rec.Geno)
	if _, ok := bd.blockProbs[rec.Geno]; !ok {
		bd.blockGenos = append(bd.blockGenos, rec.Geno)
	}
	bd.blockProbs[rec.Geno] += rec.Probability
	bd.blockTotal += rec.Probability
	return nil
}

// flush emits the bidirectional genotype<->donor edges of the open block,
// with weights normalized so the donor's outgoing genotype weights sum to 1.
func (bd *builder) flush() {
	if !bd.open {
		return
	}
	donor := lol.DonorNode(bd.donor)
	for _, geno := range bd.blockGenos {
		w := float32(bd.blockProbs[geno] / bd.blockTotal)
		bd.b.AddEdge(lol.GenotypeNode(geno), donor, w)
		bd.b.AddEdge(donor, lol.GenotypeNode(geno), w)
		bd.stats.Edges += 2
	}
	bd.stats.Donors++
	bd.open = false
	bd.blockGenos = bd.blockGenos[:0]
	bd.blockProbs = map[hla.Genotype]float64{}
	bd.blockTotal = 0
}

// registerGenotype emits the structural edges of a genotype the first time it
// is seen anywhere in the corpus: CLASS -> GENOTYPE for both of its classes,
// and SUBCLASS -> CLASS for every subclass of a class seen for the first
// time.
func (bd *builder) registerGenotype(geno hla.Genotype) {
	if bd.seenGeno[geno] {
		return
	}
	bd.seenGeno[geno] = true
	bd.stats.Genotypes++
	bd.registerClass(geno.ClassI(), geno[:hla.ClassIEnd], geno)
	bd.registerClass(geno.ClassII(), geno[hla.ClassIEnd:], geno)
}

func (bd *builder) registerClass(class hla.ClassKey, alleles []hla.Allele, geno hla.Genotype) {
	bd.b.AddEdge(lol.ClassNode(class), lol.GenotypeNode(geno), 0)
	bd.stats.Edges++
	if bd.seenClass[class] {
		return
	}
	bd.seenClass[class] = true
	bd.stats.Classes++
	subs := map[hla.ClassKey]bool{}
	for drop := 0; drop < len(alleles); drop++ {
		sub := hla.EncodeSubclass(alleles, drop)
		if subs[sub] {
			continue
		}
		subs[sub] = true
		bd.b.AddEdge(lol.SubclassNode(sub), lol.ClassNode(class), 0)
		bd.stats.Edges++
		if !bd.seenSubclass[sub] {
			bd.seenSubclass[sub] = true
			bd.stats.Subclasses++
		}
	}
}
