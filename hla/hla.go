// Package hla defines the allele, genotype, and class-key representations
// shared by the donor index and the matcher.
//
// A genotype is ten alleles across the five HLA loci A, B, C, DQB1, and DRB1,
// two consecutive positions per locus. Within each locus the two alleles are
// kept sorted in ascending order so that unordered allele pairs compare equal.
// Loci A, B, C (positions 0-5) form Class I; DQB1 and DRB1 (positions 6-9)
// form Class II.
package hla

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/grailbio/base/errors"
)

// Allele is a numeric HLA allele code, e.g. 101 for "01:01". Zero is reserved
// as the missing-allele sentinel in subclass keys.
type Allele uint16

const (
	// NumLoci is the number of HLA loci in a genotype.
	NumLoci = 5
	// NumAlleles is the number of alleles in a genotype.
	NumAlleles = 10
	// ClassIEnd is the first genotype position past Class I. Positions
	// [0,ClassIEnd) are Class I, [ClassIEnd,NumAlleles) are Class II.
	ClassIEnd = 6
	// AllelesInClassI and AllelesInClassII are the class tuple lengths.
	AllelesInClassI  = 6
	AllelesInClassII = 4
)

// LocusNames lists the five loci in genotype position order.
var LocusNames = [NumLoci]string{"A", "B", "C", "DQB1", "DRB1"}

// Genotype is a ten-allele vector, two consecutive positions per locus.
// It is comparable and is used directly as a hash key.
type Genotype [NumAlleles]Allele

// sortLocusPairs puts the two alleles of every locus in ascending order.
func (g *Genotype) sortLocusPairs() {
	for k := 0; k < NumAlleles; k += 2 {
		if g[k] > g[k+1] {
			g[k], g[k+1] = g[k+1], g[k]
		}
	}
}

// ClassI returns the packed key of the genotype's Class I projection.
func (g Genotype) ClassI() ClassKey { return EncodeClass(g[:ClassIEnd]) }

// ClassII returns the packed key of the genotype's Class II projection.
func (g Genotype) ClassII() ClassKey { return EncodeClass(g[ClassIEnd:]) }

// String formats the genotype as numeric allele pairs, one locus per "^"
// separated group.
func (g Genotype) String() string {
	b := strings.Builder{}
	for k := 0; k < NumAlleles; k += 2 {
		if k > 0 {
			b.WriteByte('^')
		}
		fmt.Fprintf(&b, "%d+%d", g[k], g[k+1])
	}
	return b.String()
}

// ParseGenotype parses a GL string of the form
//
//	A*01:01+A*02:01^B*07:02+B*08:01^...
//
// across the five loci into a canonicalized genotype: the field separators in
// each allele name are dropped and the remaining digits are read as one
// integer ("01:01" -> 101), then every locus pair is sorted ascending.
func ParseGenotype(s string) (Genotype, error) {
	var g Genotype
	loci := strings.Split(s, "^")
	if len(loci) != NumLoci {
		return g, errors.E(fmt.Sprintf("genotype %q: expected %d loci, found %d", s, NumLoci, len(loci)))
	}
	for i, locus := range loci {
		pair := strings.Split(locus, "+")
		if len(pair) != 2 {
			return g, errors.E(fmt.Sprintf("genotype %q: locus %s: expected two alleles", s, LocusNames[i]))
		}
		for j, name := range pair {
			a, err := parseAllele(name)
			if err != nil {
				return g, errors.E(err, fmt.Sprintf("genotype %q: locus %s", s, LocusNames[i]))
			}
			g[2*i+j] = a
		}
	}
	g.sortLocusPairs()
	return g, nil
}

// parseAllele converts one allele name, e.g. "DRB1*03:01", to its numeric
// code. Everything before the "*" is ignored; the field separators after it
// are dropped and the digits are read as one base-10 integer.
func parseAllele(name string) (Allele, error) {
	star := strings.IndexByte(name, '*')
	if star < 0 {
		return 0, errors.E(fmt.Sprintf("allele %q: missing '*'", name))
	}
	digits := strings.ReplaceAll(name[star+1:], ":", "")
	v, err := strconv.ParseUint(digits, 10, 64)
	if err != nil {
		return 0, errors.E(fmt.Sprintf("allele %q: non-numeric code", name))
	}
	if v == 0 || v > math.MaxUint16 {
		return 0, errors.E(fmt.Sprintf("allele %q: code %d out of range", name, v))
	}
	return Allele(v), nil
}
