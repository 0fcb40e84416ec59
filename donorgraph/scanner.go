// Package donorgraph builds the donor index from imputation files: it streams
// a directory of donor imputation CSVs into an edge list and finalizes it
// into a lol.Graph.
package donorgraph

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/hlamatch/hla"
)

// Record is one imputation line: an imputed genotype of one donor (or
// patient) and its raw probability. Index is the 0-based ordinal of the
// genotype within its subject's imputation block; index 0 starts a new block.
type Record struct {
	ID          uint64
	Geno        hla.Genotype
	Probability float64
	Index       int
}

// Scanner reads imputation records from one file. The Scan method fills the
// next record, returning whether the read succeeded; once it returns false it
// never returns true again, and Err reports whether scanning stopped on a
// malformed line or at end of input. Scanners are not threadsafe.
type Scanner struct {
	b     *bufio.Scanner
	path  string
	nLine int
	err   error
}

// NewScanner constructs a Scanner reading from r. The path is used only to
// label parse errors.
func NewScanner(r io.Reader, path string) *Scanner {
	return &Scanner{b: bufio.NewScanner(r), path: path}
}

// Scan reads the next record into rec.
func (s *Scanner) Scan(rec *Record) bool {
	if s.err != nil {
		return false
	}
	for {
		if !s.b.Scan() {
			s.err = s.b.Err()
			return false
		}
		s.nLine++
		line := strings.TrimSpace(s.b.Text())
		if line == "" {
			continue
		}
		return s.parse(line, rec)
	}
}

func (s *Scanner) parse(line string, rec *Record) bool {
	fields := strings.Split(line, ",")
	if len(fields) != 4 {
		s.err = s.lineError("expected 4 fields, found %d", len(fields))
		return false
	}
	id, err := strconv.ParseUint(strings.TrimSpace(fields[0]), 10, 64)
	if err != nil {
		s.err = s.lineError("bad subject ID %q", fields[0])
		return false
	}
	geno, err := hla.ParseGenotype(strings.TrimSpace(fields[1]))
	if err != nil {
		s.err = errors.E(err, fmt.Sprintf("%s:%d", s.path, s.nLine))
		return false
	}
	prob, err := strconv.ParseFloat(strings.TrimSpace(fields[2]), 64)
	if err != nil || !(prob > 0 && prob <= 1) {
		s.err = s.lineError("bad probability %q", fields[2])
		return false
	}
	index, err := strconv.Atoi(strings.TrimSpace(fields[3]))
	if err != nil || index < 0 {
		s.err = s.lineError("bad genotype index %q", fields[3])
		return false
	}
	*rec = Record{ID: id, Geno: geno, Probability: prob, Index: index}
	return true
}

func (s *Scanner) lineError(format string, args ...interface{}) error {
	return errors.E(fmt.Sprintf("%s:%d: "+format, append([]interface{}{s.path, s.nLine}, args...)...))
}

// Err returns the scanning error, if any. It should be checked after Scan
// returns false.
func (s *Scanner) Err() error { return s.err }
