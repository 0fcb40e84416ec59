package match

import (
	"context"
	"encoding/csv"
	"io"
	"strconv"
	"strings"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/tsv"
	"github.com/klauspost/compress/gzip"
)

// baseColumns is the fixed column order of a result table; requested
// auxiliary columns follow.
var baseColumns = []string{
	"Patient_ID", "Donor_ID",
	"Number_Of_Mismatches", "Matching_Probability",
	"Match_Probability_A_1", "Match_Probability_A_2",
	"Match_Probability_B_1", "Match_Probability_B_2",
	"Match_Probability_C_1", "Match_Probability_C_2",
	"Match_Probability_DQB1_1", "Match_Probability_DQB1_2",
	"Match_Probability_DRB1_1", "Match_Probability_DRB1_2",
	"Permissive/Non-Permissive",
	"Match_Between_Most_Commons_A",
	"Match_Between_Most_Commons_B",
	"Match_Between_Most_Commons_C",
	"Match_Between_Most_Commons_DQB",
	"Match_Between_Most_Commons_DRB",
}

// WriteResult writes one patient's ranked match table as CSV. A path ending
// in ".gz" is gzip-compressed.
func WriteResult(ctx context.Context, path string, res Result, auxCols []string) (err error) {
	out, err := file.Create(ctx, path)
	if err != nil {
		return errors.E(err, "create result", path)
	}
	defer file.CloseAndReport(ctx, out, &err)
	var w io.Writer = out.Writer(ctx)
	if strings.HasSuffix(path, ".gz") {
		gz := gzip.NewWriter(w)
		defer func() {
			if e := gz.Close(); e != nil && err == nil {
				err = errors.E(e, "gzip close", path)
			}
		}()
		w = gz
	}

	cw := csv.NewWriter(w)
	if err = cw.Write(append(append([]string(nil), baseColumns...), auxCols...)); err != nil {
		return errors.E(err, "write result header", path)
	}
	fields := make([]string, 0, len(baseColumns)+len(auxCols))
	for _, row := range res.Rows {
		fields = fields[:0]
		fields = append(fields,
			strconv.FormatUint(row.PatientID, 10),
			strconv.FormatUint(row.DonorID, 10),
			strconv.Itoa(row.Mismatches),
			strconv.FormatFloat(row.MatchingProbability, 'g', -1, 64))
		for _, p := range row.AlleleProbs {
			fields = append(fields, strconv.Itoa(p))
		}
		fields = append(fields, row.Permissive)
		for _, n := range row.MostCommonMatches {
			fields = append(fields, strconv.Itoa(n))
		}
		fields = append(fields, row.Aux...)
		if err = cw.Write(fields); err != nil {
			return errors.E(err, "write result row", path)
		}
	}
	cw.Flush()
	if err = cw.Error(); err != nil {
		return errors.E(err, "flush result", path)
	}
	return nil
}

// WriteSummary writes a one-row TSV summary of a matching run.
func WriteSummary(ctx context.Context, path string, stats Stats) (err error) {
	out, err := file.Create(ctx, path)
	if err != nil {
		return errors.E(err, "create summary", path)
	}
	defer file.CloseAndReport(ctx, out, &err)
	w := tsv.NewWriter(out.Writer(ctx))
	w.WriteString("patients")
	w.WriteString("rows")
	for mm := 0; mm < NumMismatchLevels; mm++ {
		w.WriteString("matches_" + strconv.Itoa(mm) + "mm")
	}
	if err = w.EndLine(); err != nil {
		return errors.E(err, "write summary", path)
	}
	w.WriteUint32(uint32(stats.Patients))
	w.WriteUint32(uint32(stats.Rows))
	for _, n := range stats.MatchesByMismatch {
		w.WriteUint32(uint32(n))
	}
	if err = w.EndLine(); err != nil {
		return errors.E(err, "write summary", path)
	}
	if err = w.Flush(); err != nil {
		return errors.E(err, "flush summary", path)
	}
	return nil
}
