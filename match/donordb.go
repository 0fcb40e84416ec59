package match

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
)

// donorIDColumn is the required key column of the donor table.
const donorIDColumn = "Donor_ID"

// DonorsDB is the auxiliary donor-information table joined into result rows.
// It is a plain CSV with a header row; the Donor_ID column keys the rows and
// the remaining columns are opaque values copied into results on request.
type DonorsDB struct {
	columns []string
	index   map[string]int
	rows    map[uint64][]string
}

// ReadDonorsDB loads the donor table from a headered CSV file.
func ReadDonorsDB(ctx context.Context, path string) (db *DonorsDB, err error) {
	in, err := file.Open(ctx, path)
	if err != nil {
		return nil, errors.E(err, "open donor table", path)
	}
	defer file.CloseAndReport(ctx, in, &err)

	r := csv.NewReader(in.Reader(ctx))
	header, err := r.Read()
	if err != nil {
		return nil, errors.E(err, "read donor table header", path)
	}
	db = &DonorsDB{
		columns: header,
		index:   make(map[string]int, len(header)),
		rows:    map[uint64][]string{},
	}
	idCol := -1
	for i, col := range header {
		db.index[col] = i
		if col == donorIDColumn {
			idCol = i
		}
	}
	if idCol < 0 {
		return nil, errors.E(fmt.Sprintf("%s: donor table has no %s column", path, donorIDColumn))
	}
	for {
		fields, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.E(err, "read donor table", path)
		}
		id, err := strconv.ParseUint(fields[idCol], 10, 64)
		if err != nil {
			return nil, errors.E(err, fmt.Sprintf("%s: bad %s %q", path, donorIDColumn, fields[idCol]))
		}
		db.rows[id] = fields
	}
	return db, nil
}

// Columns returns the table's column names.
func (db *DonorsDB) Columns() []string { return db.columns }

// Has reports whether the table has the named column.
func (db *DonorsDB) Has(col string) bool {
	_, ok := db.index[col]
	return ok
}

// Value returns the named column of the donor's row, or "" if the donor or
// the column is absent.
func (db *DonorsDB) Value(id uint64, col string) string {
	i, ok := db.index[col]
	if !ok {
		return ""
	}
	fields, ok := db.rows[id]
	if !ok || i >= len(fields) {
		return ""
	}
	return fields[i]
}
