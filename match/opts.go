package match

// Opts configures the matcher.
type Opts struct {
	// Cutoff is the maximum number of donors returned per patient.
	Cutoff int
	// Threshold is the minimum joint probability for a valid match.
	Threshold float64
	// DonorsInfo lists auxiliary donor-table columns to append to every
	// result row. Columns missing from the donor table are skipped with a
	// warning.
	DonorsInfo []string
	// Verbose enables progress diagnostics.
	Verbose bool
}

// DefaultOpts sets the default values to Opts.
var DefaultOpts = Opts{
	Cutoff:    100,
	Threshold: 0.1,
}
