/*
bio-hla-match finds HLA-compatible bone-marrow donors for transplant
candidates. It has two phases.

The build phase streams a directory of donor imputation files into the donor
graph and persists it as a single blob:

	bio-hla-match -build -donors donors_dir -graph donors.rio

The match phase loads the graph and, for every patient in the patient
imputation files, writes a ranked CSV of donors matching at up to three allele
mismatches:

	bio-hla-match -patients patients_dir -graph donors.rio -out results \
	    -cutoff 100 -threshold 0.1 \
	    -donors-db donors.csv -donors-info Registry,Age

Imputation files are headerless CSVs of donor_id, GL string, probability, and
the 0-based genotype index within the donor's block; index 0 starts a new
donor. Patient files have the same shape.
*/
package main
