package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/grailbio/base/file"
	"github.com/grailbio/base/grail"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/traverse"
	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/hlamatch/donorgraph"
	"github.com/grailbio/hlamatch/lol"
	"github.com/grailbio/hlamatch/match"
)

var (
	buildFlag    = flag.Bool("build", false, "Build the donor graph from -donors and write it to -graph, instead of matching.")
	donorsDir    = flag.String("donors", "", "Directory of donor imputation files (build phase).")
	graphPath    = flag.String("graph", "", "Path of the persisted donor graph.")
	patientsPath = flag.String("patients", "", "Directory of patient imputation files (match phase).")
	outDir       = flag.String("out", "", "Directory for per-patient result CSVs.")
	donorsDBPath = flag.String("donors-db", "", "Optional donor-information CSV keyed by Donor_ID.")
	donorsInfo   = flag.String("donors-info", "", "Comma-separated donor-information columns to append to result rows.")
	verbose      = flag.Bool("v", false, "Enable progress diagnostics.")
)

func main() {
	opts := match.DefaultOpts
	flag.IntVar(&opts.Cutoff, "cutoff", match.DefaultOpts.Cutoff, "Maximum number of donors returned per patient.")
	flag.Float64Var(&opts.Threshold, "threshold", match.DefaultOpts.Threshold, "Minimum joint probability for a valid match.")
	cleanup := grail.Init()
	defer cleanup()
	ctx := vcontext.Background()

	opts.Verbose = *verbose
	if *donorsInfo != "" {
		opts.DonorsInfo = strings.Split(*donorsInfo, ",")
	}
	if *graphPath == "" {
		log.Fatal("-graph is required")
	}
	if *buildFlag {
		runBuild(ctx, opts)
	} else {
		runMatch(ctx, opts)
	}
}

func runBuild(ctx context.Context, opts match.Opts) {
	if *donorsDir == "" {
		log.Fatal("-build requires -donors")
	}
	graph, stats, err := donorgraph.Build(ctx, *donorsDir, donorgraph.Opts{Verbose: opts.Verbose})
	if err != nil {
		log.Fatalf("build donor graph: %v", err)
	}
	if err := graph.Save(ctx, *graphPath); err != nil {
		log.Fatalf("save donor graph: %v", err)
	}
	log.Printf("wrote donor graph %s: %s", *graphPath, stats)
}

func runMatch(ctx context.Context, opts match.Opts) {
	if *patientsPath == "" || *outDir == "" {
		log.Fatal("matching requires -patients and -out")
	}
	graph, err := lol.Load(ctx, *graphPath)
	if err != nil {
		log.Fatalf("load donor graph: %v", err)
	}
	log.Printf("loaded donor graph %s: %d nodes, %d edges", *graphPath, graph.NumNodes(), graph.NumEdges())

	var db *match.DonorsDB
	if *donorsDBPath != "" {
		if db, err = match.ReadDonorsDB(ctx, *donorsDBPath); err != nil {
			log.Fatalf("read donor table: %v", err)
		}
	}

	patients := readAllPatients(ctx, *patientsPath)
	log.Printf("matching %d patients", len(patients))
	// Local result directories may not exist yet; remote ones need no mkdir.
	_ = os.MkdirAll(*outDir, 0775)

	matcher := match.NewMatcher(graph, db, opts)
	var (
		mu    sync.Mutex
		stats match.Stats
	)
	err = traverse.Each(len(patients), func(i int) error {
		res := matcher.Match(patients[i])
		path := file.Join(*outDir, fmt.Sprintf("%d.csv", patients[i].ID))
		if err := match.WriteResult(ctx, path, res, matcher.AuxColumns()); err != nil {
			return err
		}
		mu.Lock()
		stats = stats.Merge(res.Stats)
		mu.Unlock()
		return nil
	})
	if err != nil {
		log.Fatalf("match: %v", err)
	}
	if err := match.WriteSummary(ctx, file.Join(*outDir, "summary.tsv"), stats); err != nil {
		log.Fatalf("write summary: %v", err)
	}
	log.Printf("matched %d patients: %d rows (%v by mismatch count)",
		stats.Patients, stats.Rows, stats.MatchesByMismatch)
}

// readAllPatients reads every patient block from every file under path, in
// lexicographic file order.
func readAllPatients(ctx context.Context, path string) []*match.Patient {
	lister := file.List(ctx, path, true)
	var paths []string
	for lister.Scan() {
		paths = append(paths, lister.Path())
	}
	if err := lister.Err(); err != nil {
		log.Fatalf("list patient files %s: %v", path, err)
	}
	sort.Strings(paths)
	if len(paths) == 0 {
		log.Fatalf("no patient files found in %s", path)
	}
	var patients []*match.Patient
	for _, p := range paths {
		batch, err := match.ReadPatients(ctx, p)
		if err != nil {
			log.Fatalf("read patients: %v", err)
		}
		patients = append(patients, batch...)
	}
	return patients
}
