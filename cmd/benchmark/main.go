package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/MeKo-Tech/wallplan/internal/benchmark"
	"github.com/MeKo-Tech/wallplan/internal/loader"
	"github.com/MeKo-Tech/wallplan/internal/pipeline"
	"github.com/MeKo-Tech/wallplan/internal/testutil"
)

func main() {
	var (
		plansDir   = flag.String("plans", "testdata/plans", "directory with drawings to benchmark")
		iterations = flag.Int("iterations", 3, "Number of iterations per benchmark")
		outputFile = flag.String("output", "", "write the results as CSV to this file")
		verbose    = flag.Bool("verbose", false, "Verbose output")
	)
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	fmt.Println("wallplan detector backend benchmark")
	fmt.Println("===================================")

	cmp := benchmark.NewBackendComparison(pipeline.DefaultConfig())
	fmt.Printf("Backends: %v\n", cmp.Backends())

	paths, _ := filepath.Glob(filepath.Join(*plansDir, "*.png"))
	for _, path := range paths {
		d, err := benchmark.LoadDrawing(ctx, path, loader.DefaultOptions())
		if err != nil {
			log.Printf("Skipping %s: %v", path, err)
			continue
		}
		cmp.AddDrawing(d)
		if *verbose {
			fmt.Printf("Added drawing: %s\n", path)
		}
	}
	if len(paths) == 0 {
		// Nothing generated yet; fall back to the built-in plans.
		cmp.AddDrawing(benchmark.Drawing{Name: "synthetic-medium", Image: testutil.GeneratePlan(testutil.DefaultPlanConfig())})
		large := testutil.DefaultPlanConfig()
		large.Size = testutil.LargeSize
		cmp.AddDrawing(benchmark.Drawing{Name: "synthetic-large", Image: testutil.GeneratePlan(large)})
	}

	fmt.Printf("Running benchmarks with %d iterations per test...\n\n", *iterations)
	if _, err := cmp.Run(ctx, *iterations); err != nil {
		log.Fatalf("Benchmark failed: %v", err)
	}
	cmp.PrintDetailed(os.Stdout)

	if *outputFile != "" {
		if err := saveResultsToFile(*outputFile, cmp); err != nil {
			log.Printf("Failed to save results to file: %v", err)
		} else {
			fmt.Printf("Results saved to: %s\n", *outputFile)
		}
	}
}

func saveResultsToFile(filename string, cmp *benchmark.BackendComparison) error {
	file, err := os.Create(filename) //nolint:gosec // G304: output path is chosen by the user
	if err != nil {
		return err
	}
	if err := cmp.WriteCSV(file); err != nil {
		_ = file.Close()
		return err
	}
	return file.Close()
}
