// Command datasetgen writes the synthetic sensor, operator and maintenance
// corpora used by the local search backend.
package main

import (
	"flag"
	"log"
	"time"

	"rca-copilot/internal/dataset"
)

func main() {
	dir := flag.String("dir", "datasets", "output directory")
	rows := flag.Int("rows", 10000, "records per dataset")
	seed := flag.Int64("seed", 0, "rng seed, 0 picks a random one")
	flag.Parse()

	if *seed == 0 {
		*seed = time.Now().UnixNano()
	}
	if err := dataset.Generate(dataset.GenerateOptions{Dir: *dir, Rows: *rows, Seed: *seed}); err != nil {
		log.Fatalf("generate datasets: %v", err)
	}
	log.Printf("datasets written to %s (rows=%d seed=%d)", *dir, *rows, *seed)
}
