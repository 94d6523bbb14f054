// Command zonedemo drives a zone with a seeded random workload and prints
// the resulting block map.
package main

import (
	"flag"
	"fmt"
	"io"
	"math/rand"
	"os"

	"github.com/cockroachdb/errors"
	"golang.org/x/exp/slog"

	"zone"
)

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, "zonedemo:", err)
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("zonedemo", flag.ContinueOnError)
	fs.SetOutput(stderr)
	size := fs.Int("size", 1<<20, "Arena size in bytes")
	ops := fs.Int("ops", 10_000, "Number of allocate/free operations")
	maxReq := fs.Int("max", 4096, "Largest single request in bytes")
	seed := fs.Int64("seed", 1, "Workload seed")
	asJSON := fs.Bool("json", false, "Print the block map as JSON")
	file := fs.String("file", "", "File to load into the zone after the workload")
	verbose := fs.Bool("v", false, "Log at debug level and list live allocations")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *maxReq <= 0 {
		return errors.Newf("-max must be > 0, got %d", *maxReq)
	}

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	z, err := zone.New(zone.Config{Size: *size, Logger: logger, VerifyEachCall: true})
	if err != nil {
		return err
	}

	live, failed := workload(z, rand.New(rand.NewSource(*seed)), *ops, *maxReq)
	if *file != "" {
		p, n, err := z.ReadFile(*file)
		if err != nil {
			return err
		}
		logger.Info("loaded file", "path", *file, "bytes", n)
		live = append(live, p)
	}
	z.Check()

	if *asJSON {
		data, err := z.JSON()
		if err != nil {
			return errors.Wrap(err, "rendering block map")
		}
		if _, err := fmt.Fprintf(stdout, "%s\n", data); err != nil {
			return err
		}
	} else {
		fmt.Fprintf(stdout, "live allocations: %d, failed requests: %d\n", len(live), failed)
		if err := z.Report(stdout); err != nil {
			return err
		}
	}
	if *verbose {
		z.LogAllocations(logger)
	}

	for _, p := range live {
		z.Free(p)
	}
	z.Shutdown()
	return nil
}

// workload performs ops random allocations and frees, keeping roughly two
// allocations live for every one released. It returns the pointers still
// live and the number of requests the zone could not satisfy.
func workload(z *zone.Zone, rng *rand.Rand, ops, maxReq int) ([]zone.Ptr, int) {
	var (
		live   []zone.Ptr
		failed int
	)
	for i := 0; i < ops; i++ {
		if len(live) > 0 && rng.Intn(3) == 0 {
			k := rng.Intn(len(live))
			z.Free(live[k])
			live[k] = live[len(live)-1]
			live = live[:len(live)-1]
			continue
		}
		p, err := z.Allocate(1 + rng.Intn(maxReq))
		if err != nil {
			failed++
			continue
		}
		live = append(live, p)
	}
	return live, failed
}
