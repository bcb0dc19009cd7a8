// Command seeder turns lines of text into source records. It writes them as a
// records file usable as sources.file, and with -config also migrates them
// straight into the configured store.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"iter"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/poiesic/vectorpipe"
	"github.com/poiesic/vectorpipe/config"
	"github.com/poiesic/vectorpipe/core"
	"github.com/poiesic/vectorpipe/source"
)

var descriptions = []string{
	"Spring sale on running sneakers with free shipping over fifty dollars.",
	"Summer launch of recycled sandals for beach and city wear.",
	"Back to school bundle: backpacks, lunch boxes and stationery at twenty percent off.",
	"Loyalty members earn double points on every outdoor gear purchase this weekend.",
	"Autumn clearance of leather boots while sizes last.",
	"Holiday gift guide featuring smart home devices under one hundred dollars.",
	"Flash sale on noise cancelling headphones for the next six hours.",
	"New customer welcome offer: ten percent off the first order.",
	"Referral campaign rewarding both friends with store credit.",
	"Winter coat drive: donate a used coat and get a discount on a new one.",
	"Mobile app exclusive deal on kitchen appliances.",
	"Anniversary celebration with surprise rewards for long time subscribers.",
}

var (
	seedFileName = flag.String("src", "", "file of seed lines, one record per line")
	sourceName   = flag.String("source", "campaigns", "source type of the generated records")
	outFile      = flag.String("out", "records.yaml", "records file to write")
	configFile   = flag.String("config", "", "if set, also migrate the records into the configured store")
)

// linesFromFile returns an iterator over lines in a file.
func linesFromFile(filename string) (iter.Seq[string], error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}

	return func(yield func(string) bool) {
		defer f.Close()
		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			if !yield(scanner.Text()) {
				return
			}
		}
	}, nil
}

// buildRecords makes one record per non-empty line, keyed by position.
func buildRecords(lines iter.Seq[string], now time.Time) []core.Record {
	var records []core.Record
	for line := range lines {
		if line == "" {
			continue
		}
		n := len(records) + 1
		records = append(records, core.Record{
			Key: fmt.Sprintf("%s-%04d", *sourceName, n),
			Fields: map[string]any{
				"id":          fmt.Sprintf("%s-%04d", *sourceName, n),
				"name":        fmt.Sprintf("Seed %d", n),
				"description": line,
				"created_at":  now.Add(-time.Duration(n) * time.Hour).Format(time.RFC3339),
			},
		})
	}
	return records
}

func writeRecords(path string, records []core.Record) error {
	rows := make([]map[string]any, len(records))
	for i, r := range records {
		rows[i] = r.Fields
	}
	data, err := yaml.Marshal(map[string][]map[string]any{*sourceName: rows})
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func migrate(ctx context.Context, records []core.Record) error {
	cfg, err := config.Load(*configFile)
	if err != nil {
		return err
	}
	src, err := source.NewMemorySource(*sourceName, records...)
	if err != nil {
		return err
	}
	cfg.Sources.File = ""

	app, err := vectorpipe.New(ctx, cfg, vectorpipe.WithSource(src), vectorpipe.WithProgressOutput(os.Stderr))
	if err != nil {
		return err
	}
	defer app.Close(context.Background())

	status, err := app.Migrator().Run(ctx, "", []string{*sourceName})
	if err != nil {
		return err
	}
	slog.Info("seeded store", "migration", status.MigrationID, "documents", status.Counters.DocumentsWritten)
	return nil
}

func main() {
	flag.Parse()

	lines := func(yield func(string) bool) {
		for _, d := range descriptions {
			if !yield(d) {
				return
			}
		}
	}
	if *seedFileName != "" {
		fromFile, err := linesFromFile(*seedFileName)
		if err != nil {
			slog.Error("failed to open seed file", "err", err)
			os.Exit(1)
		}
		lines = fromFile
	}

	records := buildRecords(lines, time.Now().UTC())
	if err := writeRecords(*outFile, records); err != nil {
		slog.Error("failed to write records", "err", err)
		os.Exit(1)
	}
	slog.Info("wrote records", "file", *outFile, "source", *sourceName, "count", len(records))

	if *configFile != "" {
		if err := migrate(context.Background(), records); err != nil {
			slog.Error("failed to seed store", "err", err)
			os.Exit(1)
		}
	}
}
