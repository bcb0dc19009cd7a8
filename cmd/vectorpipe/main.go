// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/poiesic/vectorpipe"
	"github.com/poiesic/vectorpipe/config"
	"github.com/poiesic/vectorpipe/core"
	"github.com/poiesic/vectorpipe/migration"
)

const (
	metaConfig    = "config"
	metaLogCloser = "log-closer"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "vectorpipe",
		Usage: "Embed records from business sources into a searchable vector store",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to YAML configuration file",
				EnvVars: []string{config.EnvPrefix + "CONFIG"},
			},
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
			&cli.StringFlag{
				Name:  "log-file",
				Usage: "Also write JSON logs to this file",
			},
		},
		Before: setup,
		After:  teardown,
		Commands: []*cli.Command{
			{
				Name:   "ingest",
				Usage:  "Submit an ingestion job for one source and wait for it to finish",
				Action: ingestCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "source",
						Aliases:  []string{"s"},
						Usage:    "Source type to ingest (e.g. campaigns, analytics)",
						Required: true,
					},
					&cli.StringFlag{
						Name:    "records",
						Aliases: []string{"r"},
						Usage:   "YAML or JSON records file (overrides sources.file)",
					},
					&cli.StringSliceFlag{
						Name:  "ids",
						Usage: "Only ingest these record IDs",
					},
					&cli.IntFlag{
						Name:  "batch-size",
						Usage: "Records per batch (default from config)",
					},
					&cli.IntFlag{
						Name:  "chunk-size",
						Usage: "Maximum chunk size in characters (default from config)",
					},
					&cli.IntFlag{
						Name:  "overlap",
						Usage: "Chunk overlap in characters (default from config)",
						Value: -1,
					},
					&cli.StringFlag{
						Name:  "priority",
						Usage: "Job priority (low, normal, high)",
						Value: string(core.PriorityNormal),
					},
				},
			},
			{
				Name:   "migrate",
				Usage:  "Run or resume a checkpointed bulk migration",
				Action: migrateCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "id",
						Usage: "Migration ID (generated if empty)",
					},
					&cli.StringSliceFlag{
						Name:  "sources",
						Usage: "Sources to migrate, in order (default all registered sources)",
					},
					&cli.BoolFlag{
						Name:  "resume",
						Usage: "Resume the migration from its last checkpoint",
					},
					&cli.StringFlag{
						Name:  "checkpoint-redis",
						Usage: "Keep checkpoints in the Redis server at this address",
					},
				},
			},
			{
				Name:   "status",
				Usage:  "Show the status of a migration or job",
				Action: statusCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "id",
						Usage: "Migration ID",
					},
					&cli.StringFlag{
						Name:  "job",
						Usage: "Job ID",
					},
				},
			},
			{
				Name:   "validate",
				Usage:  "Check a migration by re-embedding sampled records",
				Action: validateCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "id",
						Usage:    "Migration ID",
						Required: true,
					},
				},
			},
			{
				Name:   "search",
				Usage:  "Hybrid search over stored documents",
				Action: searchCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "query",
						Aliases:  []string{"q"},
						Usage:    "Search text",
						Required: true,
					},
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of results",
						Value: 10,
					},
					&cli.StringFlag{
						Name:  "source",
						Usage: "Only return documents of this source type",
					},
				},
			},
			{
				Name:   "stats",
				Usage:  "Show collection, embedding and job statistics",
				Action: statsCommand,
			},
		},
	}
}

func setup(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}
	if c.IsSet("log-level") || cfg.Log.Level == "" {
		cfg.Log.Level = c.String("log-level")
	}
	if c.IsSet("log-file") {
		cfg.Log.File = c.String("log-file")
	}

	logger, closer, err := config.NewLogger(cfg.Log)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	if c.App.Metadata == nil {
		c.App.Metadata = map[string]any{}
	}
	c.App.Metadata[metaConfig] = cfg
	c.App.Metadata[metaLogCloser] = closer
	return nil
}

func teardown(c *cli.Context) error {
	if closer, ok := c.App.Metadata[metaLogCloser].(func() error); ok && closer != nil {
		return closer()
	}
	return nil
}

func loadedConfig(c *cli.Context) (*config.Config, error) {
	cfg, ok := c.App.Metadata[metaConfig].(*config.Config)
	if !ok {
		return nil, errors.New("configuration not loaded")
	}
	return cfg, nil
}

// withApp builds the application, runs fn and shuts everything down.
// SIGINT and SIGTERM cancel the context passed to fn.
func withApp(c *cli.Context, fn func(ctx context.Context, app *vectorpipe.App) error) error {
	cfg, err := loadedConfig(c)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := vectorpipe.New(ctx, cfg,
		vectorpipe.WithLogger(slog.Default()),
		vectorpipe.WithProgressOutput(c.App.ErrWriter),
	)
	if err != nil {
		return err
	}

	runErr := fn(ctx, app)

	closeCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := app.Close(closeCtx); err != nil {
		slog.Error("shutdown incomplete", "err", err)
	}
	return runErr
}

func ingestCommand(c *cli.Context) error {
	if c.IsSet("records") {
		cfg, err := loadedConfig(c)
		if err != nil {
			return err
		}
		cfg.Sources.File = c.String("records")
	}
	return withApp(c, func(ctx context.Context, app *vectorpipe.App) error {
		cfg := app.Config()
		job := &core.Job{
			Source:    c.String("source"),
			RecordIDs: c.StringSlice("ids"),
			BatchSize: cfg.Jobs.BatchSize,
			Priority:  core.JobPriority(c.String("priority")),
			Chunking:  cfg.Chunking,
		}
		if c.IsSet("batch-size") {
			job.BatchSize = c.Int("batch-size")
		}
		if c.IsSet("chunk-size") {
			job.Chunking.ChunkSize = c.Int("chunk-size")
		}
		if c.IsSet("overlap") {
			job.Chunking.Overlap = c.Int("overlap")
		}

		id, err := app.Orchestrator().Enqueue(ctx, job)
		if err != nil {
			return fmt.Errorf("failed to submit job: %w", err)
		}
		fmt.Fprintf(c.App.ErrWriter, "Job %s queued for source %s\n", id, job.Source)

		done, err := waitForJob(ctx, app, id)
		if err != nil {
			return err
		}
		if err := printJSON(c, done); err != nil {
			return err
		}
		if done.Status != core.JobCompleted {
			return cli.Exit(fmt.Sprintf("job %s %s", id, done.Status), 1)
		}
		return nil
	})
}

func waitForJob(ctx context.Context, app *vectorpipe.App, id string) (*core.Job, error) {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for {
		job, err := app.Orchestrator().Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if job.Status.IsTerminal() {
			return job, nil
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("stopped waiting for job %s: %w", id, ctx.Err())
		case <-ticker.C:
		}
	}
}

func migrateCommand(c *cli.Context) error {
	if addr := c.String("checkpoint-redis"); addr != "" {
		cfg, err := loadedConfig(c)
		if err != nil {
			return err
		}
		cfg.Redis.Addr = addr
		cfg.Migration.Checkpoints = "redis"
	}
	return withApp(c, func(ctx context.Context, app *vectorpipe.App) error {
		id := c.String("id")
		if c.Bool("resume") {
			if id == "" {
				return errors.New("--id is required with --resume")
			}
			status, err := app.Migrator().Resume(ctx, id)
			return finishMigration(c, status, err)
		}

		sources := c.StringSlice("sources")
		if len(sources) == 0 {
			sources = app.Sources().Names()
		}
		status, err := app.Migrator().Run(ctx, id, sources)
		return finishMigration(c, status, err)
	})
}

func finishMigration(c *cli.Context, status *migration.Status, err error) error {
	if status != nil {
		if perr := printJSON(c, status); perr != nil {
			return perr
		}
	}
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	return nil
}

func statusCommand(c *cli.Context) error {
	if c.String("id") == "" && c.String("job") == "" {
		return errors.New("one of --id or --job is required")
	}
	return withApp(c, func(ctx context.Context, app *vectorpipe.App) error {
		if jobID := c.String("job"); jobID != "" {
			job, err := app.Orchestrator().Get(ctx, jobID)
			if err != nil {
				return err
			}
			return printJSON(c, job)
		}
		status, err := app.Migrator().Status(ctx, c.String("id"))
		if err != nil {
			return err
		}
		return printJSON(c, status)
	})
}

func validateCommand(c *cli.Context) error {
	return withApp(c, func(ctx context.Context, app *vectorpipe.App) error {
		report, err := app.Migrator().Validate(ctx, c.String("id"))
		if err != nil {
			return err
		}
		if err := printJSON(c, report); err != nil {
			return err
		}
		if !report.Valid {
			return cli.Exit("validation found issues", 1)
		}
		return nil
	})
}

type searchHit struct {
	ID          string  `json:"id"`
	SourceType  string  `json:"source_type"`
	Score       float64 `json:"score"`
	VectorScore float64 `json:"vector_score"`
	TextScore   float64 `json:"text_score"`
	Content     string  `json:"content"`
}

func searchCommand(c *cli.Context) error {
	return withApp(c, func(ctx context.Context, app *vectorpipe.App) error {
		filter := core.Filter{SourceType: c.String("source")}
		hits, err := app.Search(ctx, c.String("query"), filter, c.Int("limit"))
		if err != nil {
			return err
		}
		out := make([]searchHit, len(hits))
		for i, h := range hits {
			out[i] = searchHit{
				ID:          h.Document.ID,
				SourceType:  h.Document.SourceType,
				Score:       h.Score,
				VectorScore: h.VectorScore,
				TextScore:   h.TextScore,
				Content:     h.Document.Content,
			}
		}
		return printJSON(c, out)
	})
}

func statsCommand(c *cli.Context) error {
	return withApp(c, func(ctx context.Context, app *vectorpipe.App) error {
		collection, err := app.Store().Stats(ctx)
		if err != nil {
			return err
		}
		return printJSON(c, map[string]any{
			"collection": collection,
			"embedding":  app.Embedding().Stats(),
			"store":      app.Store().Metrics(),
			"jobs":       app.Orchestrator().Stats(),
			"health":     app.Orchestrator().Health(ctx),
		})
	})
}

func printJSON(c *cli.Context, v any) error {
	enc := json.NewEncoder(c.App.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
