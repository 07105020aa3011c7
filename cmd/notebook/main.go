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
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v2"

	notebook "github.com/pedrocostadev/ai-notebook-sub000"
	"github.com/pedrocostadev/ai-notebook-sub000/config"
	"github.com/pedrocostadev/ai-notebook-sub000/core"
	"github.com/pedrocostadev/ai-notebook-sub000/ingestion"
	"github.com/pedrocostadev/ai-notebook-sub000/scheduler"
	"github.com/pedrocostadev/ai-notebook-sub000/server"
)

// envFile is loaded from the working directory when present.
const envFile = ".env"

const waitPollInterval = time.Second

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	documentFlag := &cli.Uint64Flag{
		Name:     "document",
		Aliases:  []string{"D"},
		Usage:    "Document ID",
		Required: true,
	}

	return &cli.App{
		Name:  "notebook",
		Usage: "Ask questions about your documents",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Log level (debug, info, warn, error)",
				Value: "info",
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to a YAML configuration file",
				EnvVars: []string{config.EnvPrefix + "_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "data-dir",
				Aliases: []string{"d"},
				Usage:   "Database directory (overrides the configuration)",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:      "ingest",
				Usage:     "Add documents to the notebook",
				ArgsUsage: "FILE...",
				Action:    ingestCommand,
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "wait",
						Usage: "Process the documents now and wait until they are ready",
					},
				},
			},
			{
				Name:      "ask",
				Usage:     "Ask a question about a document or one of its chapters",
				ArgsUsage: "QUESTION",
				Action:    askCommand,
				Flags: []cli.Flag{
					documentFlag,
					&cli.Uint64Flag{
						Name:    "chapter",
						Aliases: []string{"C"},
						Usage:   "Restrict the question to one chapter",
					},
					&cli.BoolFlag{
						Name:  "sources",
						Usage: "Print the excerpts the answer was based on",
					},
				},
			},
			{
				Name:   "serve",
				Usage:  "Run the HTTP API and process queued jobs",
				Action: serveCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "address",
						Usage: "Listen address (overrides the configuration)",
					},
					&cli.StringFlag{
						Name:  "watch",
						Usage: "Ingest documents dropped into this directory",
					},
				},
			},
			{
				Name:      "watch",
				Usage:     "Ingest documents dropped into a directory",
				ArgsUsage: "DIR",
				Action:    watchCommand,
			},
			{
				Name:   "status",
				Usage:  "List documents, or the jobs of one document",
				Action: statusCommand,
				Flags: []cli.Flag{
					&cli.Uint64Flag{
						Name:    "document",
						Aliases: []string{"D"},
						Usage:   "Show the jobs of this document",
					},
				},
			},
			{
				Name:   "cancel",
				Usage:  "Stop processing a document",
				Action: cancelCommand,
				Flags:  []cli.Flag{documentFlag},
			},
			{
				Name:   "delete",
				Usage:  "Remove a document and everything derived from it",
				Action: deleteCommand,
				Flags:  []cli.Flag{documentFlag},
			},
			{
				Name:      "init-config",
				Usage:     "Write the default configuration to a file",
				ArgsUsage: "PATH",
				Action:    initConfigCommand,
			},
		},
	}
}

func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.Load(c.String("config"), envFile)
	if err != nil {
		return nil, err
	}
	if dir := c.String("data-dir"); dir != "" {
		cfg.DataDir = dir
	}
	return cfg, nil
}

func openNotebook(c *cli.Context, opts ...notebook.Option) (*notebook.Notebook, *config.Config, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, nil, err
	}
	opts = append([]notebook.Option{notebook.WithConfig(cfg)}, opts...)
	nb, err := notebook.Open(cfg.DataDir, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open notebook: %w", err)
	}
	return nb, cfg, nil
}

func ingestCommand(c *cli.Context) error {
	if c.NArg() == 0 {
		return fmt.Errorf("at least one file is required")
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	nb, _, err := openNotebook(c)
	if err != nil {
		return err
	}
	defer nb.Close()

	out := c.App.Writer
	wait := c.Bool("wait")
	var progress <-chan scheduler.Progress
	if wait {
		events, unsubscribe := nb.Subscribe()
		defer unsubscribe()
		progress = events
		if err := nb.Start(ctx); err != nil {
			return err
		}
		defer nb.Stop()
	}

	pending := make(map[core.ID]bool)
	for _, path := range c.Args().Slice() {
		doc, err := nb.Ingest(ctx, path)
		if err != nil {
			return fmt.Errorf("failed to ingest %s: %w", path, err)
		}
		fmt.Fprintf(out, "%d\t%s\t%s\n", doc.Id, doc.Title, path)
		pending[doc.Id] = true
	}

	if !wait {
		return nil
	}
	return waitForDocuments(ctx, nb, progress, pending, out)
}

// waitForDocuments prints progress until every pending document has left
// the processing state.
func waitForDocuments(ctx context.Context, nb *notebook.Notebook, progress <-chan scheduler.Progress, pending map[core.ID]bool, out io.Writer) error {
	ticker := time.NewTicker(waitPollInterval)
	defer ticker.Stop()

	for len(pending) > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case p, ok := <-progress:
			if !ok {
				return nil
			}
			if pending[p.DocumentId] {
				fmt.Fprintf(out, "document %d: %s %d%%\n", p.DocumentId, p.Stage, p.Percent)
			}
		case <-ticker.C:
		}

		for id := range pending {
			doc, err := nb.Document(ctx, id)
			if err != nil {
				return err
			}
			if doc.Status == core.DocumentStatusProcessing {
				continue
			}
			delete(pending, id)
			if doc.Error != "" {
				fmt.Fprintf(out, "document %d: %s (%s)\n", doc.Id, doc.Status, doc.Error)
			} else {
				fmt.Fprintf(out, "document %d: %s\n", doc.Id, doc.Status)
			}
		}
	}
	return nil
}

func askCommand(c *cli.Context) error {
	question := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
	if question == "" {
		return fmt.Errorf("a question is required")
	}

	nb, _, err := openNotebook(c)
	if err != nil {
		return err
	}
	defer nb.Close()

	out := c.App.Writer
	scope := core.ChapterScope(core.ID(c.Uint64("document")), core.ID(c.Uint64("chapter")))
	answer, err := nb.Ask(c.Context, scope, question, func(token string) error {
		_, err := io.WriteString(out, token)
		return err
	})
	if err != nil {
		return err
	}
	fmt.Fprintln(out)

	if c.Bool("sources") && len(answer.Sources) > 0 {
		fmt.Fprintln(out)
		for _, source := range answer.Sources {
			fmt.Fprintf(out, "- %s, pages %d-%d (%.4f)\n", source.Heading, source.PageStart, source.PageEnd, source.Score)
		}
	}
	return nil
}

func serveCommand(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry := prometheus.NewRegistry()
	nb, cfg, err := openNotebook(c, notebook.WithRegisterer(registry))
	if err != nil {
		return err
	}
	defer nb.Close()

	address := cfg.Server.Address
	if a := c.String("address"); a != "" {
		address = a
	}
	watchDir := cfg.Ingestion.WatchDir
	if dir := c.String("watch"); dir != "" {
		watchDir = dir
	}

	srv, err := server.New(nb, server.WithMetrics(registry, registry))
	if err != nil {
		return err
	}

	listener, err := net.Listen("tcp", address)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", address, err)
	}

	if err := nb.Start(ctx); err != nil {
		listener.Close()
		return err
	}
	defer nb.Stop()

	if watchDir != "" {
		watcher, err := ingestion.NewWatcher(watchDir, nb.Ingester(),
			ingestion.WithSettleDelay(cfg.Ingestion.SettleDelay))
		if err != nil {
			listener.Close()
			return fmt.Errorf("failed to watch %s: %w", watchDir, err)
		}
		go func() {
			if err := watcher.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("watcher stopped", "err", err)
			}
		}()
	}

	return srv.Run(ctx, listener)
}

func watchCommand(c *cli.Context) error {
	dir := c.Args().First()
	if dir == "" {
		return fmt.Errorf("a directory is required")
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	nb, cfg, err := openNotebook(c)
	if err != nil {
		return err
	}
	defer nb.Close()

	watcher, err := ingestion.NewWatcher(dir, nb.Ingester(),
		ingestion.WithSettleDelay(cfg.Ingestion.SettleDelay))
	if err != nil {
		return err
	}

	if err := nb.Start(ctx); err != nil {
		return err
	}
	defer nb.Stop()

	out := c.App.Writer
	go func() {
		for result := range watcher.Results() {
			if result.Err != nil {
				fmt.Fprintf(out, "%s: %v\n", result.Path, result.Err)
				continue
			}
			fmt.Fprintf(out, "%d\t%s\t%s\n", result.Document.Id, result.Document.Title, result.Path)
		}
	}()

	fmt.Fprintf(c.App.ErrWriter, "Watching %s\n", dir)
	if err := watcher.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func statusCommand(c *cli.Context) error {
	nb, _, err := openNotebook(c)
	if err != nil {
		return err
	}
	defer nb.Close()

	w := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
	defer w.Flush()

	if c.IsSet("document") {
		jobs, err := nb.Jobs(c.Context, core.ID(c.Uint64("document")))
		if err != nil {
			return err
		}
		fmt.Fprintln(w, "ID\tTYPE\tCHAPTER\tSTATUS\tATTEMPTS\tERROR")
		for _, job := range jobs {
			fmt.Fprintf(w, "%d\t%s\t%d\t%s\t%d\t%s\n", job.Id, job.Type, job.ChapterId, job.Status, job.Attempts, job.LastError)
		}
		return nil
	}

	documents, err := nb.Documents(c.Context)
	if err != nil {
		return err
	}
	if len(documents) == 0 {
		fmt.Fprintln(w, "No documents")
		return nil
	}
	fmt.Fprintln(w, "ID\tTITLE\tSTATUS\tPAGES\tSOURCE")
	for _, doc := range documents {
		fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%s\n", doc.Id, doc.Title, doc.Status, doc.PageCount, doc.SourcePath)
	}
	return nil
}

func cancelCommand(c *cli.Context) error {
	nb, _, err := openNotebook(c)
	if err != nil {
		return err
	}
	defer nb.Close()

	id := core.ID(c.Uint64("document"))
	if err := nb.Cancel(c.Context, id); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "Cancelled document %d\n", id)
	return nil
}

func deleteCommand(c *cli.Context) error {
	nb, _, err := openNotebook(c)
	if err != nil {
		return err
	}
	defer nb.Close()

	id := core.ID(c.Uint64("document"))
	if err := nb.DeleteDocument(c.Context, id); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "Deleted document %d\n", id)
	return nil
}

func initConfigCommand(c *cli.Context) error {
	path := c.Args().First()
	if path == "" {
		return fmt.Errorf("a path is required")
	}
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists", path)
	}
	if err := config.Save(path, config.Default()); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	fmt.Fprintf(c.App.Writer, "Wrote %s\n", path)
	return nil
}

func setupLogger(c *cli.Context) error {
	// Get log level from flag and normalize to lowercase
	levelStr := strings.ToLower(c.String("log-level"))

	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}
