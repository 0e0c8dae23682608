package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/mdesk/internal/importer"
	"github.com/xxxsen/mdesk/internal/model"
	appErr "github.com/xxxsen/mdesk/internal/pkg/errors"
	"github.com/xxxsen/mdesk/internal/schedule"
	"github.com/xxxsen/mdesk/internal/source"
	"github.com/xxxsen/mdesk/internal/syncer"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:           "mdesk",
		Short:         "markdown document workspace",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config.json (default $"+configEnv+")")

	withApp := func(fn func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			a, err := openApp(ctx, configPath)
			if err != nil {
				return err
			}
			defer a.close(context.Background())
			return fn(ctx, a, cmd, args)
		}
	}

	var isHTML, showTip bool
	importCmd := &cobra.Command{
		Use:   "import <file>...",
		Short: "import markdown, html or image files into the workspace",
		Args:  cobra.MinimumNArgs(1),
		RunE: withApp(func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
			return importFiles(ctx, a, args, importer.Options{ShowTip: showTip, IsHTML: isHTML}, cmd.OutOrStdout(), cmd.ErrOrStderr())
		}),
	}
	importCmd.Flags().BoolVar(&isHTML, "html", false, "convert non-image files from html")
	importCmd.Flags().BoolVar(&showTip, "tip", false, "show the drag and drop tip")

	lsCmd := &cobra.Command{
		Use:   "ls",
		Short: "list documents",
		Args:  cobra.NoArgs,
		RunE: withApp(func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
			files, current := a.store.Snapshot()
			for _, d := range files {
				marker := " "
				if current != nil && current.ID == d.ID {
					marker = "*"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %d\t%s\t%s\n", marker, d.ID, d.Title, formatUpdated(d.UpdatedOn))
			}
			return nil
		}),
	}

	var title string
	newCmd := &cobra.Command{
		Use:   "new",
		Short: "create an empty document and make it current",
		Args:  cobra.NoArgs,
		RunE: withApp(func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
			a.settle()
			props := model.DocumentProps{}
			if title != "" {
				props.Title = &title
			}
			doc := a.store.Add(ctx, a.store.Create(props))
			a.store.SetCurrent(doc)
			a.reloadEditor()
			fmt.Fprintf(cmd.OutOrStdout(), "%d\t%s\n", doc.ID, doc.Title)
			return a.store.Save(ctx, doc, false)
		}),
	}
	newCmd.Flags().StringVar(&title, "title", "", "document title")

	showCmd := &cobra.Command{
		Use:   "show [id]",
		Short: "print a document body, the current one by default",
		Args:  cobra.MaximumNArgs(1),
		RunE: withApp(func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				fmt.Fprint(cmd.OutOrStdout(), a.store.CurrentBody())
				return nil
			}
			doc, err := lookup(a, args[0])
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), doc.Body)
			return nil
		}),
	}

	useCmd := &cobra.Command{
		Use:   "use <id>",
		Short: "make a document current",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
			doc, err := lookup(a, args[0])
			if err != nil {
				return err
			}
			a.settle()
			a.store.SetCurrent(doc)
			a.reloadEditor()
			return a.store.Save(ctx, doc, false)
		}),
	}

	rmCmd := &cobra.Command{
		Use:   "rm <id>",
		Short: "remove a document",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
			doc, err := lookup(a, args[0])
			if err != nil {
				return err
			}
			a.store.Remove(ctx, doc)
			return nil
		}),
	}

	var fromFile string
	saveCmd := &cobra.Command{
		Use:   "save",
		Short: "save the current document, optionally replacing its body (- reads stdin)",
		Args:  cobra.NoArgs,
		RunE: withApp(func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
			if a.store.Current() == nil {
				return fmt.Errorf("no current document: %w", appErr.ErrNotFound)
			}
			if fromFile != "" {
				body, err := readInput(ctx, cmd.InOrStdin(), fromFile)
				if err != nil {
					return err
				}
				a.buffer.SetText(body)
			}
			a.store.CurrentBody()
			return a.store.Save(ctx, a.store.Current(), true)
		}),
	}
	saveCmd.Flags().StringVar(&fromFile, "from", "", "file to load into the editor before saving")

	syncCmd := &cobra.Command{
		Use:   "sync [path]...",
		Short: "reconcile documents with the remote, using sync.paths when none are given",
		RunE: withApp(func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
			engine, err := a.syncEngine()
			if err != nil {
				return err
			}
			paths := args
			if len(paths) == 0 {
				paths = a.cfg.Sync.Paths
			}
			a.settle()
			results, err := engine.ReconcileAll(ctx, paths)
			for _, r := range results {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%d\n", r.Path, r.Outcome, r.Document.ID)
			}
			return err
		}),
	}

	watchCmd := &cobra.Command{
		Use:   "watch",
		Short: "run sync on the sync.cron schedule until interrupted",
		Args:  cobra.NoArgs,
		RunE: withApp(func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
			engine, err := a.syncEngine()
			if err != nil {
				return err
			}
			if len(a.cfg.Sync.Paths) == 0 {
				return fmt.Errorf("sync.paths is empty: %w", appErr.ErrInvalid)
			}
			a.settle()
			job := syncer.NewJob(engine, a.cfg.Sync.Paths)
			scheduler := schedule.NewCronScheduler()
			if err := scheduler.AddJob(job, a.cfg.Sync.Cron); err != nil {
				return err
			}
			scheduler.Start(ctx)
			logutil.GetLogger(ctx).Info("watching remote documents", zap.Strings("paths", a.cfg.Sync.Paths), zap.Time("next", scheduler.Next(job.Name())))
			<-ctx.Done()
			scheduler.Stop()
			return nil
		}),
	}

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "run the conversion, image and document service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServer(ctx, cfg)
		},
	}

	rootCmd.AddCommand(importCmd, lsCmd, newCmd, showCmd, useCmd, rmCmd, saveCmd, syncCmd, watchCmd, serveCmd)

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// importFiles imports each path in turn. The editor is settled after every
// attempt, failed ones included, since a failed import may already have
// switched the current document.
func importFiles(ctx context.Context, a *app, paths []string, opts importer.Options, stdout, stderr io.Writer) error {
	p := a.pipeline()
	var errs []error
	for _, path := range paths {
		route, err := p.ImportFile(ctx, source.FromPath(path), opts)
		a.settle()
		if err != nil {
			if appErr.IsInputRejected(err) {
				fmt.Fprintf(stderr, "%s\tskipped: %v\n", path, err)
			}
			errs = append(errs, fmt.Errorf("%s: %w", path, err))
			continue
		}
		current := a.store.Current()
		fmt.Fprintf(stdout, "%s\t%s\t%d\t%s\n", path, route, current.ID, current.Title)
	}
	return errors.Join(errs...)
}

func lookup(a *app, raw string) (*model.Document, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("document id %q: %w", raw, appErr.ErrInvalid)
	}
	doc, ok := a.store.Get(id)
	if !ok {
		return nil, fmt.Errorf("document %d: %w", id, appErr.ErrNotFound)
	}
	return doc, nil
}

func readInput(ctx context.Context, stdin io.Reader, name string) (string, error) {
	if name == "-" {
		data, err := io.ReadAll(stdin)
		return string(data), err
	}
	return source.ReadText(ctx, source.FromPath(name))
}

func formatUpdated(ms int64) string {
	if ms <= 0 {
		return "-"
	}
	return time.UnixMilli(ms).Format(time.RFC3339)
}
