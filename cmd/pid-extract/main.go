// Command pid-extract runs tag extraction over P&ID drawings without an MCP
// client and writes project files, workbooks or project database entries.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"

	"github.com/a3tai/mcp-pid-tagger/internal/config"
	"github.com/a3tai/mcp-pid-tagger/internal/export"
	"github.com/a3tai/mcp-pid-tagger/internal/pdf"
	"github.com/a3tai/mcp-pid-tagger/internal/pid"
	"github.com/a3tai/mcp-pid-tagger/internal/pipeline"
	"github.com/a3tai/mcp-pid-tagger/internal/project"
)

func main() {
	if err := newCommand(os.Stdout, os.Stderr).Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}

func newCommand(stdout, stderr io.Writer) *cli.Command {
	return &cli.Command{
		Name:      "pid-extract",
		Usage:     "Extract P&ID tags from PDF drawings",
		ArgsUsage: "<drawing.pdf>...",
		Writer:    stdout,
		ErrWriter: stderr,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Project JSON output; a directory when several drawings are given (default: stdout)",
			},
			&cli.StringFlag{
				Name:  "xlsx",
				Usage: "Excel workbook output; a directory when several drawings are given",
			},
			&cli.StringFlag{
				Name:  "settings",
				Usage: "YAML settings file with patterns and tolerances",
			},
			&cli.BoolFlag{
				Name:  "auto-link",
				Usage: "Link nearby raw text to instruments as descriptions",
			},
			&cli.StringFlag{
				Name:  "db",
				Usage: "Also save each drawing into this project database, named after the file",
			},
			&cli.Int64Flag{
				Name:  "maxfilesize",
				Usage: "Maximum drawing size in bytes",
				Value: config.DefaultMaxFileSize,
			},
			&cli.StringFlag{
				Name:  "loglevel",
				Usage: "Log level (debug, info, warn, error)",
				Value: "warn",
			},
		},
		Action: extract,
	}
}

// job is the per-drawing slice of the command line
type job struct {
	settings pid.Settings
	autoLink bool
	maxSize  int64
	output   string
	xlsx     string
	store    *project.Store
	logger   *log.Logger
	stdout   io.Writer
}

func extract(ctx context.Context, cmd *cli.Command) error {
	paths := cmd.Args().Slice()
	if len(paths) == 0 {
		return fmt.Errorf("at least one drawing is required")
	}

	level, err := log.ParseLevel(cmd.String("loglevel"))
	if err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	logger := log.NewWithOptions(cmd.Root().ErrWriter, log.Options{Level: level, Prefix: "pid-extract"})

	settings, err := config.LoadSettings(cmd.String("settings"))
	if err != nil {
		return err
	}

	j := job{
		settings: settings,
		autoLink: cmd.Bool("auto-link"),
		maxSize:  cmd.Int64("maxfilesize"),
		logger:   logger,
		stdout:   cmd.Root().Writer,
	}
	if dbPath := cmd.String("db"); dbPath != "" {
		store, err := project.OpenStore(project.StoreConfig{DBPath: dbPath})
		if err != nil {
			return err
		}
		defer store.Close()
		j.store = store
	}

	multi := len(paths) > 1
	for _, path := range paths {
		j.output = outputPath(cmd.String("output"), path, ".json", multi)
		j.xlsx = outputPath(cmd.String("xlsx"), path, ".xlsx", multi)
		if err := j.run(ctx, path); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
	}
	return nil
}

// outputPath places a per-drawing output inside dir when several drawings
// are processed.
func outputPath(flag, drawing, ext string, multi bool) string {
	if flag == "" || !multi {
		return flag
	}
	base := strings.TrimSuffix(filepath.Base(drawing), filepath.Ext(drawing))
	return filepath.Join(flag, base+ext)
}

func (j job) run(ctx context.Context, path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	drawings, err := pdf.NewService(filepath.Dir(abs), j.maxSize, 0, j.logger)
	if err != nil {
		return err
	}
	ws := project.NewWorkspace(project.ServiceOpener(drawings),
		project.WithSettings(j.settings),
		project.WithLogger(j.logger),
	)

	doc, result, err := ws.Extract(ctx, filepath.Base(abs), nil, func(p pipeline.Progress) {
		j.logger.Debug("page done", "path", abs, "page", p.Current, "of", p.Total)
	})
	if err != nil {
		return err
	}
	for _, w := range result.Warnings {
		j.logger.Warn(w.Error())
	}
	if j.autoLink {
		n := doc.Graph.AutoLinkDescriptions(doc.Graph.Settings().AutoLinkDistance())
		j.logger.Info("descriptions linked", "count", n)
	}

	snapshot := doc.Graph.Snapshot()
	summary := doc.Summary()
	j.logger.Info("extracted", "path", abs, "pages", result.PagesDone, "tags", summary.Tags, "raw", summary.RawTextItems)

	if j.output == "" {
		data, err := snapshot.Marshal()
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintln(j.stdout, string(data)); err != nil {
			return err
		}
	} else if err := project.SaveFile(j.output, snapshot); err != nil {
		return err
	}
	if j.xlsx != "" {
		if err := export.WriteFile(j.xlsx, snapshot); err != nil {
			return err
		}
	}
	if j.store != nil {
		name := strings.TrimSuffix(filepath.Base(abs), filepath.Ext(abs))
		if _, err := j.store.Save(ctx, name, abs, snapshot); err != nil {
			return err
		}
	}
	return nil
}
