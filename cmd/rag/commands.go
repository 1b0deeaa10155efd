package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/urfave/cli/v3"

	"ragqa/internal/app"
	"ragqa/internal/config"
	"ragqa/internal/domain"
	"ragqa/internal/logger"
	"ragqa/internal/tui"
)

// newAppContext loads .env and config, sets up logging and assembles the
// components. The caller must Close the result.
func newAppContext(cmd *cli.Command) (*app.Context, error) {
	if err := config.LoadEnvFile(cmd.String("env")); err != nil {
		return nil, err
	}
	var (
		cfg *config.AppConfig
		err error
	)
	if path := cmd.String("config"); path != "" {
		cfg, err = config.Load(path)
	} else {
		cfg, _, err = config.LoadDefault()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	log := logger.New(logger.Config{
		Level:  logger.ParseLevel(cfg.Log.Level),
		Format: cfg.Log.Format,
	})
	return app.New(cfg, log)
}

func readInputs(paths []string) ([]domain.Input, error) {
	inputs := make([]domain.Input, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, err
		}
		inputs = append(inputs, domain.Input{Name: filepath.Base(p), Content: data})
	}
	return inputs, nil
}

// fail reports err as JSON on stdout in --json mode, otherwise returns it.
func fail(cmd *cli.Command, summary string, err error) error {
	return failWith(cmd, domain.NewErrorResponse(summary, err), fmt.Errorf("%s: %w", summary, err))
}

func failWith(cmd *cli.Command, payload any, err error) error {
	if !cmd.Bool("json") {
		return err
	}
	if werr := writeJSON(payload); werr != nil {
		return werr
	}
	return cli.Exit("", 1)
}

// ingestFailure is the --json error body for ingest. Files listed in
// FilesProcessed were stored before the failure and stay stored.
type ingestFailure struct {
	domain.ErrorResponse
	FilesProcessed []string `json:"filesProcessed"`
	FilesSkipped   []string `json:"filesSkipped,omitempty"`
}

func newIngestFailure(res domain.IngestResult, err error) ingestFailure {
	processed := res.FilesProcessed
	if processed == nil {
		processed = []string{}
	}
	return ingestFailure{
		ErrorResponse:  domain.NewErrorResponse("Failed to process upload", err),
		FilesProcessed: processed,
		FilesSkipped:   res.FilesSkipped,
	}
}

func writeJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func ingestAction(ctx context.Context, cmd *cli.Command) error {
	paths := cmd.Args().Slice()
	if len(paths) == 0 {
		return fail(cmd, "Failed to process upload", domain.Unsupported("ingest", "no files provided"))
	}
	appCtx, err := newAppContext(cmd)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	inputs, err := readInputs(paths)
	if err != nil {
		return fail(cmd, "Failed to process upload", err)
	}
	res, err := appCtx.Service.Ingest(ctx, inputs)
	if err != nil {
		werr := fmt.Errorf("Failed to process upload: %w", err)
		if len(res.FilesProcessed) > 0 {
			werr = fmt.Errorf("%w (already stored: %s)", werr, strings.Join(res.FilesProcessed, ", "))
		}
		return failWith(cmd, newIngestFailure(res, err), werr)
	}
	if cmd.Bool("json") {
		return writeJSON(res)
	}
	fmt.Println(res.Message)
	fmt.Printf("Documents in store: %d\n", res.TotalDocumentsInStore)
	for _, name := range res.FilesSkipped {
		fmt.Printf("Skipped: %s\n", name)
	}
	return nil
}

func askAction(ctx context.Context, cmd *cli.Command) error {
	question := strings.Join(cmd.Args().Slice(), " ")
	if strings.TrimSpace(question) == "" {
		return fail(cmd, "Failed to process query", domain.Unsupported("ask", "no message provided"))
	}
	appCtx, err := newAppContext(cmd)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	if files := cmd.StringSlice("file"); len(files) > 0 {
		inputs, err := readInputs(files)
		if err != nil {
			return fail(cmd, "Failed to process upload", err)
		}
		if _, err := appCtx.Service.Ingest(ctx, inputs); err != nil {
			return fail(cmd, "Failed to process upload", err)
		}
	}

	ans, err := appCtx.Service.Ask(ctx, question)
	if err != nil {
		return fail(cmd, "Failed to process query", err)
	}
	if cmd.Bool("json") {
		return writeJSON(ans)
	}
	fmt.Println(ans.Response)
	if len(ans.Sources) > 0 {
		fmt.Println("\nSources:")
		for _, s := range ans.Sources {
			fmt.Printf("  - %s\n", s)
		}
	}
	return nil
}

func chatAction(ctx context.Context, cmd *cli.Command) error {
	appCtx, err := newAppContext(cmd)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	if paths := cmd.Args().Slice(); len(paths) > 0 {
		inputs, err := readInputs(paths)
		if err != nil {
			return err
		}
		if _, err := appCtx.Service.Ingest(ctx, inputs); err != nil {
			return fmt.Errorf("ingest failed: %w", err)
		}
	}
	n, err := appCtx.Service.DocumentCount(ctx)
	if err != nil {
		return err
	}

	header := fmt.Sprintf("%d chunks in store", n)
	if appCtx.Generator == nil {
		header += " (answer generation not configured)"
	}
	_, err = tea.NewProgram(tui.New(ctx, appCtx.Service, header), tea.WithContext(ctx)).Run()
	return err
}

func countAction(ctx context.Context, cmd *cli.Command) error {
	appCtx, err := newAppContext(cmd)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	n, err := appCtx.Service.DocumentCount(ctx)
	if err != nil {
		return fail(cmd, "Failed to count documents", err)
	}
	if cmd.Bool("json") {
		return writeJSON(map[string]int{"totalDocuments": n})
	}
	fmt.Println(n)
	return nil
}

func clearAction(ctx context.Context, cmd *cli.Command) error {
	appCtx, err := newAppContext(cmd)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	if err := appCtx.Service.Clear(ctx); err != nil {
		return fail(cmd, "Failed to clear documents", err)
	}
	if cmd.Bool("json") {
		return writeJSON(map[string]bool{"success": true})
	}
	fmt.Println("Cleared.")
	return nil
}
