// Command landledger-import uploads an agreements workbook to a running API,
// or downloads the current grid with -export.
package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"landledger/internal/cli"
	"landledger/internal/client"
	"landledger/internal/core"
	applog "landledger/internal/log"
	"landledger/internal/xlsx"
)

func main() {
	cfg := cli.LoadConfig()
	logger := cli.SetupLogger(applog.ComponentClient, cfg)

	var (
		baseURL  = flag.String("api", cfg.APIBaseURL, "API base URL including /api")
		username = flag.String("user", os.Getenv("LANDLEDGER_USER"), "username")
		password = flag.String("password", os.Getenv("LANDLEDGER_PASSWORD"), "password")
		export   = flag.String("export", "", "write the agreement grid to this xlsx file instead of importing")
		view     = flag.String("view", "all", "view mode for -export")
		dryRun   = flag.Bool("dry-run", false, "parse the workbook locally without uploading")
	)
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	if err := run(ctx, logger, *baseURL, *username, *password, *export, *view, *dryRun, flag.Args()); err != nil {
		logger.Error("Import failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *applog.Logger, baseURL, username, password, export, view string, dryRun bool, args []string) error {
	var workbook []byte
	if export == "" {
		if len(args) != 1 {
			return fmt.Errorf("usage: landledger-import [flags] <workbook.xlsx>")
		}
		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		rows, err := xlsx.Import(bytes.NewReader(data))
		if err != nil {
			return fmt.Errorf("parse %s: %w", args[0], err)
		}
		logger.Info("Workbook parsed", "file", args[0], applog.FieldCount, len(rows))
		if dryRun {
			return nil
		}
		workbook = data
	}

	session := client.NewSession(func() {
		logger.Warn("Session expired, log in again")
	})
	c := client.New(baseURL, session, logger)
	if _, err := c.Login(ctx, username, password); err != nil {
		return fmt.Errorf("login: %w", err)
	}
	defer c.Logout()

	if export != "" {
		mode, err := core.ParseViewMode(view)
		if err != nil {
			return err
		}
		data, err := c.ExportWorkbook(ctx, mode, "")
		if err != nil {
			return err
		}
		if err := os.WriteFile(export, data, 0o644); err != nil {
			return err
		}
		logger.Info("Workbook exported", "file", export, applog.FieldViewMode, mode)
		return nil
	}

	res, err := c.ImportWorkbook(ctx, filepath.Base(args[0]), bytes.NewReader(workbook))
	if err != nil {
		return err
	}
	for _, f := range res.Failed {
		logger.Warn("Row rejected", "row", f.Row, applog.FieldError, f.Error)
	}
	fmt.Printf("created %d, rejected %d\n", res.Created, len(res.Failed))
	return nil
}
