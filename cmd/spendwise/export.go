package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"spendwise/internal/backend"
	"spendwise/internal/cli"
	"spendwise/internal/engine"
	"spendwise/internal/export"
	"spendwise/internal/log"
)

const loadTimeout = 30 * time.Second

func exportCmd() *cobra.Command {
	var identity, format, out string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write an identity's transactions to a CSV or PDF file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if format != "csv" && format != "pdf" {
				return fmt.Errorf("unknown format %q (want csv or pdf)", format)
			}
			cfg, err := cli.LoadAndValidateConfig(cfgFile)
			if err != nil {
				return err
			}
			logger, err := cli.SetupLogger(cfg)
			if err != nil {
				return err
			}
			bcfg, err := backend.FromAppConfig(cfg)
			if err != nil {
				return err
			}
			res, err := backend.NewFactory(logger.Logger).Create(cmd.Context(), bcfg)
			if err != nil {
				return err
			}
			defer res.Cleanup()

			eng := engine.New(res.Store, engine.WithLogger(logger.WithComponent(log.ComponentEngine).Logger))
			defer eng.Close()
			if err := eng.SetIdentity(cmd.Context(), identity); err != nil {
				return err
			}
			if err := waitLoaded(cmd.Context(), eng); err != nil {
				return err
			}

			now := time.Now()
			if out == "" {
				out = export.FileName(format, now)
			}
			f, err := os.Create(out)
			if err != nil {
				return err
			}
			txs, cats := eng.Transactions.Items(), eng.Categories.Items()
			if format == "csv" {
				err = export.WriteCSV(f, txs, cats)
			} else {
				err = export.WritePDF(f, txs, cats, now)
			}
			if cerr := f.Close(); err == nil {
				err = cerr
			}
			if err != nil {
				_ = os.Remove(out)
				return err
			}
			logger.Info("Transactions exported",
				log.FieldComponent, log.ComponentExport,
				log.FieldFormat, format,
				log.FieldCount, len(txs),
				"path", out)
			return nil
		},
	}
	cmd.Flags().StringVar(&identity, "identity", "", "identity whose transactions to export")
	cmd.Flags().StringVar(&format, "format", "csv", "output format (csv, pdf)")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (default: spendwise_transactions_<date>.<format>)")
	_ = cmd.MarkFlagRequired("identity")
	return cmd
}

// waitLoaded blocks until the first snapshot of every collection arrived.
func waitLoaded(ctx context.Context, eng *engine.Engine) error {
	ctx, cancel := context.WithTimeout(ctx, loadTimeout)
	defer cancel()

	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()
	for {
		tx, cats := eng.Transactions.Snapshot(), eng.Categories.Snapshot()
		if !tx.Loading && !cats.Loading {
			return errors.Join(tx.Err, cats.Err)
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("waiting for collections: %w", ctx.Err())
		case <-ticker.C:
		}
	}
}
