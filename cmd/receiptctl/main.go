// Command receiptctl reconciles a receipt text file from the command line and
// prints the finalized receipt as JSON.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"

	"github.com/facturaIA/receipt-reconciler/internal/ai"
	"github.com/facturaIA/receipt-reconciler/internal/config"
	"github.com/facturaIA/receipt-reconciler/internal/export"
	"github.com/facturaIA/receipt-reconciler/internal/logger"
	"github.com/facturaIA/receipt-reconciler/internal/models"
	"github.com/facturaIA/receipt-reconciler/internal/money"
	"github.com/facturaIA/receipt-reconciler/internal/pipeline"
)

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "receiptctl: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdin io.Reader, stdout io.Writer) error {
	fs := flag.NewFlagSet("receiptctl", flag.ContinueOnError)
	configPath := fs.String("config", "config.yaml", "path to the YAML configuration")
	filename := fs.String("filename", "", "original file name, may carry the total (factura_15,99.pdf)")
	declared := fs.String("declared", "", "amount declared by the user")
	localOnly := fs.Bool("local-only", false, "never call the remote model")
	xlsxPath := fs.String("xlsx", "", "also write the receipt to this XLSX file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	_ = godotenv.Load()
	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	logger.Init(cfg.Log.Level, true)
	log := logger.WithComponent("receiptctl")

	text, name, err := readInput(fs.Arg(0), stdin)
	if err != nil {
		return err
	}
	if *filename == "" {
		*filename = name
	}

	meta := models.SidecarMetadata{Filename: *filename}
	if *declared != "" {
		d, err := money.ParseLocaleDecimal(*declared)
		if err != nil {
			return fmt.Errorf("invalid -declared: %w", err)
		}
		meta.DeclaredAmount = &d
	}

	var remote pipeline.RemoteInferrer
	if !*localOnly {
		provider, err := ai.NewProvider(cfg.AI)
		switch {
		case err == nil:
			remote = ai.NewRemoteExtractor(provider, cfg.AI)
		case errors.Is(err, ai.ErrProviderDisabled):
		default:
			log.Warn().Err(err).Msg("remote provider unavailable, local parser only")
		}
	}

	orchestrator := pipeline.NewOrchestrator(pipeline.NewAnalyzer(remote))
	receipt := orchestrator.ProcessReceipt(context.Background(), text, meta)

	if *xlsxPath != "" {
		if err := export.SaveReceipt(*xlsxPath, receipt); err != nil {
			return fmt.Errorf("write xlsx: %w", err)
		}
		log.Info().Str("path", *xlsxPath).Msg("workbook written")
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(receipt)
}

// readInput reads the receipt from path, or stdin when path is empty or "-"
func readInput(path string, stdin io.Reader) (text, name string, err error) {
	if path == "" || path == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", "", fmt.Errorf("read stdin: %w", err)
		}
		return string(data), "", nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", "", err
	}
	return string(data), filepath.Base(path), nil
}
