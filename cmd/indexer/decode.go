package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"tokenSync/internal/chain"
	"tokenSync/internal/indexer"
)

type decodeFailure struct {
	BlockNumber uint64 `json:"block_number"`
	TxHash      string `json:"tx_hash"`
	EventIndex  int    `json:"event_index"`
	Contract    string `json:"contract"`
	Kind        string `json:"kind"`
	Error       string `json:"error"`
}

// runDecode prints what run would apply for one block, without opening the store.
func runDecode(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.RPCURL == "" {
		return fmt.Errorf("rpc url is required")
	}
	out, _ := cmd.Flags().GetString("out")
	errorsPath, _ := cmd.Flags().GetString("errors")
	if out == "" {
		return fmt.Errorf("output path is required")
	}
	if errorsPath == "" {
		return fmt.Errorf("errors path is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	chainClient, err := chain.NewClient(ctx, cfg.RPCURL)
	if err != nil {
		return fmt.Errorf("connect rpc: %w", err)
	}
	defer chainClient.Close()

	pipeline, err := newPipeline(cfg, chainClient, logger)
	if err != nil {
		return err
	}
	runner := indexer.NewRunner(indexer.RunConfig{BatchSize: 1}, chainClient, nil, pipeline, nil, nil, logger)

	block, err := chainClient.BlockWithReceipts(ctx, cfg.Block)
	if err != nil {
		return fmt.Errorf("fetch block %d: %w", cfg.Block, err)
	}
	outcomes, err := runner.Inspect(ctx, block)
	if err != nil {
		return err
	}

	outWriter, err := newJSONLWriter(out)
	if err != nil {
		return err
	}
	defer outWriter.Close()

	errWriter, err := newJSONLWriter(errorsPath)
	if err != nil {
		return err
	}
	defer errWriter.Close()

	counts := make(map[string]int)
	for _, outcome := range outcomes {
		counts[outcome.Outcome]++
		switch outcome.Outcome {
		case indexer.OutcomeDecoded:
			for _, entry := range outcome.Entries {
				if err := outWriter.Write(entry); err != nil {
					return err
				}
			}
		case indexer.OutcomeMalformed:
			if err := errWriter.Write(decodeFailureFromOutcome(outcome)); err != nil {
				return err
			}
		}
	}

	logger.Info("decode complete",
		zap.Uint64("block", block.Number),
		zap.Int("events", len(outcomes)),
		zap.Int("decoded", counts[indexer.OutcomeDecoded]),
		zap.Int("unrecognized", counts[indexer.OutcomeUnrecognized]),
		zap.Int("not_a_match", counts[indexer.OutcomeNotAMatch]),
		zap.Int("malformed", counts[indexer.OutcomeMalformed]),
	)

	return nil
}

func decodeFailureFromOutcome(outcome indexer.EventOutcome) decodeFailure {
	failure := decodeFailure{
		BlockNumber: outcome.Event.BlockNumber,
		TxHash:      outcome.Event.TxHash.Hex(),
		EventIndex:  outcome.Event.EventIndex,
		Contract:    outcome.Event.FromAddress.Hex(),
		Kind:        outcome.Kind.String(),
	}
	if outcome.Err != nil {
		failure.Error = outcome.Err.Error()
	}
	return failure
}

type jsonlWriter struct {
	file   *os.File
	writer *bufio.Writer
}

func newJSONLWriter(path string) (*jsonlWriter, error) {
	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create dir: %w", err)
		}
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}

	return &jsonlWriter{
		file:   file,
		writer: bufio.NewWriter(file),
	}, nil
}

func (w *jsonlWriter) Write(value interface{}) error {
	line, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	if _, err := w.writer.Write(line); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	if err := w.writer.WriteByte('\n'); err != nil {
		return fmt.Errorf("write newline: %w", err)
	}
	return nil
}

func (w *jsonlWriter) Close() error {
	if w == nil {
		return nil
	}
	if err := w.writer.Flush(); err != nil {
		w.file.Close()
		return err
	}
	return w.file.Close()
}
