package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/CentOS/ansible-role-kojibot/internal/dump"
	"github.com/CentOS/ansible-role-kojibot/internal/koji"
	"github.com/CentOS/ansible-role-kojibot/internal/render"
)

var (
	dumpPattern   string
	dumpBatchSize int
	dumpOutput    string
)

// dumpCmd extracts the hub configuration
var dumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "Dump hub configuration as a declarative task document",
	Long: `Queries the hub for tags and build targets and writes an ordered YAML
task document reproducing their configuration.

With --pattern, only tags whose names match the server-side regexp are
dumped; a plain substring like "el9" also matches "el9-build". Build targets
are always dumped in full.

Examples:
  kojibot dump --server https://koji.example.org/kojihub
  kojibot dump --pattern el9 --output el9.yml`,
	Args: cobra.NoArgs,
	RunE: runDump,
}

func init() {
	dumpCmd.Flags().StringVarP(&dumpPattern, "pattern", "p", "", "server-side regexp filter for tag names; empty dumps all tags")
	dumpCmd.Flags().IntVar(&dumpBatchSize, "batch-size", 0, "max calls per multiCall round trip (overrides config)")
	dumpCmd.Flags().StringVarP(&dumpOutput, "output", "o", "", "write the document to a file instead of stdout")
}

func runDump(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if dumpBatchSize > 0 {
		cfg.Dump.BatchSize = dumpBatchSize
	}

	logger.Info("dumping hub configuration",
		zap.String("hub", cfg.Hub.URL),
		zap.Int("batch_size", cfg.Dump.BatchSize),
		zap.String("pattern", dumpPattern))

	client, err := koji.NewClient(cfg.Hub.URL, cfg.HubTimeout(), logger)
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()

	agg := koji.NewAggregator(client, cfg.Dump.BatchSize, logger)
	tasks, err := dump.New(client, agg, logger).Run(ctx, dumpPattern)
	if err != nil {
		return fmt.Errorf("dump failed: %w", err)
	}

	out := os.Stdout
	if dumpOutput != "" {
		f, err := os.Create(dumpOutput)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer func() { _ = f.Close() }()
		out = f
	}

	if err := render.Document(out, tasks); err != nil {
		return err
	}

	logger.Info("document written", zap.Int("tasks", len(tasks)))
	return nil
}
