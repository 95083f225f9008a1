package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/draft-n-pray/internal/filtering"
	"github.com/spigell/draft-n-pray/internal/knowledge"
	"github.com/spigell/draft-n-pray/internal/tools"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [path]",
	Short: "Build the CV knowledge base and print its statistics",
	Args:  cobra.MaximumNArgs(1),
	Run: func(_ *cobra.Command, args []string) {
		ingest(args)
	},
}

func init() {
	rootCmd.AddCommand(ingestCmd)
}

func ingest(args []string) {
	ctx := context.Background()

	logger, err := newLogger(false)
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}
	defer logger.Sync()

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	var arg string
	if len(args) > 0 {
		arg = args[0]
	}
	path := cvPath(arg, config.CVPath, defaultCVFile)

	assistant, err := newAssistant(ctx, config, logger)
	if err != nil {
		logger.Fatal("initializing the assistant", zap.Error(err))
	}
	defer assistant.Close()

	stats, err := assistant.kb.Ingest(ctx, path)
	if err != nil {
		logger.Fatal("loading the cv", zap.Error(err), zap.String("path", path))
	}

	if viper.GetBool("json") {
		out, _ := json.MarshalIndent(map[string]any{
			"stats":   stats,
			"filters": assistant.kb.Filters(),
		}, "", "  ")
		fmt.Fprintln(os.Stdout, string(out))
		return
	}

	fmt.Fprintln(os.Stdout, ingestReport(stats, assistant.kb.Filters()))
}

func ingestReport(stats *knowledge.Stats, filters []filtering.Status) string {
	var sb strings.Builder
	sb.WriteString(tools.FormatStats(*stats))
	sb.WriteString("\n\nFilters:\n")
	for _, status := range filters {
		state := "enabled"
		if !status.Enabled {
			state = "disabled"
			if status.Reason != "" {
				state += " (" + status.Reason + ")"
			}
		}
		fmt.Fprintf(&sb, "- %s: %s\n", status.Name, state)
	}
	return strings.TrimSpace(sb.String())
}
