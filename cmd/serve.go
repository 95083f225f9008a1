package cmd

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/draft-n-pray/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the agent over HTTP for a browser front-end",
	Run: func(cmd *cobra.Command, _ []string) {
		serve(cmd)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", "", "listen address (default is serve.addr)")
	serveCmd.Flags().String("cv", "", "path to the CV to load on start")

	viper.BindPFlag("serve.addr", serveCmd.Flags().Lookup("addr"))
}

func serve(cmd *cobra.Command) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger, err := newLogger(false)
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}
	defer logger.Sync()

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	assistant, err := newAssistant(ctx, config, logger)
	if err != nil {
		logger.Fatal("initializing the assistant", zap.Error(err))
	}
	defer assistant.Close()

	flagPath, _ := cmd.Flags().GetString("cv")
	if path := cvPath(flagPath, config.CVPath); path != "" {
		if !fileExists(path) {
			logger.Warn("cv file not found, waiting for an upload", zap.String("path", path))
		} else if _, err := assistant.kb.Ingest(ctx, path); err != nil {
			logger.Warn("loading the cv, waiting for an upload", zap.Error(err), zap.String("path", path))
		}
	}

	srv := server.New(assistant.newAgent(), assistant.kb, assistant.tools.Describe(), server.Options{
		Model:   assistant.generator.Model(),
		Crawler: assistant.crawler,
	}, logger)

	if err := srv.ListenAndServe(ctx, config.Serve.Addr); err != nil {
		logger.Fatal("serving", zap.Error(err))
	}
}
