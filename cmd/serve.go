package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/googlegenai"
	"github.com/spf13/cobra"

	"github.com/civicdesk/civicdesk/api"
	"github.com/civicdesk/civicdesk/internal/classify"
	"github.com/civicdesk/civicdesk/internal/config"
	"github.com/civicdesk/civicdesk/internal/embed"
	"github.com/civicdesk/civicdesk/internal/extract"
	"github.com/civicdesk/civicdesk/internal/pipeline"
	"github.com/civicdesk/civicdesk/internal/search"
	"github.com/civicdesk/civicdesk/internal/vecstore"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the complaint portal HTTP API",
	RunE: func(_ *cobra.Command, _ []string) error {
		return runServe()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

// runServe wires the pipeline together and serves until interrupted.
func runServe() error {
	logger := newLogger()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger.Info("starting civicdesk", "version", Version)

	g := genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{}))

	oracle := classify.NewGemini(g, classify.GeminiConfig{
		ModelName:     cfg.ModelName,
		Departments:   cfg.Departments,
		Fallback:      config.DefaultDepartment,
		Timeout:       time.Duration(cfg.OracleTimeoutSeconds) * time.Second,
		RatePerSecond: cfg.OracleRatePerSecond,
	}, logger)

	embedder := googlegenai.GoogleAIEmbedder(g, cfg.EmbedderModel)
	encoder := embed.NewGenkitEncoder(embedder, vecstore.VectorDimension)

	index, closeIndex := vecstore.Open(ctx, cfg, logger)
	defer closeIndex()

	p := pipeline.New(extract.New(logger), oracle, encoder, index, logger)
	facade := search.New(encoder, index, logger)

	server := api.NewServer(p, facade, index, cfg.UploadDir, logger)
	return server.Run(ctx, cfg.ListenAddr)
}
