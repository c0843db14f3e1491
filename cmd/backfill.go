package cmd

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/googlegenai"
	"github.com/spf13/cobra"

	"github.com/civicdesk/civicdesk/internal/config"
	"github.com/civicdesk/civicdesk/internal/embed"
	"github.com/civicdesk/civicdesk/internal/pipeline"
	"github.com/civicdesk/civicdesk/internal/vecstore"
)

var backfillCmd = &cobra.Command{
	Use:   "backfill <complaints.jsonl>",
	Short: "Index already-accepted complaints from a JSON-lines file",
	Long: `Backfill reads one complaint per line as JSON and indexes each for
semantic search. Records are not classified or relevance-checked; they were
already accepted by the system of record.

Each line looks like:

  {"complaint_id":"C-1042","title":"...","description":"...","category":"roads","location":"Main St","status":"open"}`,
	Args: cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		return runBackfill(args[0])
	},
}

func init() {
	rootCmd.AddCommand(backfillCmd)
}

// backfillRecord mirrors one JSON line of the input file.
type backfillRecord struct {
	ComplaintID string            `json:"complaint_id"`
	Title       string            `json:"title"`
	Description string            `json:"description"`
	Category    string            `json:"category"`
	Location    string            `json:"location"`
	Status      string            `json:"status"`
	Metadata    map[string]string `json:"metadata"`
}

// runBackfill indexes every record in the file, skipping bad lines with a
// warning so one malformed record does not abort the batch.
func runBackfill(path string) error {
	logger := newLogger()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	g := genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{}))
	embedder := googlegenai.GoogleAIEmbedder(g, cfg.EmbedderModel)
	encoder := embed.NewGenkitEncoder(embedder, vecstore.VectorDimension)

	index, closeIndex := vecstore.Open(ctx, cfg, logger)
	defer closeIndex()

	// Backfill bypasses extraction and classification; only the encoder and
	// index matter here.
	p := pipeline.New(nil, nil, encoder, index, logger)

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening %q: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	var indexed, failed, line int
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line++
		if len(scanner.Bytes()) == 0 {
			continue
		}

		var rec backfillRecord
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			logger.Warn("skipping malformed record", "line", line, "error", err)
			failed++
			continue
		}

		ok, err := p.Backfill(ctx, pipeline.BackfillComplaint{
			ComplaintID: rec.ComplaintID,
			Title:       rec.Title,
			Description: rec.Description,
			Category:    rec.Category,
			Location:    rec.Location,
			Status:      rec.Status,
			Extras:      rec.Metadata,
		})
		if err != nil {
			if ctx.Err() != nil {
				return fmt.Errorf("interrupted after %d records: %w", indexed, ctx.Err())
			}
			logger.Warn("failed to backfill complaint", "line", line, "complaint_id", rec.ComplaintID, "error", err)
			failed++
			continue
		}
		if ok {
			indexed++
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading %q: %w", path, err)
	}

	logger.Info("backfill complete", "indexed", indexed, "failed", failed)
	if failed > 0 {
		return fmt.Errorf("%d of %d records failed", failed, indexed+failed)
	}
	return nil
}
