package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/draft-n-pray/internal/ai"
	"github.com/spigell/draft-n-pray/internal/crawl"
	"github.com/spigell/draft-n-pray/internal/history"
	"github.com/spigell/draft-n-pray/internal/ui"
	"github.com/spigell/draft-n-pray/internal/utils"
	"github.com/spigell/draft-n-pray/internal/vectorstore"
)

// draftAspects are the CV queries every draft is grounded on.
var draftAspects = []string{
	"research experience",
	"publications",
	"technical skills",
	"education",
}

var draftCmd = &cobra.Command{
	Use:   "draft",
	Short: "Crawl a recipient page and draft a personalized email without the chat",
	Run: func(cmd *cobra.Command, _ []string) {
		draft(cmd)
	},
}

func init() {
	rootCmd.AddCommand(draftCmd)

	draftCmd.Flags().StringP("url", "u", "", "recipient web page")
	draftCmd.Flags().String("cv", "", "path to the CV in PDF format (overrides cv-path and CV_PATH)")
	draftCmd.Flags().BoolP("force", "f", false, "draft again even if the url is already in the history file")
	draftCmd.Flags().IntP("limit", "l", 0, "maximum pages to crawl (default is crawl.limit)")

	draftCmd.MarkFlagRequired("url")
}

type cvSearcher interface {
	Search(ctx context.Context, query string, k int) ([]vectorstore.Result, error)
}

func draft(cmd *cobra.Command) {
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

	target, _ := cmd.Flags().GetString("url")
	force, _ := cmd.Flags().GetBool("force")
	flagPath, _ := cmd.Flags().GetString("cv")

	drafts := history.Open(config.HistoryFile)
	if previous, found, err := drafts.Find(target); err != nil {
		logger.Fatal("reading the history file", zap.Error(err), zap.String("file", drafts.Path()))
	} else if found && !force {
		logger.Info("exiting",
			zap.String("reason", "already drafted"),
			zap.String("url", previous.URL),
			zap.Time("drafted_at", previous.DraftedAt),
			zap.String("hint", "use --force to draft again"),
		)
		return
	}

	path := cvPath(flagPath, config.CVPath)
	if path == "" {
		logger.Fatal("cv is required",
			zap.String("hint", "set CV_PATH environment variable, the 'cv-path' key in the configuration file or --cv"),
		)
	}

	assistant, err := newAssistant(ctx, config, logger)
	if err != nil {
		logger.Fatal("initializing the assistant", zap.Error(err))
	}
	defer assistant.Close()

	stats, err := assistant.kb.Ingest(ctx, path)
	if err != nil {
		logger.Fatal("loading the cv", zap.Error(err), zap.String("path", path))
	}
	logger.Info("cv loaded", zap.Int("chunks", stats.Chunks), zap.Int("pages", stats.Pages))

	limit, _ := cmd.Flags().GetInt("limit")
	if limit <= 0 {
		limit = config.Crawl.Limit
	}

	pages, err := crawlRecipient(ctx, assistant.web, target, limit, config.Crawl.Timeout)
	if err != nil {
		logger.Fatal("crawling the recipient page", zap.Error(err), zap.String("url", target))
	}
	if len(pages) == 0 {
		logger.Info("exiting", zap.String("reason", "no content found on the website"), zap.String("url", target))
		return
	}
	logger.Info("recipient page crawled", zap.Int("pages", len(pages)), zap.String("crawler", assistant.crawler))

	excerpts, err := collectExcerpts(ctx, assistant.kb, pages[0].Title, config.Knowledge.TopK)
	if err != nil {
		logger.Fatal("searching the cv", zap.Error(err))
	}

	result, err := assistant.newDrafter().Draft(ctx, ai.DraftRequest{
		URL:        target,
		Profile:    crawl.Profile(pages),
		CVExcerpts: excerpts,
	})
	if err != nil {
		logger.Fatal("drafting the email", zap.Error(err))
	}

	if viper.GetBool("json") {
		out, _ := json.MarshalIndent(result, "", "  ")
		fmt.Fprintln(os.Stdout, string(out))
	} else {
		ui.Stdout().Markdown("Draft", formatDraft(target, result))
	}

	if err := drafts.Append(historyEntry(target, result, time.Now())); err != nil {
		logger.Fatal("updating the history file", zap.Error(err), zap.String("file", drafts.Path()))
	}

	if !result.Fit {
		logger.Warn("recipient is not a good fit",
			zap.Float64("fit_score", result.FitScore),
			zap.String("reason", result.Reason),
		)
	}
}

func crawlRecipient(ctx context.Context, crawler crawl.Crawler, target string, limit int, timeout time.Duration) ([]crawl.Page, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return crawler.Crawl(ctx, target, limit)
}

// collectExcerpts searches the CV for every aspect and the page title.
// Chunks found by several queries are returned once, in order of first appearance.
func collectExcerpts(ctx context.Context, kb cvSearcher, title string, k int) ([]string, error) {
	queries := append([]string{}, draftAspects...)
	if title = utils.NormalizeWhitespace(title); title != "" {
		queries = append(queries, title)
	}

	seen := make(map[string]struct{})
	var excerpts []string
	for _, query := range queries {
		results, err := kb.Search(ctx, query, k)
		if err != nil {
			return nil, fmt.Errorf("query %q: %w", query, err)
		}
		for _, result := range results {
			if _, ok := seen[result.Chunk.ID]; ok {
				continue
			}
			seen[result.Chunk.ID] = struct{}{}
			excerpts = append(excerpts, result.Chunk.Text)
		}
	}
	return excerpts, nil
}

func formatDraft(target string, draft *ai.Draft) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "# %s\n\n", draft.Subject)

	recipient := draft.Recipient.Name
	if recipient == "" {
		recipient = target
	}
	if draft.Recipient.Email != "" {
		recipient = fmt.Sprintf("%s <%s>", recipient, draft.Recipient.Email)
	}
	fmt.Fprintf(&sb, "**To:** %s\n\n", recipient)
	if draft.Recipient.Institution != "" {
		fmt.Fprintf(&sb, "**Institution:** %s\n\n", draft.Recipient.Institution)
	}
	fmt.Fprintf(&sb, "**Fit:** %.0f%%\n\n", draft.FitScore)

	sb.WriteString("---\n\n")
	sb.WriteString(strings.TrimSpace(draft.Body))
	sb.WriteString("\n\n---\n\n")

	if draft.Reason != "" {
		fmt.Fprintf(&sb, "**Why:** %s\n\n", draft.Reason)
	}
	if len(draft.WeakPoints) > 0 {
		sb.WriteString("**Weak points:**\n\n")
		for _, point := range draft.WeakPoints {
			fmt.Fprintf(&sb, "- %s\n", point)
		}
	}

	return strings.TrimSpace(sb.String())
}

func historyEntry(target string, draft *ai.Draft, now time.Time) history.Entry {
	return history.Entry{
		URL:       target,
		Recipient: draft.Recipient.Name,
		Email:     draft.Recipient.Email,
		Subject:   draft.Subject,
		FitScore:  draft.FitScore,
		DraftedAt: now.UTC(),
	}
}
