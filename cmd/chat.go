package cmd

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"strings"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/draft-n-pray/internal/agent"
	"github.com/spigell/draft-n-pray/internal/knowledge"
	"github.com/spigell/draft-n-pray/internal/secrets"
	"github.com/spigell/draft-n-pray/internal/tools"
	"github.com/spigell/draft-n-pray/internal/ui"
)

const (
	defaultCVFile = "cv.pdf"
	goodbye       = "Goodbye! Good luck with your outreach!"
)

var chatCmd = &cobra.Command{
	Use:     "chat",
	Aliases: []string{"run"},
	Short:   "Start an interactive conversation with the email drafting agent",
	Run: func(cmd *cobra.Command, _ []string) {
		chat(cmd)
	},
}

func init() {
	rootCmd.AddCommand(chatCmd)

	chatCmd.Flags().String("cv", "", "path to the CV in PDF format (overrides cv-path and CV_PATH)")
	chatCmd.Flags().Bool("watch-cv", false, "reload the knowledge base when the CV file changes")
}

type chatAgent interface {
	Run(ctx context.Context, thread, message string, onEvent func(agent.Event)) (string, error)
	Sessions() *agent.Sessions
}

type chatKnowledge interface {
	Stats() (knowledge.Stats, bool)
}

// chatSession holds the state of a single interactive conversation.
type chatSession struct {
	agent   chatAgent
	kb      chatKnowledge
	tools   []tools.Info
	console *ui.Console
	logger  *zap.Logger
	cvPath  string
	thread  string
}

func chat(cmd *cobra.Command) {
	logger, err := newLogger(true)
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}
	defer logger.Sync()

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	console := ui.Stdout()
	console.Banner(version)

	if !checkEnvironment(console, config) {
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	console.Info("Initializing AI agent...")
	assistant, err := newAssistant(ctx, config, logger)
	if err != nil {
		console.Failure(err)
		logger.Fatal("initializing the assistant", zap.Error(err))
	}
	defer assistant.Close()

	conversation := assistant.newAgent()
	console.Success("AI agent initialized (%s, crawler: %s)", assistant.generator.Model(), assistant.crawler)

	flagPath, _ := cmd.Flags().GetString("cv")
	path := cvPath(flagPath, config.CVPath)
	if path == "" {
		path = askCVPath()
	}

	session := &chatSession{
		agent:   conversation,
		kb:      assistant.kb,
		tools:   assistant.tools.Describe(),
		console: console,
		logger:  logger,
		cvPath:  path,
		thread:  agent.NewThreadID(),
	}

	if initCV(ctx, console, assistant.kb, path) {
		if watch, _ := cmd.Flags().GetBool("watch-cv"); watch {
			go func() {
				if err := assistant.kb.Watch(ctx, path); err != nil && !errors.Is(err, context.Canceled) {
					logger.Warn("watching the cv", zap.Error(err))
				}
			}()
			console.Info("Watching %s for changes", path)
		}
	}

	console.Tools(session.tools)
	console.Info("Type 'help' for commands or start chatting. Type 'quit' to exit.")

	session.loop(ctx)
}

// checkEnvironment reports missing keys. Only the Gemini key is required.
func checkEnvironment(console *ui.Console, config *Config) bool {
	if !secrets.Has(geminiKeySource(config.AI.Gemini)) {
		console.Error("Missing required environment variables: %s", envGoogleAPIKey)
		console.Println("Please set them in your .env file or environment.")
		return false
	}

	if !secrets.Has(firecrawlKeySource(config.Crawl.Firecrawl)) && config.Crawl.Provider != crawlerLocal {
		console.Warn("%s is not set, websites will be crawled locally", envFirecrawlAPIKey)
	}

	console.Success("Environment variables loaded")
	return true
}

func askCVPath() string {
	prompt := promptui.Prompt{
		Label:   "Enter path to your CV (PDF format)",
		Default: defaultCVFile,
	}

	path, err := prompt.Run()
	if err != nil {
		return defaultCVFile
	}
	return cvPath(path, defaultCVFile)
}

type cvIngester interface {
	Ingest(ctx context.Context, path string) (*knowledge.Stats, error)
}

// initCV loads the CV into the knowledge base. The conversation continues
// without a CV when it fails.
func initCV(ctx context.Context, console *ui.Console, kb cvIngester, path string) bool {
	if !fileExists(path) {
		console.Warn("CV file not found: %s", path)
		console.Println("The agent will work without CV knowledge. Ask it to load a CV later.")
		console.CVStatus(path, nil)
		return false
	}

	console.Info("Loading CV from %s...", path)
	stats, err := kb.Ingest(ctx, path)
	if err != nil {
		console.Error("Error initializing CV: %v", err)
		console.CVStatus(path, nil)
		return false
	}

	console.Success("CV loaded and indexed")
	console.CVStatus(path, stats)
	return true
}

func (s *chatSession) loop(ctx context.Context) {
	prompt := promptui.Prompt{Label: "You"}

	for {
		input, err := prompt.Run()
		if err != nil {
			if errors.Is(err, promptui.ErrInterrupt) && !confirmQuit() {
				continue
			}
			s.console.Println(goodbye)
			return
		}

		if s.handle(ctx, input) {
			return
		}
	}
}

func confirmQuit() bool {
	prompt := promptui.Prompt{
		Label:     "Do you want to quit",
		IsConfirm: true,
	}
	_, err := prompt.Run()
	return err == nil
}

// handle processes one line of input and reports whether the session is over.
func (s *chatSession) handle(ctx context.Context, input string) bool {
	input = strings.TrimSpace(input)
	if input == "" {
		return false
	}

	switch strings.ToLower(input) {
	case "quit", "exit", "bye":
		s.console.Println(goodbye)
		return true
	case "help":
		s.console.Help()
	case "tools":
		s.console.Tools(s.tools)
	case "cv":
		s.showCV()
	case "clear":
		s.agent.Sessions().Reset(s.thread)
		s.thread = agent.NewThreadID()
		s.console.Success("Conversation cleared")
	default:
		s.ask(ctx, input)
	}

	return false
}

func (s *chatSession) showCV() {
	stats, ok := s.kb.Stats()
	if !ok {
		s.console.CVStatus(s.cvPath, nil)
		return
	}
	s.console.CVStatus(cvPath(stats.Source, s.cvPath), &stats)
}

func (s *chatSession) ask(ctx context.Context, message string) {
	// Ctrl-C during a turn cancels the turn, not the program.
	turnCtx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	s.console.Info("AI is thinking...")

	answer, err := s.agent.Run(turnCtx, s.thread, message, s.onEvent)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			s.console.Warn("Request cancelled")
			return
		}
		s.logger.Error("agent turn failed", zap.String("thread_id", s.thread), zap.Error(err))
		s.console.Failure(err)
		return
	}

	s.console.Markdown("AI Agent Response", answer)
}

func (s *chatSession) onEvent(event agent.Event) {
	switch event.Type {
	case agent.EventToolCall:
		s.console.Info("Using tool: %s", event.Tool)
	case agent.EventToolResult:
		if event.Error != "" {
			s.console.Warn("Tool %s failed: %s", event.Tool, event.Error)
		}
	}
}
