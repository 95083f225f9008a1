package cmd

import (
	"errors"
	"io/fs"
	"log"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/subosito/gotenv"

	"github.com/spigell/draft-n-pray/internal/ai/gemini"
)

const (
	app = "draft-n-pray"
)

type Config struct {
	CVPath      string           `mapstructure:"cv-path"`
	HistoryFile string           `mapstructure:"history-file"`
	Knowledge   *KnowledgeConfig `mapstructure:"knowledge"`
	Crawl       *CrawlConfig     `mapstructure:"crawl"`
	AI          *AIConfig        `mapstructure:"ai"`
	Agent       *AgentConfig     `mapstructure:"agent"`
	// Draft holds the preferences for emails written by the draft command.
	Draft *gemini.PromptOverrides `mapstructure:"draft"`
	Serve *ServeConfig            `mapstructure:"serve"`
}

type KnowledgeConfig struct {
	ChunkSize       int      `mapstructure:"chunk-size"`
	ChunkOverlap    int      `mapstructure:"chunk-overlap"`
	MinChunkLength  int      `mapstructure:"min-chunk-length"`
	ExcludePatterns []string `mapstructure:"exclude-patterns"`
	DisabledFilters []string `mapstructure:"disabled-filters"`
	CacheFile       string   `mapstructure:"cache-file"`
	TopK            int      `mapstructure:"top-k"`
}

type CrawlConfig struct {
	// Provider is one of auto, firecrawl or local.
	// auto uses Firecrawl when an API key is available.
	Provider      string           `mapstructure:"provider"`
	Limit         int              `mapstructure:"limit"`
	PreviewLength int              `mapstructure:"preview-length"`
	Timeout       time.Duration    `mapstructure:"timeout"`
	Firecrawl     *FirecrawlConfig `mapstructure:"firecrawl"`
}

type FirecrawlConfig struct {
	APIKey     string `mapstructure:"api-key"`
	APIKeyFile string `mapstructure:"api-key-file"`
	URL        string `mapstructure:"url"`
}

type AIConfig struct {
	MinimumFitScore float64       `mapstructure:"minimum-fit-score"`
	Gemini          *GeminiConfig `mapstructure:"gemini"`
}

type GeminiConfig struct {
	APIKey              string  `mapstructure:"api-key"`
	APIKeyFile          string  `mapstructure:"api-key-file"`
	Model               string  `mapstructure:"model"`
	Temperature         float32 `mapstructure:"temperature"`
	MaxRetries          int     `mapstructure:"max-retries"`
	MaxLogLength        int     `mapstructure:"max-log-length"`
	EmbeddingModel      string  `mapstructure:"embedding-model"`
	EmbeddingDimensions int     `mapstructure:"embedding-dimensions"`
}

type AgentConfig struct {
	MaxSteps     int    `mapstructure:"max-steps"`
	Instructions string `mapstructure:"instructions"`
}

type ServeConfig struct {
	Addr string `mapstructure:"addr"`
}

var (
	// Used for flags.
	cfgFile string
	envFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "draft-n-pray drafts personalized outreach emails to researchers from your CV",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	if err := viper.BindEnv("cv-path", "CV_PATH"); err != nil {
		log.Fatalf("binding CV_PATH environment variable: %v", err)
	}

	setDefaults(viper.GetViper())

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is draft-n-pray.yaml in current directory)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "a dotenv file with API keys, ignored when missing")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging and command output")
	rootCmd.PersistentFlags().String("log-file", "", "additionally write json logs to this file (rotated)")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	viper.BindPFlag("log-file", rootCmd.PersistentFlags().Lookup("log-file"))
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("history-file", "drafts.yaml")

	v.SetDefault("knowledge.chunk-size", 1000)
	v.SetDefault("knowledge.chunk-overlap", 200)
	v.SetDefault("knowledge.min-chunk-length", 20)
	v.SetDefault("knowledge.top-k", 3)

	v.SetDefault("crawl.provider", "auto")
	v.SetDefault("crawl.limit", 10)
	v.SetDefault("crawl.preview-length", 500)
	v.SetDefault("crawl.timeout", "3m")

	v.SetDefault("ai.gemini.model", "gemini-2.5-flash")
	v.SetDefault("ai.gemini.temperature", 0.7)
	v.SetDefault("ai.gemini.max-retries", 3)
	v.SetDefault("ai.gemini.max-log-length", 200)
	v.SetDefault("ai.gemini.embedding-model", "gemini-embedding-001")
	v.SetDefault("ai.gemini.embedding-dimensions", 768)

	v.SetDefault("agent.max-steps", 8)
	v.SetDefault("serve.addr", "127.0.0.1:8080")
}

func initConfig() {
	// version does not need any configuration.
	if versionCmd.CalledAs() != "" {
		return
	}

	if err := gotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Fatalf("loading %s: %v", envFile, err)
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app)
		viper.SetConfigType("yaml")
	}

	// The config file is optional, but a broken one is fatal.
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			log.Fatal(err)
		}
	}
}

func getConfig() (*Config, error) {
	return decodeConfig(viper.GetViper())
}

func decodeConfig(v *viper.Viper) (*Config, error) {
	var config *Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}
	if config == nil {
		config = &Config{}
	}
	if config.Knowledge == nil {
		config.Knowledge = &KnowledgeConfig{}
	}
	if config.Crawl == nil {
		config.Crawl = &CrawlConfig{}
	}
	if config.Crawl.Firecrawl == nil {
		config.Crawl.Firecrawl = &FirecrawlConfig{}
	}
	if config.AI == nil {
		config.AI = &AIConfig{}
	}
	if config.AI.Gemini == nil {
		config.AI.Gemini = &GeminiConfig{}
	}
	if config.Agent == nil {
		config.Agent = &AgentConfig{}
	}
	if config.Draft == nil {
		config.Draft = &gemini.PromptOverrides{}
	}
	if config.Serve == nil {
		config.Serve = &ServeConfig{}
	}
	return config, nil
}
