package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/prapp/rag/internal/core"
	"github.com/prapp/rag/internal/embed"
	"github.com/prapp/rag/internal/logger"
	"github.com/prapp/rag/internal/rag"
	"github.com/prapp/rag/internal/splitter"
	"github.com/prapp/rag/internal/store"
)

// Config represents the application configuration.
type Config struct {
	OpenAIAPIKey   string
	OpenAIBaseURL  string
	EmbeddingModel string
	EmbeddingDim   int
	MilvusHost     string
	MilvusPort     string
	ChunkSize      int
	ChunkOverlap   int
}

// loadConfig loads configuration from environment variables.
func loadConfig() *Config {
	return &Config{
		OpenAIAPIKey:   os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL:  getEnvWithDefault("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		EmbeddingModel: getEnvWithDefault("EMBEDDING_MODEL", embed.DefaultModel),
		EmbeddingDim:   getEnvIntWithDefault("EMBEDDING_DIM", 1536),
		MilvusHost:     getEnvWithDefault("MILVUS_HOST", "localhost"),
		MilvusPort:     getEnvWithDefault("MILVUS_PORT", "19530"),
		ChunkSize:      getEnvIntWithDefault("CHUNK_SIZE", 1000),
		ChunkOverlap:   getEnvIntWithDefault("CHUNK_OVERLAP", 200),
	}
}

// getEnvWithDefault gets an environment variable or returns a default value.
func getEnvWithDefault(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvIntWithDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		logger.Warn("Invalid integer for %s: %q, using %d", key, value, defaultValue)
		return defaultValue
	}
	return n
}

// rootOpts holds flags shared by every subcommand.
type rootOpts struct {
	debug    bool
	memory   bool
	envFile  string
	userID   string
	config   *Config
	svc      *rag.Service
	index    core.VectorIndex
	shutdown func(context.Context)
}

func newRootCmd() *cobra.Command {
	opts := &rootOpts{}

	cmd := &cobra.Command{
		Use:   "ragctl",
		Short: "Manage per-user retrieval collections",
		Long: `ragctl ingests documents into per-user vector collections and
queries them by semantic similarity. Storage is Milvus by default;
--memory switches to an in-process index for local experiments.`,
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logger.Init(opts.debug)
			if err := godotenv.Load(opts.envFile); err != nil {
				logger.Debug("No env file loaded from %s", opts.envFile)
			}
			opts.config = loadConfig()
			return nil
		},
	}

	cmd.PersistentFlags().BoolVar(&opts.debug, "debug", false, "enable debug logging")
	cmd.PersistentFlags().BoolVar(&opts.memory, "memory", false, "use an in-process index instead of Milvus")
	cmd.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "path to env file")
	cmd.PersistentFlags().StringVarP(&opts.userID, "user", "u", "", "user ID owning the collection")

	cmd.AddCommand(
		newIngestCmd(opts),
		newQueryCmd(opts),
		newDeleteCmd(opts),
		newStatsCmd(opts),
		newResetCmd(opts),
	)
	return cmd
}

// buildService wires the splitter, embedder and index into a rag.Service.
// Called by each subcommand once flags are parsed.
func (o *rootOpts) buildService(ctx context.Context) error {
	if o.userID == "" {
		return fmt.Errorf("--user is required")
	}
	if o.config.OpenAIAPIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY environment variable is required")
	}

	embedder, err := embed.NewClient(embed.Config{
		BaseURL: o.config.OpenAIBaseURL,
		APIKey:  o.config.OpenAIAPIKey,
		Model:   o.config.EmbeddingModel,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize embeddings client: %w", err)
	}

	var index core.VectorIndex
	if o.memory {
		index = store.NewMemoryStore()
		o.shutdown = func(context.Context) {}
	} else {
		milvusAddr := o.config.MilvusHost + ":" + o.config.MilvusPort
		ms, err := store.NewMilvusStore(ctx, milvusAddr, o.config.EmbeddingDim)
		if err != nil {
			return fmt.Errorf("failed to connect to Milvus at %s: %w", milvusAddr, err)
		}
		o.shutdown = func(ctx context.Context) {
			if err := ms.Close(ctx); err != nil {
				logger.Warn("Error closing Milvus connection: %v", err)
			}
		}
		index = ms
	}

	sp := splitter.New(o.config.ChunkSize, o.config.ChunkOverlap, nil)
	o.index = index
	o.svc = rag.New(sp, embedder, index)
	return nil
}

func (o *rootOpts) close() {
	if o.shutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		o.shutdown(ctx)
	}
}

// parseKeyValues turns repeated k=v flags into a map.
func parseKeyValues(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[string]string, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid key=value pair: %q", p)
		}
		out[k] = v
	}
	return out, nil
}
