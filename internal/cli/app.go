// Package cli implements the ragchat command tree: serve, ask, and ingest.
package cli

import (
	"context"
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockagentcore"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider"

	"ragchat/internal/auth"
	"ragchat/internal/config"
	"ragchat/internal/document"
	"ragchat/internal/grader"
	"ragchat/internal/history"
	"ragchat/internal/llm"
	"ragchat/internal/log"
	"ragchat/internal/memory"
	"ragchat/internal/search"
	"ragchat/internal/vectorstore"
	"ragchat/internal/workflow"
)

// app holds everything the commands need, wired from configuration.
type app struct {
	cfg      *config.Config
	logger   log.Logger
	pipeline *workflow.Pipeline
	ingestor *workflow.Ingestor
	history  history.Store
	cognito  *auth.Cognito
	verifier *auth.Verifier
}

func buildApp(ctx context.Context, cfg *config.Config, logger log.Logger) (*app, error) {
	model, embedder, agentcoreClient, cognitoClient, err := buildProviders(ctx, cfg)
	if err != nil {
		return nil, err
	}

	store, err := vectorstore.NewChromemStore(cfg.Retrieval.PersistDir, cfg.Retrieval.Collection)
	if err != nil {
		return nil, err
	}

	transcripts, err := buildHistory(ctx, cfg)
	if err != nil {
		return nil, err
	}

	var recaller memory.Recaller
	if agentcoreClient != nil && cfg.Memory.MemoryID != "" {
		recaller, err = memory.NewAgentCoreMemory(agentcoreClient, cfg.Memory.MemoryID)
		if err != nil {
			return nil, err
		}
		logger.Infof("using agentcore memory %s", cfg.Memory.MemoryID)
	} else {
		recaller, err = memory.NewLocalMemory(transcripts)
		if err != nil {
			return nil, err
		}
		logger.Infof("using local conversation memory")
	}

	searcher, err := search.NewTavilySearch(cfg.TavilyAPIKey)
	if err != nil {
		return nil, err
	}

	g, err := grader.New(model)
	if err != nil {
		return nil, err
	}

	pipeline, err := workflow.New(model, embedder, store, g, searcher, recaller, transcripts, logger, workflow.Options{
		TopK:       cfg.Retrieval.TopK,
		MaxRecall:  cfg.Memory.MaxRecall,
		ContextMax: cfg.Memory.ContextMax,
	})
	if err != nil {
		return nil, err
	}

	splitter := document.NewSplitter(cfg.Retrieval.ChunkSize, cfg.Retrieval.ChunkOverlap)
	ingestor, err := workflow.NewIngestor(splitter, embedder, store, logger)
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:      cfg,
		logger:   logger,
		pipeline: pipeline,
		ingestor: ingestor,
		history:  transcripts,
	}

	if cognitoClient != nil && cfg.Cognito.ClientID != "" {
		a.cognito, err = auth.NewCognito(cognitoClient, cfg.Cognito.ClientID)
		if err != nil {
			return nil, err
		}
		if cfg.Cognito.UserPoolID != "" {
			a.verifier, err = auth.NewVerifier(cfg.Bedrock.Region, cfg.Cognito.UserPoolID, cfg.Cognito.ClientID)
			if err != nil {
				return nil, err
			}
		}
	}
	return a, nil
}

func buildProviders(ctx context.Context, cfg *config.Config) (llm.Model, llm.Embedder, *bedrockagentcore.Client, *cognitoidentityprovider.Client, error) {
	switch cfg.Provider {
	case "bedrock":
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Bedrock.Region))
		if err != nil {
			return nil, nil, nil, nil, fmt.Errorf("cli: load aws config: %w", err)
		}
		runtime := bedrockruntime.NewFromConfig(awsCfg)

		model, err := llm.NewBedrockModel(runtime, cfg.Bedrock.ModelID, llm.BedrockModelOptions{
			MaxTokens:   cfg.Bedrock.MaxTokens,
			Temperature: cfg.Bedrock.Temperature,
		})
		if err != nil {
			return nil, nil, nil, nil, err
		}
		embedder, err := llm.NewBedrockEmbedder(runtime, cfg.Bedrock.EmbeddingModelID)
		if err != nil {
			return nil, nil, nil, nil, err
		}
		return model, embedder, bedrockagentcore.NewFromConfig(awsCfg), cognitoidentityprovider.NewFromConfig(awsCfg), nil

	case "openai":
		model, err := llm.NewOpenAIModel(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL, cfg.OpenAI.Model)
		if err != nil {
			return nil, nil, nil, nil, err
		}
		embedder, err := llm.NewOpenAIEmbedder(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL, cfg.OpenAI.EmbeddingModel)
		if err != nil {
			return nil, nil, nil, nil, err
		}
		return model, embedder, nil, nil, nil

	default:
		return nil, nil, nil, nil, fmt.Errorf("cli: unknown provider %q", cfg.Provider)
	}
}

func buildHistory(ctx context.Context, cfg *config.Config) (history.Store, error) {
	switch cfg.History.Backend {
	case "memory":
		return history.NewMemoryStore(), nil
	case "sqlite":
		return history.NewSQLiteStore(cfg.History.SQLitePath)
	case "redis":
		return history.NewRedisStore(ctx, history.RedisOptions{
			Addr: cfg.History.RedisAddr,
			DB:   cfg.History.RedisDB,
		})
	default:
		return nil, fmt.Errorf("cli: unknown history backend %q", cfg.History.Backend)
	}
}
