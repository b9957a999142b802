package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"

	"campaign-assistant/handler"
	"campaign-assistant/internal/auth"
	"campaign-assistant/internal/config"
	"campaign-assistant/internal/integrations/openai"
	"campaign-assistant/internal/integrations/paramstore"
	"campaign-assistant/internal/repository"
	"campaign-assistant/internal/usecase"
)

func main() {
	ctx := context.Background()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// ---- Configuration (read only here) ----
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "err", err)
		os.Exit(1)
	}

	// ---- AWS SDK config ----
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		slog.Error("failed to load AWS config", "err", err)
		os.Exit(1)
	}

	// ---- Secrets ----
	ssmClient, err := paramstore.New(awsssm.NewFromConfig(awsCfg))
	if err != nil {
		slog.Error("failed to create SSM client", "err", err)
		os.Exit(1)
	}
	tokenParam, jwtParam := cfg.SecretNames()
	secrets, err := ssmClient.GetParameters(ctx, tokenParam, jwtParam)
	if err != nil {
		slog.Error("failed to fetch secrets", "err", err)
		os.Exit(1)
	}

	// ---- Clients ----
	store, err := repository.New(awsdynamodb.NewFromConfig(awsCfg), cfg.StateTable)
	if err != nil {
		slog.Error("failed to create state client", "err", err)
		os.Exit(1)
	}

	openaiClient, err := openai.NewClient(secrets, cfg.ParamPrefix,
		openai.WithBaseURL(cfg.OpenAI.BaseURL),
		openai.WithTimeout(cfg.OpenAI.Timeout),
		openai.WithRequestsPerMinute(cfg.OpenAI.RequestsPerMinute),
	)
	if err != nil {
		slog.Error("failed to create OpenAI client", "err", err)
		os.Exit(1)
	}

	verifier, err := auth.NewVerifier(secrets[jwtParam])
	if err != nil {
		slog.Error("failed to create token verifier", "err", err)
		os.Exit(1)
	}

	// ---- Services ----
	suggestions, err := usecase.NewSuggestionService(openaiClient, usecase.SuggestionConfig{
		DefaultModel: cfg.Suggestion.Model,
		MaxTokens:    cfg.Suggestion.MaxTokens,
		TopP:         cfg.Suggestion.TopP,
	}, usecase.WithLogger(logger))
	if err != nil {
		slog.Error("failed to create suggestion service", "err", err)
		os.Exit(1)
	}
	campaigns, err := usecase.NewCampaignService(store, suggestions)
	if err != nil {
		slog.Error("failed to create campaign service", "err", err)
		os.Exit(1)
	}
	profiles, err := usecase.NewProfileService(store)
	if err != nil {
		slog.Error("failed to create profile service", "err", err)
		os.Exit(1)
	}

	// ---- Handler ----
	h, err := handler.NewHandler(suggestions, campaigns, profiles, verifier, handler.WithLogger(logger))
	if err != nil {
		slog.Error("failed to create handler", "err", err)
		os.Exit(1)
	}

	lambda.Start(h.Handle)
}
