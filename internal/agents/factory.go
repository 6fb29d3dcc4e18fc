package agents

import (
	"fmt"
	"log/slog"

	"rca-copilot/internal/config"
	"rca-copilot/internal/dataset"
	"rca-copilot/internal/llm"
	"rca-copilot/internal/routing"
	"rca-copilot/internal/search"
	"rca-copilot/internal/synthesis"
)

// NewMasterFromConfig wires the full analysis pipeline: language model,
// search service, router, the three domain agents, and the synthesizer.
// Capability choices are made once here; nothing downstream branches on
// configuration again.
func NewMasterFromConfig(cfg config.Config, logger *slog.Logger) (*Master, error) {
	client, err := llm.NewOpenAI(llm.Config{
		APIKey:          cfg.OpenAIAPIKey,
		AzureEndpoint:   cfg.AzureOpenAIEndpoint,
		AzureAPIKey:     cfg.AzureOpenAIAPIKey,
		AzureAPIVersion: cfg.AzureAPIVersion,
		Model:           cfg.Model,
		Timeout:         cfg.LLMTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("init llm client: %w", err)
	}

	var searchSvc search.Service
	if cfg.SearchEndpoint != "" && cfg.SearchAPIKey != "" {
		logger.Info("using hosted search service", "endpoint", cfg.SearchEndpoint)
		searchSvc = search.NewAzureClient(cfg.SearchEndpoint, cfg.SearchAPIKey)
	} else {
		corpora, err := dataset.LoadCorpora(cfg.DatasetsDir, cfg.SensorIndex, cfg.OperatorIndex, cfg.MaintenanceIndex)
		if err != nil {
			return nil, fmt.Errorf("load local corpora: %w", err)
		}
		logger.Info("no search endpoint configured, using local keyword search", "dir", cfg.DatasetsDir)
		searchSvc = search.NewLocal(corpora)
	}

	var classifier routing.Classifier
	if cfg.RouterMode == "keyword" {
		logger.Info("using keyword routing")
		classifier = routing.KeywordClassifier{}
	} else {
		classifier = routing.NewLLMClassifier(client, llm.Options{
			Model:       cfg.RouterModel,
			Temperature: cfg.RoutingTemperature,
			MaxTokens:   cfg.RoutingMaxTokens,
		})
	}
	router := routing.New(classifier, logger)

	agentOpts := llm.Options{Temperature: cfg.AgentTemperature, MaxTokens: cfg.AgentMaxTokens}
	sensor := New(SensorSpec(cfg.SensorIndex), searchSvc, client, agentOpts, cfg.TopK, logger)
	operator := New(OperatorSpec(cfg.OperatorIndex), searchSvc, client, agentOpts, cfg.TopK, logger)
	maintenance := New(MaintenanceSpec(cfg.MaintenanceIndex), searchSvc, client, agentOpts, cfg.TopK, logger)

	synth := synthesis.New(client, llm.Options{
		Model:       cfg.SynthesisModel,
		Temperature: cfg.SynthesisTemperature,
		MaxTokens:   cfg.SynthesisMaxTokens,
	})

	return NewMaster(router, sensor, operator, maintenance, synth, logger), nil
}
