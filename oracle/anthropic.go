package oracle

import (
	"context"
	"os"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.uber.org/zap"

	"github.com/noemakb/noema/errors"
	"github.com/noemakb/noema/ontology"
)

// DefaultModel is the default Claude model for extraction and synthesis.
const DefaultModel = "claude-sonnet-4-20250514"

// TypeLister provides the active relationship types used to constrain
// phase-2 relationship extraction. *ontology.Registry satisfies this.
type TypeLister interface {
	Active() []*ontology.RelationshipType
}

// Config holds Anthropic client configuration.
type Config struct {
	APIKey    string
	Model     string
	MaxTokens int64
}

// AnthropicClient implements Extractor and Synthesizer against the Anthropic
// Messages API. Each operation is a single call with no retries; failures
// surface as ErrOracleFailure and abort the calling operation.
type AnthropicClient struct {
	client anthropic.Client
	model  anthropic.Model
	max    int64
	types  TypeLister
	logger *zap.SugaredLogger
}

// NewAnthropicClient creates an oracle client. Env var ANTHROPIC_API_KEY
// takes precedence over the configured key.
func NewAnthropicClient(cfg Config, types TypeLister, logger *zap.SugaredLogger) (*AnthropicClient, error) {
	apiKey := cfg.APIKey
	if envKey := os.Getenv("ANTHROPIC_API_KEY"); envKey != "" {
		apiKey = envKey
	}
	if apiKey == "" {
		return nil, errors.New("anthropic API key not configured: set ANTHROPIC_API_KEY or anthropic.api_key")
	}
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	max := cfg.MaxTokens
	if max == 0 {
		max = 4096
	}

	return &AnthropicClient{
		client: anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:  anthropic.Model(model),
		max:    max,
		types:  types,
		logger: logger,
	}, nil
}

// Extract runs the two-phase extraction: entities first, then relationships
// constrained by the active relationship types. A phase-1 failure is an
// oracle failure; a phase-2 failure degrades to an entity-only extraction,
// matching the behavior ingestion expects (entities are still worth keeping).
func (c *AnthropicClient) Extract(ctx context.Context, text string) (*RawExtraction, error) {
	raw, err := c.complete(ctx, entityExtractionPrompt(text))
	if err != nil {
		return nil, errors.Wrap(err, "entity extraction")
	}
	phase1, err := ParseExtraction(raw)
	if err != nil {
		return nil, errors.Wrap(err, "entity extraction")
	}
	if len(phase1.Entities) == 0 {
		return &RawExtraction{}, nil
	}

	prompt := relationExtractionPrompt(text, entityContext(phase1.Entities), typeConstraints(c.types.Active()))
	raw, err = c.complete(ctx, prompt)
	if err != nil {
		c.logger.Warnw("Relationship extraction failed, keeping entities only", "error", err)
		return &RawExtraction{Entities: phase1.Entities}, nil
	}
	phase2, err := ParseExtraction(raw)
	if err != nil {
		c.logger.Warnw("Relationship extraction unparseable, keeping entities only", "error", err)
		return &RawExtraction{Entities: phase1.Entities}, nil
	}

	return &RawExtraction{
		Entities:      phase1.Entities,
		Relationships: phase2.Relationships,
	}, nil
}

// Synthesize produces a merged description and keyword set for two records
// of the same underlying entity.
func (c *AnthropicClient) Synthesize(ctx context.Context, master, duplicate *ontology.Entity) (*SynthesisResult, error) {
	raw, err := c.complete(ctx, synthesisPrompt(master, duplicate))
	if err != nil {
		return nil, errors.Wrapf(err, "synthesis for %s", master.Name)
	}
	return ParseSynthesis(raw)
}

// complete sends a single user message and returns the text response.
func (c *AnthropicClient) complete(ctx context.Context, prompt string) (string, error) {
	message, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: c.max,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", errors.Wrap(errors.ErrOracleFailure, err.Error())
	}
	if len(message.Content) == 0 {
		return "", errors.Wrap(errors.ErrOracleFailure, "no content blocks in response")
	}
	block := message.Content[0]
	if block.Type != "text" {
		return "", errors.Wrapf(errors.ErrOracleFailure, "unexpected content block type %q", block.Type)
	}
	return block.Text, nil
}
