package narrative

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ZanzyTHEbar/trendfall/internal/analysis"
	apperrors "github.com/ZanzyTHEbar/trendfall/internal/errors"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
)

const (
	// DefaultModelID is used when no Bedrock model is configured
	DefaultModelID   = "anthropic.claude-3-haiku-20240307-v1:0"
	anthropicVersion = "bedrock-2023-05-31"
	systemPrompt     = "You are a marketing analyst. Write two or three plain sentences explaining a campaign decision to a brand manager. Do not use lists or headings."
)

// InvokeModelAPI is the subset of the Bedrock runtime client used here
type InvokeModelAPI interface {
	InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

type bedrockMessage struct {
	Role    string         `json:"role"`
	Content []bedrockBlock `json:"content"`
}

type bedrockBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

type bedrockRequest struct {
	AnthropicVersion string           `json:"anthropic_version"`
	MaxTokens        int              `json:"max_tokens"`
	System           string           `json:"system,omitempty"`
	Messages         []bedrockMessage `json:"messages"`
	Temperature      float64          `json:"temperature"`
}

type bedrockResponse struct {
	Content    []bedrockBlock `json:"content"`
	StopReason string         `json:"stop_reason"`
}

// BedrockGenerator asks an Anthropic model on AWS Bedrock for the narrative
type BedrockGenerator struct {
	client    InvokeModelAPI
	modelID   string
	maxTokens int
}

// NewBedrockGenerator loads AWS credentials from the default chain
func NewBedrockGenerator(ctx context.Context, region, modelID string) (*BedrockGenerator, error) {
	if region == "" {
		region = "us-east-1"
	}

	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return NewBedrockGeneratorWithClient(bedrockruntime.NewFromConfig(cfg), modelID), nil
}

// NewBedrockGeneratorWithClient wraps an existing client
func NewBedrockGeneratorWithClient(client InvokeModelAPI, modelID string) *BedrockGenerator {
	if modelID == "" {
		modelID = DefaultModelID
	}
	return &BedrockGenerator{client: client, modelID: modelID, maxTokens: 300}
}

// Generate invokes the model once
func (g *BedrockGenerator) Generate(ctx context.Context, req analysis.NarrativeRequest) (string, error) {
	body, err := json.Marshal(bedrockRequest{
		AnthropicVersion: anthropicVersion,
		MaxTokens:        g.maxTokens,
		System:           systemPrompt,
		Messages: []bedrockMessage{{
			Role:    "user",
			Content: []bedrockBlock{{Type: "text", Text: prompt(req)}},
		}},
		Temperature: 0.2,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	output, err := g.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(g.modelID),
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
		Body:        body,
	})
	if err != nil {
		return "", apperrors.NewExternalAPIError("bedrock", err)
	}

	var response bedrockResponse
	if err := json.Unmarshal(output.Body, &response); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}

	var sb strings.Builder
	for _, block := range response.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}

	text := strings.TrimSpace(sb.String())
	if text == "" {
		return "", ErrEmptyNarrative
	}
	return text, nil
}

func prompt(req analysis.NarrativeRequest) string {
	drivers := "none identified"
	if len(req.TopDrivers) > 0 {
		drivers = strings.Join(req.TopDrivers, "; ")
	}
	return fmt.Sprintf(
		"Decline risk: %.1f%%\nLifecycle stage: %s\nTop drivers: %s\nReputation risk flagged: %t\nRequired urgency: %s\nExplain what is happening to this trend and what the brand should do.",
		req.RiskScore, req.Stage, drivers, req.IsCringePoint, Urgency(req.RiskLevel),
	)
}
