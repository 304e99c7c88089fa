package llms

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/genai"

	"github.com/veraxis/scout/pkg/config"
	"github.com/veraxis/scout/pkg/observability"
)

// GeminiProvider wraps the official google.golang.org/genai SDK.
type GeminiProvider struct {
	config config.LLMConfig
	client *genai.Client
}

// NewGeminiProvider creates a provider from config.
func NewGeminiProvider(cfg config.LLMConfig) (*GeminiProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key is required for Gemini")
	}

	// Constructors shouldn't require a context; the SDK only uses it
	// for credential discovery here.
	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey: cfg.APIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &GeminiProvider{
		config: cfg,
		client: client,
	}, nil
}

func (p *GeminiProvider) Generate(ctx context.Context, messages []ChatMessage) (string, Usage, error) {
	startTime := time.Now()

	tracer := observability.GetTracer("scout.llm")
	ctx, span := tracer.Start(ctx, observability.SpanLLMRequest,
		trace.WithAttributes(
			attribute.String(observability.AttrLLMModel, p.config.Model),
			attribute.String("provider", "gemini"),
			attribute.Bool("streaming", false),
		),
	)
	defer span.End()

	contents, genConfig := p.buildRequest(messages)

	genResp, err := p.client.Models.GenerateContent(ctx, p.config.Model, contents, genConfig)
	duration := time.Since(startTime)

	if err != nil {
		genErr := fmt.Errorf("Gemini generation failed: %w", err)
		span.RecordError(genErr)
		span.SetStatus(codes.Error, err.Error())
		observability.GetGlobalMetrics().RecordLLMCall(ctx, p.config.Model, duration, 0, 0, genErr)
		return "", Usage{}, genErr
	}

	text, usage, err := parseGeminiResponse(genResp)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		observability.GetGlobalMetrics().RecordLLMCall(ctx, p.config.Model, duration, 0, 0, err)
		return "", Usage{}, err
	}

	span.SetAttributes(
		attribute.Int(observability.AttrLLMTokensInput, usage.PromptTokens),
		attribute.Int(observability.AttrLLMTokensOutput, usage.CompletionTokens),
	)
	span.SetStatus(codes.Ok, "success")

	observability.GetGlobalMetrics().RecordLLMCall(ctx, p.config.Model, duration,
		usage.PromptTokens, usage.CompletionTokens, nil)

	return text, usage, nil
}

func (p *GeminiProvider) GenerateStreaming(ctx context.Context, messages []ChatMessage) (<-chan StreamChunk, error) {
	contents, genConfig := p.buildRequest(messages)

	outputCh := make(chan StreamChunk, 100)

	go func() {
		defer close(outputCh)

		var usage Usage

		for genResp, err := range p.client.Models.GenerateContentStream(ctx, p.config.Model, contents, genConfig) {
			if err != nil {
				outputCh <- StreamChunk{
					Type:  "error",
					Error: fmt.Errorf("Gemini streaming error: %w", err),
				}
				return
			}

			if genResp.UsageMetadata != nil {
				usage = Usage{
					PromptTokens:     int(genResp.UsageMetadata.PromptTokenCount),
					CompletionTokens: int(genResp.UsageMetadata.CandidatesTokenCount),
					TotalTokens:      int(genResp.UsageMetadata.TotalTokenCount),
				}
			}

			if len(genResp.Candidates) == 0 || genResp.Candidates[0].Content == nil {
				continue
			}

			for _, part := range genResp.Candidates[0].Content.Parts {
				// Thought parts are internal reasoning, not answer text.
				if part.Text != "" && !part.Thought {
					outputCh <- StreamChunk{Type: "text", Text: part.Text}
				}
			}
		}

		outputCh <- StreamChunk{
			Type:  "done",
			Usage: usage,
		}
	}()

	return outputCh, nil
}

func (p *GeminiProvider) GetModelName() string {
	return p.config.Model
}

func (p *GeminiProvider) Close() error {
	return nil
}

func (p *GeminiProvider) buildRequest(messages []ChatMessage) ([]*genai.Content, *genai.GenerateContentConfig) {
	system, rest := splitSystem(messages)

	var systemInstruction *genai.Content
	if system != "" {
		systemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: system}},
			Role:  "user",
		}
	}

	contents := make([]*genai.Content, 0, len(rest))
	for _, msg := range rest {
		role := "user"
		if msg.Role == RoleAssistant {
			role = "model"
		}
		contents = append(contents, &genai.Content{
			Parts: []*genai.Part{{Text: msg.Content}},
			Role:  role,
		})
	}

	genConfig := &genai.GenerateContentConfig{
		SystemInstruction: systemInstruction,
	}
	if p.config.Temperature != nil {
		genConfig.Temperature = genai.Ptr(float32(*p.config.Temperature))
	}
	if p.config.MaxTokens > 0 {
		genConfig.MaxOutputTokens = int32(p.config.MaxTokens)
	}

	return contents, genConfig
}

func parseGeminiResponse(genResp *genai.GenerateContentResponse) (string, Usage, error) {
	if len(genResp.Candidates) == 0 {
		return "", Usage{}, fmt.Errorf("empty response from Gemini")
	}

	candidate := genResp.Candidates[0]

	var text strings.Builder
	if candidate.Content != nil {
		for _, part := range candidate.Content.Parts {
			if part.Text != "" && !part.Thought {
				text.WriteString(part.Text)
			}
		}
	}

	var usage Usage
	if genResp.UsageMetadata != nil {
		usage = Usage{
			PromptTokens:     int(genResp.UsageMetadata.PromptTokenCount),
			CompletionTokens: int(genResp.UsageMetadata.CandidatesTokenCount),
			TotalTokens:      int(genResp.UsageMetadata.TotalTokenCount),
		}
	}

	return text.String(), usage, nil
}

var _ Provider = (*GeminiProvider)(nil)
