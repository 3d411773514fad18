// Package gemini provides a model wrapper for the Google Gemini API using
// the official genai SDK. Thought parts map directly onto the SDK's Thought
// flag, so planner output round-trips without translation.
package gemini

import (
	"context"
	"encoding/json"
	"fmt"

	"google.golang.org/genai"

	"github.com/hupe1980/agentflow/core"
	"github.com/hupe1980/agentflow/model"
	"github.com/hupe1980/agentflow/tool"
)

// Options configures the Gemini model adapter.
type Options struct {
	Model           string
	APIKey          string
	Temperature     float64
	MaxOutputTokens int32
	IncludeThoughts bool
}

// Model wraps the Gemini GenerateContent API behind the generic model.Model
// interface.
type Model struct {
	client *genai.Client
	opts   Options
}

func defaultOptions() Options {
	return Options{
		Model:           "gemini-2.0-flash",
		Temperature:     0.7,
		MaxOutputTokens: 4096,
	}
}

// NewModel creates a new Gemini model, constructing a genai client from the
// given options.
func NewModel(ctx context.Context, optFns ...func(o *Options)) (*Model, error) {
	opts := defaultOptions()

	for _, fn := range optFns {
		fn(&opts)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  opts.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	return &Model{client: client, opts: opts}, nil
}

// NewModelFromClient creates a new Gemini model from an existing client.
func NewModelFromClient(client *genai.Client, optFns ...func(o *Options)) *Model {
	opts := defaultOptions()

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Model{client: client, opts: opts}
}

// Generate implements unified streaming / non-streaming generation against
// the Gemini API.
func (m *Model) Generate(ctx context.Context, req *model.Request) (<-chan model.Response, <-chan error) {
	out := make(chan model.Response, 32)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		modelName := m.opts.Model
		if req.Model != "" {
			modelName = req.Model
		}

		contents := buildContents(req.Contents)
		config := m.buildConfig(req)

		if req.Stream {
			m.handleStreaming(ctx, modelName, contents, config, out, errCh)
			return
		}

		resp, err := m.client.Models.GenerateContent(ctx, modelName, contents, config)
		if err != nil {
			errCh <- fmt.Errorf("gemini api error: %w", err)
			return
		}

		chunk, ok := convertResponse(resp)
		if !ok {
			errCh <- fmt.Errorf("no candidates returned")
			return
		}

		out <- chunk
	}()

	return out, errCh
}

func (m *Model) buildConfig(req *model.Request) *genai.GenerateContentConfig {
	temperature := float32(m.opts.Temperature)
	if req.Config.Temperature != nil {
		temperature = float32(*req.Config.Temperature)
	}

	maxTokens := m.opts.MaxOutputTokens
	if req.Config.MaxTokens != nil {
		maxTokens = int32(*req.Config.MaxTokens)
	}

	config := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(temperature),
		MaxOutputTokens: maxTokens,
	}

	if req.Instructions != "" {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: req.Instructions}},
		}
	}

	if m.opts.IncludeThoughts {
		config.ThinkingConfig = &genai.ThinkingConfig{IncludeThoughts: true}
	}

	if declarations := req.Declarations(); len(declarations) > 0 {
		config.Tools = []*genai.Tool{{FunctionDeclarations: buildDeclarations(declarations)}}
	}

	return config
}

func buildDeclarations(declarations []tool.FunctionDeclaration) []*genai.FunctionDeclaration {
	fds := make([]*genai.FunctionDeclaration, 0, len(declarations))

	for _, decl := range declarations {
		fd := &genai.FunctionDeclaration{
			Name:        decl.Name,
			Description: decl.Description,
		}

		if decl.Parameters != nil {
			if raw, err := json.Marshal(decl.Parameters); err == nil {
				var schema genai.Schema
				if err := json.Unmarshal(raw, &schema); err == nil {
					fd.Parameters = &schema
				}
			}
		}

		fds = append(fds, fd)
	}

	return fds
}

// buildContents converts normalized contents to the genai format. Assistant
// turns map to the "model" role; everything else, tool results included,
// rides as "user" per the Gemini conversation contract.
func buildContents(contents []core.Content) []*genai.Content {
	var out []*genai.Content

	for _, c := range contents {
		role := genai.RoleUser
		if c.Role == "assistant" || c.Role == "model" {
			role = genai.RoleModel
		}

		var parts []*genai.Part

		for _, p := range c.Parts {
			switch part := p.(type) {
			case core.TextPart:
				if part.Text == "" {
					continue
				}
				parts = append(parts, &genai.Part{Text: part.Text, Thought: part.Thought})
			case core.InlineDataPart:
				parts = append(parts, &genai.Part{
					InlineData: &genai.Blob{MIMEType: part.MimeType, Data: part.Data},
				})
			case core.FunctionCallPart:
				var args map[string]any
				if part.FunctionCall.Arguments != "" {
					_ = json.Unmarshal([]byte(part.FunctionCall.Arguments), &args)
				}

				parts = append(parts, &genai.Part{
					FunctionCall: &genai.FunctionCall{
						ID:   part.FunctionCall.ID,
						Name: part.FunctionCall.Name,
						Args: args,
					},
				})
			case core.FunctionResponsePart:
				fr := part.FunctionResponse

				response := fr.Response
				if fr.Error != "" {
					response = map[string]any{"error": fr.Error}
				}

				parts = append(parts, &genai.Part{
					FunctionResponse: &genai.FunctionResponse{
						ID:       fr.ID,
						Name:     fr.Name,
						Response: response,
					},
				})
			}
		}

		if len(parts) > 0 {
			out = append(out, &genai.Content{Role: role, Parts: parts})
		}
	}

	return out
}

func convertParts(content *genai.Content) []core.Part {
	var parts []core.Part

	for _, part := range content.Parts {
		if part.Text != "" {
			parts = append(parts, core.TextPart{Text: part.Text, Thought: part.Thought})
		}

		if part.FunctionCall != nil {
			args := ""
			if raw, err := json.Marshal(part.FunctionCall.Args); err == nil {
				args = string(raw)
			}

			parts = append(parts, core.FunctionCallPart{
				FunctionCall: core.FunctionCall{
					ID:        part.FunctionCall.ID,
					Name:      part.FunctionCall.Name,
					Arguments: args,
				},
			})
		}
	}

	return parts
}

func convertUsage(md *genai.GenerateContentResponseUsageMetadata) *model.TokenUsage {
	if md == nil {
		return nil
	}

	return &model.TokenUsage{
		PromptTokens:     int(md.PromptTokenCount),
		CompletionTokens: int(md.CandidatesTokenCount),
		TotalTokens:      int(md.TotalTokenCount),
	}
}

func convertResponse(resp *genai.GenerateContentResponse) (model.Response, bool) {
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return model.Response{}, false
	}

	candidate := resp.Candidates[0]

	finishReason := "stop"
	if candidate.FinishReason != "" {
		finishReason = string(candidate.FinishReason)
	}

	return model.Response{
		Content:      &core.Content{Role: "assistant", Parts: convertParts(candidate.Content)},
		FinishReason: finishReason,
		Usage:        convertUsage(resp.UsageMetadata),
	}, true
}

func (m *Model) handleStreaming(
	ctx context.Context,
	modelName string,
	contents []*genai.Content,
	config *genai.GenerateContentConfig,
	out chan<- model.Response,
	errCh chan<- error,
) {
	iter := m.client.Models.GenerateContentStream(ctx, modelName, contents, config)

	var (
		finalParts   []core.Part
		finishReason string
		usage        *model.TokenUsage
	)

	partial := true

	for resp, err := range iter {
		if err != nil {
			errCh <- fmt.Errorf("gemini streaming error: %w", err)
			return
		}

		if u := convertUsage(resp.UsageMetadata); u != nil {
			usage = u
		}

		for _, candidate := range resp.Candidates {
			if candidate.FinishReason != "" {
				finishReason = string(candidate.FinishReason)
			}

			if candidate.Content == nil {
				continue
			}

			parts := convertParts(candidate.Content)
			if len(parts) == 0 {
				continue
			}

			finalParts = append(finalParts, parts...)

			out <- model.Response{
				Partial: &partial,
				Content: &core.Content{Role: "assistant", Parts: parts},
			}
		}
	}

	if finishReason == "" {
		finishReason = "stop"
	}

	out <- model.Response{
		Content:      &core.Content{Role: "assistant", Parts: mergeTextParts(finalParts)},
		FinishReason: finishReason,
		Usage:        usage,
	}
}

// mergeTextParts collapses adjacent plain text fragments accumulated during
// streaming into single parts, keeping call and thought parts untouched.
func mergeTextParts(parts []core.Part) []core.Part {
	var (
		out     []core.Part
		pending string
	)

	flush := func() {
		if pending != "" {
			out = append(out, core.TextPart{Text: pending})
			pending = ""
		}
	}

	for _, p := range parts {
		if tp, ok := p.(core.TextPart); ok && !tp.Thought {
			pending += tp.Text
			continue
		}

		flush()
		out = append(out, p)
	}

	flush()

	return out
}
