package gemini

import (
	"context"
	"errors"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/smallbiznis/redress/internal/llm"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

const providerName = "gemini"

type Config struct {
	APIKey string
	Model  string
}

type Provider struct {
	client    *genai.Client
	modelName string
}

func New(ctx context.Context, cfg Config) (*Provider, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, llm.ErrNotConfigured
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, err
	}
	modelName := strings.TrimSpace(cfg.Model)
	if modelName == "" {
		modelName = "gemini-1.5-flash"
	}
	return &Provider{client: client, modelName: modelName}, nil
}

func (p *Provider) Name() string { return providerName }

func (p *Provider) Close() error {
	return p.client.Close()
}

func (p *Provider) model(req llm.Request) *genai.GenerativeModel {
	model := p.client.GenerativeModel(p.modelName)
	if sys := strings.TrimSpace(req.System); sys != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(sys)}}
	}
	if req.JSON {
		model.ResponseMIMEType = "application/json"
	}
	if req.Temperature != nil {
		model.SetTemperature(*req.Temperature)
	}
	return model
}

func (p *Provider) Generate(ctx context.Context, req llm.Request) (string, error) {
	if len(req.Messages) == 0 {
		return "", &llm.ProviderError{Kind: llm.KindInvalidOutput, Provider: providerName, Err: errors.New("empty request")}
	}
	cs := p.model(req).StartChat()
	cs.History = history(req.Messages[:len(req.Messages)-1])

	last := req.Messages[len(req.Messages)-1]
	resp, err := cs.SendMessage(ctx, genai.Text(last.Content))
	if err != nil {
		return "", classify(err)
	}
	out := responseText(resp)
	if strings.TrimSpace(out) == "" {
		return "", &llm.ProviderError{Kind: llm.KindInvalidOutput, Provider: providerName, Err: errors.New("empty response")}
	}
	return out, nil
}

func (p *Provider) Stream(ctx context.Context, req llm.Request, emit func(chunk string) error) error {
	if len(req.Messages) == 0 {
		return &llm.ProviderError{Kind: llm.KindInvalidOutput, Provider: providerName, Err: errors.New("empty request")}
	}
	cs := p.model(req).StartChat()
	cs.History = history(req.Messages[:len(req.Messages)-1])

	last := req.Messages[len(req.Messages)-1]
	iter := cs.SendMessageStream(ctx, genai.Text(last.Content))
	for {
		resp, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			return nil
		}
		if err != nil {
			return classify(err)
		}
		if chunk := responseText(resp); chunk != "" {
			if err := emit(chunk); err != nil {
				return err
			}
		}
	}
}

func history(messages []llm.Message) []*genai.Content {
	out := make([]*genai.Content, 0, len(messages))
	for _, m := range messages {
		role := "user"
		if m.Role == llm.RoleAssistant {
			role = "model"
		}
		out = append(out, &genai.Content{Role: role, Parts: []genai.Part{genai.Text(m.Content)}})
	}
	return out
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			b.WriteString(string(t))
		}
	}
	return b.String()
}

func classify(err error) error {
	var blocked *genai.BlockedError
	if errors.As(err, &blocked) {
		return &llm.ProviderError{Kind: llm.KindRefused, Provider: providerName, Err: err}
	}
	return llm.Classify(providerName, err)
}
