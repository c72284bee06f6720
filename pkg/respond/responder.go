package respond

import (
	"context"
	"fmt"
	"strings"

	"github.com/voxhall/frontdesk/pkg/configutil"
	"github.com/voxhall/frontdesk/pkg/errorsx"
	"google.golang.org/genai"
)

type Config struct {
	Provider string         `mapstructure:"provider"`
	Settings map[string]any `mapstructure:"settings"`
}

type GeminiSettings struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
}

// Responder turns a caller's question into the receptionist's answer.
type Responder interface {
	Reply(ctx context.Context, callSID, query string) (string, error)
}

// GeminiResponder generates answers with the Gemini API.
type GeminiResponder struct {
	client *genai.Client
	model  string
}

func NewGeminiResponder(ctx context.Context, settings GeminiSettings) (*GeminiResponder, error) {
	if err := configutil.RequireString(settings.APIKey, "responder.settings.api_key"); err != nil {
		return nil, err
	}
	if settings.Model == "" {
		settings.Model = "gemini-2.5-flash"
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  settings.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, errorsx.Wrap(err, errorsx.ReasonLLMGenerate)
	}
	return &GeminiResponder{client: client, model: settings.Model}, nil
}

func (g *GeminiResponder) Reply(ctx context.Context, callSID, query string) (string, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(buildPrompt(query)), nil)
	if err != nil {
		return "", errorsx.Wrap(fmt.Errorf("generate reply for call %s: %w", callSID, err), errorsx.ReasonLLMGenerate)
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", errorsx.Wrap(fmt.Errorf("empty reply for call %s", callSID), errorsx.ReasonLLMGenerate)
	}
	return text, nil
}

// StaticResponder answers every question with a fixed message. Used
// when no generation provider is configured.
type StaticResponder struct {
	Text string
}

func (s StaticResponder) Reply(ctx context.Context, callSID, query string) (string, error) {
	if s.Text != "" {
		return s.Text, nil
	}
	return "Thank you for calling. A member of our team will follow up with you shortly.", nil
}

func buildPrompt(query string) string {
	return fmt.Sprintf(`You are a professional AI receptionist. A caller has asked: %q

Provide a helpful, concise, and professional response. Keep your answer under 200 words and be friendly but professional. If you cannot answer the specific question, politely explain what information you'd need or suggest they contact a human representative.`, query)
}
