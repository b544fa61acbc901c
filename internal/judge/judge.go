// Package judge estimates how likely a piece of text was machine written.
// Its verdict is advisory and never feeds the peer score.
package judge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

var ErrEmptyText = errors.New("text is empty")

type Verdict struct {
	Score       int    `json:"score"`
	Reasoning   string `json:"reasoning"`
	IsAISuspect bool   `json:"is_ai_suspect"`
}

type Analyzer interface {
	AnalyzeText(ctx context.Context, text string) (Verdict, error)
}

// StubAnalyzer answers a neutral verdict without calling any model.
type StubAnalyzer struct{}

func (StubAnalyzer) AnalyzeText(ctx context.Context, text string) (Verdict, error) {
	return Verdict{Score: 50, Reasoning: "analysis disabled", IsAISuspect: false}, nil
}

const (
	DefaultModel = "gemini-2.5-flash"

	instruction = `You review short texts written for a creative portfolio.
Estimate how likely the text was written by a human without AI assistance.
Answer with JSON only: {"score": 0-100 where 100 is certainly human,
"reasoning": one sentence, "is_ai_suspect": true when score is below 40}.`
)

type GenAIAnalyzer struct {
	client *genai.Client
	model  string
}

func NewGenAIAnalyzer(client *genai.Client, model string) (*GenAIAnalyzer, error) {
	if client == nil {
		return nil, fmt.Errorf("GenAI client is required")
	}
	if model == "" {
		model = DefaultModel
	}
	return &GenAIAnalyzer{client: client, model: model}, nil
}

func (a *GenAIAnalyzer) AnalyzeText(ctx context.Context, text string) (Verdict, error) {
	if strings.TrimSpace(text) == "" {
		return Verdict{}, ErrEmptyText
	}

	var temperature float32 = 0
	resp, err := a.client.Models.GenerateContent(ctx, a.model,
		[]*genai.Content{genai.NewContentFromText(text, genai.RoleUser)},
		&genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(instruction, genai.RoleUser),
			ResponseMIMEType:  "application/json",
			Temperature:       &temperature,
		},
	)
	if err != nil {
		return Verdict{}, fmt.Errorf("content analysis failed: %w", err)
	}
	return ParseVerdict(resp.Text())
}

// ParseVerdict reads a model answer, tolerating a fenced code block around
// the JSON, and clamps the score to 0-100.
func ParseVerdict(raw string) (Verdict, error) {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")

	var v Verdict
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &v); err != nil {
		return Verdict{}, fmt.Errorf("malformed analysis response: %w", err)
	}
	if v.Score < 0 {
		v.Score = 0
	}
	if v.Score > 100 {
		v.Score = 100
	}
	return v, nil
}
