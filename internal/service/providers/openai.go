package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	httpclient "github.com/aleksgain/crypto-market-analyzer/pkg/http"
	"github.com/aleksgain/crypto-market-analyzer/pkg/logger"
)

const scoreSystemPrompt = `You rate the market sentiment of a news headline for cryptocurrency prices.
Respond with a JSON object: {"score": <number in [-1, 1]>, "explanation": "<one sentence>"}.
-1 is strongly bearish, 0 is neutral, 1 is strongly bullish.`

// ScoreRequest asks the model to rate one headline.
type ScoreRequest struct {
	Headline string
}

// ScoreResult is a model-based sentiment rating.
type ScoreResult struct {
	Score       float64 `json:"score"`
	Explanation string  `json:"explanation"`
}

type chatRequest struct {
	Model          string        `json:"model"`
	Messages       []chatMessage `json:"messages"`
	Temperature    float64       `json:"temperature"`
	ResponseFormat struct {
		Type string `json:"type"`
	} `json:"response_format"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// OpenAI scores headlines through the chat completions API.
type OpenAI struct {
	http    *httpclient.Client
	baseURL string
	apiKey  string
	model   string
	l       *logger.Logger
}

func NewOpenAI(baseURL, apiKey, model string, timeout time.Duration, l *logger.Logger) *OpenAI {
	if l == nil {
		l = logger.Nop()
	}
	return &OpenAI{
		http:    httpclient.NewClient(httpclient.WithTimeout(timeout)),
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		model:   model,
		l:       l,
	}
}

func (o *OpenAI) Call(ctx context.Context, payload interface{}) (interface{}, error) {
	req, ok := payload.(ScoreRequest)
	if !ok {
		return nil, fmt.Errorf("openai: unsupported payload %T", payload)
	}
	return o.score(ctx, req.Headline)
}

func (o *OpenAI) score(ctx context.Context, headline string) (*ScoreResult, error) {
	body := chatRequest{
		Model: o.model,
		Messages: []chatMessage{
			{Role: "system", Content: scoreSystemPrompt},
			{Role: "user", Content: headline},
		},
	}
	body.ResponseFormat.Type = "json_object"

	var resp chatResponse
	opts := &httpclient.RequestOptions{
		Method: httpclient.MethodPost,
		URL:    o.baseURL + "/v1/chat/completions",
		Headers: map[string]string{
			"Authorization": "Bearer " + o.apiKey,
		},
		Body: body,
	}
	if err := o.http.SendAndParse(ctx, opts, &resp); err != nil {
		return nil, fmt.Errorf("openai score: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("openai score: empty response")
	}

	result, err := parseScore(resp.Choices[0].Message.Content)
	if err != nil {
		return nil, fmt.Errorf("openai score: %w", err)
	}
	o.l.Debug("scored headline",
		logger.Float64("score", result.Score))
	return result, nil
}

// parseScore decodes the model reply and clamps the score into [-1, 1].
func parseScore(content string) (*ScoreResult, error) {
	var result ScoreResult
	if err := json.Unmarshal([]byte(content), &result); err != nil {
		return nil, fmt.Errorf("parse model reply: %w", err)
	}
	if result.Score > 1 {
		result.Score = 1
	}
	if result.Score < -1 {
		result.Score = -1
	}
	return &result, nil
}
