package openai

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"
	log "github.com/sirupsen/logrus"

	"github.com/iamwavecut/guardbot/internal/adapters"
	"github.com/iamwavecut/guardbot/internal/adapters/classifier"
)

type API struct {
	client *openai.Client
	model  string
	logger *log.Entry
}

const DefaultModel = "gpt-4o-mini"

const visionPrompt = `You are a content moderation system. Inspect the image and respond with a single JSON object:
{"flagged": bool, "category": "sexual"|"violence"|"hate"|"", "confidence": 0..1, "reason": "short explanation"}
Flag sexually explicit imagery as "sexual" and graphic violence or gore as "violence". Respond with JSON only.`

func NewOpenAI(apiKey, model, baseURL string, logger *log.Entry) adapters.ContentClassifier {
	config := openai.DefaultConfig(apiKey)
	config.BaseURL = baseURL
	client := openai.NewClientWithConfig(config)
	api := &API{
		client: client,
		logger: logger,
	}
	if model == "" {
		model = DefaultModel
	}
	api.model = model
	return api
}

func (o *API) Classify(ctx context.Context, content classifier.Content) (classifier.Verdict, error) {
	switch content.Kind {
	case classifier.KindText:
		return o.classifyText(ctx, content.Text)
	default:
		return o.classifyImage(ctx, content)
	}
}

func (o *API) classifyText(ctx context.Context, text string) (classifier.Verdict, error) {
	resp, err := o.client.Moderations(ctx, openai.ModerationRequest{
		Input: text,
		Model: openai.ModerationTextLatest,
	})
	if err != nil {
		return classifier.Verdict{}, fmt.Errorf("moderation request: %w", err)
	}
	if len(resp.Results) == 0 {
		return classifier.Verdict{}, fmt.Errorf("moderation response has no results")
	}

	result := resp.Results[0]
	verdict := classifier.Verdict{Flagged: result.Flagged}
	if !result.Flagged {
		return verdict, nil
	}

	type scored struct {
		category classifier.Category
		score    float64
	}
	candidates := []scored{
		{classifier.CategorySexual, float64(result.CategoryScores.Sexual)},
		{classifier.CategoryViolence, float64(result.CategoryScores.Violence)},
		{classifier.CategoryHate, float64(result.CategoryScores.Hate)},
		{classifier.CategoryProfanity, float64(result.CategoryScores.Harassment)},
	}
	top := candidates[0]
	for _, candidate := range candidates[1:] {
		if candidate.score > top.score {
			top = candidate
		}
	}
	verdict.Category = top.category
	verdict.Confidence = top.score
	verdict.Reason = "moderation endpoint flag"
	return verdict, nil
}

func (o *API) classifyImage(ctx context.Context, content classifier.Content) (classifier.Verdict, error) {
	mimeType := content.MIMEType
	if mimeType == "" {
		mimeType = "image/jpeg"
	}
	dataURI := fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(content.Data))

	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     o.model,
		MaxTokens: 256,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: visionPrompt,
			},
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{
						Type: openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{
							URL:    dataURI,
							Detail: openai.ImageURLDetailLow,
						},
					},
				},
			},
		},
	})
	if err != nil {
		return classifier.Verdict{}, fmt.Errorf("vision request: %w", err)
	}
	if len(resp.Choices) == 0 {
		return classifier.Verdict{}, fmt.Errorf("vision response has no choices")
	}

	return parseVerdictJSON(resp.Choices[0].Message.Content)
}

func parseVerdictJSON(raw string) (classifier.Verdict, error) {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")

	var parsed struct {
		Flagged    bool    `json:"flagged"`
		Category   string  `json:"category"`
		Confidence float64 `json:"confidence"`
		Reason     string  `json:"reason"`
	}
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &parsed); err != nil {
		return classifier.Verdict{}, fmt.Errorf("parse verdict: %w", err)
	}
	return classifier.Verdict{
		Flagged:    parsed.Flagged,
		Category:   classifier.Category(parsed.Category),
		Confidence: parsed.Confidence,
		Reason:     parsed.Reason,
	}, nil
}
