package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	log "github.com/sirupsen/logrus"
	"google.golang.org/api/option"

	"github.com/iamwavecut/guardbot/internal/adapters"
	"github.com/iamwavecut/guardbot/internal/adapters/classifier"
)

type API struct {
	client *genai.Client
	model  *genai.GenerativeModel
	logger *log.Entry
}

const DefaultModel = "gemini-2.5-flash-lite"

const systemPrompt = `You are a content moderation system. Inspect the provided content and respond with a single JSON object:
{"flagged": bool, "category": "sexual"|"violence"|"hate"|"profanity"|"spam"|"", "confidence": 0..1, "reason": "short explanation"}
Respond with JSON only.`

func NewGemini(apiKey, model string, logger *log.Entry) adapters.ContentClassifier {
	ctx := context.Background()
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		logger.Fatalf("Error creating client: %v", err)
	}
	if model == "" {
		model = DefaultModel
	}
	api := &API{
		client: client,
		logger: logger,
		model:  client.GenerativeModel(model),
	}
	api.model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(systemPrompt)},
	}
	api.model.ResponseMIMEType = "application/json"
	api.model.SetTemperature(0)
	// The moderation verdict must see raw content, provider-side blocking
	// would turn violations into opaque errors.
	api.model.SafetySettings = permissiveSafetySettings()
	return api
}

func (g *API) Classify(ctx context.Context, content classifier.Content) (classifier.Verdict, error) {
	var parts []genai.Part
	switch content.Kind {
	case classifier.KindText:
		parts = append(parts, genai.Text(content.Text))
	default:
		format := strings.TrimPrefix(content.MIMEType, "image/")
		if format == "" || format == content.MIMEType {
			format = "jpeg"
		}
		parts = append(parts, genai.ImageData(format, content.Data))
	}

	resp, err := g.model.GenerateContent(ctx, parts...)
	if err != nil {
		return classifier.Verdict{}, fmt.Errorf("generate content: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return classifier.Verdict{}, fmt.Errorf("empty candidates")
	}

	raw := ""
	for _, part := range resp.Candidates[0].Content.Parts {
		raw += fmt.Sprintf("%v", part)
	}

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

func (g *API) Close() error {
	return g.client.Close()
}

func permissiveSafetySettings() []*genai.SafetySetting {
	categories := []genai.HarmCategory{
		genai.HarmCategoryDangerousContent,
		genai.HarmCategoryHarassment,
		genai.HarmCategoryHateSpeech,
		genai.HarmCategorySexuallyExplicit,
	}
	settings := make([]*genai.SafetySetting, 0, len(categories))
	for _, category := range categories {
		settings = append(settings, &genai.SafetySetting{
			Category:  category,
			Threshold: genai.HarmBlockNone,
		})
	}
	return settings
}
