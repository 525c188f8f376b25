// Package local runs a zero-shot text classifier on the node itself, so text
// screening keeps working without any cloud provider configured.
package local

import (
	"context"
	"fmt"

	"github.com/nlpodyssey/cybertron/pkg/tasks"
	"github.com/nlpodyssey/cybertron/pkg/tasks/zeroshotclassifier"
	log "github.com/sirupsen/logrus"

	"github.com/iamwavecut/guardbot/internal/adapters"
	"github.com/iamwavecut/guardbot/internal/adapters/classifier"
)

type API struct {
	model  zeroshotclassifier.Interface
	logger *log.Entry
}

const DefaultModel = "MoritzLaurer/mDeBERTa-v3-base-mnli-xnli"

const flagThreshold = 0.75

var candidateLabels = map[string]classifier.Category{
	"sexually explicit content":  classifier.CategorySexual,
	"violent or graphic content": classifier.CategoryViolence,
	"hate speech":                classifier.CategoryHate,
	"profanity or insults":       classifier.CategoryProfanity,
	"unsolicited advertising":    classifier.CategorySpam,
	"ordinary conversation":      classifier.CategoryNone,
}

func NewLocal(modelsDir, modelName string, logger *log.Entry) (adapters.ContentClassifier, error) {
	if modelName == "" {
		modelName = DefaultModel
	}
	model, err := tasks.Load[zeroshotclassifier.Interface](&tasks.Config{
		ModelsDir:           modelsDir,
		ModelName:           modelName,
		DownloadPolicy:      tasks.DownloadMissing,
		ConversionPolicy:    tasks.ConvertMissing,
		ConversionPrecision: tasks.F32,
	})
	if err != nil {
		return nil, fmt.Errorf("load zero-shot model: %w", err)
	}
	return &API{model: model, logger: logger}, nil
}

func (l *API) Classify(ctx context.Context, content classifier.Content) (classifier.Verdict, error) {
	if content.Kind != classifier.KindText {
		return classifier.Verdict{}, fmt.Errorf("local classifier handles text only, got %s", content.Kind)
	}

	labels := make([]string, 0, len(candidateLabels))
	for label := range candidateLabels {
		labels = append(labels, label)
	}

	result, err := l.model.Classify(ctx, content.Text, zeroshotclassifier.Parameters{
		CandidateLabels:    labels,
		HypothesisTemplate: "This text contains {}.",
		MultiLabel:         false,
	})
	if err != nil {
		return classifier.Verdict{}, fmt.Errorf("classify: %w", err)
	}
	if len(result.Labels) == 0 {
		return classifier.Verdict{}, fmt.Errorf("empty classification result")
	}

	topLabel := result.Labels[0]
	topScore := result.Scores[0]
	category := candidateLabels[topLabel]
	if category == classifier.CategoryNone || topScore < flagThreshold {
		return classifier.Verdict{}, nil
	}

	return classifier.Verdict{
		Flagged:    true,
		Category:   category,
		Confidence: topScore,
		Reason:     fmt.Sprintf("zero-shot label %q", topLabel),
	}, nil
}
