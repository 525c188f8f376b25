package adapters

import (
	"context"

	"github.com/iamwavecut/guardbot/internal/adapters/classifier"
)

// ContentClassifier defines the interface for external content moderation backends
type ContentClassifier interface {
	// Classify inspects a single piece of content and returns a canonical verdict
	Classify(ctx context.Context, content classifier.Content) (classifier.Verdict, error)
}

var _ ContentClassifier = (*classifier.Resilient)(nil)
