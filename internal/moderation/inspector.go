package moderation

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	api "github.com/OvyFlash/telegram-bot-api"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/iamwavecut/guardbot/internal/adapters"
	"github.com/iamwavecut/guardbot/internal/adapters/classifier"
	guarderrors "github.com/iamwavecut/guardbot/internal/errors"
	"github.com/iamwavecut/guardbot/internal/observability"
)

// FileFetcher downloads a platform file by its identifier.
type FileFetcher interface {
	Fetch(ctx context.Context, fileID string) ([]byte, error)
}

// FrameExtractor pulls up to maxFrames evenly spaced still frames out of a
// video payload.
type FrameExtractor interface {
	ExtractFrames(ctx context.Context, video []byte, maxFrames int) ([][]byte, error)
}

type InspectorConfig struct {
	MinClassifiableTextLen int
	MaxVideoFrames         int
}

// Inspector routes each content part of a message to its checker and collects
// the violations they find. Classification is pure: no checker mutates shared
// state, and classifier failures degrade to "no violation".
type Inspector struct {
	screen     *KeywordScreen
	classifier adapters.ContentClassifier
	files      FileFetcher
	frames     FrameExtractor
	config     InspectorConfig
}

func NewInspector(screen *KeywordScreen, contentClassifier adapters.ContentClassifier, files FileFetcher, frames FrameExtractor, config InspectorConfig) *Inspector {
	if config.MinClassifiableTextLen <= 0 {
		config.MinClassifiableTextLen = 18
	}
	if config.MaxVideoFrames <= 0 {
		config.MaxVideoFrames = 5
	}
	return &Inspector{
		screen:     screen,
		classifier: contentClassifier,
		files:      files,
		frames:     frames,
		config:     config,
	}
}

type checker struct {
	name string
	run  func(ctx context.Context) (*Violation, error)
}

// Inspect runs every applicable checker for the message. Each checker yields
// at most one violation; checker errors are logged and swallowed, chat
// availability wins over moderation completeness.
func (i *Inspector) Inspect(ctx context.Context, msg *api.Message) []Violation {
	if msg == nil {
		return nil
	}
	entry := i.getLogEntry().WithFields(log.Fields{
		"chat_id":    msg.Chat.ID,
		"message_id": msg.MessageID,
	})

	checkers := i.checkersFor(msg)
	if len(checkers) == 0 {
		return nil
	}

	results := make([]*Violation, len(checkers))
	g, groupCtx := errgroup.WithContext(ctx)
	for idx, check := range checkers {
		g.Go(func() error {
			violation, err := check.run(groupCtx)
			if err != nil {
				entry.WithError(err).WithField("checker", check.name).Warn("checker failed open")
				observability.RecordFailOpen()
				return nil
			}
			results[idx] = violation
			return nil
		})
	}
	_ = g.Wait()

	evidenceRef := MessageKey(msg.Chat.ID, msg.MessageID)
	violations := make([]Violation, 0, len(results))
	for _, violation := range results {
		if violation == nil {
			continue
		}
		violation.EvidenceRef = evidenceRef
		violations = append(violations, *violation)
	}
	return violations
}

func (i *Inspector) checkersFor(msg *api.Message) []checker {
	var checkers []checker
	if text := strings.TrimSpace(msg.Text + " " + msg.Caption); text != "" {
		checkers = append(checkers, checker{"text", func(ctx context.Context) (*Violation, error) {
			return i.checkText(ctx, text)
		}})
	}
	if len(msg.Photo) > 0 {
		photo := msg.Photo[len(msg.Photo)-1]
		checkers = append(checkers, checker{"photo", func(ctx context.Context) (*Violation, error) {
			return i.checkImage(ctx, photo.FileID, KindAdultImage)
		}})
	}
	if msg.Sticker != nil {
		sticker := msg.Sticker
		checkers = append(checkers, checker{"sticker", func(ctx context.Context) (*Violation, error) {
			return i.checkSticker(ctx, sticker)
		}})
	}
	if msg.Video != nil {
		video := msg.Video
		checkers = append(checkers, checker{"video", func(ctx context.Context) (*Violation, error) {
			return i.checkVideo(ctx, video.FileID)
		}})
	}
	if msg.Animation != nil {
		animation := msg.Animation
		checkers = append(checkers, checker{"animation", func(ctx context.Context) (*Violation, error) {
			return i.checkVideo(ctx, animation.FileID)
		}})
	}
	if msg.Document != nil {
		document := msg.Document
		checkers = append(checkers, checker{"document", func(ctx context.Context) (*Violation, error) {
			return i.checkDocument(ctx, document)
		}})
	}
	return checkers
}

func (i *Inspector) checkText(ctx context.Context, text string) (*Violation, error) {
	if i.screen.IsBenign(text) {
		return nil, nil
	}
	if pattern := i.screen.MatchProfanity(text); pattern != "" {
		return &Violation{
			Kind:       KindTextProfanity,
			Severity:   SeverityHigh,
			Summary:    fmt.Sprintf("matched blocked pattern %q", pattern),
			Confidence: 1,
		}, nil
	}
	if len([]rune(text)) < i.config.MinClassifiableTextLen {
		return nil, nil
	}

	verdict, err := i.classifier.Classify(ctx, classifier.TextContent(text))
	if err != nil {
		return nil, err
	}
	if !verdict.Flagged {
		return nil, nil
	}

	kind := KindTextProfanity
	switch verdict.Category {
	case classifier.CategorySexual:
		kind = KindSexualContent
	case classifier.CategoryViolence:
		kind = KindViolentContent
	case classifier.CategoryHate:
		kind = KindHateSpeech
	}
	// AI text judgments are advisory: cap at medium to bound the blast
	// radius of a false positive.
	severity := SeverityMedium
	if verdict.Confidence < 0.8 {
		severity = SeverityLow
	}
	return &Violation{
		Kind:       kind,
		Severity:   severity,
		Summary:    verdict.Reason,
		Confidence: verdict.Confidence,
	}, nil
}

func (i *Inspector) checkImage(ctx context.Context, fileID string, defaultKind Kind) (*Violation, error) {
	data, err := i.files.Fetch(ctx, fileID)
	if err != nil {
		return nil, fmt.Errorf("fetch image: %w", err)
	}
	verdict, err := i.classifier.Classify(ctx, classifier.ImageContent(data, "image/jpeg"))
	if err != nil {
		return nil, err
	}
	if !verdict.Flagged {
		return nil, nil
	}

	kind := defaultKind
	if verdict.Category == classifier.CategoryViolence {
		kind = KindViolentContent
	}
	severity := SeverityMedium
	if verdict.Confidence >= 0.85 {
		severity = SeverityHigh
	}
	return &Violation{
		Kind:       kind,
		Severity:   severity,
		Summary:    verdict.Reason,
		Confidence: verdict.Confidence,
	}, nil
}

var flaggedStickerSetMarkers = []string{"porn", "nsfw", "xxx", "18plus"}

func (i *Inspector) checkSticker(ctx context.Context, sticker *api.Sticker) (*Violation, error) {
	setSlug := Slugify(sticker.SetName)
	for _, marker := range flaggedStickerSetMarkers {
		if strings.Contains(setSlug, marker) {
			return &Violation{
				Kind:       KindInappropriateSticker,
				Severity:   SeverityHigh,
				Summary:    fmt.Sprintf("sticker set %q matches blocked marker", sticker.SetName),
				Confidence: 1,
			}, nil
		}
	}

	fileID := sticker.FileID
	if sticker.IsAnimated || sticker.IsVideo {
		if sticker.Thumbnail == nil {
			return nil, nil
		}
		fileID = sticker.Thumbnail.FileID
	}
	data, err := i.files.Fetch(ctx, fileID)
	if err != nil {
		return nil, fmt.Errorf("fetch sticker: %w", err)
	}
	verdict, err := i.classifier.Classify(ctx, classifier.ImageContent(data, "image/webp"))
	if err != nil {
		return nil, err
	}
	if !verdict.Flagged {
		return nil, nil
	}
	return &Violation{
		Kind:       KindInappropriateSticker,
		Severity:   SeverityMedium,
		Summary:    verdict.Reason,
		Confidence: verdict.Confidence,
	}, nil
}

// Extensions that commonly carry malware in chat uploads.
var suspiciousExtensions = map[string]int{
	".exe": SeverityHigh,
	".scr": SeverityHigh,
	".bat": SeverityHigh,
	".cmd": SeverityHigh,
	".vbs": SeverityHigh,
	".msi": SeverityMedium,
	".apk": SeverityMedium,
	".jar": SeverityMedium,
	".js":  SeverityMedium,
}

func (i *Inspector) checkDocument(ctx context.Context, document *api.Document) (*Violation, error) {
	name := strings.ToLower(document.FileName)
	if severity, ok := suspiciousExtensions[filepath.Ext(name)]; ok {
		// A media-looking double extension is the classic disguise.
		trimmed := strings.TrimSuffix(name, filepath.Ext(name))
		if ext := filepath.Ext(trimmed); ext == ".jpg" || ext == ".png" || ext == ".mp4" || ext == ".pdf" {
			severity = SeveritySevere
		}
		return &Violation{
			Kind:       KindSuspiciousFile,
			Severity:   severity,
			Summary:    fmt.Sprintf("suspicious file name %q", document.FileName),
			Confidence: 1,
		}, nil
	}

	if strings.HasPrefix(document.MimeType, "image/") {
		return i.checkImage(ctx, document.FileID, KindAdultImage)
	}
	return nil, nil
}

func (i *Inspector) checkVideo(ctx context.Context, fileID string) (*Violation, error) {
	data, err := i.files.Fetch(ctx, fileID)
	if err != nil {
		return nil, fmt.Errorf("fetch video: %w", err)
	}
	frames, err := i.frames.ExtractFrames(ctx, data, i.config.MaxVideoFrames)
	if err != nil {
		return nil, fmt.Errorf("extract frames: %w", err)
	}

	flagged := 0
	topCategory := classifier.CategoryNone
	topConfidence := 0.0
	for _, frame := range frames {
		verdict, err := i.classifier.Classify(ctx, classifier.FrameContent(frame))
		if errors.Is(err, guarderrors.ErrRateLimited) {
			// Quota exhausted: keep what we have instead of burning the
			// remaining frames.
			i.getLogEntry().Warn("rate limited, skipping remaining frames")
			break
		}
		if err != nil {
			return nil, err
		}
		if !verdict.Flagged {
			continue
		}
		flagged++
		if verdict.Confidence >= topConfidence {
			topCategory = verdict.Category
			topConfidence = verdict.Confidence
		}
		// Two flagged frames settle it, no need to classify the rest.
		if flagged >= 2 {
			break
		}
	}
	if flagged == 0 {
		return nil, nil
	}

	kind := KindAdultImage
	if topCategory == classifier.CategoryViolence {
		kind = KindViolentContent
	}
	severity := SeverityMedium
	if flagged >= 2 {
		severity = SeverityHigh
	}
	return &Violation{
		Kind:       kind,
		Severity:   severity,
		Summary:    fmt.Sprintf("%d of %d sampled frames flagged", flagged, len(frames)),
		Confidence: topConfidence,
	}, nil
}

func (i *Inspector) getLogEntry() *log.Entry {
	return log.WithField("object", "Inspector")
}
