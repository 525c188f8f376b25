package moderation

import (
	"context"
	"errors"
	"sync"
	"testing"

	api "github.com/OvyFlash/telegram-bot-api"

	"github.com/iamwavecut/guardbot/internal/adapters/classifier"
	guarderrors "github.com/iamwavecut/guardbot/internal/errors"
)

type scriptedClassifier struct {
	mu       sync.Mutex
	calls    int
	verdicts []classifier.Verdict
	errs     []error
}

func (c *scriptedClassifier) Classify(ctx context.Context, content classifier.Content) (classifier.Verdict, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	idx := c.calls
	c.calls++
	var verdict classifier.Verdict
	if idx < len(c.verdicts) {
		verdict = c.verdicts[idx]
	}
	var err error
	if idx < len(c.errs) {
		err = c.errs[idx]
	}
	return verdict, err
}

func (c *scriptedClassifier) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

type fakeFetcher struct{}

func (fakeFetcher) Fetch(ctx context.Context, fileID string) ([]byte, error) {
	return []byte(fileID), nil
}

type fakeFrames struct {
	frames int
}

func (f fakeFrames) ExtractFrames(ctx context.Context, video []byte, maxFrames int) ([][]byte, error) {
	n := f.frames
	if n > maxFrames {
		n = maxFrames
	}
	out := make([][]byte, n)
	for i := range out {
		out[i] = []byte{byte(i)}
	}
	return out, nil
}

func textMessage(text string) *api.Message {
	return &api.Message{
		MessageID: 7,
		Chat:      api.Chat{ID: 42},
		From:      &api.User{ID: 100},
		Text:      text,
	}
}

func newTestInspector(c *scriptedClassifier, frames int) *Inspector {
	return NewInspector(NewKeywordScreen(nil, []string{"badword"}), c, fakeFetcher{}, fakeFrames{frames: frames}, InspectorConfig{
		MinClassifiableTextLen: 18,
		MaxVideoFrames:         5,
	})
}

func TestInspectBenignTextSkipsClassifier(t *testing.T) {
	t.Parallel()

	c := &scriptedClassifier{}
	inspector := newTestInspector(c, 0)

	violations := inspector.Inspect(context.Background(), textMessage("hello"))
	if len(violations) != 0 {
		t.Fatalf("unexpected violations: %+v", violations)
	}
	if c.callCount() != 0 {
		t.Fatalf("classifier called %d times for benign text", c.callCount())
	}
}

func TestInspectKeywordShortCircuit(t *testing.T) {
	t.Parallel()

	c := &scriptedClassifier{}
	inspector := newTestInspector(c, 0)

	violations := inspector.Inspect(context.Background(), textMessage("you utter b.a.d.w.o.r.d"))
	if len(violations) != 1 {
		t.Fatalf("got %d violations, want 1", len(violations))
	}
	if violations[0].Kind != KindTextProfanity || violations[0].Severity != SeverityHigh {
		t.Fatalf("unexpected violation: %+v", violations[0])
	}
	if c.callCount() != 0 {
		t.Fatal("keyword hit must not consult the classifier")
	}
	if violations[0].EvidenceRef != MessageKey(42, 7) {
		t.Fatalf("unexpected evidence ref %q", violations[0].EvidenceRef)
	}
}

func TestInspectClassifierFailureFailsOpen(t *testing.T) {
	t.Parallel()

	c := &scriptedClassifier{errs: []error{errors.New("backend down")}}
	inspector := newTestInspector(c, 0)

	violations := inspector.Inspect(context.Background(), textMessage("a long enough message to be classified"))
	if len(violations) != 0 {
		t.Fatalf("classifier failure must yield no violations, got %+v", violations)
	}
}

func TestInspectTextSeverityCapped(t *testing.T) {
	t.Parallel()

	c := &scriptedClassifier{verdicts: []classifier.Verdict{
		{Flagged: true, Category: classifier.CategoryHate, Confidence: 0.99, Reason: "hateful"},
	}}
	inspector := newTestInspector(c, 0)

	violations := inspector.Inspect(context.Background(), textMessage("a long enough message to be classified"))
	if len(violations) != 1 {
		t.Fatalf("got %d violations, want 1", len(violations))
	}
	if violations[0].Kind != KindHateSpeech {
		t.Fatalf("unexpected kind %q", violations[0].Kind)
	}
	if violations[0].Severity > SeverityMedium {
		t.Fatalf("model text verdicts must cap at medium, got %d", violations[0].Severity)
	}
}

func TestInspectVideoEarlyStop(t *testing.T) {
	t.Parallel()

	flagged := classifier.Verdict{Flagged: true, Category: classifier.CategorySexual, Confidence: 0.9}
	c := &scriptedClassifier{verdicts: []classifier.Verdict{flagged, flagged, flagged, flagged, flagged}}
	inspector := newTestInspector(c, 5)

	msg := textMessage("")
	msg.Text = ""
	msg.Video = &api.Video{FileID: "vid"}

	violations := inspector.Inspect(context.Background(), msg)
	if len(violations) != 1 {
		t.Fatalf("got %d violations, want 1", len(violations))
	}
	if violations[0].Severity != SeverityHigh {
		t.Fatalf("two flagged frames must be high severity, got %d", violations[0].Severity)
	}
	if c.callCount() != 2 {
		t.Fatalf("classified %d frames, want early stop after 2", c.callCount())
	}
}

func TestInspectVideoRateLimitKeepsPartialResult(t *testing.T) {
	t.Parallel()

	c := &scriptedClassifier{
		verdicts: []classifier.Verdict{{Flagged: true, Category: classifier.CategoryViolence, Confidence: 0.9}, {}},
		errs:     []error{nil, guarderrors.ErrRateLimited},
	}
	inspector := newTestInspector(c, 5)

	msg := textMessage("")
	msg.Text = ""
	msg.Video = &api.Video{FileID: "vid"}

	violations := inspector.Inspect(context.Background(), msg)
	if len(violations) != 1 {
		t.Fatalf("got %d violations, want 1", len(violations))
	}
	if violations[0].Kind != KindViolentContent {
		t.Fatalf("unexpected kind %q", violations[0].Kind)
	}
	if c.callCount() != 2 {
		t.Fatalf("classified %d frames, want stop at rate limit", c.callCount())
	}
}

func TestInspectVideoCleanFrames(t *testing.T) {
	t.Parallel()

	c := &scriptedClassifier{}
	inspector := newTestInspector(c, 3)

	msg := textMessage("")
	msg.Text = ""
	msg.Video = &api.Video{FileID: "vid"}

	if violations := inspector.Inspect(context.Background(), msg); len(violations) != 0 {
		t.Fatalf("unexpected violations: %+v", violations)
	}
	if c.callCount() != 3 {
		t.Fatalf("classified %d frames, want all 3", c.callCount())
	}
}

func TestInspectDocumentDoubleExtension(t *testing.T) {
	t.Parallel()

	c := &scriptedClassifier{}
	inspector := newTestInspector(c, 0)

	msg := textMessage("")
	msg.Text = ""
	msg.Document = &api.Document{FileID: "doc", FileName: "holiday.jpg.exe"}

	violations := inspector.Inspect(context.Background(), msg)
	if len(violations) != 1 {
		t.Fatalf("got %d violations, want 1", len(violations))
	}
	if violations[0].Kind != KindSuspiciousFile || violations[0].Severity != SeveritySevere {
		t.Fatalf("unexpected violation: %+v", violations[0])
	}
}

func TestInspectStickerSetMarker(t *testing.T) {
	t.Parallel()

	c := &scriptedClassifier{}
	inspector := newTestInspector(c, 0)

	msg := textMessage("")
	msg.Text = ""
	msg.Sticker = &api.Sticker{FileID: "stk", SetName: "Best_NSFW_Pack"}

	violations := inspector.Inspect(context.Background(), msg)
	if len(violations) != 1 {
		t.Fatalf("got %d violations, want 1", len(violations))
	}
	if violations[0].Kind != KindInappropriateSticker || violations[0].Severity != SeverityHigh {
		t.Fatalf("unexpected violation: %+v", violations[0])
	}
	if c.callCount() != 0 {
		t.Fatal("marker hit must not consult the classifier")
	}
}
