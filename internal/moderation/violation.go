package moderation

// Kind names a single category of policy infraction.
type Kind string

const (
	KindTextProfanity        Kind = "text_profanity"
	KindSexualContent        Kind = "sexual_content"
	KindAdultImage           Kind = "adult_image"
	KindViolentContent       Kind = "violent_content"
	KindHateSpeech           Kind = "hate_speech"
	KindInappropriateSticker Kind = "inappropriate_sticker"
	KindSuspiciousFile       Kind = "suspicious_file"
)

// Severity ranks how serious a violation is, 1 through 5.
const (
	SeverityLow      = 1
	SeverityMedium   = 2
	SeverityHigh     = 3
	SeveritySevere   = 4
	SeverityCritical = 5
)

// Violation is one detected infraction within one message. Immutable once
// produced by a checker.
type Violation struct {
	Kind        Kind
	Severity    int
	Summary     string
	Confidence  float64
	EvidenceRef string
}

// Assessment is the aggregated result of inspecting one message. It lives only
// for the duration of that message's processing.
type Assessment struct {
	Violations          []Violation
	TotalSeverity       int
	RequiresAdminNotice bool
}

// Kinds that always warrant human review regardless of accumulated severity.
var noticeKinds = map[Kind]struct{}{
	KindAdultImage:     {},
	KindViolentContent: {},
	KindHateSpeech:     {},
}
