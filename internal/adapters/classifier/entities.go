package classifier

type ContentKind string

const (
	KindText  ContentKind = "text"
	KindImage ContentKind = "image"
	KindFrame ContentKind = "frame"
)

// Canonical violation categories, provider responses are normalized into these.
type Category string

const (
	CategoryNone      Category = ""
	CategorySexual    Category = "sexual"
	CategoryViolence  Category = "violence"
	CategoryHate      Category = "hate"
	CategoryProfanity Category = "profanity"
	CategorySpam      Category = "spam"
)

type Content struct {
	Kind     ContentKind
	Text     string
	Data     []byte
	MIMEType string
	Filename string
}

type Verdict struct {
	Flagged    bool
	Category   Category
	Confidence float64
	Reason     string
}

func TextContent(text string) Content {
	return Content{Kind: KindText, Text: text}
}

func ImageContent(data []byte, mimeType string) Content {
	return Content{Kind: KindImage, Data: data, MIMEType: mimeType}
}

func FrameContent(data []byte) Content {
	return Content{Kind: KindFrame, Data: data, MIMEType: "image/jpeg"}
}
