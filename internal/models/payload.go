package models

// PayloadKind tags the modality of a normalized payload.
type PayloadKind string

const (
	KindText  PayloadKind = "text"
	KindImage PayloadKind = "image"
	KindAudio PayloadKind = "audio"
)

// Payload is inbound content normalized for the analyzer.
// Exactly one of Text, Data or Path is meaningful, depending on Kind.
type Payload struct {
	Kind     PayloadKind
	Text     string
	Data     []byte // image bytes
	Path     string // local audio file
	MIMEType string
}
