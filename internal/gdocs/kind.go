package gdocs

import "strings"

// Drive MIME types of the supported Google Workspace files.
const (
	MIMEDocument     = "application/vnd.google-apps.document"
	MIMESpreadsheet  = "application/vnd.google-apps.spreadsheet"
	MIMEPresentation = "application/vnd.google-apps.presentation"
)

// Kind classifies a Drive file by how its content is exported.
type Kind string

const (
	KindDocument     Kind = "document"
	KindSpreadsheet  Kind = "spreadsheet"
	KindPresentation Kind = "presentation"
	KindFile         Kind = "file"
)

// KindFromMIME maps a Drive MIME type to a Kind. Anything that is not a
// Docs, Sheets or Slides file is KindFile.
func KindFromMIME(mimeType string) Kind {
	switch mimeType {
	case MIMEDocument:
		return KindDocument
	case MIMESpreadsheet:
		return KindSpreadsheet
	case MIMEPresentation:
		return KindPresentation
	}
	return KindFile
}

// MIMEType returns the Drive MIME type for k, or "" for KindFile.
func (k Kind) MIMEType() string {
	switch k {
	case KindDocument:
		return MIMEDocument
	case KindSpreadsheet:
		return MIMESpreadsheet
	case KindPresentation:
		return MIMEPresentation
	case KindFile:
		return ""
	}
	return ""
}

// Format selects how a document's content is rendered.
type Format string

const (
	FormatMarkdown Format = "markdown"
	FormatText     Format = "text"
	FormatHTML     Format = "html"
)

// ParseFormat normalizes a user-supplied format name. Empty means markdown.
// The result may be an unknown format; Read treats those as text.
func ParseFormat(s string) Format {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return FormatMarkdown
	}
	return Format(s)
}

// Known reports whether f is one of the supported formats.
func (f Format) Known() bool {
	switch f {
	case FormatMarkdown, FormatText, FormatHTML:
		return true
	}
	return false
}

// supportedKinds are the kinds returned by Search and List.
var supportedKinds = []Kind{KindDocument, KindSpreadsheet, KindPresentation}
