// Package gdocs reads Google Docs, Sheets and Slides through the Drive and
// Docs APIs and reshapes the responses into plain descriptors and text.
package gdocs

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"unicode/utf8"

	"golang.org/x/oauth2"
	docs "google.golang.org/api/docs/v1"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"

	"github.com/thegrumpylion/gdocs-mcp/internal/logging"
)

// Result limits.
const (
	DefaultSearchResults = 10
	DefaultListResults   = 20

	maxPageSize  = 1000
	findPageSize = 50
)

// Fallback content for exports that cannot be rendered as text.
const (
	PresentationPlaceholder = "[This presentation cannot be exported as text. Please view it in Google Slides.]"
	BinaryPlaceholder       = "[Binary content not displayed]"
	DownloadPlaceholder     = "[Error retrieving file content]"
)

const (
	listFields = "files(id,name,mimeType,description,modifiedTime,webViewLink)"
	getFields  = "id,name,mimeType,modifiedTime"
)

// CredentialSource hands out a non-expired OAuth token. *auth.Store
// implements it.
type CredentialSource interface {
	Obtain(ctx context.Context) (*oauth2.Token, error)
}

// Descriptor is the metadata of a Drive file.
type Descriptor struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Type        Kind   `json:"type"`
	Modified    string `json:"modified"`
	Description string `json:"description,omitempty"`
	URL         string `json:"url,omitempty"`
}

// Content is a file's metadata together with its extracted text.
type Content struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Type     Kind   `json:"type"`
	Modified string `json:"modified"`
	Content  string `json:"content"`
}

// Client talks to Drive and Docs on behalf of a single credential.
type Client struct {
	creds  CredentialSource
	drive  *drive.Service
	docs   *docs.Service
	logger *slog.Logger
}

// New obtains a credential and builds the Drive and Docs services. It fails
// when no credential can be obtained. opts are applied after the credential's
// token source, so tests can point the client at a fake endpoint.
func New(ctx context.Context, creds CredentialSource, logger *slog.Logger, opts ...option.ClientOption) (*Client, error) {
	if logger == nil {
		logger = logging.Discard()
	}
	if _, err := creds.Obtain(ctx); err != nil {
		return nil, err
	}

	ts := &tokenSource{ctx: context.WithoutCancel(ctx), creds: creds}
	opts = append([]option.ClientOption{option.WithTokenSource(ts)}, opts...)

	driveSvc, err := drive.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating Drive service: %w", err)
	}
	docsSvc, err := docs.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating Docs service: %w", err)
	}

	return &Client{
		creds:  creds,
		drive:  driveSvc,
		docs:   docsSvc,
		logger: logger,
	}, nil
}

// tokenSource adapts a CredentialSource to oauth2.TokenSource so the API
// transports always ask the store, which refreshes in place.
type tokenSource struct {
	ctx   context.Context
	creds CredentialSource
}

func (ts *tokenSource) Token() (*oauth2.Token, error) {
	return ts.creds.Obtain(ts.ctx)
}

// authorize makes sure a credential is available before any remote call.
func (c *Client) authorize(ctx context.Context, op string) error {
	if _, err := c.creds.Obtain(ctx); err != nil {
		logging.WithOperation(c.logger, op).Error("no credential available", logging.Err(err))
		return fmt.Errorf("gdocs %s: %w", op, err)
	}
	return nil
}

// Search returns up to maxResults Docs, Sheets and Slides whose name or text
// contains query, in the order Drive returns them.
func (c *Client) Search(ctx context.Context, query string, maxResults int) ([]Descriptor, error) {
	if maxResults <= 0 {
		maxResults = DefaultSearchResults
	}
	q := escapeQuery(query)
	filter := fmt.Sprintf("(%s) and (name contains '%s' or fullText contains '%s')", kindFilter(), q, q)
	return c.listFiles(ctx, "search", filter, maxResults)
}

// List returns up to maxResults Docs, Sheets and Slides, restricted to the
// children of folderID when it is not empty.
func (c *Client) List(ctx context.Context, folderID string, maxResults int) ([]Descriptor, error) {
	if maxResults <= 0 {
		maxResults = DefaultListResults
	}
	filter := "(" + kindFilter() + ")"
	if folderID != "" {
		filter += fmt.Sprintf(" and '%s' in parents", escapeQuery(folderID))
	}
	return c.listFiles(ctx, "list", filter, maxResults)
}

// FindByName looks among the user's documents for one named name. A
// case-insensitive exact match wins over the first partial match.
func (c *Client) FindByName(ctx context.Context, name string) (*Descriptor, error) {
	files, err := c.listFiles(ctx, "find", fmt.Sprintf("mimeType='%s'", MIMEDocument), findPageSize)
	if err != nil {
		return nil, err
	}

	want := strings.ToLower(name)
	for i := range files {
		if strings.ToLower(files[i].Name) == want {
			return &files[i], nil
		}
	}
	for i := range files {
		if strings.Contains(strings.ToLower(files[i].Name), want) {
			return &files[i], nil
		}
	}
	return nil, &APIError{Op: "find", Code: http.StatusNotFound, Err: fmt.Errorf("no document found with name %q", name)}
}

func (c *Client) listFiles(ctx context.Context, op, filter string, maxResults int) ([]Descriptor, error) {
	if err := c.authorize(ctx, op); err != nil {
		return nil, err
	}

	pageSize := int64(min(maxResults, maxPageSize))
	resp, err := offload(ctx, func() (*drive.FileList, error) {
		return c.drive.Files.List().
			Q(filter).
			PageSize(pageSize).
			Fields(listFields).
			Context(ctx).
			Do()
	})
	if err != nil {
		logging.WithOperation(c.logger, op).Error("listing files failed", logging.Err(err))
		return nil, newAPIError(op, err)
	}

	out := make([]Descriptor, 0, min(len(resp.Files), maxResults))
	for _, f := range resp.Files {
		if len(out) == maxResults {
			break
		}
		out = append(out, Descriptor{
			ID:          f.Id,
			Name:        f.Name,
			Type:        KindFromMIME(f.MimeType),
			Modified:    f.ModifiedTime,
			Description: f.Description,
			URL:         f.WebViewLink,
		})
	}
	return out, nil
}

// Read fetches docID's metadata and exports its content as text. Documents
// honour format; spreadsheets are exported as CSV, presentations as plain
// text and other files are downloaded as-is.
func (c *Client) Read(ctx context.Context, docID string, format Format) (*Content, error) {
	if err := c.authorize(ctx, "read"); err != nil {
		return nil, err
	}
	logger := logging.WithOperation(c.logger, "read").With(logging.DocID(docID))

	meta, err := offload(ctx, func() (*drive.File, error) {
		return c.drive.Files.Get(docID).Fields(getFields).Context(ctx).Do()
	})
	if err != nil {
		logger.Error("fetching metadata failed", logging.Err(err))
		return nil, newAPIError("read", err)
	}

	kind := KindFromMIME(meta.MimeType)
	logger = logger.With(logging.Kind(string(kind)))

	var body string
	switch kind {
	case KindDocument:
		body, err = c.exportDocument(ctx, logger, docID, format)
	case KindSpreadsheet:
		body, err = c.exportSpreadsheet(ctx, logger, docID)
	case KindPresentation:
		body, err = c.exportPresentation(ctx, logger, docID)
	case KindFile:
		body, err = c.download(ctx, logger, docID)
	}
	if err != nil {
		logger.Error("exporting content failed", logging.Err(err))
		return nil, newAPIError("export", err)
	}

	return &Content{
		ID:       meta.Id,
		Name:     meta.Name,
		Type:     kind,
		Modified: meta.ModifiedTime,
		Content:  body,
	}, nil
}

func (c *Client) exportDocument(ctx context.Context, logger *slog.Logger, id string, format Format) (string, error) {
	switch format {
	case FormatMarkdown:
		raw, err := c.export(ctx, id, "text/html")
		if err != nil {
			return "", err
		}
		md, err := htmlToMarkdown(strings.NewReader(raw))
		if err != nil {
			logger.Warn("markdown conversion failed, returning HTML",
				logging.Err(&FormatError{Kind: KindDocument, MIMEType: "text/markdown", Err: err}))
			return raw, nil
		}
		return md, nil
	case FormatHTML:
		return c.export(ctx, id, "text/html")
	case FormatText:
		return c.export(ctx, id, "text/plain")
	}
	logger.Warn("unknown format, exporting as text", slog.String("format", string(format)))
	return c.export(ctx, id, "text/plain")
}

func (c *Client) exportSpreadsheet(ctx context.Context, logger *slog.Logger, id string) (string, error) {
	csv, err := c.export(ctx, id, "text/csv")
	if err == nil || ctx.Err() != nil {
		return csv, err
	}
	logger.Warn("CSV export failed, falling back to plain text",
		logging.Err(&FormatError{Kind: KindSpreadsheet, MIMEType: "text/csv", Err: err}))
	return c.export(ctx, id, "text/plain")
}

func (c *Client) exportPresentation(ctx context.Context, logger *slog.Logger, id string) (string, error) {
	text, err := c.export(ctx, id, "text/plain")
	if err == nil || ctx.Err() != nil {
		return text, err
	}
	logger.Warn("presentation text export failed",
		logging.Err(&FormatError{Kind: KindPresentation, MIMEType: "text/plain", Err: err}))
	return PresentationPlaceholder, nil
}

// download fetches a non-Workspace file. Failures and binary payloads
// become placeholder text rather than errors.
func (c *Client) download(ctx context.Context, logger *slog.Logger, id string) (string, error) {
	data, err := offload(ctx, func() ([]byte, error) {
		resp, err := c.drive.Files.Get(id).Context(ctx).Download()
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		return io.ReadAll(resp.Body)
	})
	if err != nil {
		if ctx.Err() != nil {
			return "", err
		}
		logger.Error("downloading file failed", logging.Err(err))
		return DownloadPlaceholder, nil
	}
	if !utf8.Valid(data) {
		return BinaryPlaceholder, nil
	}
	return string(data), nil
}

func (c *Client) export(ctx context.Context, id, mimeType string) (string, error) {
	return offload(ctx, func() (string, error) {
		resp, err := c.drive.Files.Export(id, mimeType).Context(ctx).Download()
		if err != nil {
			return "", err
		}
		defer resp.Body.Close()
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return "", fmt.Errorf("reading %s export: %w", mimeType, err)
		}
		return strings.TrimPrefix(string(data), "\ufeff"), nil
	})
}

// ReadStructured reads a Google Doc through the Docs API and flattens its
// paragraphs, tables and tables of contents into text.
func (c *Client) ReadStructured(ctx context.Context, docID string) (string, error) {
	if err := c.authorize(ctx, "read_structured"); err != nil {
		return "", err
	}

	doc, err := offload(ctx, func() (*docs.Document, error) {
		return c.docs.Documents.Get(docID).IncludeTabsContent(true).Context(ctx).Do()
	})
	if err != nil {
		logging.WithOperation(c.logger, "read_structured").Error("fetching document failed",
			logging.DocID(docID), logging.Err(err))
		return "", newAPIError("read_structured", err)
	}
	return documentText(doc), nil
}

// kindFilter is the Drive query clause matching the supported kinds.
func kindFilter() string {
	clauses := make([]string, 0, len(supportedKinds))
	for _, k := range supportedKinds {
		clauses = append(clauses, fmt.Sprintf("mimeType='%s'", k.MIMEType()))
	}
	return strings.Join(clauses, " or ")
}

// escapeQuery escapes a value for use inside a single-quoted Drive query
// string.
func escapeQuery(s string) string {
	return strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(s)
}
