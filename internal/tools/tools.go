// Package tools exposes the document client as MCP tools.
package tools

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/thegrumpylion/gdocs-mcp/internal/cache"
	"github.com/thegrumpylion/gdocs-mcp/internal/gdocs"
	"github.com/thegrumpylion/gdocs-mcp/internal/logging"
	"github.com/thegrumpylion/gdocs-mcp/internal/server"
)

// Tool names.
const (
	SearchTool    = "gdocs_search"
	ReadTool      = "gdocs_read"
	ListTool      = "gdocs_list"
	CacheListTool = "gdocs_cache_list"
)

// DocumentClient is the part of *gdocs.Client the tools use.
type DocumentClient interface {
	Search(ctx context.Context, query string, maxResults int) ([]gdocs.Descriptor, error)
	List(ctx context.Context, folderID string, maxResults int) ([]gdocs.Descriptor, error)
	Read(ctx context.Context, docID string, format gdocs.Format) (*gdocs.Content, error)
}

// Cache stores exported text locally. *cache.Cache implements it.
type Cache interface {
	Save(name, id, content string) (string, error)
	List() ([]cache.Entry, error)
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithCache enables saving read results and the cache listing tool.
func WithCache(c Cache) Option {
	return func(a *Adapter) { a.cache = c }
}

// WithLogger sets the logger. The default discards output.
func WithLogger(l *slog.Logger) Option {
	return func(a *Adapter) { a.logger = l }
}

// Adapter forwards tool calls to a DocumentClient and shapes the results.
type Adapter struct {
	client DocumentClient
	cache  Cache
	logger *slog.Logger
}

// NewAdapter creates an Adapter for client.
func NewAdapter(client DocumentClient, opts ...Option) *Adapter {
	a := &Adapter{client: client, logger: logging.Discard()}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Register adds the tools to srv. The cache listing tool is only added when
// a cache is configured.
func (a *Adapter) Register(srv *server.Server) {
	a.registerSearch(srv)
	a.registerRead(srv)
	a.registerList(srv)
	if a.cache != nil {
		a.registerCacheList(srv)
	}
}

// --- gdocs_search ---

type searchInput struct {
	Query      string `json:"query" jsonschema:"Text to match against document names and contents"`
	MaxResults int    `json:"max_results,omitempty" jsonschema:"Maximum number of results (default 10)"`
}

type searchOutput struct {
	Results []gdocs.Descriptor `json:"results"`
}

func (a *Adapter) registerSearch(srv *server.Server) {
	server.AddTool(srv, &mcp.Tool{
		Name:        SearchTool,
		Description: "Search Google Docs, Sheets and Slides whose name or content matches the query. Returns document IDs, names, types, modification times and links.",
		Annotations: &mcp.ToolAnnotations{
			ReadOnlyHint:  true,
			OpenWorldHint: server.BoolPtr(true),
		},
	}, func(ctx context.Context, req *mcp.CallToolRequest, input searchInput) (*mcp.CallToolResult, searchOutput, error) {
		if strings.TrimSpace(input.Query) == "" {
			return nil, searchOutput{}, fmt.Errorf("query is required")
		}
		a.logger.Info("searching documents", slog.String("query", input.Query))

		results, err := a.client.Search(ctx, input.Query, input.MaxResults)
		if err != nil {
			return nil, searchOutput{}, describe("searching documents", err)
		}
		return nil, searchOutput{Results: nonNil(results)}, nil
	})
}

// --- gdocs_read ---

type readInput struct {
	DocID  string `json:"doc_id" jsonschema:"Google Drive file ID of the document"`
	Format string `json:"format,omitempty" jsonschema:"Output format for Google Docs: markdown (default), text or html"`
	Save   bool   `json:"save,omitempty" jsonschema:"Also write the content to the local cache directory"`
}

type readOutput struct {
	Content *gdocs.Content `json:"content"`
	SavedTo string         `json:"saved_to,omitempty"`
	Notice  string         `json:"notice,omitempty"`
}

func (a *Adapter) registerRead(srv *server.Server) {
	server.AddTool(srv, &mcp.Tool{
		Name:        ReadTool,
		Description: "Read the content of a Google Doc, Sheet or Slides presentation by ID. Docs are returned as markdown, text or html; Sheets as CSV; Slides as plain text.",
		Annotations: &mcp.ToolAnnotations{
			ReadOnlyHint:  true,
			OpenWorldHint: server.BoolPtr(true),
		},
	}, func(ctx context.Context, req *mcp.CallToolRequest, input readInput) (*mcp.CallToolResult, readOutput, error) {
		if input.DocID == "" {
			return nil, readOutput{}, fmt.Errorf("doc_id is required")
		}
		if input.Save && a.cache == nil {
			return nil, readOutput{}, fmt.Errorf("saving is not enabled (use --cache-dir)")
		}
		format := gdocs.ParseFormat(input.Format)
		a.logger.Info("reading document", logging.DocID(input.DocID), slog.String("format", string(format)))

		content, err := a.client.Read(ctx, input.DocID, format)
		if err != nil {
			return nil, readOutput{}, describe("reading document", err)
		}

		out := readOutput{Content: content}
		if !format.Known() && content.Type == gdocs.KindDocument {
			out.Notice = fmt.Sprintf("unknown format %q, returned plain text (use markdown, text or html)", input.Format)
		}
		if input.Save {
			path, err := a.cache.Save(content.Name, content.ID, content.Content)
			if err != nil {
				return nil, readOutput{}, fmt.Errorf("saving document: %w", err)
			}
			a.logger.Info("document saved", logging.DocID(content.ID), logging.Path(path))
			out.SavedTo = path
		}
		return nil, out, nil
	})
}

// --- gdocs_list ---

type listInput struct {
	FolderID   string `json:"folder_id,omitempty" jsonschema:"Only list documents in this folder (default: all folders)"`
	MaxResults int    `json:"max_results,omitempty" jsonschema:"Maximum number of results (default 20)"`
}

type listOutput struct {
	Docs []gdocs.Descriptor `json:"docs"`
}

func (a *Adapter) registerList(srv *server.Server) {
	server.AddTool(srv, &mcp.Tool{
		Name:        ListTool,
		Description: "List Google Docs, Sheets and Slides, optionally restricted to one folder.",
		Annotations: &mcp.ToolAnnotations{
			ReadOnlyHint:  true,
			OpenWorldHint: server.BoolPtr(true),
		},
	}, func(ctx context.Context, req *mcp.CallToolRequest, input listInput) (*mcp.CallToolResult, listOutput, error) {
		a.logger.Info("listing documents", slog.String("folder_id", input.FolderID))

		docs, err := a.client.List(ctx, input.FolderID, input.MaxResults)
		if err != nil {
			return nil, listOutput{}, describe("listing documents", err)
		}
		return nil, listOutput{Docs: nonNil(docs)}, nil
	})
}

// --- gdocs_cache_list ---

type cachedFile struct {
	File     string `json:"file"`
	Size     int64  `json:"size"`
	Modified string `json:"modified"`
}

type cacheListOutput struct {
	Files []cachedFile `json:"files"`
}

func (a *Adapter) registerCacheList(srv *server.Server) {
	server.AddTool(srv, &mcp.Tool{
		Name:        CacheListTool,
		Description: "List documents previously saved to the local cache directory with gdocs_read save=true.",
		Annotations: &mcp.ToolAnnotations{
			ReadOnlyHint: true,
		},
	}, func(ctx context.Context, req *mcp.CallToolRequest, _ any) (*mcp.CallToolResult, cacheListOutput, error) {
		entries, err := a.cache.List()
		if err != nil {
			return nil, cacheListOutput{}, err
		}
		files := make([]cachedFile, 0, len(entries))
		for _, e := range entries {
			files = append(files, cachedFile{File: e.File, Size: e.Size, Modified: e.Modified.UTC().Format(time.RFC3339)})
		}
		return nil, cacheListOutput{Files: files}, nil
	})
}

// describe wraps err for the user, spelling out the not-found and rate-limit
// cases.
func describe(action string, err error) error {
	switch {
	case gdocs.IsNotFound(err):
		return fmt.Errorf("%s: document not found: %w", action, err)
	case gdocs.IsRateLimited(err):
		return fmt.Errorf("%s: rate limited by Google, try again later: %w", action, err)
	}
	return fmt.Errorf("%s: %w", action, err)
}

func nonNil(d []gdocs.Descriptor) []gdocs.Descriptor {
	if d == nil {
		return []gdocs.Descriptor{}
	}
	return d
}
