package gdocs

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"google.golang.org/api/googleapi"
)

func TestKindFromMIME(t *testing.T) {
	tests := []struct {
		mimeType string
		want     Kind
	}{
		{MIMEDocument, KindDocument},
		{MIMESpreadsheet, KindSpreadsheet},
		{MIMEPresentation, KindPresentation},
		{"application/vnd.google-apps.drawing", KindFile},
		{"application/vnd.google-apps.folder", KindFile},
		{"application/pdf", KindFile},
		{"", KindFile},
	}

	for _, tt := range tests {
		t.Run(tt.mimeType, func(t *testing.T) {
			got := KindFromMIME(tt.mimeType)
			if got != tt.want {
				t.Errorf("KindFromMIME(%q) = %q, want %q", tt.mimeType, got, tt.want)
			}
			if tt.want != KindFile && got.MIMEType() != tt.mimeType {
				t.Errorf("%q.MIMEType() = %q, want %q", got, got.MIMEType(), tt.mimeType)
			}
		})
	}

	if KindFile.MIMEType() != "" {
		t.Errorf("KindFile.MIMEType() = %q, want empty", KindFile.MIMEType())
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in    string
		want  Format
		known bool
	}{
		{"", FormatMarkdown, true},
		{"markdown", FormatMarkdown, true},
		{" HTML ", FormatHTML, true},
		{"Text", FormatText, true},
		{"pdf", Format("pdf"), false},
	}
	for _, tt := range tests {
		got := ParseFormat(tt.in)
		if got != tt.want || got.Known() != tt.known {
			t.Errorf("ParseFormat(%q) = %q (known %v), want %q (known %v)", tt.in, got, got.Known(), tt.want, tt.known)
		}
	}
}

func TestKindFilter(t *testing.T) {
	want := "mimeType='application/vnd.google-apps.document' or " +
		"mimeType='application/vnd.google-apps.spreadsheet' or " +
		"mimeType='application/vnd.google-apps.presentation'"
	if got := kindFilter(); got != want {
		t.Errorf("kindFilter() = %q, want %q", got, want)
	}
}

func TestEscapeQuery(t *testing.T) {
	if got := escapeQuery(`it's a \ test`); got != `it\'s a \\ test` {
		t.Errorf("escapeQuery() = %q", got)
	}
}

func TestAPIErrorClassification(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		notFound    bool
		rateLimited bool
	}{
		{
			name:     "not found",
			err:      newAPIError("read", &googleapi.Error{Code: http.StatusNotFound, Message: "File not found"}),
			notFound: true,
		},
		{
			name:        "too many requests",
			err:         newAPIError("search", &googleapi.Error{Code: http.StatusTooManyRequests}),
			rateLimited: true,
		},
		{
			name: "user rate limit",
			err: newAPIError("list", &googleapi.Error{
				Code:   http.StatusForbidden,
				Errors: []googleapi.ErrorItem{{Reason: "userRateLimitExceeded"}},
			}),
			rateLimited: true,
		},
		{
			name: "permission denied",
			err: newAPIError("list", &googleapi.Error{
				Code:   http.StatusForbidden,
				Errors: []googleapi.ErrorItem{{Reason: "insufficientFilePermissions"}},
			}),
		},
		{
			name:     "wrapped",
			err:      fmt.Errorf("tool: %w", newAPIError("read", &googleapi.Error{Code: http.StatusNotFound})),
			notFound: true,
		},
		{
			name: "plain error",
			err:  errors.New("boom"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsNotFound(tt.err); got != tt.notFound {
				t.Errorf("IsNotFound() = %v, want %v", got, tt.notFound)
			}
			if got := IsRateLimited(tt.err); got != tt.rateLimited {
				t.Errorf("IsRateLimited() = %v, want %v", got, tt.rateLimited)
			}
		})
	}
}

func TestAPIErrorMessage(t *testing.T) {
	err := newAPIError("search", &googleapi.Error{Code: 500, Message: "backend error"})
	if got := err.Error(); !strings.HasPrefix(got, "gdocs search: ") || !strings.Contains(got, "backend error") {
		t.Errorf("Error() = %q", got)
	}
	if err.Code != 500 {
		t.Errorf("Code = %d, want 500", err.Code)
	}
}

func TestOffload(t *testing.T) {
	got, err := offload(context.Background(), func() (int, error) { return 42, nil })
	if err != nil || got != 42 {
		t.Errorf("offload() = (%d, %v), want (42, nil)", got, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	release := make(chan struct{})
	defer close(release)
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	_, err = offload(ctx, func() (int, error) {
		<-release
		return 0, nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("offload() after cancel error = %v, want context.Canceled", err)
	}
}
