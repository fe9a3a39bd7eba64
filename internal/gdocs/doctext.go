package gdocs

import (
	"fmt"
	"strings"

	docs "google.golang.org/api/docs/v1"
)

// documentText flattens a Docs API document into plain text. Tabbed
// documents are rendered tab by tab, each under a "=== title ===" header
// when there is more than one tab.
func documentText(doc *docs.Document) string {
	if doc == nil {
		return ""
	}

	var sb strings.Builder
	if len(doc.Tabs) == 0 {
		if doc.Body != nil {
			writeElements(&sb, doc.Body.Content)
		}
		return sb.String()
	}

	multi := len(doc.Tabs) > 1 || len(doc.Tabs[0].ChildTabs) > 0
	writeTabs(&sb, doc.Tabs, multi)
	return sb.String()
}

func writeTabs(sb *strings.Builder, tabs []*docs.Tab, headers bool) {
	for i, tab := range tabs {
		if headers {
			title := fmt.Sprintf("Tab %d", i+1)
			if tab.TabProperties != nil && tab.TabProperties.Title != "" {
				title = tab.TabProperties.Title
			}
			if sb.Len() > 0 && !strings.HasSuffix(sb.String(), "\n") {
				sb.WriteString("\n")
			}
			fmt.Fprintf(sb, "=== %s ===\n", title)
		}
		if tab.DocumentTab != nil && tab.DocumentTab.Body != nil {
			writeElements(sb, tab.DocumentTab.Body.Content)
		}
		writeTabs(sb, tab.ChildTabs, headers)
	}
}

func writeElements(sb *strings.Builder, elements []*docs.StructuralElement) {
	for _, el := range elements {
		switch {
		case el.Paragraph != nil:
			for _, pe := range el.Paragraph.Elements {
				if pe.TextRun != nil {
					sb.WriteString(pe.TextRun.Content)
				}
			}
		case el.Table != nil:
			for _, row := range el.Table.TableRows {
				for _, cell := range row.TableCells {
					writeElements(sb, cell.Content)
				}
			}
		case el.TableOfContents != nil:
			writeElements(sb, el.TableOfContents.Content)
		}
	}
}
