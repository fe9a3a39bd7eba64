package gdocs

import (
	"testing"

	docs "google.golang.org/api/docs/v1"
)

func paragraph(texts ...string) *docs.StructuralElement {
	p := &docs.Paragraph{}
	for _, s := range texts {
		p.Elements = append(p.Elements, &docs.ParagraphElement{TextRun: &docs.TextRun{Content: s}})
	}
	return &docs.StructuralElement{Paragraph: p}
}

func table(rows ...[]string) *docs.StructuralElement {
	t := &docs.Table{}
	for _, r := range rows {
		row := &docs.TableRow{}
		for _, cell := range r {
			row.TableCells = append(row.TableCells, &docs.TableCell{
				Content: []*docs.StructuralElement{paragraph(cell)},
			})
		}
		t.TableRows = append(t.TableRows, row)
	}
	return &docs.StructuralElement{Table: t}
}

func tab(title string, content ...*docs.StructuralElement) *docs.Tab {
	return &docs.Tab{
		TabProperties: &docs.TabProperties{Title: title},
		DocumentTab:   &docs.DocumentTab{Body: &docs.Body{Content: content}},
	}
}

func TestDocumentText(t *testing.T) {
	tests := []struct {
		name string
		doc  *docs.Document
		want string
	}{
		{
			name: "nil",
			doc:  nil,
			want: "",
		},
		{
			name: "paragraphs",
			doc: &docs.Document{Body: &docs.Body{Content: []*docs.StructuralElement{
				{SectionBreak: &docs.SectionBreak{}},
				paragraph("Hello ", "world\n"),
				paragraph("Second line\n"),
			}}},
			want: "Hello world\nSecond line\n",
		},
		{
			name: "table and toc",
			doc: &docs.Document{Body: &docs.Body{Content: []*docs.StructuralElement{
				{TableOfContents: &docs.TableOfContents{Content: []*docs.StructuralElement{paragraph("Intro\n")}}},
				table([]string{"a\n", "b\n"}, []string{"1\n", "2\n"}),
				paragraph("After\n"),
			}}},
			want: "Intro\na\nb\n1\n2\nAfter\n",
		},
		{
			name: "single tab has no header",
			doc: &docs.Document{Tabs: []*docs.Tab{
				tab("Tab 1", paragraph("Only\n")),
			}},
			want: "Only\n",
		},
		{
			name: "tabs with children",
			doc: &docs.Document{Tabs: []*docs.Tab{
				{
					TabProperties: &docs.TabProperties{Title: "Main"},
					DocumentTab:   &docs.DocumentTab{Body: &docs.Body{Content: []*docs.StructuralElement{paragraph("One\n")}}},
					ChildTabs:     []*docs.Tab{tab("Child", paragraph("Nested"))},
				},
				{DocumentTab: &docs.DocumentTab{Body: &docs.Body{Content: []*docs.StructuralElement{paragraph("Two\n")}}}},
			}},
			want: "=== Main ===\nOne\n=== Child ===\nNested\n=== Tab 2 ===\nTwo\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := documentText(tt.doc); got != tt.want {
				t.Errorf("documentText()\n got: %q\nwant: %q", got, tt.want)
			}
		})
	}
}
