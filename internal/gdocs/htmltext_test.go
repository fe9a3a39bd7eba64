package gdocs

import (
	"strings"
	"testing"
)

func TestHTMLToMarkdown(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "bold",
			in:   "<p>Hello <b>World</b></p>",
			want: "Hello **World**",
		},
		{
			name: "space inside emphasis",
			in:   "<p>Hello<em> there </em>friend</p>",
			want: "Hello _there_ friend",
		},
		{
			name: "styled spans",
			in:   `<p><span style="font-weight: 700">Bold</span> and <span style="font-style:italic">slanted</span></p>`,
			want: "**Bold** and _slanted_",
		},
		{
			name: "headings and paragraphs",
			in:   "<h1>Title</h1><p>First</p><h3>Sub</h3><p>Second</p>",
			want: "# Title\n\nFirst\n\n### Sub\n\nSecond",
		},
		{
			name: "head and scripts are dropped",
			in:   "<html><head><title>T</title><style>.c1{color:red}</style></head><body><script>x()</script><p>Body</p></body></html>",
			want: "Body",
		},
		{
			name: "lists",
			in:   "<ul><li>one</li><li>two<ol><li>a</li><li>b</li></ol></li></ul>",
			want: "- one\n- two\n\n  1. a\n  2. b",
		},
		{
			name: "google redirect link",
			in:   `<p>See <a href="https://www.google.com/url?q=https://example.com/x&amp;sa=D">the site</a>.</p>`,
			want: "See [the site](https://example.com/x).",
		},
		{
			name: "anchor without target",
			in:   `<p><a id="h.1"></a>Heading</p>`,
			want: "Heading",
		},
		{
			name: "table",
			in:   "<table><tr><td><p>a</p></td><td>b</td></tr><tr><td>1</td><td>2</td></tr></table>",
			want: "| a | b |\n| 1 | 2 |",
		},
		{
			name: "line breaks and entities",
			in:   "<p>one<br>two&nbsp;three &amp; four</p>",
			want: "one\ntwo three & four",
		},
		{
			name: "emphasis from style classes",
			in: `<html><head><style>.c1{color:#000000}.c3{font-weight:700;color:#000000}.c5{font-style:italic}` +
				`ul.lst-kix_a>li:before{content:"-"}.c7,.c8{font-weight:bold}</style></head>` +
				`<body><p class="c1"><span class="c1">Plain </span><span class="c3 c1">Bold</span><span class="c1"> and </span>` +
				`<span class="c5">slanted</span> <span class="c8">again</span></p></body></html>`,
			want: "Plain **Bold** and _slanted_ **again**",
		},
		{
			name: "emphasis inside table cell",
			in:   `<style>.c2{font-weight:700}</style><table><tr><td><span class="c2">Head</span></td><td>x</td></tr></table>`,
			want: "| **Head** | x |",
		},
		{
			name: "blank paragraphs collapse",
			in:   "<p>a</p><p></p><p>  </p><p>b</p>",
			want: "a\n\nb",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := htmlToMarkdown(strings.NewReader(tt.in))
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("htmlToMarkdown(%q)\n got: %q\nwant: %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestUnwrapRedirect(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"https://www.google.com/url?q=https://go.dev&sa=D", "https://go.dev"},
		{"https://www.google.com/search?q=go", "https://www.google.com/search?q=go"},
		{"https://example.com", "https://example.com"},
		{"#heading", "#heading"},
	}
	for _, tt := range tests {
		if got := unwrapRedirect(tt.in); got != tt.want {
			t.Errorf("unwrapRedirect(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestParseClassRules(t *testing.T) {
	classes := make(map[string]string)
	parseClassRules(`.c1{font-weight:700}p.c2{font-style:italic}.c3 span{color:red}.c4,.c5{font-style:italic}.c1{color:red}`, classes)

	tests := []struct {
		class string
		mark  string
	}{
		{"c1", "**"},
		{"c2", ""},
		{"c3", ""},
		{"c4", "_"},
		{"c5", "_"},
	}
	for _, tt := range tests {
		if got := emphasisMark(classes[tt.class]); got != tt.mark {
			t.Errorf("class %s: mark = %q, want %q (decls %q)", tt.class, got, tt.mark, classes[tt.class])
		}
	}
}
