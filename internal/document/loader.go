package document

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/gomarkdown/markdown"
	"github.com/microcosm-cc/bluemonday"
	"github.com/tmc/langchaingo/documentloaders"
)

// ErrUnsupportedType is returned for file extensions no loader handles.
var ErrUnsupportedType = fmt.Errorf("document: unsupported file type")

// Load reads one uploaded file into a single Document, dispatching on the
// file extension. Supported: .txt, .md, .markdown, .html, .htm, .pdf.
func Load(ctx context.Context, name string, r io.Reader) (Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Document{}, fmt.Errorf("document: read %s: %w", name, err)
	}

	var text string
	switch strings.ToLower(filepath.Ext(name)) {
	case ".txt":
		text, err = loadText(ctx, data)
	case ".md", ".markdown":
		text, err = loadMarkdown(data)
	case ".html", ".htm":
		text, err = loadHTML(data)
	case ".pdf":
		text, err = loadPDF(ctx, data)
	default:
		return Document{}, fmt.Errorf("%w: %s", ErrUnsupportedType, filepath.Ext(name))
	}
	if err != nil {
		return Document{}, err
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return Document{}, fmt.Errorf("document: %s contains no extractable text", name)
	}

	doc := New(filepath.Base(name), 0, text)
	doc.ID = filepath.Base(name)
	return doc, nil
}

func loadText(ctx context.Context, data []byte) (string, error) {
	docs, err := documentloaders.NewText(bytes.NewReader(data)).Load(ctx)
	if err != nil {
		return "", fmt.Errorf("document: load text: %w", err)
	}
	var sb strings.Builder
	for _, d := range docs {
		sb.WriteString(d.PageContent)
	}
	return sb.String(), nil
}

func loadPDF(ctx context.Context, data []byte) (string, error) {
	loader := documentloaders.NewPDF(bytes.NewReader(data), int64(len(data)))
	docs, err := loader.Load(ctx)
	if err != nil {
		return "", fmt.Errorf("document: load pdf: %w", err)
	}
	var sb strings.Builder
	for _, d := range docs {
		sb.WriteString(d.PageContent)
		sb.WriteString("\n")
	}
	return sb.String(), nil
}

// loadMarkdown renders markdown to HTML and strips it back to plain text, so
// headings and lists chunk the same way as any other prose.
func loadMarkdown(data []byte) (string, error) {
	rendered := markdown.ToHTML(data, nil, nil)
	return loadHTML(rendered)
}

func loadHTML(data []byte) (string, error) {
	clean := bluemonday.UGCPolicy().SanitizeBytes(data)

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(clean))
	if err != nil {
		return "", fmt.Errorf("document: parse html: %w", err)
	}

	var sb strings.Builder
	doc.Find("h1, h2, h3, h4, h5, h6, p, li, pre, td, th").Each(func(_ int, s *goquery.Selection) {
		t := strings.TrimSpace(s.Text())
		if t != "" {
			sb.WriteString(t)
			sb.WriteString("\n\n")
		}
	})
	if sb.Len() == 0 {
		// No block elements matched, fall back to the whole text.
		return doc.Text(), nil
	}
	return sb.String(), nil
}
