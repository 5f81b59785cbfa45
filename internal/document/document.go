// Package document defines the text snippets flowing through the pipeline
// and the loaders and splitter that produce them from uploaded files.
package document

import "fmt"

// Document is a text snippet under consideration by the pipeline: a chunk of
// an ingested file, a recalled memory event, or a block of web search results.
type Document struct {
	ID       string
	Content  string
	Source   string
	Metadata map[string]string
}

// New returns a Document with an ID derived from source and index.
func New(source string, index int, content string) Document {
	return Document{
		ID:      fmt.Sprintf("%s#%d", source, index),
		Content: content,
		Source:  source,
		Metadata: map[string]string{
			"source": source,
		},
	}
}
