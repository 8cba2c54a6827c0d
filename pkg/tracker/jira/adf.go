package jira

import "strings"

// Document is an Atlassian Document Format node.
type Document struct {
	Type    string     `json:"type"`
	Version int        `json:"version,omitempty"`
	Text    string     `json:"text,omitempty"`
	Content []Document `json:"content,omitempty"`
}

// NewDocument wraps plain text in a document, one paragraph per line.
// Blank lines are dropped.
func NewDocument(text string) Document {
	doc := Document{Type: "doc", Version: 1}
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		doc.Content = append(doc.Content, Document{
			Type:    "paragraph",
			Content: []Document{{Type: "text", Text: line}},
		})
	}
	return doc
}
