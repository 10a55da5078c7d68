package jira

import (
	"errors"
	"fmt"
	"strings"
)

// Node kinds with special handling. Every other kind is a pass-through container.
const (
	NodeText      = "text"
	NodeParagraph = "paragraph"
	NodeHeading   = "heading"
)

const maxDocumentDepth = 64

var (
	ErrMalformedNode   = errors.New("malformed document node")
	ErrDocumentTooDeep = errors.New("document nesting too deep")
	ErrMissingDocument = errors.New("document description without a root node")
)

// Node is one element of an Atlassian Document Format tree.
type Node struct {
	Type    string  `json:"type"`
	Text    string  `json:"text,omitempty"`
	Content []*Node `json:"content,omitempty"`
}

// ExtractPlainText flattens an issue description to plain text. Absent
// descriptions yield "", plain ones are returned unchanged, and documents are
// walked depth-first. A document that cannot be walked falls back to the
// issue summary.
func ExtractPlainText(issue *Issue) string {
	if issue == nil {
		return ""
	}

	switch issue.Description.Kind() {
	case DescriptionAbsent:
		return ""
	case DescriptionPlain:
		return issue.Description.Text()
	}

	root, err := issue.Description.Document()
	if err != nil {
		return strings.TrimSpace(issue.Summary)
	}
	text, err := ExtractDocumentText(root)
	if err != nil {
		return strings.TrimSpace(issue.Summary)
	}
	return text
}

// ExtractDocumentText concatenates text leaves in document order, ending every
// paragraph and heading with a line break, and trims the result.
func ExtractDocumentText(root *Node) (string, error) {
	if root == nil {
		return "", ErrMissingDocument
	}

	var b strings.Builder
	if err := visit(root, &b, 0); err != nil {
		return "", err
	}
	return strings.TrimSpace(b.String()), nil
}

func visit(n *Node, b *strings.Builder, depth int) error {
	if n == nil {
		return ErrMalformedNode
	}
	if depth > maxDocumentDepth {
		return fmt.Errorf("%w: limit %d", ErrDocumentTooDeep, maxDocumentDepth)
	}

	switch n.Type {
	case NodeText:
		b.WriteString(n.Text)
		return visitChildren(n, b, depth)
	case NodeParagraph, NodeHeading:
		if err := visitChildren(n, b, depth); err != nil {
			return err
		}
		b.WriteByte('\n')
		return nil
	default:
		return visitChildren(n, b, depth)
	}
}

func visitChildren(n *Node, b *strings.Builder, depth int) error {
	for _, child := range n.Content {
		if err := visit(child, b, depth+1); err != nil {
			return err
		}
	}
	return nil
}
