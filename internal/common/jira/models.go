package jira

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// DescriptionKind discriminates the three shapes an issue description can take.
type DescriptionKind int

const (
	DescriptionAbsent DescriptionKind = iota
	DescriptionPlain
	DescriptionDocument
)

func (k DescriptionKind) String() string {
	switch k {
	case DescriptionPlain:
		return "plain"
	case DescriptionDocument:
		return "document"
	default:
		return "absent"
	}
}

// Description is an issue description resolved once at decode time: absent,
// a plain string, or a rich-text document. A document that could not be
// decoded keeps the decode fault instead of a tree.
type Description struct {
	kind  DescriptionKind
	text  string
	root  *Node
	fault error
}

func PlainDescription(text string) Description {
	return Description{kind: DescriptionPlain, text: text}
}

func DocumentDescription(root *Node) Description {
	return Description{kind: DescriptionDocument, root: root}
}

func (d Description) Kind() DescriptionKind { return d.kind }

// Text returns the plain-text variant's value.
func (d Description) Text() string { return d.text }

// Document returns the document tree, or the fault that prevented decoding it.
func (d Description) Document() (*Node, error) {
	if d.fault != nil {
		return nil, d.fault
	}
	return d.root, nil
}

func (d *Description) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*d = Description{}
		return nil
	}

	switch trimmed[0] {
	case '"':
		var text string
		if err := json.Unmarshal(trimmed, &text); err != nil {
			return err
		}
		*d = PlainDescription(text)
	case '[':
		var nodes []*Node
		if err := json.Unmarshal(trimmed, &nodes); err != nil {
			*d = Description{kind: DescriptionDocument, fault: fmt.Errorf("decode document: %w", err)}
			return nil
		}
		*d = DocumentDescription(&Node{Type: "doc", Content: nodes})
	case '{':
		var root Node
		if err := json.Unmarshal(trimmed, &root); err != nil {
			*d = Description{kind: DescriptionDocument, fault: fmt.Errorf("decode document: %w", err)}
			return nil
		}
		*d = DocumentDescription(&root)
	default:
		*d = Description{kind: DescriptionDocument, fault: fmt.Errorf("unsupported description value %s", string(trimmed))}
	}
	return nil
}

// User is an issue assignee.
type User struct {
	DisplayName string `json:"displayName"`
}

// Issue is the subset of a Jira issue used to describe a deployment.
type Issue struct {
	Key         string
	Summary     string
	Description Description
	Priority    string
	IssueType   string
	Status      string
	Assignee    *User
	Components  []string
	Labels      []string
}

type namedField struct {
	Name string `json:"name"`
}

func (n *namedField) name() string {
	if n == nil {
		return ""
	}
	return n.Name
}

type issueResponse struct {
	Key    string `json:"key"`
	Fields struct {
		Summary     string       `json:"summary"`
		Description Description  `json:"description"`
		Priority    *namedField  `json:"priority"`
		IssueType   *namedField  `json:"issuetype"`
		Status      *namedField  `json:"status"`
		Assignee    *User        `json:"assignee"`
		Components  []namedField `json:"components"`
		Labels      []string     `json:"labels"`
	} `json:"fields"`
}

// DecodeIssue parses the body of GET /rest/api/3/issue/{key}.
func DecodeIssue(data []byte) (*Issue, error) {
	var resp issueResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, err
	}
	if resp.Key == "" {
		return nil, fmt.Errorf("issue key missing from response")
	}

	components := make([]string, 0, len(resp.Fields.Components))
	for _, c := range resp.Fields.Components {
		if c.Name != "" {
			components = append(components, c.Name)
		}
	}

	return &Issue{
		Key:         resp.Key,
		Summary:     resp.Fields.Summary,
		Description: resp.Fields.Description,
		Priority:    resp.Fields.Priority.name(),
		IssueType:   resp.Fields.IssueType.name(),
		Status:      resp.Fields.Status.name(),
		Assignee:    resp.Fields.Assignee,
		Components:  components,
		Labels:      resp.Fields.Labels,
	}, nil
}
