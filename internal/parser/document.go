package parser

import (
	"bytes"
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"
)

// ErrInvalidFrontmatter is returned when a document's frontmatter block is
// present but cannot be decoded as a YAML mapping.
var ErrInvalidFrontmatter = errors.New("invalid frontmatter")

// Document is a Markdown file whose frontmatter is held as a YAML node tree.
// Keys are kept in file order and keys the caller never touches survive a
// rewrite unchanged.
type Document struct {
	front *yaml.Node // mapping node
	Body  string
}

// NewDocument returns a document with empty frontmatter.
func NewDocument(body string) *Document {
	return &Document{front: &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}, Body: body}
}

// ParseDocument decodes data strictly: a frontmatter block that is not a
// YAML mapping is an error rather than being folded into the body.
func ParseDocument(data []byte) (*Document, error) {
	block, body, ok := splitRaw(data)
	if !ok {
		return NewDocument(string(data)), nil
	}
	var root yaml.Node
	if err := yaml.Unmarshal(block, &root); err != nil {
		return nil, fmt.Errorf("parser: %w: %v", ErrInvalidFrontmatter, err)
	}
	doc := NewDocument(body)
	switch {
	case root.Kind == 0:
	case root.Kind == yaml.DocumentNode && len(root.Content) == 1 && root.Content[0].Kind == yaml.MappingNode:
		doc.front = root.Content[0]
	default:
		return nil, fmt.Errorf("parser: %w: not a mapping", ErrInvalidFrontmatter)
	}
	return doc, nil
}

func (d *Document) lookup(key string) *yaml.Node {
	for i := 0; i+1 < len(d.front.Content); i += 2 {
		if d.front.Content[i].Value == key {
			return d.front.Content[i+1]
		}
	}
	return nil
}

func (d *Document) set(key string, value *yaml.Node) {
	for i := 0; i+1 < len(d.front.Content); i += 2 {
		if d.front.Content[i].Value == key {
			d.front.Content[i+1] = value
			return
		}
	}
	d.front.Content = append(d.front.Content,
		&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key},
		value,
	)
}

// String returns the scalar value stored under key.
func (d *Document) String(key string) (string, bool) {
	n := d.lookup(key)
	if n == nil || n.Kind != yaml.ScalarNode {
		return "", false
	}
	return n.Value, true
}

// SetString stores a string scalar under key, appending the key if new.
func (d *Document) SetString(key, value string) {
	d.set(key, strNode(value))
}

// Strings returns the scalar items of the sequence under key.
func (d *Document) Strings(key string) []string {
	n := d.lookup(key)
	if n == nil || n.Kind != yaml.SequenceNode {
		return nil
	}
	out := make([]string, 0, len(n.Content))
	for _, item := range n.Content {
		if item.Kind == yaml.ScalarNode {
			out = append(out, item.Value)
		}
	}
	return out
}

// SetStrings stores a block sequence of strings under key.
func (d *Document) SetStrings(key string, values []string) {
	seq := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
	for _, v := range values {
		seq.Content = append(seq.Content, strNode(v))
	}
	d.set(key, seq)
}

// AddString appends value to the sequence under key unless already present
// and reports whether it was added. A missing or non-sequence value is
// replaced by a new sequence.
func (d *Document) AddString(key, value string) bool {
	n := d.lookup(key)
	if n == nil || n.Kind != yaml.SequenceNode {
		d.SetStrings(key, []string{value})
		return true
	}
	for _, item := range n.Content {
		if item.Kind == yaml.ScalarNode && item.Value == value {
			return false
		}
	}
	n.Style = 0
	n.Content = append(n.Content, strNode(value))
	return true
}

// Bytes renders the document as "---\n<yaml>---\n<body>".
func (d *Document) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString("---\n")
	if len(d.front.Content) > 0 {
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(d.front); err != nil {
			return nil, fmt.Errorf("parser: encode frontmatter: %w", err)
		}
		if err := enc.Close(); err != nil {
			return nil, fmt.Errorf("parser: encode frontmatter: %w", err)
		}
	}
	buf.WriteString("---\n")
	buf.WriteString(d.Body)
	return buf.Bytes(), nil
}

func strNode(v string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: v}
}
