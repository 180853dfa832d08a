// Package parser reads vault notes: frontmatter, wikilinks, tags and the
// display title. Document edits frontmatter in place for the note writers.
package parser

import (
	"bytes"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

var (
	wikilinkRe = regexp.MustCompile(`\[\[(.*?)\]\]`)
	tagRe      = regexp.MustCompile(`(?:^|\s)#([A-Za-z][A-Za-z0-9_/-]*)`)
)

// linkKeys are the frontmatter lists whose values are wikilinks.
var linkKeys = []string{"concepts", "sources", "videos"}

// Result holds the output of parsing a Markdown file.
type Result struct {
	Frontmatter map[string]any
	Body        string
	// Links are the distinct wikilink targets, frontmatter lists first.
	Links []string
	Tags  []string
	Title string
	// Kind is the frontmatter "type" value.
	Kind string
}

// Parse reads a note leniently: a frontmatter block that is not valid YAML
// is treated as part of the body.
func Parse(data []byte) (*Result, error) {
	fm, body := splitFrontmatter(data)

	var links linkSet
	for _, key := range linkKeys {
		for _, v := range stringList(fm, key) {
			links.addAll(v)
		}
	}
	links.addAll(body)

	return &Result{
		Frontmatter: fm,
		Body:        body,
		Links:       links.list,
		Tags:        extractTags(body, fm),
		Title:       deriveTitle(fm, body),
		Kind:        stringField(fm, "type"),
	}, nil
}

// Field returns the string frontmatter value for key, or "".
func (r *Result) Field(key string) string {
	return stringField(r.Frontmatter, key)
}

func splitFrontmatter(data []byte) (map[string]any, string) {
	block, body, ok := splitRaw(data)
	if !ok {
		return nil, string(data)
	}
	var fm map[string]any
	if err := yaml.Unmarshal(block, &fm); err != nil {
		return nil, string(data)
	}
	return fm, body
}

// splitRaw returns the raw YAML block and the body that follows the closing
// delimiter line. ok is false when there is no complete frontmatter block.
func splitRaw(data []byte) ([]byte, string, bool) {
	const delim = "---"
	trimmed := bytes.TrimLeft(data, "\n\r")
	if !bytes.HasPrefix(trimmed, []byte(delim)) {
		return nil, "", false
	}

	rest := trimmed[len(delim):]
	idx := bytes.Index(rest, []byte("\n"+delim))
	if idx < 0 {
		return nil, "", false
	}
	body := strings.TrimLeft(string(rest[idx+1+len(delim):]), "\n\r")
	return rest[:idx], body, true
}

// linkSet collects wikilink targets in first-seen order.
type linkSet struct {
	seen map[string]struct{}
	list []string
}

// addAll adds every [[target]] or [[target|alias]] found in s.
func (l *linkSet) addAll(s string) {
	for _, m := range wikilinkRe.FindAllStringSubmatch(s, -1) {
		target, _, _ := strings.Cut(m[1], "|")
		target = strings.TrimSpace(target)
		if target == "" {
			continue
		}
		if l.seen == nil {
			l.seen = make(map[string]struct{})
		}
		if _, ok := l.seen[target]; ok {
			continue
		}
		l.seen[target] = struct{}{}
		l.list = append(l.list, target)
	}
}

// extractTags returns the frontmatter tags followed by inline #tags, each
// once.
func extractTags(body string, fm map[string]any) []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(t string) {
		if t = strings.TrimSpace(t); t == "" {
			return
		}
		if _, dup := seen[t]; dup {
			return
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	for _, t := range stringList(fm, "tags") {
		add(t)
	}
	for _, m := range tagRe.FindAllStringSubmatch(body, -1) {
		add(m[1])
	}
	return out
}

// deriveTitle prefers the frontmatter "title" (video notes), then "name"
// (concept and channel notes), then the first H1 heading.
func deriveTitle(fm map[string]any, body string) string {
	for _, key := range []string{"title", "name"} {
		if s := stringField(fm, key); s != "" {
			return s
		}
	}
	for line := range strings.SplitSeq(body, "\n") {
		if h, ok := strings.CutPrefix(strings.TrimSpace(line), "# "); ok {
			return strings.TrimSpace(h)
		}
	}
	return ""
}

func stringField(fm map[string]any, key string) string {
	s, _ := fm[key].(string)
	return s
}

// stringList returns the string items of a frontmatter list.
func stringList(fm map[string]any, key string) []string {
	raw, _ := fm[key].([]any)
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
