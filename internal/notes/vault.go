// Package notes writes the knowledge vault: one note per video, one shared
// note per concept and one index note per channel. Concept and channel notes
// are merge-only documents whose reference list in the frontmatter and the
// rendered list in the body grow in lock-step.
package notes

import (
	"fmt"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/starford/study/internal/models"
	"github.com/starford/study/internal/parser"
	"github.com/starford/study/internal/storage"
)

// Vault directory layout.
const (
	SourcesDir  = "Sources/YouTube"
	ConceptsDir = "Concepts"
	videosDir   = "Videos"
)

const timestampLayout = "2006-01-02T15:04:05"

// MergeResult describes the outcome of a merge.
type MergeResult struct {
	Path    string
	Created bool
	Changed bool
}

// Vault writes notes through a storage.Provider rooted at the vault.
type Vault struct {
	fs    storage.Provider
	now   func() time.Time
	locks keyedMutex
}

// NewVault returns a Vault over fs.
func NewVault(fs storage.Provider) *Vault {
	return &Vault{
		fs:  fs,
		now: func() time.Time { return time.Now().UTC() },
	}
}

// VideoNotePath returns Sources/YouTube/<channel>/Videos/<title>.md.
func VideoNotePath(channel, title string) string {
	return path.Join(SourcesDir, storage.SanitizeFilename(channel), videosDir, storage.SanitizeFilename(title)+".md")
}

// ConceptNotePath returns Concepts/<name>.md.
func ConceptNotePath(name string) string {
	return path.Join(ConceptsDir, storage.SanitizeFilename(name)+".md")
}

// ChannelNotePath returns Sources/YouTube/<channel>/<channel>.md.
func ChannelNotePath(channel string) string {
	safe := storage.SanitizeFilename(channel)
	return path.Join(SourcesDir, safe, safe+".md")
}

// KindForPath infers the note kind from a vault-relative path. Paths
// outside the generated layout return "".
func KindForPath(p string) string {
	switch {
	case strings.HasPrefix(p, ConceptsDir+"/"):
		return models.KindConcept
	case !strings.HasPrefix(p, SourcesDir+"/"):
		return ""
	case strings.Contains(p, "/"+videosDir+"/"):
		return models.KindVideo
	case path.Base(path.Dir(p))+".md" == path.Base(p):
		return models.KindChannel
	}
	return ""
}

// Link renders an Obsidian wikilink.
func Link(target string) string {
	return "[[" + target + "]]"
}

func (v *Vault) timestamp() string {
	return v.now().UTC().Format(timestampLayout)
}

// mergeReference adds link to the reference list stored under listKey of the
// note at p, creating the note with create when it does not exist. An
// existing note that already lists link in both places is left untouched.
func (v *Vault) mergeReference(p, listKey, link string, create func(now string) *parser.Document) (MergeResult, error) {
	unlock := v.locks.lock(p)
	defer unlock()

	res := MergeResult{Path: p}
	exists, err := v.fs.Exists(p)
	if err != nil {
		return res, fmt.Errorf("notes: %s: %w", p, err)
	}
	if !exists {
		if err := v.write(p, create(v.timestamp())); err != nil {
			return res, err
		}
		res.Created, res.Changed = true, true
		return res, nil
	}

	data, err := v.fs.Read(p)
	if err != nil {
		return res, fmt.Errorf("notes: %s: %w", p, err)
	}
	doc, err := parser.ParseDocument(data)
	if err != nil {
		return res, fmt.Errorf("notes: %s: %w", p, err)
	}

	addedMeta := doc.AddString(listKey, link)
	addedBody := false
	if !hasListItem(doc.Body, link) {
		doc.Body = appendListItem(doc.Body, link)
		addedBody = true
	}
	if !addedMeta && !addedBody {
		return res, nil
	}
	doc.SetString("updated", v.timestamp())
	if err := v.write(p, doc); err != nil {
		return res, err
	}
	res.Changed = true
	return res, nil
}

func (v *Vault) write(p string, doc *parser.Document) error {
	data, err := doc.Bytes()
	if err != nil {
		return fmt.Errorf("notes: render %s: %w", p, err)
	}
	if err := v.fs.Write(p, data); err != nil {
		return fmt.Errorf("notes: write %s: %w", p, err)
	}
	return nil
}

// hasListItem reports whether body has a "- <link>" line.
func hasListItem(body, link string) bool {
	item := "- " + link
	for _, line := range strings.Split(body, "\n") {
		if strings.TrimSpace(line) == item {
			return true
		}
	}
	return false
}

func appendListItem(body, link string) string {
	return strings.TrimRight(body, "\n") + "\n- " + link + "\n"
}

// keyedMutex serializes work per document path.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func (k *keyedMutex) lock(key string) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*sync.Mutex)
	}
	m, ok := k.locks[key]
	if !ok {
		m = &sync.Mutex{}
		k.locks[key] = m
	}
	k.mu.Unlock()

	m.Lock()
	return m.Unlock
}
