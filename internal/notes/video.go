package notes

import (
	"fmt"
	"strings"

	"github.com/starford/study/internal/models"
	"github.com/starford/study/internal/parser"
)

// WriteVideoNote writes the note for one item, replacing any previous
// version. The created timestamp of an existing note is kept.
func (v *Vault) WriteVideoNote(t models.Transcript, k models.Knowledge) (string, error) {
	p := VideoNotePath(t.Channel, t.Title)
	unlock := v.locks.lock(p)
	defer unlock()

	now := v.timestamp()
	created := now
	if data, err := v.fs.Read(p); err == nil {
		if prev, err := parser.ParseDocument(data); err == nil {
			if c, ok := prev.String("created"); ok && c != "" {
				created = c
			}
		}
	}

	links := make([]string, 0, len(k.Concepts))
	items := make([]string, 0, len(k.Concepts))
	for _, c := range k.Concepts {
		links = append(links, Link(c.Name))
		items = append(items, "- "+Link(c.Name))
	}

	body := fmt.Sprintf("# %s\n\n## TLDR\n\n%s\n\n---\n\n## Resumo\n\n%s\n\n---\n\n## Conceitos\n\n%s\n",
		t.Title, k.TLDR, k.Summary, strings.Join(items, "\n"))

	doc := parser.NewDocument(body)
	doc.SetString("type", models.KindVideo)
	doc.SetString("video_id", t.ID)
	doc.SetString("title", t.Title)
	doc.SetString("channel", t.Channel)
	doc.SetString("url", t.URL)
	doc.SetString("upload_date", t.UploadDate)
	doc.SetString("created", created)
	doc.SetString("updated", now)
	doc.SetStrings("concepts", links)
	doc.SetStrings("tags", []string{"youtube"})
	doc.SetString("status", "complete")

	if err := v.write(p, doc); err != nil {
		return "", err
	}
	return p, nil
}
