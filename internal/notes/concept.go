package notes

import (
	"fmt"

	"github.com/starford/study/internal/models"
	"github.com/starford/study/internal/parser"
)

// MergeConcept records that sourceTitle explains c. The first definition
// ever seen for a name is kept; later definitions are ignored.
func (v *Vault) MergeConcept(c models.Concept, sourceTitle string) (MergeResult, error) {
	link := Link(sourceTitle)
	return v.mergeReference(ConceptNotePath(c.Name), "sources", link, func(now string) *parser.Document {
		doc := parser.NewDocument(fmt.Sprintf("# %s\n\n## Definicao\n\n%s\n\n## Explicado em\n\n- %s\n", c.Name, c.Definition, link))
		doc.SetString("type", models.KindConcept)
		doc.SetString("name", c.Name)
		doc.SetString("created", now)
		doc.SetString("updated", now)
		doc.SetStrings("sources", []string{link})
		doc.SetStrings("tags", []string{"concept"})
		return doc
	})
}
