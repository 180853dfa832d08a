package notes

import (
	"fmt"

	"github.com/starford/study/internal/models"
	"github.com/starford/study/internal/parser"
)

// MergeChannel records videoTitle on the channel index note.
func (v *Vault) MergeChannel(channel, channelURL, videoTitle string) (MergeResult, error) {
	link := Link(videoTitle)
	return v.mergeReference(ChannelNotePath(channel), "videos", link, func(now string) *parser.Document {
		doc := parser.NewDocument(fmt.Sprintf("# %s\n\n## Videos Processados\n\n- %s\n", channel, link))
		doc.SetString("type", models.KindChannel)
		doc.SetString("name", channel)
		doc.SetString("url", channelURL)
		doc.SetString("created", now)
		doc.SetString("updated", now)
		doc.SetStrings("videos", []string{link})
		doc.SetStrings("tags", []string{"youtube", "channel"})
		return doc
	})
}
