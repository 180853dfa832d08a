package caption

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"

	"github.com/starford/study/internal/models"
)

type json3File struct {
	Events []json3Event `json:"events"`
}

type json3Event struct {
	StartMs    float64     `json:"tStartMs"`
	DurationMs float64     `json:"dDurationMs"`
	Segs       []json3Frag `json:"segs"`
}

type json3Frag struct {
	UTF8 string `json:"utf8"`
}

func parseJSON3(data []byte) ([]models.Segment, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	var doc *json3File
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, &ParseError{Format: FormatJSON3, Err: err}
	}
	if doc == nil {
		return nil, &ParseError{Format: FormatJSON3, Err: errors.New("document is null")}
	}

	var out []models.Segment
	for _, ev := range doc.Events {
		if len(ev.Segs) == 0 {
			continue
		}
		var sb strings.Builder
		for _, frag := range ev.Segs {
			sb.WriteString(frag.UTF8)
		}
		text := strings.TrimSpace(sb.String())
		if text == "" || text == "\n" {
			continue
		}
		out = append(out, models.Segment{
			Text:     text,
			Start:    round3(ev.StartMs / 1000),
			Duration: round3(ev.DurationMs / 1000),
		})
	}
	return out, nil
}
