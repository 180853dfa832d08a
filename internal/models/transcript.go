package models

import "strings"

// Segment is a single timed span of caption text. Start and Duration are in seconds.
type Segment struct {
	Text     string  `json:"text"`
	Start    float64 `json:"start"`
	Duration float64 `json:"duration"`
}

// Transcript is the parsed caption track of one item together with its metadata.
type Transcript struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	Channel    string    `json:"channel"`
	UploadDate string    `json:"upload_date"`
	URL        string    `json:"webpage_url"`
	Segments   []Segment `json:"transcript"`
}

// FullText joins the segment texts with single spaces.
func (t Transcript) FullText() string {
	parts := make([]string, len(t.Segments))
	for i, s := range t.Segments {
		parts[i] = s.Text
	}
	return strings.Join(parts, " ")
}

// ChannelURL derives the channel page from a watch URL. URLs without a
// "/watch" component are returned unchanged.
func (t Transcript) ChannelURL() string {
	if i := strings.LastIndex(t.URL, "/watch"); i >= 0 {
		return t.URL[:i]
	}
	return t.URL
}
