package models

import (
	"encoding/json"
	"testing"
)

func TestFullText_JoinsWithSingleSpace(t *testing.T) {
	tr := Transcript{Segments: []Segment{
		{Text: "Hello world", Start: 0, Duration: 1},
		{Text: "second", Start: 1, Duration: 1},
		{Text: "third\nline", Start: 2, Duration: 1},
	}}
	if got := tr.FullText(); got != "Hello world second third\nline" {
		t.Errorf("FullText = %q", got)
	}
}

func TestFullText_Empty(t *testing.T) {
	if got := (Transcript{}).FullText(); got != "" {
		t.Errorf("FullText = %q, want empty", got)
	}
}

func TestTranscript_JSONRoundTripKeepsFullText(t *testing.T) {
	orig := Transcript{
		ID:         "abc123",
		Title:      "Test Video",
		Channel:    "Test Channel",
		UploadDate: "20240115",
		URL:        "https://youtube.com/watch?v=abc123",
		Segments: []Segment{
			{Text: "Hello", Start: 0.5, Duration: 1.25},
			{Text: "world", Start: 1.75, Duration: 2},
		},
	}
	data, err := json.Marshal(orig)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var back Transcript
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if back.FullText() != orig.FullText() {
		t.Errorf("FullText = %q, want %q", back.FullText(), orig.FullText())
	}
	if back.URL != orig.URL {
		t.Errorf("url = %q", back.URL)
	}
}

func TestChannelURL(t *testing.T) {
	cases := map[string]string{
		"https://www.youtube.com/watch?v=abc": "https://www.youtube.com",
		"https://example.com/video/1":         "https://example.com/video/1",
		"":                                    "",
	}
	for in, want := range cases {
		if got := (Transcript{URL: in}).ChannelURL(); got != want {
			t.Errorf("ChannelURL(%q) = %q, want %q", in, got, want)
		}
	}
}
