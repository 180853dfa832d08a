package source

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/starford/study/internal/caption"
	"github.com/starford/study/internal/deps"
)

// fakeYTDLP returns a fetcher whose runner writes files into the -o directory
// instead of invoking yt-dlp.
func fakeYTDLP(t *testing.T, files map[string]string, runErr error) (*YTDLP, *[]string) {
	t.Helper()
	stub := filepath.Join(t.TempDir(), "yt-dlp")
	if err := os.WriteFile(stub, []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	y := NewYTDLP(stub, nil)
	var got []string
	y.run = func(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
		got = args
		var dir string
		for i, a := range args {
			if a == "-o" {
				dir = filepath.Dir(args[i+1])
			}
		}
		for name, body := range files {
			body = strings.ReplaceAll(body, "$DIR", dir)
			if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
				t.Fatal(err)
			}
		}
		return nil, []byte("some error"), runErr
	}
	return y, &got
}

func TestArgs(t *testing.T) {
	args := Args("https://youtu.be/x", "/tmp/d", FetchOptions{
		Lang:        "en",
		Format:      caption.FormatVTT,
		After:       "20240101",
		ArchiveFile: "/data/archive.txt",
	})
	joined := strings.Join(args, " ")
	for _, want := range []string{
		"--skip-download", "--write-subs", "--write-auto-subs", "--write-info-json",
		"--sub-langs en", "--sub-format vtt", "-o /tmp/d/%(id)s.%(ext)s",
		"--download-archive /data/archive.txt", "--dateafter 20240101", "--quiet",
	} {
		if !strings.Contains(joined, want) {
			t.Errorf("args missing %q: %s", want, joined)
		}
	}
	if args[len(args)-1] != "https://youtu.be/x" {
		t.Errorf("url should be last: %v", args)
	}
	if strings.Contains(strings.Join(Args("u", "d", FetchOptions{Verbose: true}), " "), "--download-archive") {
		t.Error("archive flag should be omitted when no archive file is set")
	}
}

func TestFetch_CollectsItems(t *testing.T) {
	y, _ := fakeYTDLP(t, map[string]string{
		"PL1.info.json": `{"_type":"playlist","id":"PL1","title":"List"}`,
		"bbb.info.json": `{"id":"bbb","title":"Second","channel":"Chan","upload_date":"20240102","webpage_url":"https://www.youtube.com/watch?v=bbb","playlist_index":2}`,
		"aaa.info.json": `{"id":"aaa","title":"First","uploader":"Up","webpage_url":"https://www.youtube.com/watch?v=aaa","playlist_index":1,"requested_subtitles":{"en":{"ext":"vtt","filepath":"$DIR/aaa.en.vtt"}}}`,
		"aaa.en.vtt":    "WEBVTT\n",
		"bbb.en.json3":  `{"events":[]}`,
		"ccc.info.json": `{"id":"ccc","playlist_index":3}`,
		"notes.txt":     "ignored",
	}, nil)

	batch, err := y.Fetch(context.Background(), "https://www.youtube.com/playlist?list=PL1", FetchOptions{Lang: "en", Format: caption.FormatJSON3})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	defer batch.Close()

	if len(batch.Items) != 3 {
		t.Fatalf("items = %+v", batch.Items)
	}
	first, second, third := batch.Items[0], batch.Items[1], batch.Items[2]
	if first.ID != "aaa" || first.Channel != "Up" || first.UploadDate != "00000000" || !strings.HasSuffix(first.CaptionPath, "aaa.en.vtt") {
		t.Errorf("first = %+v", first)
	}
	if second.ID != "bbb" || second.Channel != "Chan" || !strings.HasSuffix(second.CaptionPath, "bbb.en.json3") {
		t.Errorf("second = %+v", second)
	}
	if third.Title != "Unknown" || third.Channel != "Unknown" || third.CaptionPath != "" {
		t.Errorf("third = %+v", third)
	}

	dir := filepath.Dir(first.CaptionPath)
	if err := batch.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := os.Stat(dir); !errors.Is(err, os.ErrNotExist) {
		t.Error("Close should remove the temp dir")
	}
}

func TestFetch_FailureWithoutItems(t *testing.T) {
	y, _ := fakeYTDLP(t, nil, errors.New("exit status 1"))
	if _, err := y.Fetch(context.Background(), "https://bad", FetchOptions{Lang: "en", Format: caption.FormatJSON3}); err == nil {
		t.Fatal("expected error when yt-dlp fails and nothing was fetched")
	}
}

func TestFetch_PartialFailureKeepsItems(t *testing.T) {
	y, _ := fakeYTDLP(t, map[string]string{
		"aaa.info.json": `{"id":"aaa","title":"First"}`,
	}, errors.New("exit status 1"))
	batch, err := y.Fetch(context.Background(), "https://x", FetchOptions{Lang: "en", Format: caption.FormatJSON3})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	defer batch.Close()
	if len(batch.Items) != 1 {
		t.Errorf("items = %+v", batch.Items)
	}
}

func TestFetch_MissingBinary(t *testing.T) {
	y := NewYTDLP("clearly-not-a-real-yt-dlp", nil)
	_, err := y.Fetch(context.Background(), "https://x", FetchOptions{})
	if !errors.Is(err, deps.ErrUnavailable) {
		t.Fatalf("error = %v, want ErrUnavailable", err)
	}
}

func TestSyncArchive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "archive.txt")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("youtube zzz\n\nvimeo 1\nyoutube failed\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	n, err := SyncArchive(path, []string{"aaa", "zzz"}, []string{"failed", "never-listed"})
	if err != nil {
		t.Fatalf("SyncArchive: %v", err)
	}
	if n != 3 {
		t.Errorf("entries = %d, want 3", n)
	}
	data, _ := os.ReadFile(path)
	if string(data) != "vimeo 1\nyoutube aaa\nyoutube zzz\n" {
		t.Errorf("archive = %q", data)
	}
}
