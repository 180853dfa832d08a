package source

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strings"

	"github.com/starford/study/internal/storage"
)

// SyncArchive rewrites the yt-dlp download archive at path, sorted. Each id
// in done gets a "youtube <id>" line. Lines for ids in unfinished are
// removed, since yt-dlp records an id as soon as it downloads it, even when a
// later stage failed. Other existing lines are kept.
func SyncArchive(path string, done, unfinished []string) (int, error) {
	entries := make(map[string]struct{})
	data, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return 0, fmt.Errorf("source: read archive: %w", err)
	}
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			entries[line] = struct{}{}
		}
	}
	if err := sc.Err(); err != nil {
		return 0, fmt.Errorf("source: scan archive: %w", err)
	}
	for _, id := range unfinished {
		delete(entries, "youtube "+id)
	}
	for _, id := range done {
		entries["youtube "+id] = struct{}{}
	}

	lines := make([]string, 0, len(entries))
	for l := range entries {
		lines = append(lines, l)
	}
	sort.Strings(lines)
	out := ""
	if len(lines) > 0 {
		out = strings.Join(lines, "\n") + "\n"
	}
	if err := storage.WriteFileAtomic(path, []byte(out)); err != nil {
		return 0, fmt.Errorf("source: write archive: %w", err)
	}
	return len(lines), nil
}
