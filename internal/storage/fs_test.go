package storage

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func newVault(t *testing.T) *FS {
	t.Helper()
	v, err := NewFS(t.TempDir())
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	return v
}

func TestFS_WriteRead(t *testing.T) {
	v := newVault(t)
	const p = "Sources/YouTube/Tech Talks/Videos/Intro to Go.md"
	want := "---\ntype: youtube_video\n---\n# Intro to Go\n"

	if err := v.Write(p, []byte(want)); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := v.Read(p)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != want {
		t.Errorf("Read = %q, want %q", got, want)
	}

	if err := v.Write(p, []byte("replaced")); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	got, _ = v.Read(p)
	if string(got) != "replaced" {
		t.Errorf("after overwrite = %q", got)
	}
	leftovers, _ := filepath.Glob(filepath.Join(filepath.Dir(filepath.Join(v.Root(), p)), tempPattern))
	if len(leftovers) != 0 {
		t.Errorf("temp files left behind: %v", leftovers)
	}
}

func TestFS_Exists(t *testing.T) {
	v := newVault(t)
	_ = v.Write("Concepts/Goroutine.md", []byte("x"))

	cases := map[string]bool{
		"Concepts/Goroutine.md": true,
		"Concepts/Channel.md":   false,
		"Concepts":              false,
	}
	for p, want := range cases {
		got, err := v.Exists(p)
		if err != nil {
			t.Fatalf("Exists(%q): %v", p, err)
		}
		if got != want {
			t.Errorf("Exists(%q) = %v, want %v", p, got, want)
		}
	}
}

func TestFS_ListSkipsHidden(t *testing.T) {
	v := newVault(t)
	for _, p := range []string{
		"Concepts/Goroutine.md",
		"Sources/YouTube/Tech Talks/Tech Talks.md",
		".obsidian/workspace.md",
		".trash/Old.md",
		"Concepts/.draft.md",
		"Concepts/diagram.png",
	} {
		if err := v.Write(p, []byte(p)); err != nil {
			t.Fatalf("Write(%q): %v", p, err)
		}
	}

	items, err := v.List("", ".md")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	var paths []string
	for _, it := range items {
		paths = append(paths, it.Path)
	}
	want := "Concepts/Goroutine.md,Sources/YouTube/Tech Talks/Tech Talks.md"
	if got := strings.Join(paths, ","); got != want {
		t.Errorf("List = %q, want %q", got, want)
	}
	if items[0].Checksum != Checksum([]byte("Concepts/Goroutine.md")) {
		t.Errorf("checksum = %q", items[0].Checksum)
	}
	if items[0].UpdatedAt.IsZero() {
		t.Error("UpdatedAt not set")
	}
}

func TestFS_ListMissingDir(t *testing.T) {
	items, err := newVault(t).List("transcripts", ".json")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(items) != 0 {
		t.Errorf("len = %d, want 0", len(items))
	}
}

func TestFS_Rel(t *testing.T) {
	v := newVault(t)
	cases := []struct {
		abs  string
		want string
		ok   bool
	}{
		{filepath.Join(v.Root(), "Concepts", "Goroutine.md"), "Concepts/Goroutine.md", true},
		{v.Root(), "", false},
		{filepath.Join(filepath.Dir(v.Root()), "elsewhere.md"), "", false},
	}
	for _, tc := range cases {
		got, ok := v.Rel(tc.abs)
		if got != tc.want || ok != tc.ok {
			t.Errorf("Rel(%q) = %q, %v, want %q, %v", tc.abs, got, ok, tc.want, tc.ok)
		}
	}
}

func TestFS_EscapingPathsRejected(t *testing.T) {
	v := newVault(t)
	for _, p := range []string{"../outside.md", "Concepts/../../x.md", "/etc/passwd"} {
		if _, err := v.Read(p); err == nil {
			t.Errorf("Read(%q) succeeded", p)
		}
		if err := v.Write(p, []byte("x")); err == nil {
			t.Errorf("Write(%q) succeeded", p)
		}
	}
	// A name that merely starts with dots stays inside the root.
	if err := v.Write("..notes.md", []byte("x")); err != nil {
		t.Errorf("Write(..notes.md): %v", err)
	}
}

func TestHidden(t *testing.T) {
	for name, want := range map[string]bool{
		".obsidian":      true,
		".study-tmp-123": true,
		"Concepts":       false,
		"Intro to Go.md": false,
	} {
		if got := Hidden(name); got != want {
			t.Errorf("Hidden(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestWriteFileAtomic_CreatesParents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "state.json")
	if err := WriteFileAtomic(path, []byte("{}")); err != nil {
		t.Fatalf("WriteFileAtomic: %v", err)
	}
	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(got) != "{}" {
		t.Errorf("content = %q", got)
	}
}

func TestNewFS_Errors(t *testing.T) {
	if _, err := NewFS(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("NewFS on missing dir: want error")
	}
	file := filepath.Join(t.TempDir(), "file")
	_ = os.WriteFile(file, nil, 0o644)
	if _, err := NewFS(file); err == nil {
		t.Error("NewFS on a file: want error")
	}
}

func TestEnsureFS_CreatesRoot(t *testing.T) {
	root := filepath.Join(t.TempDir(), "vault")
	v, err := EnsureFS(root)
	if err != nil {
		t.Fatalf("EnsureFS: %v", err)
	}
	if v.Root() != root {
		t.Errorf("Root = %q, want %q", v.Root(), root)
	}
}
