package noteservice

import (
	"context"
	"errors"
	"testing"

	"github.com/starford/study/internal/apperr"
	"github.com/starford/study/internal/index"
	"github.com/starford/study/internal/testutil"
)

func testService(t *testing.T) (*Service, testutil.Seeded) {
	t.Helper()
	_, store := testutil.TestVault(t)
	db := testutil.TestDB(t)
	seeded := testutil.Seed(t, store, db)
	return NewService(store, db, seeded.StatePath), seeded
}

func TestGetNote_VideoNote(t *testing.T) {
	svc, seeded := testService(t)

	n, err := svc.GetNote(context.Background(), seeded.VideoPath)
	if err != nil {
		t.Fatalf("GetNote: %v", err)
	}
	if n.Kind != "youtube_video" || n.Title != "Intro to Go" {
		t.Errorf("note = %+v", n)
	}
	if n.Frontmatter["video_id"] != "vid1" {
		t.Errorf("video_id = %v", n.Frontmatter["video_id"])
	}
	if len(n.Links) == 0 {
		t.Error("links should include the concepts")
	}
	// Concept and channel notes link back to the video.
	if len(n.Backlinks) != 3 {
		t.Errorf("backlinks = %v, want 3", n.Backlinks)
	}
}

func TestGetNote_NotFound(t *testing.T) {
	svc, _ := testService(t)
	_, err := svc.GetNote(context.Background(), "Concepts/Missing.md")
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestListNotes_ByKind(t *testing.T) {
	svc, seeded := testService(t)

	items, total, err := svc.ListNotes(context.Background(), index.ListFilter{Kind: "youtube_channel"})
	if err != nil {
		t.Fatal(err)
	}
	if total != 1 || items[0].Path != seeded.ChannelPath {
		t.Errorf("channels = %+v (total %d)", items, total)
	}
	if items[0].Tags == nil {
		t.Error("tags should never be nil")
	}
}

func TestBacklinks_ExcludesSelf(t *testing.T) {
	svc, seeded := testService(t)

	bl, err := svc.Backlinks(context.Background(), seeded.Concepts["Channel"])
	if err != nil {
		t.Fatal(err)
	}
	if len(bl) != 1 || bl[0] != seeded.VideoPath {
		t.Errorf("backlinks = %v, want [%s]", bl, seeded.VideoPath)
	}
}

func TestBacklinks_UnindexedNoteIsEmpty(t *testing.T) {
	svc, _ := testService(t)

	bl, err := svc.Backlinks(context.Background(), "Inbox/new.md")
	if err != nil {
		t.Fatal(err)
	}
	if bl == nil || len(bl) != 0 {
		t.Errorf("backlinks = %#v, want empty slice", bl)
	}
}

func TestSearch_NonNil(t *testing.T) {
	svc, _ := testService(t)

	res, err := svc.Search(context.Background(), "zzz-no-match", 5)
	if err != nil {
		t.Fatal(err)
	}
	if res == nil {
		t.Error("search should return an empty slice, not nil")
	}
}

func TestItems(t *testing.T) {
	svc, seeded := testService(t)
	ctx := context.Background()

	items, err := svc.Items(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 2 {
		t.Fatalf("items = %+v", items)
	}
	done, pending := items[0], items[1]
	if done.ItemID != "vid1" || !done.NotesGenerated || done.NotePath != seeded.VideoPath {
		t.Errorf("vid1 = %+v", done)
	}
	if pending.ItemID != "vid2" || !pending.TranscriptExtracted || pending.Enriched || pending.NotePath != "" {
		t.Errorf("vid2 = %+v", pending)
	}

	p, err := svc.PendingItems(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(p) != 1 || p[0].ItemID != "vid2" {
		t.Errorf("pending = %+v", p)
	}

	if _, err := svc.Item(ctx, "nope"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("unknown item err = %v", err)
	}
}

func TestItems_MissingStateFileIsEmpty(t *testing.T) {
	_, store := testutil.TestVault(t)
	db := testutil.TestDB(t)
	svc := NewService(store, db, t.TempDir()+"/processing_state.json")

	items, err := svc.Items(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 0 {
		t.Errorf("items = %+v", items)
	}
}
