package stanza

import (
	"path/filepath"
	"reflect"
	"testing"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "index.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testPosts() []Post {
	return []Post{
		{
			Slug: "rsa", Year: "2023", Path: "2023/rsa.md",
			Title: "RSA", Date: "2023-04-02",
			Tags: []string{"crypto", "math"}, Summary: "RSA explained",
			Content: "# RSA\n\nBody.", Math: true,
		},
		{
			Slug: "go-slices", Year: "2023", Path: "2023/go-slices.md",
			Title: "Go slices", Date: "2023-06-10",
			Tags: []string{"go"}, Summary: "Slice internals",
			Content: "Body.",
		},
		{
			Slug: "wip", Year: "2024", Path: "2024/wip.md",
			Title: "Work in progress", Date: "2024-01-05",
			Tags: []string{"go"}, Summary: "",
			Content: "Draft body.", Draft: true,
		},
	}
}

func TestSyncAndListPosts(t *testing.T) {
	s := setupTestStore(t)
	if err := s.SyncPosts(testPosts()); err != nil {
		t.Fatalf("SyncPosts failed: %v", err)
	}

	posts, err := s.ListPosts("")
	if err != nil {
		t.Fatalf("ListPosts failed: %v", err)
	}
	if len(posts) != 2 {
		t.Fatalf("got %d published posts, want 2", len(posts))
	}
	// Newest first.
	if posts[0].Slug != "go-slices" || posts[1].Slug != "rsa" {
		t.Errorf("unexpected order: %s, %s", posts[0].Slug, posts[1].Slug)
	}
	if !reflect.DeepEqual(posts[1].Tags, []string{"crypto", "math"}) {
		t.Errorf("Tags = %v", posts[1].Tags)
	}
	if !posts[1].Math {
		t.Error("Math flag lost in round trip")
	}
	if posts[0].Link != "/posts/go-slices/" {
		t.Errorf("Link = %q", posts[0].Link)
	}
}

func TestListPostsByTag(t *testing.T) {
	s := setupTestStore(t)
	if err := s.SyncPosts(testPosts()); err != nil {
		t.Fatalf("SyncPosts failed: %v", err)
	}

	posts, err := s.ListPosts("crypto")
	if err != nil {
		t.Fatalf("ListPosts failed: %v", err)
	}
	if len(posts) != 1 || posts[0].Slug != "rsa" {
		t.Errorf("ListPosts(crypto) = %v", posts)
	}

	// Tag matching is whole-tag: "cry" must not match "crypto".
	posts, err = s.ListPosts("cry")
	if err != nil {
		t.Fatalf("ListPosts failed: %v", err)
	}
	if len(posts) != 0 {
		t.Errorf("ListPosts(cry) = %v, want empty", posts)
	}
}

func TestListDrafts(t *testing.T) {
	s := setupTestStore(t)
	if err := s.SyncPosts(testPosts()); err != nil {
		t.Fatalf("SyncPosts failed: %v", err)
	}

	drafts, err := s.ListDrafts()
	if err != nil {
		t.Fatalf("ListDrafts failed: %v", err)
	}
	if len(drafts) != 1 || drafts[0].Slug != "wip" {
		t.Errorf("ListDrafts = %v", drafts)
	}
}

func TestListTags(t *testing.T) {
	s := setupTestStore(t)
	if err := s.SyncPosts(testPosts()); err != nil {
		t.Fatalf("SyncPosts failed: %v", err)
	}

	tags, err := s.ListTags()
	if err != nil {
		t.Fatalf("ListTags failed: %v", err)
	}
	// Draft-only tags are not listed; "go" also appears on a published post.
	want := []string{"crypto", "go", "math"}
	if !reflect.DeepEqual(tags, want) {
		t.Errorf("ListTags = %v, want %v", tags, want)
	}
}

func TestGetPost(t *testing.T) {
	s := setupTestStore(t)
	if err := s.SyncPosts(testPosts()); err != nil {
		t.Fatalf("SyncPosts failed: %v", err)
	}

	post, err := s.GetPost("rsa")
	if err != nil {
		t.Fatalf("GetPost failed: %v", err)
	}
	if post.Title != "RSA" {
		t.Errorf("Title = %q", post.Title)
	}

	// Drafts are invisible to GetPost but visible to GetPostAny.
	if _, err := s.GetPost("wip"); err == nil {
		t.Error("GetPost should not return drafts")
	}
	draft, err := s.GetPostAny("wip")
	if err != nil {
		t.Fatalf("GetPostAny failed: %v", err)
	}
	if !draft.Draft {
		t.Error("GetPostAny should return the draft")
	}
}

func TestSyncPostsRemovesDeleted(t *testing.T) {
	s := setupTestStore(t)
	if err := s.SyncPosts(testPosts()); err != nil {
		t.Fatalf("SyncPosts failed: %v", err)
	}

	// Resync with one post gone.
	if err := s.SyncPosts(testPosts()[:2]); err != nil {
		t.Fatalf("SyncPosts failed: %v", err)
	}
	if _, err := s.GetPostAny("wip"); err == nil {
		t.Error("removed post should be gone from the index")
	}

	// Empty tree empties the index.
	if err := s.SyncPosts(nil); err != nil {
		t.Fatalf("SyncPosts(nil) failed: %v", err)
	}
	posts, err := s.ListPosts("")
	if err != nil {
		t.Fatalf("ListPosts failed: %v", err)
	}
	if len(posts) != 0 {
		t.Errorf("index should be empty, got %v", posts)
	}
}

func TestEncodeDecodeTags(t *testing.T) {
	tests := []struct {
		tags    []string
		encoded string
	}{
		{[]string{"go", "web"}, ",go,web,"},
		{[]string{"Go"}, ",go,"},
		{nil, ",,"},
	}
	for _, tt := range tests {
		if got := encodeTags(tt.tags); got != tt.encoded {
			t.Errorf("encodeTags(%v) = %q, want %q", tt.tags, got, tt.encoded)
		}
	}
	if got := decodeTags(",go,web,"); !reflect.DeepEqual(got, []string{"go", "web"}) {
		t.Errorf("decodeTags = %v", got)
	}
	if got := decodeTags(",,"); got != nil {
		t.Errorf("decodeTags(empty) = %v, want nil", got)
	}
}
