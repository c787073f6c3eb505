package stanza

import (
	"testing"
	"time"
)

func TestPostCacheServesAndInvalidates(t *testing.T) {
	s := setupTestStore(t)
	if err := s.SyncPosts(testPosts()); err != nil {
		t.Fatalf("SyncPosts failed: %v", err)
	}
	cache := NewPostCache(s, time.Minute)

	posts, err := cache.ListPosts("")
	if err != nil {
		t.Fatalf("ListPosts failed: %v", err)
	}
	if len(posts) != 2 {
		t.Fatalf("got %d posts, want 2", len(posts))
	}

	tags, err := cache.ListTags()
	if err != nil {
		t.Fatalf("ListTags failed: %v", err)
	}
	if len(tags) != 3 {
		t.Errorf("ListTags = %v", tags)
	}

	post, err := cache.GetPost("rsa")
	if err != nil {
		t.Fatalf("GetPost failed: %v", err)
	}
	if post.Title != "RSA" {
		t.Errorf("Title = %q", post.Title)
	}
	if _, err := cache.GetPost("nope"); err != ErrNotFound {
		t.Errorf("GetPost(nope) err = %v, want ErrNotFound", err)
	}

	// Stale reads until the index change is followed by an invalidation.
	if err := s.SyncPosts(testPosts()[:1]); err != nil {
		t.Fatalf("SyncPosts failed: %v", err)
	}
	posts, err = cache.ListPosts("")
	if err != nil {
		t.Fatal(err)
	}
	if len(posts) != 2 {
		t.Fatalf("cache should still serve the old snapshot, got %d", len(posts))
	}

	cache.Invalidate()
	posts, err = cache.ListPosts("")
	if err != nil {
		t.Fatal(err)
	}
	if len(posts) != 1 {
		t.Fatalf("after invalidation got %d posts, want 1", len(posts))
	}
}

func TestPostCacheFiltersByTag(t *testing.T) {
	s := setupTestStore(t)
	if err := s.SyncPosts(testPosts()); err != nil {
		t.Fatalf("SyncPosts failed: %v", err)
	}
	cache := NewPostCache(s, time.Minute)

	posts, err := cache.ListPosts("crypto")
	if err != nil {
		t.Fatal(err)
	}
	if len(posts) != 1 || posts[0].Slug != "rsa" {
		t.Errorf("ListPosts(crypto) = %v", posts)
	}
}
