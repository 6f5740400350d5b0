package cache

import "testing"

func TestArtifactCacheEviction(t *testing.T) {
	c := NewArtifactCache(2)

	c.Put("job-a/md", []byte("a"))
	c.Put("job-b/md", []byte("b"))

	// Touch job-a so job-b becomes the eviction candidate.
	if _, ok := c.Get("job-a/md"); !ok {
		t.Fatalf("expected job-a/md to be cached")
	}

	c.Put("job-c/md", []byte("c"))

	if _, ok := c.Get("job-b/md"); ok {
		t.Fatalf("expected job-b/md to be evicted")
	}
	if _, ok := c.Get("job-a/md"); !ok {
		t.Fatalf("expected job-a/md to survive eviction")
	}
	if _, ok := c.Get("job-c/md"); !ok {
		t.Fatalf("expected job-c/md to be cached")
	}
}

func TestArtifactCacheUpdateExisting(t *testing.T) {
	c := NewArtifactCache(2)

	c.Put("job-a/pdf", []byte("v1"))
	c.Put("job-a/pdf", []byte("v2"))

	data, ok := c.Get("job-a/pdf")
	if !ok {
		t.Fatalf("expected entry to exist")
	}
	if string(data) != "v2" {
		t.Fatalf("expected updated payload, got %q", data)
	}
	if c.Len() != 1 {
		t.Fatalf("expected single entry, got %d", c.Len())
	}
}

func TestArtifactCacheInvalidatePrefix(t *testing.T) {
	c := NewArtifactCache(4)

	c.Put("job-a/md", []byte("a"))
	c.Put("job-a/pdf", []byte("a"))
	c.Put("job-b/md", []byte("b"))

	c.Invalidate("job-a/")

	if _, ok := c.Get("job-a/md"); ok {
		t.Fatalf("expected job-a/md to be invalidated")
	}
	if _, ok := c.Get("job-a/pdf"); ok {
		t.Fatalf("expected job-a/pdf to be invalidated")
	}
	if _, ok := c.Get("job-b/md"); !ok {
		t.Fatalf("expected job-b/md to survive invalidation")
	}
}
