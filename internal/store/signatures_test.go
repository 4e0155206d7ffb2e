package store

import (
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func TestSignatureStoreGetRefreshesRecency(t *testing.T) {
	now := time.Now()
	clock := func() time.Time { return now }
	s := NewSignatureStore(WithCapacity(2), WithTTL(time.Hour), withClock(clock))

	s.Put("a", "sig-a")
	now = now.Add(10 * time.Minute)
	s.Put("b", "sig-b")

	// Touch a so b becomes the stalest entry.
	now = now.Add(10 * time.Minute)
	if sig, ok := s.Get("a"); !ok || sig != "sig-a" {
		t.Fatalf("Get(a) = %q, %v", sig, ok)
	}

	now = now.Add(time.Minute)
	s.Put("c", "sig-c")
	if _, ok := s.Get("b"); ok {
		t.Fatal("b should have been evicted as stalest")
	}
	if _, ok := s.Get("a"); !ok {
		t.Fatal("a should survive; its read refreshed recency")
	}
}

func TestSignatureStoreTTLExpiry(t *testing.T) {
	now := time.Now()
	clock := func() time.Time { return now }
	s := NewSignatureStore(WithTTL(time.Minute), withClock(clock))

	s.Put("session", "sig")
	now = now.Add(2 * time.Minute)
	if _, ok := s.Get("session"); ok {
		t.Fatal("expired entry returned")
	}
	if s.Len() != 0 {
		t.Fatalf("expired entry not dropped, len = %d", s.Len())
	}
}

func TestSignatureStoreUpdateKeepsSingleEntry(t *testing.T) {
	s := NewSignatureStore(WithCapacity(1))
	s.Put("k", "one")
	s.Put("k", "two")
	if s.Len() != 1 {
		t.Fatalf("len = %d", s.Len())
	}
	if sig, _ := s.Get("k"); sig != "two" {
		t.Fatalf("sig = %q", sig)
	}
}

func TestSignatureStorePersistence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "signatures.json")
	s := NewSignatureStore(WithPersistence(path))
	s.Put("session-1", "sig-1")
	s.Put("session-2", "sig-2")
	if err := s.Save(); err != nil {
		t.Fatal(err)
	}

	reloaded := NewSignatureStore(WithPersistence(path))
	if sig, ok := reloaded.Get("session-1"); !ok || sig != "sig-1" {
		t.Fatalf("reloaded Get = %q, %v", sig, ok)
	}
	if reloaded.Len() != 2 {
		t.Fatalf("reloaded len = %d", reloaded.Len())
	}
}

func TestSignatureStoreSaveDuringTraffic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "signatures.json")
	s := NewSignatureStore(WithPersistence(path))
	for i := 0; i < 32; i++ {
		s.Put(fmt.Sprintf("session-%d", i), "sig")
	}

	// Get refreshes recency on live entries, so saving while readers and
	// writers run must not observe those updates mid-marshal.
	var wg sync.WaitGroup
	stop := make(chan struct{})
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; ; i++ {
				select {
				case <-stop:
					return
				default:
				}
				key := fmt.Sprintf("session-%d", i%32)
				s.Get(key)
				s.Put(key, fmt.Sprintf("sig-%d-%d", w, i))
			}
		}(w)
	}
	for i := 0; i < 50; i++ {
		if err := s.Save(); err != nil {
			t.Fatal(err)
		}
	}
	close(stop)
	wg.Wait()
}

func TestSignatureStorePersistenceDropsExpired(t *testing.T) {
	path := filepath.Join(t.TempDir(), "signatures.json")
	now := time.Now()
	clock := func() time.Time { return now }
	s := NewSignatureStore(WithPersistence(path), WithTTL(time.Minute), withClock(clock))
	s.Put("old", "sig")
	if err := s.Save(); err != nil {
		t.Fatal(err)
	}

	later := now.Add(time.Hour)
	reloaded := NewSignatureStore(WithPersistence(path), WithTTL(time.Minute), withClock(func() time.Time { return later }))
	if reloaded.Len() != 0 {
		t.Fatalf("expired snapshot entry loaded, len = %d", reloaded.Len())
	}
}
