package moderation

import (
	"sync"
	"testing"
)

func TestGuardSingleHolder(t *testing.T) {
	t.Parallel()

	guard := NewProcessingGuard()
	key := MessageKey(42, 7)

	if !guard.TryAcquire(key) {
		t.Fatal("first acquire must succeed")
	}
	if guard.TryAcquire(key) {
		t.Fatal("second acquire of a held key must fail")
	}

	guard.Release(key)
	if !guard.TryAcquire(key) {
		t.Fatal("acquire after release must succeed")
	}
}

func TestGuardIndependentKeys(t *testing.T) {
	t.Parallel()

	guard := NewProcessingGuard()
	if !guard.TryAcquire(MessageKey(1, 1)) {
		t.Fatal("acquire failed")
	}
	if !guard.TryAcquire(MessageKey(1, 2)) {
		t.Fatal("different message in the same chat must not conflict")
	}
	if !guard.TryAcquire(MessageKey(2, 1)) {
		t.Fatal("same message id in a different chat must not conflict")
	}
}

func TestGuardConcurrentAcquire(t *testing.T) {
	t.Parallel()

	guard := NewProcessingGuard()
	key := MessageKey(42, 7)

	const workers = 64
	var wg sync.WaitGroup
	acquired := make(chan struct{}, workers)

	for n := 0; n < workers; n++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if guard.TryAcquire(key) {
				acquired <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(acquired)

	winners := 0
	for range acquired {
		winners++
	}
	if winners != 1 {
		t.Fatalf("got %d winners, want exactly 1", winners)
	}
}

func TestGuardReleaseUnknownKeyIsNoop(t *testing.T) {
	t.Parallel()

	guard := NewProcessingGuard()
	guard.Release(MessageKey(9, 9))
	if !guard.TryAcquire(MessageKey(9, 9)) {
		t.Fatal("acquire failed")
	}
}
