package util

import (
	"sync"
	"testing"
)

func TestKeyMutexSerializesSameKey(t *testing.T) {
	km := NewKeyMutex()
	counter := 0

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := km.Lock("same")
			counter++
			unlock()
		}()
	}
	wg.Wait()

	if counter != 100 {
		t.Errorf("counter = %d, want 100", counter)
	}
	if len(km.locks) != 0 {
		t.Errorf("lock table not drained: %d entries", len(km.locks))
	}
}

func TestKeyMutexIndependentKeys(t *testing.T) {
	km := NewKeyMutex()

	unlockA := km.Lock("a")
	done := make(chan struct{})
	go func() {
		unlockB := km.Lock("b")
		unlockB()
		close(done)
	}()
	<-done // must not block while "a" is held
	unlockA()
}

func TestKeyHelpers(t *testing.T) {
	if ScoreKey(1, 2, "first", "2025/2026") == ScoreKey(1, 3, "first", "2025/2026") {
		t.Error("different subjects must yield different score keys")
	}
	if ResultKey(1, "first", "2025/2026") == ResultKey(1, "second", "2025/2026") {
		t.Error("different terms must yield different result keys")
	}
	if CohortKey(1, "first", "2025/2026") == ScoreKey(1, 1, "first", "2025/2026") {
		t.Error("key namespaces must not collide")
	}
}
