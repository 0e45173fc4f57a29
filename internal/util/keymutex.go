package util

import (
	"fmt"
	"sync"
)

// KeyMutex serializes writers per record identity so two simultaneous writes
// to the same score or result cannot interleave. Entries are reference-counted
// and removed once the last holder unlocks.
type KeyMutex struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

func NewKeyMutex() *KeyMutex {
	return &KeyMutex{locks: make(map[string]*keyLock)}
}

// Lock acquires the mutex for key and returns its release function.
func (k *KeyMutex) Lock(key string) func() {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &keyLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.mu.Lock()

	return func() {
		l.mu.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}

// ScoreKey identifies one score record: (student, subject, term, session).
func ScoreKey(studentID, subjectID uint, term, session string) string {
	return fmt.Sprintf("score:%d:%d:%s:%s", studentID, subjectID, term, session)
}

// ResultKey identifies one compiled result: (student, term, session).
func ResultKey(studentID uint, term, session string) string {
	return fmt.Sprintf("result:%d:%s:%s", studentID, term, session)
}

// CohortKey identifies a class-wide recomputation scope.
func CohortKey(classID uint, term, session string) string {
	return fmt.Sprintf("cohort:%d:%s:%s", classID, term, session)
}
