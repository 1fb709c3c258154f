package urlsync

import (
	"maps"
	"slices"
	"sync"
)

// WriteMode tells how a location entry was written.
type WriteMode string

const (
	WritePush    WriteMode = "push"
	WriteReplace WriteMode = "replace"
)

// Location is the address bar. Push and Replace come from the application
// and do not reach listeners; only user navigation does.
type Location interface {
	Current() string
	Push(rawQuery string)
	Replace(rawQuery string)
	// Listen registers fn for user navigation and returns a function that
	// removes it.
	Listen(fn func(rawQuery string)) func()
}

// MemoryLocation is an in-memory Location with a browser-like history.
type MemoryLocation struct {
	mu        sync.Mutex
	entries   []string
	index     int
	listeners map[int]func(string)
	nextID    int
	onWrite   func(rawQuery string, mode WriteMode)
}

func NewMemoryLocation(initial string) *MemoryLocation {
	return &MemoryLocation{
		entries:   []string{initial},
		listeners: map[int]func(string){},
	}
}

// OnWrite registers a hook called after every application write.
func (l *MemoryLocation) OnWrite(fn func(rawQuery string, mode WriteMode)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onWrite = fn
}

func (l *MemoryLocation) Current() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.entries[l.index]
}

func (l *MemoryLocation) Push(rawQuery string) {
	l.mu.Lock()
	l.pushLocked(rawQuery)
	hook := l.onWrite
	l.mu.Unlock()
	if hook != nil {
		hook(rawQuery, WritePush)
	}
}

func (l *MemoryLocation) Replace(rawQuery string) {
	l.mu.Lock()
	l.entries[l.index] = rawQuery
	hook := l.onWrite
	l.mu.Unlock()
	if hook != nil {
		hook(rawQuery, WriteReplace)
	}
}

func (l *MemoryLocation) pushLocked(rawQuery string) {
	l.entries = append(l.entries[:l.index+1], rawQuery)
	l.index++
}

func (l *MemoryLocation) Listen(fn func(rawQuery string)) func() {
	l.mu.Lock()
	defer l.mu.Unlock()
	id := l.nextID
	l.nextID++
	l.listeners[id] = fn
	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.listeners, id)
	}
}

// Navigate simulates the user entering rawQuery.
func (l *MemoryLocation) Navigate(rawQuery string) {
	l.mu.Lock()
	l.pushLocked(rawQuery)
	l.mu.Unlock()
	l.emit(rawQuery)
}

// Back moves one entry back and reports whether it could.
func (l *MemoryLocation) Back() bool {
	return l.move(-1)
}

func (l *MemoryLocation) Forward() bool {
	return l.move(1)
}

func (l *MemoryLocation) move(step int) bool {
	l.mu.Lock()
	next := l.index + step
	if next < 0 || next >= len(l.entries) {
		l.mu.Unlock()
		return false
	}
	l.index = next
	current := l.entries[next]
	l.mu.Unlock()
	l.emit(current)
	return true
}

// Len is the number of history entries.
func (l *MemoryLocation) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

func (l *MemoryLocation) emit(rawQuery string) {
	l.mu.Lock()
	fns := make([]func(string), 0, len(l.listeners))
	for _, id := range slices.Sorted(maps.Keys(l.listeners)) {
		fns = append(fns, l.listeners[id])
	}
	l.mu.Unlock()
	for _, fn := range fns {
		fn(rawQuery)
	}
}
