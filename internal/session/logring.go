package session

import "github.com/agenciai/agx/internal/model"

// logRing is a fixed capacity log that drops the oldest entry when full.
type logRing struct {
	entries []model.LogEntry
	start   int
	size    int
}

func newLogRing(capacity int) *logRing {
	return &logRing{entries: make([]model.LogEntry, capacity)}
}

func (l *logRing) add(e model.LogEntry) {
	c := len(l.entries)
	if l.size < c {
		l.entries[(l.start+l.size)%c] = e
		l.size++
		return
	}

	// Full, overwrite the oldest.
	l.entries[l.start] = e
	l.start = (l.start + 1) % c
}

// newestFirst returns a copy of the entries, newest first.
func (l *logRing) newestFirst() []model.LogEntry {
	out := make([]model.LogEntry, 0, l.size)
	c := len(l.entries)
	for i := l.size - 1; i >= 0; i-- {
		out = append(out, l.entries[(l.start+i)%c])
	}
	return out
}

func (l *logRing) len() int { return l.size }

func (l *logRing) reset() {
	clear(l.entries)
	l.start = 0
	l.size = 0
}
