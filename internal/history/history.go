package history

import (
	"math"
	"sync"
	"time"
)

// Capacity is the number of entries a Buffer keeps before evicting the oldest.
const Capacity = 20

type Entry struct {
	NaturalLanguage string    `json:"natural_language"`
	SQL             string    `json:"sql"`
	DatabaseName    string    `json:"database"`
	Provider        string    `json:"provider"`
	Model           string    `json:"model"`
	ElapsedSeconds  float64   `json:"elapsed_seconds"`
	RowCount        int       `json:"row_count"`
	CreatedAt       time.Time `json:"created_at"`
}

type Stats struct {
	Total             int     `json:"total"`
	AvgElapsedSeconds float64 `json:"avg_elapsed_seconds"`
}

// Buffer is a fixed-capacity FIFO of entries, safe for concurrent use.
type Buffer struct {
	mu      sync.Mutex
	entries []Entry
	start   int
	size    int
}

func NewBuffer() *Buffer {
	return &Buffer{entries: make([]Entry, Capacity)}
}

func (b *Buffer) Append(entry Entry) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.entries == nil {
		b.entries = make([]Entry, Capacity)
	}
	if b.size < Capacity {
		b.entries[(b.start+b.size)%Capacity] = entry
		b.size++
		return
	}
	b.entries[b.start] = entry
	b.start = (b.start + 1) % Capacity
}

// Entries returns a copy of the buffer, oldest first.
func (b *Buffer) Entries() []Entry {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Entry, b.size)
	for i := 0; i < b.size; i++ {
		out[i] = b.entries[(b.start+i)%Capacity]
	}
	return out
}

// Get returns the entry at index, where 0 is the oldest retained entry.
func (b *Buffer) Get(index int) (Entry, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if index < 0 || index >= b.size {
		return Entry{}, false
	}
	return b.entries[(b.start+index)%Capacity], true
}

func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.size
}

// Stats averages elapsed time over the retained entries, rounded to millis.
func (b *Buffer) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	stats := Stats{Total: b.size}
	if b.size == 0 {
		return stats
	}
	var sum float64
	for i := 0; i < b.size; i++ {
		sum += b.entries[(b.start+i)%Capacity].ElapsedSeconds
	}
	stats.AvgElapsedSeconds = math.Round(sum/float64(b.size)*1000) / 1000
	return stats
}
