package utils

import (
	"sort"
	"sync"
	"time"
)

type SlidingWindow struct {
	mu     sync.Mutex
	window time.Duration
	hits   []time.Time
}

func NewSlidingWindow(window time.Duration) *SlidingWindow {
	return &SlidingWindow{window: window}
}

func (w *SlidingWindow) Add(now time.Time) int {
	return w.AddWithin(now, w.window)
}

// AddWithin records now and returns how many hits fall inside the trailing
// window ending at the newest hit. Insert, trim and count happen under one
// lock. Hits stay sorted even when callers race and arrive out of order.
func (w *SlidingWindow) AddWithin(now time.Time, window time.Duration) int {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.insertLocked(now)
	w.trimLocked(w.hits[len(w.hits)-1].Add(-window))
	return len(w.hits)
}

func (w *SlidingWindow) insertLocked(hit time.Time) {
	idx := sort.Search(len(w.hits), func(i int) bool { return w.hits[i].After(hit) })
	w.hits = append(w.hits, time.Time{})
	copy(w.hits[idx+1:], w.hits[idx:])
	w.hits[idx] = hit
}

func (w *SlidingWindow) Count(now time.Time) int {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.trimLocked(now.Add(-w.window))
	return len(w.hits)
}

// Prune drops hits older than maxAge and reports how many remain.
func (w *SlidingWindow) Prune(now time.Time, maxAge time.Duration) int {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.trimLocked(now.Add(-maxAge))
	return len(w.hits)
}

// trimLocked relies on hits being sorted oldest first.
func (w *SlidingWindow) trimLocked(cutoff time.Time) {
	idx := 0
	for _, hit := range w.hits {
		if hit.After(cutoff) {
			break
		}
		idx++
	}
	if idx == 0 {
		return
	}
	remaining := make([]time.Time, len(w.hits)-idx)
	copy(remaining, w.hits[idx:])
	w.hits = remaining
}
