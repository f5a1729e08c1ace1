package utils

import (
	"sync"
	"time"
)

// WindowStore keeps one SlidingWindow per (guild, actor). All access goes
// through the store lock, so a sweep can never orphan a window that a
// concurrent Add is writing to.
type WindowStore struct {
	mu      sync.Mutex
	window  time.Duration
	windows map[string]map[string]*SlidingWindow
}

func NewWindowStore(window time.Duration) *WindowStore {
	return &WindowStore{window: window, windows: make(map[string]map[string]*SlidingWindow)}
}

func (s *WindowStore) Add(guildID, actorID string, now time.Time) int {
	return s.AddWithin(guildID, actorID, now, s.window)
}

func (s *WindowStore) AddWithin(guildID, actorID string, now time.Time, window time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	guild := s.windows[guildID]
	if guild == nil {
		guild = make(map[string]*SlidingWindow)
		s.windows[guildID] = guild
	}
	w := guild[actorID]
	if w == nil {
		w = NewSlidingWindow(window)
		guild[actorID] = w
	}
	return w.AddWithin(now, window)
}

// Count trims the key to the trailing window ending at now and returns what
// is left. Callers pass the window in force for the guild, as with AddWithin.
func (s *WindowStore) Count(guildID, actorID string, now time.Time, window time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	w := s.windows[guildID][actorID]
	if w == nil {
		return 0
	}
	return w.Prune(now, window)
}

// Sweep drops hits older than maxAge from every window and forgets windows
// and guilds left empty. It returns the number of keys removed.
func (s *WindowStore) Sweep(now time.Time, maxAge time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for guildID, guild := range s.windows {
		for actorID, w := range guild {
			if w.Prune(now, maxAge) == 0 {
				delete(guild, actorID)
				removed++
			}
		}
		if len(guild) == 0 {
			delete(s.windows, guildID)
		}
	}
	return removed
}

// Clear forgets one guild, or every guild when guildID is empty.
func (s *WindowStore) Clear(guildID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if guildID == "" {
		s.windows = make(map[string]map[string]*SlidingWindow)
		return
	}
	delete(s.windows, guildID)
}

// Len reports the number of tracked (guild, actor) keys.
func (s *WindowStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	total := 0
	for _, guild := range s.windows {
		total += len(guild)
	}
	return total
}
