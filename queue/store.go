package queue

import (
	"slices"
	"sync"
)

// Store owns every guild queue. Guild id is the only partition key; queues of
// different guilds never interact.
type Store struct {
	mutex         sync.RWMutex
	queues        map[string]*Queue
	defaultVolume int
}

func NewStore(defaultVolume int) *Store {
	if defaultVolume < 0 || defaultVolume > 100 {
		defaultVolume = 100
	}
	return &Store{
		queues:        make(map[string]*Queue),
		defaultVolume: defaultVolume,
	}
}

// Get returns the guild's queue, creating it with defaults on first access.
func (s *Store) Get(guildID string) *Queue {
	s.mutex.RLock()
	q, ok := s.queues[guildID]
	s.mutex.RUnlock()
	if ok {
		return q
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	if q, ok := s.queues[guildID]; ok {
		return q
	}
	q = newQueue(guildID, s.defaultVolume)
	s.queues[guildID] = q
	return q
}

// Lookup returns the guild's queue without creating it.
func (s *Store) Lookup(guildID string) (*Queue, bool) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	q, ok := s.queues[guildID]
	return q, ok
}

// Guilds lists the guild ids with a queue, sorted.
func (s *Store) Guilds() []string {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	ids := make([]string, 0, len(s.queues))
	for id := range s.queues {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}
