// Package reassembly holds partial concatenated SMS messages until all
// segments have arrived, bounded in both size and age.
package reassembly

import (
	"sort"
	"sync"
	"time"
)

const (
	// MaxRecords is the largest number of in-flight reassemblies the store
	// will hold at once; the oldest (by ReceivedAt) is evicted on overflow.
	MaxRecords = 100

	// TTL is how long a record may sit incomplete before it is evicted on
	// the next insertion.
	TTL = time.Hour
)

// Key identifies a concatenated SMS by originator and concatenation
// reference, per spec ReassemblyKey.
type Key struct {
	Sender    string
	Reference uint16
}

type record struct {
	total      uint8
	parts      map[uint8]string
	receivedAt time.Time
}

// Store is a bounded, TTL-evicting map of in-flight concatenated SMS
// reassemblies. It is single-writer: the NewSmsHandler is the only caller
// that mutates it, so the mutex here guards against incidental concurrent
// reads (e.g. diagnostics) rather than writer contention.
type Store struct {
	mu      sync.Mutex
	records map[Key]*record
	now     func() time.Time
}

// New creates an empty Store using the wall clock.
func New() *Store {
	return NewWithClock(time.Now)
}

// NewWithClock creates an empty Store using now as its clock, for
// deterministic testing of TTL behaviour.
func NewWithClock(now func() time.Time) *Store {
	return &Store{
		records: make(map[Key]*record),
		now:     now,
	}
}

// Insert adds one segment of a concatenated SMS. It evicts any record older
// than TTL, then evicts the oldest record if the store would otherwise
// exceed MaxRecords, before admitting the new segment.
//
// It returns the concatenated content and true once every part from 1..total
// has been received; at that point the record is removed. Otherwise it
// returns ("", false) and the record remains pending.
func (s *Store) Insert(key Key, total uint8, partNumber uint8, content string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.evictExpiredLocked(now)

	rec, ok := s.records[key]
	if !ok {
		if len(s.records) >= MaxRecords {
			s.evictOldestLocked()
		}
		rec = &record{
			total:      total,
			parts:      make(map[uint8]string),
			receivedAt: now,
		}
		s.records[key] = rec
	}
	rec.parts[partNumber] = content

	if uint8(len(rec.parts)) < rec.total {
		return "", false
	}
	combined := make([]byte, 0, len(rec.parts)*160)
	for n := uint8(1); n <= rec.total; n++ {
		combined = append(combined, rec.parts[n]...)
	}
	delete(s.records, key)
	return string(combined), true
}

// Len reports the number of in-flight reassemblies currently held.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

func (s *Store) evictExpiredLocked(now time.Time) {
	for k, rec := range s.records {
		if now.Sub(rec.receivedAt) > TTL {
			delete(s.records, k)
		}
	}
}

func (s *Store) evictOldestLocked() {
	var oldestKey Key
	var oldestTime time.Time
	first := true
	for k, rec := range s.records {
		if first || rec.receivedAt.Before(oldestTime) {
			oldestKey = k
			oldestTime = rec.receivedAt
			first = false
		}
	}
	if !first {
		delete(s.records, oldestKey)
	}
}

// keysOldestFirst returns the store's keys ordered oldest-first; used only by
// tests.
func (s *Store) keysOldestFirst() []Key {
	type kv struct {
		k Key
		t time.Time
	}
	kvs := make([]kv, 0, len(s.records))
	for k, rec := range s.records {
		kvs = append(kvs, kv{k, rec.receivedAt})
	}
	sort.Slice(kvs, func(i, j int) bool { return kvs[i].t.Before(kvs[j].t) })
	out := make([]Key, len(kvs))
	for i, e := range kvs {
		out[i] = e.k
	}
	return out
}
