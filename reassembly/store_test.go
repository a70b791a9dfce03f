package reassembly

import (
	"fmt"
	"testing"
	"time"
)

func TestStore_CompletesInAnyPermutation(t *testing.T) {
	orders := [][]uint8{
		{1, 2, 3},
		{3, 2, 1},
		{2, 3, 1},
	}
	for _, order := range orders {
		t.Run(fmt.Sprintf("%v", order), func(t *testing.T) {
			s := New()
			key := Key{Sender: "123", Reference: 42}
			parts := map[uint8]string{1: "foo", 2: "bar", 3: "baz"}

			var content string
			var complete bool
			for _, n := range order {
				content, complete = s.Insert(key, 3, n, parts[n])
			}
			if !complete {
				t.Fatalf("Insert did not complete after all parts delivered")
			}
			if content != "foobarbaz" {
				t.Errorf("content = %q, want foobarbaz", content)
			}
			if s.Len() != 0 {
				t.Errorf("Len() = %d, want 0 after completion", s.Len())
			}
		})
	}
}

func TestStore_IncompleteReturnsFalse(t *testing.T) {
	s := New()
	key := Key{Sender: "123", Reference: 1}
	_, complete := s.Insert(key, 2, 1, "part1")
	if complete {
		t.Fatal("Insert reported complete with only 1 of 2 parts")
	}
	if s.Len() != 1 {
		t.Errorf("Len() = %d, want 1", s.Len())
	}
}

func TestStore_CapAt100Records(t *testing.T) {
	s := New()
	for i := 0; i < 101; i++ {
		key := Key{Sender: "sender", Reference: uint16(i)}
		s.Insert(key, 2, 1, "partial")
	}
	if s.Len() != MaxRecords {
		t.Errorf("Len() = %d, want %d", s.Len(), MaxRecords)
	}
}

func TestStore_EvictsOldestOnOverflow(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	cur := base
	s := NewWithClock(func() time.Time { return cur })

	for i := 0; i < MaxRecords; i++ {
		cur = base.Add(time.Duration(i) * time.Second)
		s.Insert(Key{Sender: "s", Reference: uint16(i)}, 2, 1, "x")
	}
	// the oldest record (reference 0) should still be present
	keys := s.keysOldestFirst()
	if keys[0].Reference != 0 {
		t.Fatalf("expected reference 0 to be oldest, got %d", keys[0].Reference)
	}

	cur = base.Add(time.Duration(MaxRecords) * time.Second)
	s.Insert(Key{Sender: "s", Reference: 9999}, 2, 1, "new")

	for _, k := range s.keysOldestFirst() {
		if k.Reference == 0 {
			t.Fatal("oldest record (reference 0) should have been evicted on overflow")
		}
	}
	if s.Len() != MaxRecords {
		t.Errorf("Len() = %d, want %d", s.Len(), MaxRecords)
	}
}

func TestStore_EvictsExpiredOnNextInsertion(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	cur := base
	s := NewWithClock(func() time.Time { return cur })

	s.Insert(Key{Sender: "old", Reference: 1}, 2, 1, "x")

	cur = base.Add(TTL + time.Second)
	s.Insert(Key{Sender: "new", Reference: 2}, 2, 1, "y")

	if s.Len() != 1 {
		t.Fatalf("Len() = %d, want 1 (expired record should be gone)", s.Len())
	}
	keys := s.keysOldestFirst()
	if keys[0].Sender != "new" {
		t.Errorf("remaining record sender = %q, want new", keys[0].Sender)
	}
}
