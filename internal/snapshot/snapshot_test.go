package snapshot

import (
	"testing"

	"gemcheck/internal/hashing"
)

func TestSnapshot_UpsertAssignsStableIDs(t *testing.T) {
	s := New()

	id1 := s.Upsert(FileEntry{Path: "a.rb", StrictLevel: 1})
	id2 := s.Upsert(FileEntry{Path: "b.rb", StrictLevel: 1})

	if id1 == id2 {
		t.Fatalf("distinct paths should get distinct FileIDs")
	}

	// Updating a.rb's content must not reassign its FileID.
	again := s.Upsert(FileEntry{Path: "a.rb", StrictLevel: 2})
	if again != id1 {
		t.Errorf("expected FileID %v to remain stable across updates, got %v", id1, again)
	}
	if got := s.Get(id1).StrictLevel; got != 2 {
		t.Errorf("expected updated StrictLevel 2, got %d", got)
	}
}

func TestSnapshot_LookupMiss(t *testing.T) {
	s := New()
	if _, ok := s.Lookup("missing.rb"); ok {
		t.Error("expected Lookup miss on empty snapshot")
	}
}

func TestSnapshot_DeepCopyIsIndependent(t *testing.T) {
	s := New()
	id := s.Upsert(FileEntry{Path: "a.rb", Hash: hashing.FileHash{Rest: "abc"}})

	cp := s.DeepCopy()
	s.Upsert(FileEntry{Path: "a.rb", Hash: hashing.FileHash{Rest: "changed"}})

	if cp.Get(id).Hash.Rest != "abc" {
		t.Errorf("deep copy should not observe mutations to the original snapshot")
	}
}

func TestSnapshot_Len(t *testing.T) {
	s := New()
	if s.Len() != 0 {
		t.Fatalf("expected empty snapshot to have Len 0")
	}
	s.Upsert(FileEntry{Path: "a.rb"})
	s.Upsert(FileEntry{Path: "b.rb"})
	if s.Len() != 2 {
		t.Errorf("expected Len 2, got %d", s.Len())
	}
}
