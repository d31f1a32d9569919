package registry

import (
	"fmt"
	"sync"
	"testing"
)

func TestRooms_JoinOrderAndOfferer(t *testing.T) {
	r := NewRooms()

	first := r.Join("r1", "a")
	if !first.IsNewRoom {
		t.Fatalf("expected first join to create the room")
	}
	if first.BecameReady {
		t.Fatalf("room must not be ready with a single member")
	}

	second := r.Join("r1", "b")
	if !second.BecameReady {
		t.Fatalf("expected second join to fill the room")
	}
	if second.OffererID != "a" {
		t.Fatalf("offerer must be the first-joined connection, got %q", second.OffererID)
	}
	if got := r.Members("r1"); len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("members not in join order: %v", got)
	}
}

func TestRooms_RejoinIsNoOp(t *testing.T) {
	r := NewRooms()

	r.Join("r1", "a")
	res := r.Join("r1", "a")
	if res.BecameReady {
		t.Fatalf("re-join must not trigger readiness")
	}
	if len(res.Members) != 1 {
		t.Fatalf("re-join must leave the member list unchanged, got %v", res.Members)
	}
}

func TestRooms_ThirdJoinDoesNotRetrigger(t *testing.T) {
	r := NewRooms()

	r.Join("r1", "a")
	r.Join("r1", "b")

	third := r.Join("r1", "c")
	if third.BecameReady {
		t.Fatalf("a third join into a full room must not re-trigger ready-for-call")
	}
	if len(third.Members) != 3 {
		t.Fatalf("third join is still recorded for bookkeeping, got %v", third.Members)
	}
}

func TestRooms_LeaveReportsRemaining(t *testing.T) {
	r := NewRooms()

	r.Join("r1", "a")
	r.Join("r1", "b")

	res := r.Leave("r1", "a")
	if !res.Removed {
		t.Fatalf("expected removal")
	}
	if res.RoomEmpty {
		t.Fatalf("room still has a member")
	}
	if len(res.Remaining) != 1 || res.Remaining[0] != "b" {
		t.Fatalf("unexpected remaining members: %v", res.Remaining)
	}

	again := r.Leave("r1", "a")
	if again.Removed {
		t.Fatalf("a second leave for the same connection must be a no-op")
	}
}

func TestRooms_EmptyRoomIsReclaimed(t *testing.T) {
	r := NewRooms()

	r.Join("r1", "a")
	res := r.Leave("r1", "a")
	if !res.RoomEmpty {
		t.Fatalf("expected the room to be reclaimed")
	}
	if members := r.Members("r1"); members != nil {
		t.Fatalf("reclaimed room still has members: %v", members)
	}

	// A fresh pair in the same room id goes through the full cycle again.
	r.Join("r1", "c")
	res2 := r.Join("r1", "d")
	if !res2.BecameReady || res2.OffererID != "c" {
		t.Fatalf("recreated room did not become ready with the new first joiner")
	}
}

func TestRooms_RefillAfterPeerLeftRetriggers(t *testing.T) {
	r := NewRooms()

	r.Join("r1", "a")
	r.Join("r1", "b")
	r.Leave("r1", "b")

	res := r.Join("r1", "c")
	if !res.BecameReady {
		t.Fatalf("refilling the room must trigger a new ready-for-call")
	}
	if res.OffererID != "a" {
		t.Fatalf("offerer must be the earliest remaining joiner, got %q", res.OffererID)
	}
}

func TestRooms_ConcurrentJoinsProduceOneReadyEvent(t *testing.T) {
	for iter := 0; iter < 100; iter++ {
		r := NewRooms()

		const n = 8
		results := make([]JoinResult, n)
		var wg sync.WaitGroup
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				results[i] = r.Join("race", fmt.Sprintf("conn-%d", i))
			}(i)
		}
		wg.Wait()

		ready := 0
		offerer := ""
		for _, res := range results {
			if res.BecameReady {
				ready++
				offerer = res.OffererID
			}
		}
		if ready != 1 {
			t.Fatalf("expected exactly one ready-for-call, got %d", ready)
		}
		if offerer != r.Members("race")[0] {
			t.Fatalf("offerer %q is not the first-joined member", offerer)
		}
	}
}
