package registry

import "sync"

// callMembers is how many participants take part in the call-establishment
// handshake. Later joins are accepted for bookkeeping but never re-trigger it.
const callMembers = 2

type liveRoom struct {
	// members holds connection ids in join order; the first entry is the
	// designated offerer once the room fills.
	members []string
}

// JoinResult reports the membership after a join and whether this join filled
// the room for a call.
type JoinResult struct {
	Members     []string
	IsNewRoom   bool
	BecameReady bool
	OffererID   string
}

type LeaveResult struct {
	Removed   bool
	Remaining []string
	RoomEmpty bool
}

// Rooms maps a room id to its ordered member list. All mutations happen under
// one mutex so the size-2 check is atomic: two racing joins can never both
// observe that they completed the pair.
type Rooms struct {
	mu    sync.Mutex
	rooms map[string]*liveRoom
}

func NewRooms() *Rooms {
	return &Rooms{rooms: make(map[string]*liveRoom)}
}

// Join appends the connection to the room, creating the room on first use.
// Re-joining a room the connection is already in is a no-op that returns the
// current member list. BecameReady is set only when this join moved the
// member count from one to exactly two.
func (r *Rooms) Join(roomID, connID string) JoinResult {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.rooms[roomID]
	if !ok {
		room = &liveRoom{}
		r.rooms[roomID] = room
	}

	for _, id := range room.members {
		if id == connID {
			return JoinResult{Members: snapshot(room.members)}
		}
	}

	room.members = append(room.members, connID)

	res := JoinResult{
		Members:   snapshot(room.members),
		IsNewRoom: !ok,
	}
	if len(room.members) == callMembers {
		res.BecameReady = true
		res.OffererID = room.members[0]
	}
	return res
}

// Leave removes the connection from the room. An emptied room is reclaimed.
func (r *Rooms) Leave(roomID, connID string) LeaveResult {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.rooms[roomID]
	if !ok {
		return LeaveResult{}
	}

	idx := -1
	for i, id := range room.members {
		if id == connID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return LeaveResult{}
	}

	room.members = append(room.members[:idx], room.members[idx+1:]...)

	res := LeaveResult{
		Removed:   true,
		Remaining: snapshot(room.members),
	}
	if len(room.members) == 0 {
		delete(r.rooms, roomID)
		res.RoomEmpty = true
	}
	return res
}

// Members returns the room's member connection ids in join order.
func (r *Rooms) Members(roomID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.rooms[roomID]
	if !ok {
		return nil
	}
	return snapshot(room.members)
}

func snapshot(members []string) []string {
	out := make([]string, len(members))
	copy(out, members)
	return out
}
