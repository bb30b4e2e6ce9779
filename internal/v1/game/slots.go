package game

// SlotAllocator hands out the human slot numbers left over after the agents
// took theirs. Numbers released on leave are reused by future joiners, so
// the union of agent numbers, assigned human numbers and the pool always
// equals 1..total_players.
type SlotAllocator struct {
	pool []int
}

// NewSlotAllocator seeds the allocator with the human slot pool.
func NewSlotAllocator(pool []int) *SlotAllocator {
	return &SlotAllocator{pool: append([]int(nil), pool...)}
}

// Acquire pops the next free number. Returns ErrRoomFull when exhausted.
func (a *SlotAllocator) Acquire() (int, error) {
	if len(a.pool) == 0 {
		return 0, ErrRoomFull
	}
	n := a.pool[0]
	a.pool = a.pool[1:]
	return n, nil
}

// Release pushes a number back for future joiners.
func (a *SlotAllocator) Release(n int) {
	a.pool = append(a.pool, n)
}

// Free returns the count of unassigned slots.
func (a *SlotAllocator) Free() int {
	return len(a.pool)
}

// Pool returns a copy of the unassigned numbers.
func (a *SlotAllocator) Pool() []int {
	return append([]int(nil), a.pool...)
}
