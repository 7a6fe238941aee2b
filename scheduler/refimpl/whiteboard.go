package refimpl

// Whiteboard is a minimal scheduler.WhiteboardService reference: it only
// tracks how many event-store partitions exist (one per in-flight slot,
// the common configuration), since this package does not model algorithm
// I/O against the store itself.
type Whiteboard struct {
	numStores int
}

// NewWhiteboard returns a Whiteboard with n partitions.
func NewWhiteboard(n int) *Whiteboard {
	return &Whiteboard{numStores: n}
}

// NumberOfStores implements scheduler.WhiteboardService.
func (w *Whiteboard) NumberOfStores() int { return w.numStores }

// SelectStore implements scheduler.WhiteboardService as a no-op: partition
// selection has no observable effect without real algorithm I/O.
func (w *Whiteboard) SelectStore(slotIndex int) error { return nil }

// FreeSlots implements scheduler.WhiteboardService.
func (w *Whiteboard) FreeSlots() int { return w.numStores }
