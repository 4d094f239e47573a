package bufferpool

// ClockReplacer implements CLOCK (second-chance) victim selection over the
// frame descriptor table. It owns only the hand; frame state lives in the
// descriptors so the manager can update pins and ref bits in one place.
type ClockReplacer struct {
	hand    FrameID
	numBufs int
}

// NewClockReplacer places the hand on the last frame so the first advance
// lands on frame 0.
func NewClockReplacer(numBufs int) *ClockReplacer {
	return &ClockReplacer{
		hand:    FrameID(numBufs - 1),
		numBufs: numBufs,
	}
}

func (c *ClockReplacer) Hand() FrameID { return c.hand }

func (c *ClockReplacer) advance() {
	c.hand = FrameID((int(c.hand) + 1) % c.numBufs)
}

// Victim picks the next frame to (re)use. Invalid frames are taken at once;
// referenced frames lose their ref bit and are skipped; pinned frames are
// skipped. A run of numBufs consecutive pinned frames means one full turn
// of the hand freed nothing, so the scan gives up with ErrBufferExceeded.
//
// Victim does not touch the chosen frame; the caller evicts it.
func (c *ClockReplacer) Victim(descs []FrameDesc) (FrameID, error) {
	for pinned := 0; pinned < c.numBufs; {
		c.advance()
		d := &descs[c.hand]

		switch {
		case !d.valid:
			return c.hand, nil
		case d.refbit:
			// Second chance. An unpinned frame becomes eligible next turn.
			d.refbit = false
			if d.pinCnt > 0 {
				pinned++
			} else {
				pinned = 0
			}
		case d.pinCnt > 0:
			pinned++
		default:
			return c.hand, nil
		}
	}
	return 0, ErrBufferExceeded
}
