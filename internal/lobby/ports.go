package lobby

// portPool tracks reservation state for the contiguous relay port range
// [min, max]. It has no lock of its own: the coordinator mutex guards every
// call, and acquire never performs I/O, so reservation stays atomic with the
// game state changes around it.
type portPool struct {
	min      int
	max      int
	reserved []bool // index 0 is port min
	count    int
}

func newPortPool(min, max int) *portPool {
	return &portPool{
		min:      min,
		max:      max,
		reserved: make([]bool, max-min+1),
	}
}

// acquire reserves the lowest free port in the range. ok is false when every
// port is reserved.
func (p *portPool) acquire() (port int, ok bool) {
	for i, used := range p.reserved {
		if !used {
			p.reserved[i] = true
			p.count++
			return p.min + i, true
		}
	}
	return 0, false
}

// release returns a port to the pool. Releasing a free port or a port
// outside the range is a no-op, so double releases are harmless.
func (p *portPool) release(port int) {
	if port < p.min || port > p.max {
		return
	}
	i := port - p.min
	if p.reserved[i] {
		p.reserved[i] = false
		p.count--
	}
}

func (p *portPool) reservedCount() int {
	return p.count
}

func (p *portPool) size() int {
	return len(p.reserved)
}
