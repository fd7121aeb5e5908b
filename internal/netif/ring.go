package netif

import (
	"sync"
	"time"

	"kernsim/internal/klog"
)

// DefaultCapacity is the receive ring's slot count when the configuration
// does not override it. One slot is kept empty to distinguish full from
// empty, so the usable depth is capacity-1.
const DefaultCapacity = 2048

// RingStats is a point-in-time view of the ring's counters.
type RingStats struct {
	Capacity int
	Depth    int
	Accepted uint64
	Dropped  uint64
}

// Ring is the bounded receive queue.
//
// Safety: one mutex guards head, tail, the slot array, the counters, and the
// id generator. Receive never blocks; a full ring drops the frame.
type Ring struct {
	log *klog.Logger

	mu       sync.Mutex
	slots    []Packet
	head     int
	tail     int
	accepted uint64
	dropped  uint64
	ids      *xorshift64
}

// NewRing creates a ring with the given slot count (DefaultCapacity when the
// count is below 2). The logger may be nil.
func NewRing(capacity int, log *klog.Logger) *Ring {
	if capacity < 2 {
		capacity = DefaultCapacity
	}
	return &Ring{
		log:   log,
		slots: make([]Packet, capacity),
		ids:   newXorshift64(uint64(time.Now().UnixNano())),
	}
}

// Receive copies a frame into the ring and reports whether it was accepted.
//
// Payloads longer than MaxPayload are truncated. On a full ring the frame is
// dropped and the drop counter advances; a warning is logged when the drop
// count reaches a power of two (1st, 2nd, 4th, 8th, ... drop).
func (r *Ring) Receive(src, dst uint32, srcPort, dstPort uint16, payload []byte) bool {
	r.mu.Lock()
	if (r.head+1)%len(r.slots) == r.tail {
		r.dropped++
		drops := r.dropped
		r.mu.Unlock()
		// Log at power-of-two counts so a sustained burst cannot flood the
		// log buffer.
		if r.log != nil && drops&(drops-1) == 0 {
			r.log.Warnf("rx ring full, frame dropped (drops=%d)", drops)
		}
		return false
	}
	p := &r.slots[r.head]
	p.ID = r.ids.next()
	p.SrcAddr = src
	p.DstAddr = dst
	p.SrcPort = srcPort
	p.DstPort = dstPort
	p.Length = copy(p.Payload[:], payload)
	p.Sum = payloadSum(p.Payload[:p.Length])
	r.head = (r.head + 1) % len(r.slots)
	r.accepted++
	r.mu.Unlock()
	return true
}

// Pop removes and returns the oldest packet. The second result is false when
// the ring is empty.
func (r *Ring) Pop() (Packet, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.head == r.tail {
		return Packet{}, false
	}
	p := r.slots[r.tail]
	r.slots[r.tail] = Packet{}
	r.tail = (r.tail + 1) % len(r.slots)
	return p, true
}

// Depth returns the number of queued packets.
func (r *Ring) Depth() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.depthLocked()
}

func (r *Ring) depthLocked() int {
	return (r.head - r.tail + len(r.slots)) % len(r.slots)
}

// Counters returns the ring counters without side effects.
func (r *Ring) Counters() RingStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return RingStats{
		Capacity: len(r.slots),
		Depth:    r.depthLocked(),
		Accepted: r.accepted,
		Dropped:  r.dropped,
	}
}

// Stats returns the ring counters and logs a queue-depth line. The shell's
// netstat command goes through here.
func (r *Ring) Stats() RingStats {
	s := r.Counters()
	if r.log != nil {
		r.log.Infof("rx ring depth=%d accepted=%d dropped=%d", s.Depth, s.Accepted, s.Dropped)
	}
	return s
}
