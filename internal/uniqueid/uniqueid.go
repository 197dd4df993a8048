// Package uniqueid generates 64-bit post ids that sort by creation time.
//
// Layout, most significant bit first:
//
//	| 0 | 11-bit machine id | 40-bit ms since 2018-01-01 UTC | 12-bit counter |
//
// The counter restarts at zero whenever the millisecond advances. When it
// would overflow within one millisecond, Next waits for the next one. If the
// wall clock steps backwards, ids keep using the last millisecond seen so they
// stay strictly increasing within a process.
package uniqueid

import (
	"fmt"
	"hash/fnv"
	"sync"
	"time"
)

// Epoch is the custom epoch in Unix milliseconds (2018-01-01T00:00:00Z).
const Epoch int64 = 1514764800000

const (
	machineBits   = 11
	timestampBits = 40
	counterBits   = 12

	// MaxMachineID is the largest machine id that fits the layout.
	MaxMachineID = 1<<machineBits - 1

	maxCounter    = 1<<counterBits - 1
	timestampMask = 1<<timestampBits - 1
)

// Generator hands out ids for one machine id. Safe for concurrent use.
type Generator struct {
	mu        sync.Mutex
	machineID int64
	lastMs    int64
	counter   int64

	now   func() time.Time
	sleep func(time.Duration)
}

// New returns a Generator for machineID, which must be in [0, MaxMachineID].
func New(machineID int64) (*Generator, error) {
	if machineID < 0 || machineID > MaxMachineID {
		return nil, fmt.Errorf("uniqueid: machine id %d out of range [0,%d]", machineID, MaxMachineID)
	}
	return &Generator{machineID: machineID, lastMs: -1, now: time.Now, sleep: time.Sleep}, nil
}

// MachineIDFromHost derives a machine id from a host name.
func MachineIDFromHost(host string) int64 {
	h := fnv.New32a()
	h.Write([]byte(host))
	return int64(h.Sum32() & MaxMachineID)
}

// MachineID returns the generator's machine id.
func (g *Generator) MachineID() int64 { return g.machineID }

func (g *Generator) millis() int64 { return g.now().UnixMilli() - Epoch }

// Next returns a new id, strictly greater than every id this generator has
// returned before.
func (g *Generator) Next() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()

	ms := g.millis()
	if ms < g.lastMs {
		ms = g.lastMs
	}
	if ms == g.lastMs {
		g.counter++
		if g.counter > maxCounter {
			for ms <= g.lastMs {
				g.sleep(100 * time.Microsecond)
				ms = g.millis()
			}
			g.counter = 0
		}
	} else {
		g.counter = 0
	}
	g.lastMs = ms

	return g.machineID<<(timestampBits+counterBits) |
		(ms&timestampMask)<<counterBits |
		g.counter
}

// Parts splits an id into its machine id, Unix-millisecond timestamp and
// counter.
func Parts(id int64) (machineID, unixMs, counter int64) {
	machineID = id >> (timestampBits + counterBits) & MaxMachineID
	unixMs = (id>>counterBits)&timestampMask + Epoch
	counter = id & maxCounter
	return machineID, unixMs, counter
}
