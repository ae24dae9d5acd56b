package edgex

import (
	"time"

	"github.com/edgexos/edgex/internal/pagemem"
	"github.com/edgexos/edgex/internal/sched"
)

// NewTestKernel wires a Kernel over a sched.Local ticking every tickPeriod
// and a pagemem.Sim allocator — enough to drive the full IPC surface in
// tests without touching real mmap. Callers must Stop() the returned
// scheduler when done (e.g. via t.Cleanup).
func NewTestKernel(tickPeriod time.Duration) (*Kernel, *sched.Local) {
	sc := sched.NewLocal(tickPeriod)
	sc.Start()
	k := NewKernel(sc, pagemem.NewSim())
	return k, sc
}
