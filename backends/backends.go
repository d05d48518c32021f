// Package backends defines the handoff boundary between the loop-nest core and the lowering
// code-generation backends.
//
// A backend never sees a half-transformed schedule: it is handed a Program, a frozen value
// built by NewProgram only after validating that every Range is resolved and the nest is
// internally consistent. Everything target specific -- instruction selection, register
// allocation, actual code emission -- lives behind the Emitter interface, outside this core.
package backends

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/lisaong/Accera/loopnest"
	"github.com/lisaong/Accera/schedule"
)

// Program is the fully resolved, legality-checked unit handed to an Emitter: the final loop
// nest, the ordered transformation records that produced it, the execution-strategy tags, and
// the split bookkeeping a backend needs to emit boundary clamps. Immutable once built.
type Program struct {
	id     uuid.UUID
	name   string
	nest   *loopnest.Nest
	sched  *schedule.Schedule
	tags   map[loopnest.Index]schedule.Tag
	splits map[loopnest.Index]schedule.SplitInfo
}

// NewProgram freezes a schedule into a Program for lowering. It fails if any range in the nest
// is still unresolved: resolution must happen before handoff.
func NewProgram(name string, sched *schedule.Schedule) (*Program, error) {
	nest := sched.Nest()
	for pos := 0; pos < nest.Len(); pos++ {
		binding := nest.Binding(pos)
		if !binding.Range.HasConstantEnd() {
			return nil, errors.Errorf("cannot lower kernel %q: binding %s is unresolved", name, binding)
		}
	}
	return &Program{
		id:     uuid.New(),
		name:   name,
		nest:   nest,
		sched:  sched.Clone(),
		tags:   sched.Tags(),
		splits: sched.Splits(),
	}, nil
}

// ID returns the unique id assigned to this program, used to correlate emitted artifacts with
// their kernels across concurrent compilations.
func (p *Program) ID() uuid.UUID { return p.id }

// Name returns the kernel name the program was built with.
func (p *Program) Name() string { return p.name }

// Nest returns the final, fully resolved loop nest.
func (p *Program) Nest() *loopnest.Nest { return p.nest }

// Records returns the ordered transformation records that shaped the nest.
func (p *Program) Records() []schedule.Record { return p.sched.Records() }

// Tag returns the execution-strategy tag of idx. The zero Tag means no annotation.
func (p *Program) Tag(idx loopnest.Index) schedule.Tag { return p.tags[idx] }

// SplitOf returns the split bookkeeping for an inner index produced by a split, and whether
// idx is such an index. Backends use it to clamp boundary (non-multiple) tails.
func (p *Program) SplitOf(idx loopnest.Index) (schedule.SplitInfo, bool) {
	info, found := p.splits[idx]
	return info, found
}

// OriginalIndices returns the dimensions of the nest the schedule started from, in their
// original nesting order. The iteration value of each is the sum of the loop variables split
// from it.
func (p *Program) OriginalIndices() []loopnest.Index { return p.sched.OriginalIndices() }

// TotalIterations returns the product of the per-loop trip counts -- an upper bound on body
// executions (boundary clamping can only reduce it).
func (p *Program) TotalIterations() int64 {
	total := int64(1)
	for pos := 0; pos < p.nest.Len(); pos++ {
		total *= p.nest.Binding(pos).Range.NumIterations()
	}
	return total
}

// Summary returns a one-line human-readable description for diagnostics.
func (p *Program) Summary() string {
	return fmt.Sprintf("kernel %q (%s): %d loops, %d transformations, %s iterations",
		p.name, p.id, p.nest.Len(), len(p.sched.Records()), humanize.Comma(p.TotalIterations()))
}

// Emitter lowers a Program to backend code. Implementations are target specific; the core
// guarantees only that the Program it hands over is internally consistent.
type Emitter interface {
	Emit(p *Program) (string, error)
}
