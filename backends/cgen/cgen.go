// Package cgen is a reference Emitter that lowers a Program to C-like nested-loop text:
// one `for` statement per nest binding, `min()` clamps on split inners at boundary tails, and
// pragmas for the parallelize/unroll/vectorize execution tags.
//
// The output is meant for inspection and golden tests of the handoff contract, not for
// compilation by a real toolchain. Skewed ranges are emitted with their widened bounds; the
// per-iteration wavefront predication a skew needs is left to a real backend.
package cgen

import (
	"fmt"
	"strings"

	"k8s.io/klog/v2"

	"github.com/lisaong/Accera/backends"
	"github.com/lisaong/Accera/loopnest"
	"github.com/lisaong/Accera/schedule"
)

// Emitter emits C-like loop nests. The zero value is ready to use.
type Emitter struct{}

// Compile-time check that Emitter implements backends.Emitter.
var _ backends.Emitter = Emitter{}

// Emit implements backends.Emitter.
func (e Emitter) Emit(p *backends.Program) (string, error) {
	klog.V(1).Infof("cgen: emitting %s", p.Summary())
	var b strings.Builder
	fmt.Fprintf(&b, "// %s\n", p.Summary())
	for _, record := range p.Records() {
		fmt.Fprintf(&b, "//   %s\n", record)
	}
	fmt.Fprintf(&b, "void %s() {\n", p.Name())

	nest := p.Nest()
	for pos := 0; pos < nest.Len(); pos++ {
		e.emitLoop(&b, p, nest.Binding(pos), pos)
	}
	indent := strings.Repeat("  ", nest.Len()+1)
	fmt.Fprintf(&b, "%sbody(%s);\n", indent, e.bodyArgs(p))
	for pos := nest.Len() - 1; pos >= 0; pos-- {
		fmt.Fprintf(&b, "%s}\n", strings.Repeat("  ", pos+1))
	}
	b.WriteString("}\n")
	return b.String(), nil
}

func (e Emitter) emitLoop(b *strings.Builder, p *backends.Program, binding loopnest.Binding, pos int) {
	indent := strings.Repeat("  ", pos+1)
	tag := p.Tag(binding.Index)
	if tag.Parallel {
		fmt.Fprintf(b, "%s#pragma omp parallel for\n", indent)
	}
	if tag.UnrollFactor > 0 {
		fmt.Fprintf(b, "%s#pragma unroll %d\n", indent, tag.UnrollFactor)
	}
	if tag.VectorWidth > 0 {
		fmt.Fprintf(b, "%s#pragma clang loop vectorize_width(%d)\n", indent, tag.VectorWidth)
	}
	name := loopVar(binding.Index)
	fmt.Fprintf(b, "%sfor (int64_t %s = %d; %s < %s; %s += %d) {\n",
		indent, name, binding.Range.Begin(), name, e.loopEnd(p, binding, pos), name, binding.Range.Increment())
}

// loopEnd returns the loop's exclusive upper bound expression. A split inner is clamped
// against the remaining extent of every split whose derivation subtree it belongs to, which
// produces the narrower range of the final outer iteration when the extent is not a multiple
// of the split factor.
func (e Emitter) loopEnd(p *backends.Program, binding loopnest.Binding, pos int) string {
	if _, found := p.SplitOf(binding.Index); !found {
		return fmt.Sprintf("%d", binding.Range.End())
	}
	nest := p.Nest()
	clamps := []string{fmt.Sprintf("(int64_t)%d", binding.Range.End())}
	for _, info := range splitsOf(p, binding.Index) {
		terms := []string{fmt.Sprintf("%d", info.Bound)}
		for enclosing := 0; enclosing < pos; enclosing++ {
			idx := nest.Binding(enclosing).Index
			if derivesFrom(p, idx, info.Outer) {
				terms = append(terms, loopVar(idx))
			}
		}
		clamps = append(clamps, strings.Join(terms, " - "))
	}
	return minExpr(clamps)
}

func minExpr(exprs []string) string {
	if len(exprs) == 1 {
		return exprs[0]
	}
	return "min(" + exprs[0] + ", " + minExpr(exprs[1:]) + ")"
}

// splitsOf returns the split constraints applying to idx: the split that created it plus,
// transitively, the splits of its outer chain.
func splitsOf(p *backends.Program, idx loopnest.Index) []schedule.SplitInfo {
	var infos []schedule.SplitInfo
	for {
		info, found := p.SplitOf(idx)
		if !found {
			return infos
		}
		infos = append(infos, info)
		idx = info.Outer
	}
}

// bodyArgs reconstructs the original dimension values from the (possibly split) loop
// variables.
func (e Emitter) bodyArgs(p *backends.Program) string {
	nest := p.Nest()
	parts := make([]string, 0, len(p.OriginalIndices()))
	for _, dim := range p.OriginalIndices() {
		terms := []string{}
		for pos := 0; pos < nest.Len(); pos++ {
			idx := nest.Binding(pos).Index
			if derivesFrom(p, idx, dim) {
				terms = append(terms, loopVar(idx))
			}
		}
		parts = append(parts, strings.Join(terms, " + "))
	}
	return strings.Join(parts, ", ")
}

// derivesFrom reports whether idx is dim itself or was split (transitively) from dim.
func derivesFrom(p *backends.Program, idx, dim loopnest.Index) bool {
	for {
		if idx == dim {
			return true
		}
		info, found := p.SplitOf(idx)
		if !found {
			return false
		}
		idx = info.Outer
	}
}

func loopVar(idx loopnest.Index) string {
	var b strings.Builder
	for _, r := range idx.Name() {
		if r == '_' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' && b.Len() > 0 {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "v"
	}
	return b.String()
}
