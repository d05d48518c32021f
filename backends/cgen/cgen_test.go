package cgen

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lisaong/Accera/backends"
	"github.com/lisaong/Accera/loopnest"
	"github.com/lisaong/Accera/schedule"
)

func TestEmit(t *testing.T) {
	i, j, k := loopnest.NewIndex("i"), loopnest.NewIndex("j"), loopnest.NewIndex("k")
	s := schedule.New(loopnest.NewNest(
		loopnest.Binding{Index: i, Range: loopnest.NewRange(0, 16, 1)},
		loopnest.Binding{Index: j, Range: loopnest.NewRange(0, 10, 1)},
		loopnest.Binding{Index: k, Range: loopnest.NewRange(0, 11, 1)},
	))
	inners, err := s.Tile(schedule.TilePair{Index: i, Factor: 8}, schedule.TilePair{Index: k, Factor: 3})
	require.NoError(t, err)
	require.NoError(t, s.Parallelize(i))
	require.NoError(t, s.Vectorize(inners[1], 4))

	p, err := backends.NewProgram("matmul", s)
	require.NoError(t, err)

	code, err := Emitter{}.Emit(p)
	require.NoError(t, err)
	t.Log("\n" + code)

	require.Contains(t, code, "void matmul() {")
	require.Contains(t, code, "for (int64_t i = 0; i < 16; i += 8) {")
	require.Contains(t, code, "for (int64_t j = 0; j < 10; j += 1) {")
	require.Contains(t, code, "for (int64_t k = 0; k < 11; k += 3) {")
	// Split inners are clamped against the remaining extent at boundary tails.
	require.Contains(t, code, "for (int64_t i_i = 0; i_i < min((int64_t)8, 16 - i); i_i += 1) {")
	require.Contains(t, code, "for (int64_t k_i = 0; k_i < min((int64_t)3, 11 - k); k_i += 1) {")
	// The body receives the reconstructed original dimension values.
	require.Contains(t, code, "body(i + i_i, j, k + k_i);")
	// Execution tags become pragmas.
	require.Contains(t, code, "#pragma omp parallel for\n  for (int64_t i = 0;")
	require.Contains(t, code, "#pragma clang loop vectorize_width(4)")
	// The transformation history is documented in the header.
	require.Contains(t, code, "//   split(i, 8) -> i_i")
	require.Contains(t, code, "//   reorder(i, j, k, i_i, k_i)")

	// Balanced braces.
	require.Equal(t, strings.Count(code, "{"), strings.Count(code, "}"))
}

func TestEmitRepeatedSplit(t *testing.T) {
	// Splitting the same index twice must not produce two loop variables with one name.
	i := loopnest.NewIndex("i")
	s := schedule.New(loopnest.NewNest(
		loopnest.Binding{Index: i, Range: loopnest.NewRange(0, 16, 1)},
	))
	_, err := s.Split(i, 4)
	require.NoError(t, err)
	_, err = s.Split(i, 2)
	require.NoError(t, err)

	p, err := backends.NewProgram("repeated", s)
	require.NoError(t, err)
	code, err := Emitter{}.Emit(p)
	require.NoError(t, err)
	t.Log("\n" + code)

	require.Equal(t, 1, strings.Count(code, "int64_t i_i ="))
	require.Equal(t, 1, strings.Count(code, "int64_t i_i_i ="))
	require.Contains(t, code, "for (int64_t i = 0; i < 16; i += 8) {")
	require.Contains(t, code, "i_i_i < min((int64_t)8, 16 - i)")
	require.Contains(t, code, "i_i < min((int64_t)4, 16 - i - i_i_i)")
	require.Contains(t, code, "body(i + i_i_i + i_i);")
}

func TestEmitUnrollAndChainedSplit(t *testing.T) {
	i := loopnest.NewIndex("i")
	s := schedule.New(loopnest.NewNest(
		loopnest.Binding{Index: i, Range: loopnest.NewRange(0, 7, 1)},
	))
	ii, err := s.Split(i, 3)
	require.NoError(t, err)
	iii, err := s.Split(ii, 3)
	require.NoError(t, err)
	require.NoError(t, s.Unroll(iii, 3))

	p, err := backends.NewProgram("conv_edge", s)
	require.NoError(t, err)
	code, err := Emitter{}.Emit(p)
	require.NoError(t, err)
	t.Log("\n" + code)

	require.Contains(t, code, "#pragma unroll 3")
	// i_i is clamped by the absolute extent.
	require.Contains(t, code, "for (int64_t i_i = 0; i_i < min((int64_t)3, 7 - i); i_i += 3) {")
	// i_i_i carries its own relative clamp and, transitively, the absolute one.
	require.Contains(t, code, "i_i_i < min((int64_t)3, min(3 - i_i, 7 - i - i_i))")
	require.Contains(t, code, "body(i + i_i + i_i_i);")
}
