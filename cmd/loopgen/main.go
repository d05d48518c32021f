// loopgen builds a loop nest from a TOML kernel description, applies the scheduled
// transformations, resolves every range, and prints the lowered C-like loops.
//
// Usage:
//
//	loopgen [-summary] kernel.toml
//
// Example kernel description:
//
//	name = "matmul"
//
//	[[loop]]
//	index = "i"
//	size = 16
//
//	[[loop]]
//	index = "j"
//	size = 10
//
//	[[loop]]
//	index = "k"
//	size = 11
//
//	[[transform]]
//	op = "tile"
//	order = ["i", "k"]
//	factors = [8, 3]
//
//	[[transform]]
//	op = "parallelize"
//	index = "i"
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/charmbracelet/lipgloss"
	lgtable "github.com/charmbracelet/lipgloss/table"
	"github.com/janpfeifer/must"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/lisaong/Accera/backends"
	"github.com/lisaong/Accera/backends/cgen"
	"github.com/lisaong/Accera/loopnest"
	"github.com/lisaong/Accera/schedule"
)

var flagSummary = flag.Bool("summary", false,
	"Also print a table of the applied transformations and the per-loop trip counts.")

type kernelConfig struct {
	Name       string            `toml:"name"`
	Loops      []loopConfig      `toml:"loop"`
	Transforms []transformConfig `toml:"transform"`
}

type loopConfig struct {
	Index string `toml:"index"`
	Begin int64  `toml:"begin"`
	Size  int64  `toml:"size"`
	Step  int64  `toml:"step"` // Defaults to 1.
}

type transformConfig struct {
	Op      string   `toml:"op"`
	Index   string   `toml:"index"`
	With    string   `toml:"with"` // Skew reference index.
	As      string   `toml:"as"`   // Optional name to give a split's inner index.
	Factor  int64    `toml:"factor"`
	Order   []string `toml:"order"`
	Factors []int64  `toml:"factors"` // Tile factors, parallel to Order.
}

func main() {
	klog.InitFlags(nil)
	flag.Parse()

	args := flag.Args()
	if len(args) != 1 {
		klog.Errorf("Expected exactly one kernel description file. See 'loopgen -help'.")
		os.Exit(1)
	}

	var config kernelConfig
	_ = must.M1(toml.DecodeFile(args[0], &config))
	program := must.M1(build(config))
	fmt.Print(must.M1(cgen.Emitter{}.Emit(program)))
	if *flagSummary {
		printSummary(program)
	}
}

func build(config kernelConfig) (*backends.Program, error) {
	if config.Name == "" {
		return nil, errors.Errorf("the kernel description must set a name")
	}
	indices := make(map[string]loopnest.Index, len(config.Loops))
	bindings := make([]loopnest.Binding, 0, len(config.Loops))
	for _, loop := range config.Loops {
		if loop.Index == "" {
			return nil, errors.Errorf("every [[loop]] must set an index name")
		}
		if _, found := indices[loop.Index]; found {
			return nil, errors.Errorf("loop index %q defined more than once", loop.Index)
		}
		if loop.Size <= 0 {
			return nil, errors.Errorf("loop %q must set a positive size, got %d", loop.Index, loop.Size)
		}
		step := loop.Step
		if step == 0 {
			step = 1
		}
		idx := loopnest.NewIndex(loop.Index)
		indices[loop.Index] = idx
		bindings = append(bindings, loopnest.Binding{
			Index: idx,
			Range: loopnest.NewRange(loop.Begin, loop.Begin+loop.Size, step),
		})
	}
	sched := schedule.New(loopnest.NewNest(bindings...))

	lookup := func(name string) (loopnest.Index, error) {
		idx, found := indices[name]
		if !found {
			return loopnest.Index{}, errors.Errorf("unknown loop index %q", name)
		}
		return idx, nil
	}
	for ti, transform := range config.Transforms {
		if err := apply(sched, indices, lookup, transform); err != nil {
			return nil, errors.WithMessagef(err, "applying transform #%d (%s)", ti+1, transform.Op)
		}
	}
	return backends.NewProgram(config.Name, sched)
}

func apply(sched *schedule.Schedule, indices map[string]loopnest.Index,
	lookup func(string) (loopnest.Index, error), transform transformConfig) error {
	switch transform.Op {
	case "split":
		idx, err := lookup(transform.Index)
		if err != nil {
			return err
		}
		inner, err := sched.Split(idx, transform.Factor)
		if err != nil {
			return err
		}
		name := transform.As
		if name == "" {
			name = inner.Name()
		}
		indices[name] = inner
	case "tile":
		if len(transform.Order) != len(transform.Factors) {
			return errors.Errorf("tile wants matching order and factors lists, got %d and %d",
				len(transform.Order), len(transform.Factors))
		}
		pairs := make([]schedule.TilePair, 0, len(transform.Order))
		for pi, name := range transform.Order {
			idx, err := lookup(name)
			if err != nil {
				return err
			}
			pairs = append(pairs, schedule.TilePair{Index: idx, Factor: transform.Factors[pi]})
		}
		inners, err := sched.Tile(pairs...)
		if err != nil {
			return err
		}
		for _, inner := range inners {
			indices[inner.Name()] = inner
		}
	case "reorder":
		order := make([]loopnest.Index, 0, len(transform.Order))
		for _, name := range transform.Order {
			idx, err := lookup(name)
			if err != nil {
				return err
			}
			order = append(order, idx)
		}
		return sched.Reorder(order...)
	case "skew":
		idx, err := lookup(transform.Index)
		if err != nil {
			return err
		}
		wrt, err := lookup(transform.With)
		if err != nil {
			return err
		}
		return sched.Skew(idx, wrt)
	case "unroll":
		idx, err := lookup(transform.Index)
		if err != nil {
			return err
		}
		return sched.Unroll(idx, transform.Factor)
	case "vectorize":
		idx, err := lookup(transform.Index)
		if err != nil {
			return err
		}
		return sched.Vectorize(idx, transform.Factor)
	case "parallelize":
		idx, err := lookup(transform.Index)
		if err != nil {
			return err
		}
		return sched.Parallelize(idx)
	default:
		return errors.Errorf("unknown transform op %q", transform.Op)
	}
	return nil
}

var (
	headerRowStyle = lipgloss.NewStyle().Reverse(true).Padding(0, 2, 0, 2).Align(lipgloss.Center)
	rowStyle       = lipgloss.NewStyle().PaddingLeft(1).PaddingRight(1)
)

func printSummary(program *backends.Program) {
	fmt.Println(program.Summary())

	table := lgtable.New().
		Border(lipgloss.NormalBorder()).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == lgtable.HeaderRow {
				return headerRowStyle
			}
			return rowStyle
		}).
		Headers("#", "Transformation")
	for ri, record := range program.Records() {
		table.Row(fmt.Sprintf("%d", ri+1), record.String())
	}
	fmt.Println(table.Render())

	nest := program.Nest()
	loops := lgtable.New().
		Border(lipgloss.NormalBorder()).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == lgtable.HeaderRow {
				return headerRowStyle
			}
			return rowStyle
		}).
		Headers("Loop", "Range", "Trips")
	for pos := 0; pos < nest.Len(); pos++ {
		binding := nest.Binding(pos)
		loops.Row(binding.Index.String(), binding.Range.String(),
			fmt.Sprintf("%d", binding.Range.NumIterations()))
	}
	fmt.Println(loops.Render())
}
