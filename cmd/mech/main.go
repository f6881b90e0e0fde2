// Package main contains the cli implementation of the tool. It uses the
// cobra package for command wiring.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"mech/config"
	"mech/internal/block"
	"mech/internal/compile"
	"mech/internal/core"
	"mech/internal/scheduler"
	"mech/internal/store"
)

type runFlags struct {
	configFile string
	maxTicks   int
	start      float64
	end        float64
}

type inspectFlags struct {
	configFile string
	maxTicks   int
	start      float64
	end        float64
}

func main() {
	rootCmd := &cobra.Command{
		Use:   "mech",
		Short: "Reactive dataflow runtime",
	}

	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(inspectCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runCmd() *cobra.Command {
	flags := &runFlags{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Build and drive a demo block network to a fixed point",
		RunE: func(_ *cobra.Command, _ []string) error {
			return runDemo(flags)
		},
	}
	cmd.Flags().StringVarP(&flags.configFile, "config", "c", "", "Path to a mech.toml config file")
	cmd.Flags().IntVar(&flags.maxTicks, "max-ticks", 0, "Override scheduler.max_ticks from the config file")
	cmd.Flags().Float64Var(&flags.start, "start", 1, "Start of the demo table/range")
	cmd.Flags().Float64Var(&flags.end, "end", 5, "End of the demo table/range")
	return cmd
}

func inspectCmd() *cobra.Command {
	flags := &inspectFlags{}
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Drive the demo block network and print block states and registers",
		RunE: func(_ *cobra.Command, _ []string) error {
			return runInspect(flags)
		},
	}
	cmd.Flags().StringVarP(&flags.configFile, "config", "c", "", "Path to a mech.toml config file")
	cmd.Flags().IntVar(&flags.maxTicks, "max-ticks", 0, "Override scheduler.max_ticks from the config file")
	cmd.Flags().Float64Var(&flags.start, "start", 1, "Start of the demo table/range")
	cmd.Flags().Float64Var(&flags.end, "end", 5, "End of the demo table/range")
	return cmd
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return &config.Config{Scheduler: config.Scheduler{MaxTicks: 10000}}, nil
	}
	return config.Load(path)
}

func runDemo(flags *runFlags) error {
	cfg, err := loadConfig(flags.configFile)
	if err != nil {
		return fmt.Errorf("mech run: loading config: %w", err)
	}
	maxTicks := cfg.Scheduler.MaxTicks
	if flags.maxTicks > 0 {
		maxTicks = flags.maxTicks
	}

	db, sched, x, y, err := buildDemoNetwork(flags.start, flags.end)
	if err != nil {
		return fmt.Errorf("mech run: building demo network: %w", err)
	}

	ticks, err := sched.Run(maxTicks)
	if err != nil {
		return fmt.Errorf("mech run: %w", err)
	}

	fmt.Printf("reached fixed point after %d tick(s)\n", ticks)
	if err := printTable(db, "x", x); err != nil {
		return err
	}
	return printTable(db, "y", y)
}

func runInspect(flags *inspectFlags) error {
	cfg, err := loadConfig(flags.configFile)
	if err != nil {
		return fmt.Errorf("mech inspect: loading config: %w", err)
	}
	maxTicks := cfg.Scheduler.MaxTicks
	if flags.maxTicks > 0 {
		maxTicks = flags.maxTicks
	}

	_, sched, _, _, err := buildDemoNetwork(flags.start, flags.end)
	if err != nil {
		return fmt.Errorf("mech inspect: building demo network: %w", err)
	}

	ticks, err := sched.Run(maxTicks)
	if err != nil {
		return fmt.Errorf("mech inspect: %w", err)
	}
	fmt.Printf("reached fixed point after %d tick(s)\n\n", ticks)

	for _, b := range sched.Blocks() {
		fmt.Printf("block %s: state=%s triggered=%d\n", b.ID(), b.State(), b.Triggered())
		for r := range b.Input() {
			fmt.Printf("  input  %s\n", r)
		}
		for r := range b.Output() {
			fmt.Printf("  output %s\n", r)
		}
		for _, e := range b.Errors() {
			fmt.Printf("  error  %s\n", e)
		}
	}
	return nil
}

// buildDemoNetwork wires a two-block chain exercising the core engine
// end to end: a source block fills #x with table/range(start, end), and
// a downstream block copies #x into #y whenever it changes. This is
// smoke-testing scaffolding for the core, not a program representation
// — it never parses user text, it only assembles an already-built
// Transformation list, same as every other caller of RegisterTransformations.
func buildDemoNetwork(start, end float64) (db *store.Database, sched *scheduler.Scheduler, x, y core.TableId, err error) {
	db = store.New()
	x = core.GlobalTableId(core.HashString("mech/demo/x"))
	y = core.GlobalTableId(core.HashString("mech/demo/y"))
	lit1 := core.LocalTableId(core.HashString("mech/demo/lit-start"))
	lit2 := core.LocalTableId(core.HashString("mech/demo/lit-end"))

	source := block.New(core.GlobalTableId(core.HashString("mech/demo/source")), db)
	if err = source.RegisterTransformations([]compile.Transformation{
		compile.NewTable{TableID: x, Rows: 0, Cols: 0},
		compile.NewTable{TableID: lit1, Rows: 1, Cols: 1},
		compile.Constant{TableID: lit1, Value: core.FromF64(start)},
		compile.NewTable{TableID: lit2, Rows: 1, Cols: 1},
		compile.Constant{TableID: lit2, Value: core.FromF64(end)},
		compile.Function{
			Name: compile.HashRange,
			Args: []compile.FunctionArg{
				{Name: core.HashString("start"), Reg: core.AllRegister(lit1)},
				{Name: core.HashString("end"), Reg: core.AllRegister(lit2)},
			},
			Out: core.AllRegister(x),
		},
	}); err != nil {
		return nil, nil, core.TableId{}, core.TableId{}, err
	}

	xReg := core.AllRegister(x)
	downstream := block.New(core.GlobalTableId(core.HashString("mech/demo/downstream")), db)
	if err = downstream.RegisterTransformations([]compile.Transformation{
		compile.NewTable{TableID: y, Rows: 0, Cols: 0},
		compile.Whenever{TableID: x, Row: core.All(), Column: core.All(), Registers: []core.Register{xReg}},
		compile.Function{
			Name: compile.HashCopy,
			Args: []compile.FunctionArg{{Name: core.HashString("a"), Reg: xReg}},
			Out:  core.AllRegister(y),
		},
	}); err != nil {
		return nil, nil, core.TableId{}, core.TableId{}, err
	}

	sched = scheduler.New(db, nil)
	if err = sched.Register(source); err != nil {
		return nil, nil, core.TableId{}, core.TableId{}, err
	}
	if err = sched.Register(downstream); err != nil {
		return nil, nil, core.TableId{}, core.TableId{}, err
	}
	return db, sched, x, y, nil
}

func printTable(db *store.Database, name string, id core.TableId) error {
	t, err := db.Table(id)
	if err != nil {
		return fmt.Errorf("mech: printing %s: %w", name, err)
	}
	fmt.Printf("%s: %dx%d\n", name, t.Rows, t.Cols)
	for r := 1; r <= t.Rows; r++ {
		row := make([]string, t.Cols)
		for c := 1; c <= t.Cols; c++ {
			row[c-1] = t.Get(r, c).String()
		}
		fmt.Println(row)
	}
	return nil
}
