// Command exprjitbench exercises the exprjit core end to end: it builds
// a couple of small expression trees with pkg/jit, compiles them, runs
// them, and (optionally) times repeated compilation to show how much of
// a single call's cost is JIT overhead versus execution.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/exprjit/exprjit/pkg/jit"
	"github.com/exprjit/exprjit/pkg/jitlog"
	"github.com/exprjit/exprjit/pkg/tree"
	"github.com/exprjit/exprjit/pkg/version"
	"github.com/spf13/cobra"
)

var (
	iterations  int
	verbose     bool
	showVersion bool
)

var rootCmd = &cobra.Command{
	Use:   "exprjitbench",
	Short: "exprjitbench " + version.GetVersion(),
	Long: `exprjitbench drives the exprjit JIT core through a few sample
expression trees, compiling them to native machine code and invoking
the result, to demonstrate the builder API and spot-check codegen.`,
	Run: func(cmd *cobra.Command, args []string) {
		if showVersion {
			fmt.Println(version.GetVersion())
			return
		}
		cmd.Help()
	},
}

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "compile and run a handful of sample expressions",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDemo()
	},
}

var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "time repeated compilation of a sample expression",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runBench(iterations)
	},
}

func init() {
	rootCmd.Flags().BoolVarP(&showVersion, "version", "v", false, "show version")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "log code-gen timing and a compile summary")
	benchCmd.Flags().IntVarP(&iterations, "iterations", "n", 10000, "number of compile+run cycles to time")
	rootCmd.AddCommand(demoCmd, benchCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func logger() *jitlog.Logger {
	if verbose {
		return jitlog.New(jitlog.LevelTrace)
	}
	return jitlog.Silent()
}

// sumOfParams builds `func(a, b int64) int64 { return a + b }`.
func sumOfParams() (jit.Func2[int64, int64, int64], error) {
	b := jit.NewBuilder(tree.WithLogger(logger()))
	a, err := jit.Parameter[int64](b)
	if err != nil {
		return jit.Func2[int64, int64, int64]{}, err
	}
	c, err := jit.Parameter[int64](b)
	if err != nil {
		return jit.Func2[int64, int64, int64]{}, err
	}
	sum, err := jit.Add(b, a, c)
	if err != nil {
		return jit.Func2[int64, int64, int64]{}, err
	}
	ret, err := jit.ReturnOf(b, sum)
	if err != nil {
		return jit.Func2[int64, int64, int64]{}, err
	}
	return jit.FinalizeFunc2[int64, int64, int64](b, ret)
}

// guardedLookup builds `func(n int64) int64 { if n == 0 return -1; return n + 100 }`,
// demonstrating an execution-precondition guard against n == 0.
func guardedLookup() (jit.Func1[int64, int64], error) {
	b := jit.NewBuilder(tree.WithLogger(logger()))
	n, err := jit.Parameter[int64](b)
	if err != nil {
		return jit.Func1[int64, int64]{}, err
	}
	zero, err := jit.Immediate[int64](b, 0)
	if err != nil {
		return jit.Func1[int64, int64]{}, err
	}
	cond, err := jit.NotEqual(b, n, zero)
	if err != nil {
		return jit.Func1[int64, int64]{}, err
	}
	failure, err := jit.Immediate[int64](b, -1)
	if err != nil {
		return jit.Func1[int64, int64]{}, err
	}
	if err := jit.AddPrecondition(b, cond, failure); err != nil {
		return jit.Func1[int64, int64]{}, err
	}
	hundred, err := jit.Immediate[int64](b, 100)
	if err != nil {
		return jit.Func1[int64, int64]{}, err
	}
	sum, err := jit.Add(b, n, hundred)
	if err != nil {
		return jit.Func1[int64, int64]{}, err
	}
	ret, err := jit.ReturnOf(b, sum)
	if err != nil {
		return jit.Func1[int64, int64]{}, err
	}
	return jit.FinalizeFunc1[int64, int64](b, ret)
}

func runDemo() error {
	sum, err := sumOfParams()
	if err != nil {
		return fmt.Errorf("compiling sum: %w", err)
	}
	defer sum.Release()
	fmt.Printf("sum(3, 4) = %d\n", sum.Call(3, 4))

	guarded, err := guardedLookup()
	if err != nil {
		return fmt.Errorf("compiling guarded lookup: %w", err)
	}
	defer guarded.Release()
	fmt.Printf("guarded(5) = %d\n", guarded.Call(5))
	fmt.Printf("guarded(0) = %d (precondition failed)\n", guarded.Call(0))
	return nil
}

func runBench(n int) error {
	start := time.Now()
	for i := 0; i < n; i++ {
		f, err := sumOfParams()
		if err != nil {
			return fmt.Errorf("compiling: %w", err)
		}
		f.Call(int64(i), 1)
		f.Release()
	}
	elapsed := time.Since(start)
	fmt.Printf("%d compile+call cycles in %s (%s/cycle)\n", n, elapsed, elapsed/time.Duration(n))
	return nil
}
