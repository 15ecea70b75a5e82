package main

import (
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/paiban/kaowu/pkg/scheduler/benchmark"
)

type benchFlags struct {
	algorithms    string
	trials        int
	workers       int
	maxIterations int
}

func newBenchCommand(in *inputFlags) *cobra.Command {
	f := &benchFlags{}
	cmd := &cobra.Command{
		Use:   "bench",
		Short: "多种子批量求解并比较算法",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBench(cmd, in, f)
		},
	}
	cmd.Flags().StringVar(&f.algorithms, "algorithms", "sa,pso", "参与比较的算法，逗号分隔")
	cmd.Flags().IntVarP(&f.trials, "trials", "n", 5, "每个算法的试验次数")
	cmd.Flags().IntVarP(&f.workers, "workers", "w", 0, "并发数，0 为 CPU 数")
	cmd.Flags().IntVar(&f.maxIterations, "max-iterations", 0, "最大迭代次数，覆盖配置文件")
	return cmd
}

func runBench(cmd *cobra.Command, in *inputFlags, f *benchFlags) error {
	p, err := in.load()
	if err != nil {
		return err
	}
	if f.maxIterations > 0 {
		p.settings["max_iterations"] = f.maxIterations
	}

	var algorithms []string
	for _, a := range strings.Split(f.algorithms, ",") {
		if a = strings.TrimSpace(a); a != "" {
			algorithms = append(algorithms, a)
		}
	}

	report, err := benchmark.Run(cmd.Context(),
		benchmark.Input{Courses: p.courses, Rooms: p.rooms, Proctors: p.proctors},
		benchmark.Options{Algorithms: algorithms, Trials: f.trials, Workers: f.workers, Settings: p.settings})
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ALGORITHM\tTRIALS\tFAILED\tMIN\tMEAN\tMAX\tMEAN TIME\tFEASIBLE")
	for _, s := range report.Summaries {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%.2f\t%.2f\t%.2f\t%s\t%.0f%%\n",
			s.Algorithm, s.Trials, s.Failures, s.MinCost, s.MeanCost, s.MaxCost,
			s.MeanTime.Round(time.Millisecond), s.FeasibleRatio)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if best, ok := report.Best(); ok {
		fmt.Fprintf(cmd.OutOrStdout(), "最优算法: %s (平均最终代价 %.2f)，总用时 %s\n",
			best.Algorithm, best.MeanCost, report.Elapsed.Round(time.Millisecond))
	}
	return nil
}
