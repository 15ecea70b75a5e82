package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/paiban/kaowu/internal/csvio"
	"github.com/paiban/kaowu/pkg/scheduler/optimizer"
	"github.com/paiban/kaowu/pkg/stats"
)

type solveFlags struct {
	algorithm     string
	out           string
	seed          int64
	maxIterations int
	quiet         bool
}

func newSolveCommand(in *inputFlags) *cobra.Command {
	f := &solveFlags{}
	cmd := &cobra.Command{
		Use:   "solve",
		Short: "求解排考方案",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSolve(cmd, in, f)
		},
	}
	cmd.Flags().StringVarP(&f.algorithm, "algorithm", "a", optimizer.AlgorithmAnnealing, "算法 sa|pso")
	cmd.Flags().StringVarP(&f.out, "out", "o", "", "结果 CSV 文件，为空时输出到标准输出")
	cmd.Flags().Int64Var(&f.seed, "seed", 0, "随机种子，覆盖配置文件")
	cmd.Flags().IntVar(&f.maxIterations, "max-iterations", 0, "最大迭代次数，覆盖配置文件")
	cmd.Flags().BoolVarP(&f.quiet, "quiet", "q", false, "不输出迭代进度")
	return cmd
}

func runSolve(cmd *cobra.Command, in *inputFlags, f *solveFlags) error {
	p, err := in.load()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("seed") {
		p.settings["seed"] = f.seed
	}
	if f.maxIterations > 0 {
		p.settings["max_iterations"] = f.maxIterations
	}

	var opts []optimizer.Option
	if !f.quiet {
		opts = append(opts, optimizer.WithObserver(progressPrinter(cmd.ErrOrStderr())))
	}
	engine, err := optimizer.New(f.algorithm, p.courses, p.rooms, p.proctors, p.settings, opts...)
	if err != nil {
		return err
	}

	// Ctrl+C 结束搜索并输出当前最优方案
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	best, err := engine.Run(ctx)
	if err != nil {
		return err
	}

	if f.out != "" {
		if err := csvio.ExportSchedule(f.out, best, p.proctors); err != nil {
			return err
		}
	} else if err := csvio.WriteSchedule(cmd.OutOrStdout(), best, p.proctors); err != nil {
		return err
	}

	s := engine.Statistics()
	common := commonConfig(engine)
	report := stats.NewReport(best, p.rooms, p.proctors, common.Weights, common.Limits())
	w := cmd.ErrOrStderr()
	fmt.Fprintf(w, "\n%s: 迭代=%d 用时=%s 停止原因=%s 种子=%d\n",
		s.Algorithm, s.Iterations, s.ExecutionTime, s.StopReason, s.Seed)
	fmt.Fprintf(w, "初始代价=%.2f 最优代价=%.2f 改进=%.1f%% 拆分科目=%d\n",
		s.InitialCost, s.BestCost, s.ImprovementPercentage, s.SplitCourses)
	printReport(w, report)
	if f.out != "" {
		fmt.Fprintf(w, "结果已写入 %s\n", f.out)
	}
	return nil
}

// progressPrinter 每个进度事件输出一行
func progressPrinter(w io.Writer) optimizer.Observer {
	return optimizer.ObserverFuncs{
		Step: func(e optimizer.StepEvent) {
			if e.Final {
				return
			}
			fmt.Fprintf(w, "iter=%-7d cost=%-12.2f best=%-12.2f T=%-10.4f w=%-6.3f rate=%5.1f%% updates=%d\n",
				e.Iteration, e.Cost, e.BestCost, e.Temperature, e.Inertia, e.Rate, e.Updates)
		},
	}
}

// commonConfig 引擎实际使用的公共配置
func commonConfig(engine optimizer.Engine) optimizer.CommonConfig {
	switch e := engine.(type) {
	case *optimizer.Annealer:
		return e.Config().CommonConfig
	case *optimizer.Swarm:
		return e.Config().CommonConfig
	}
	return optimizer.DefaultCommonConfig()
}
