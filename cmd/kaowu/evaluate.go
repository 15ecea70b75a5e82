package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"

	"github.com/paiban/kaowu/pkg/model"
	"github.com/paiban/kaowu/pkg/scheduler/optimizer"
	"github.com/paiban/kaowu/pkg/stats"
)

func newEvaluateCommand(in *inputFlags) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "评估已有排考方案（科目 CSV 中的分配列）",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := in.load()
			if err != nil {
				return err
			}
			cfg, err := optimizer.ParseAnnealingConfig(p.settings)
			if err != nil {
				return err
			}
			report := stats.NewReport(model.NewSchedule(p.courses), p.rooms, p.proctors, cfg.Weights, cfg.Limits())

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(report)
			}
			printReport(cmd.OutOrStdout(), report)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "以 JSON 输出完整报告")
	return cmd
}

// printReport 输出约束明细与统计摘要
func printReport(w io.Writer, r *stats.Report) {
	fmt.Fprintf(w, "适应度=%.2f 可行=%v 硬约束=%.2f 软约束=%.2f\n", r.Fitness, r.Feasible, r.HardPenalty, r.SoftPenalty)

	keys := make([]string, 0, len(r.Violations))
	for k := range r.Violations {
		if k != "total" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		if r.Violations[k] > 0 {
			fmt.Fprintf(w, "  %-28s %.2f\n", k, r.Violations[k])
		}
	}

	if c := r.Coverage; c != nil {
		fmt.Fprintf(w, "覆盖: %d/%d (%.1f%%) 平均利用率=%.1f%% 超容=%d 利用不足=%d\n",
			c.ScheduledCourses, c.TotalCourses, c.OverallCoverage, c.AverageUtilization,
			len(c.Overfull), len(c.Underutilized))
		if len(c.Unscheduled) > 0 {
			fmt.Fprintf(w, "  未排考: %v\n", c.Unscheduled)
		}
	}
	if f := r.Fairness; f != nil && len(f.ProctorStats) > 0 {
		fmt.Fprintf(w, "监考公平性: 评分=%.1f 基尼=%.3f 场次 %.0f~%.0f\n",
			f.OverallFairnessScore, f.SessionGini, f.MinSessions, f.MaxSessions)
	}
}
