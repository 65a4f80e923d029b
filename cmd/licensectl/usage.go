package main

import (
	"fmt"
	"os"

	"license-server/internal/model"
	"license-server/internal/service"

	"github.com/spf13/cobra"
)

func newUsageCmd(a *app) *cobra.Command {
	usageCmd := &cobra.Command{
		Use:   "usage",
		Short: "查询使用统计",
	}
	usageCmd.AddCommand(newUsageDailyCmd(a), newUsageStatsCmd(a))
	return usageCmd
}

func newUsageDailyCmd(a *app) *cobra.Command {
	var licenseKey string
	cmd := &cobra.Command{
		Use:   "daily",
		Short: "今日 report_generated 次数",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.open(); err != nil {
				return err
			}
			defer a.close()

			count, err := service.NewUsageService(a.db, a.log).DailyUsage(cmd.Context(), licenseKey)
			if err != nil {
				return fmt.Errorf("failed to query daily usage: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d reports today\n", licenseKey, count)
			return nil
		},
	}
	cmd.Flags().StringVarP(&licenseKey, "key", "k", "", "License 密钥（必填）")
	cmd.MarkFlagRequired("key")
	return cmd
}

func newUsageStatsCmd(a *app) *cobra.Command {
	var (
		filter model.StatsFilter
		xlsx   string
	)
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "按日期与动作汇总使用记录",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.open(); err != nil {
				return err
			}
			defer a.close()

			stats, err := service.NewUsageService(a.db, a.log).Stats(cmd.Context(), filter)
			if err != nil {
				return fmt.Errorf("failed to query usage stats: %w", err)
			}

			out := cmd.OutOrStdout()
			if xlsx != "" {
				f, err := os.Create(xlsx)
				if err != nil {
					return fmt.Errorf("failed to create %s: %w", xlsx, err)
				}
				defer f.Close()
				if err := service.WriteStatsWorkbook(f, stats); err != nil {
					return fmt.Errorf("failed to write workbook: %w", err)
				}
				fmt.Fprintf(out, "Wrote %d rows to %s\n", len(stats), xlsx)
				return nil
			}

			if len(stats) == 0 {
				fmt.Fprintln(out, "No usage found")
				return nil
			}
			fmt.Fprintf(out, "%-12s %-20s %s\n", "Date", "Action", "Count")
			fmt.Fprintln(out, "----------------------------------------")
			for _, st := range stats {
				fmt.Fprintf(out, "%-12s %-20s %d\n", st.Date, st.Action, st.Count)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&filter.LicenseKey, "key", "k", "", "按 License 密钥筛选")
	cmd.Flags().StringVar(&filter.StartDate, "start", "", "起始日期 YYYY-MM-DD（含）")
	cmd.Flags().StringVar(&filter.EndDate, "end", "", "结束日期 YYYY-MM-DD（含）")
	cmd.Flags().StringVar(&xlsx, "xlsx", "", "导出为 xlsx 文件而不是打印")
	return cmd
}
