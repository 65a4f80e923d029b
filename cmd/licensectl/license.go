package main

import (
	"errors"
	"fmt"
	"time"

	"license-server/internal/model"
	"license-server/internal/service"

	"github.com/spf13/cobra"
)

func newLicenseCmd(a *app) *cobra.Command {
	licenseCmd := &cobra.Command{
		Use:   "license",
		Short: "管理 License",
	}
	licenseCmd.AddCommand(newLicenseCreateCmd(a), newLicenseListCmd(a), newLicenseSyncCmd(a))
	return licenseCmd
}

func newLicenseCreateCmd(a *app) *cobra.Command {
	var (
		input        model.CreateLicenseInput
		dailyLimit   int
		monthlyLimit int
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "签发新 License",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.open(); err != nil {
				return err
			}
			defer a.close()

			if cmd.Flags().Changed("daily-limit") {
				input.DailyLimit = &dailyLimit
			}
			if cmd.Flags().Changed("monthly-limit") {
				input.MonthlyLimit = &monthlyLimit
			}

			sheetSync, err := a.sheetSync(cmd.Context())
			if err != nil {
				return err
			}

			license, err := service.NewLicenseService(a.db, a.log).Create(cmd.Context(), input)
			if err != nil {
				return fmt.Errorf("failed to create license: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "License created successfully!\n")
			fmt.Fprintf(out, "License Key: %s\n", license.LicenseKey)
			fmt.Fprintf(out, "User: %s <%s>\n", license.UserName, license.UserEmail)
			fmt.Fprintf(out, "Limits: %d/day, %d/month\n", license.DailyLimit, license.MonthlyLimit)
			fmt.Fprintf(out, "Expires: %s\n", formatExpiry(license.ExpiryDate))

			// 进程即将退出，同步推送
			if sheetSync != nil {
				if err := sheetSync.PublishLicense(cmd.Context(), license); err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "Warning: sheet sync failed: %v\n", err)
				} else {
					fmt.Fprintln(out, "Synced to sheet")
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&input.UserName, "name", "n", "", "用户名（必填）")
	cmd.Flags().StringVarP(&input.UserEmail, "email", "e", "", "邮箱（必填）")
	cmd.Flags().IntVar(&dailyLimit, "daily-limit", model.DefaultDailyLimit, "每日报告次数上限")
	cmd.Flags().IntVar(&monthlyLimit, "monthly-limit", model.DefaultMonthlyLimit, "每月报告次数上限")
	cmd.Flags().StringVar(&input.ExpiryDate, "expiry", "", "到期时间，RFC 3339 或 YYYY-MM-DD，留空永不过期")
	cmd.MarkFlagRequired("name")
	cmd.MarkFlagRequired("email")
	return cmd
}

func newLicenseListCmd(a *app) *cobra.Command {
	var page, limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "分页列出 License",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.open(); err != nil {
				return err
			}
			defer a.close()

			result, err := service.NewLicenseService(a.db, a.log).List(cmd.Context(), page, limit)
			if err != nil {
				return fmt.Errorf("failed to list licenses: %w", err)
			}

			out := cmd.OutOrStdout()
			if result.Pagination.Total == 0 {
				fmt.Fprintln(out, "No licenses found")
				return nil
			}

			fmt.Fprintf(out, "Total licenses: %d (page %d/%d)\n\n",
				result.Pagination.Total, result.Pagination.Page, result.Pagination.Pages)
			fmt.Fprintf(out, "%-20s %-16s %-28s %-7s %-8s %-20s %s\n",
				"License Key", "User", "Email", "Daily", "Active", "Expires", "Created")
			fmt.Fprintln(out, "----------------------------------------------------------------------------------------------------------------")
			for _, l := range result.Licenses {
				fmt.Fprintf(out, "%-20s %-16s %-28s %-7d %-8t %-20s %s\n",
					l.LicenseKey,
					l.UserName,
					l.UserEmail,
					l.DailyLimit,
					l.IsActive,
					formatExpiry(l.ExpiryDate),
					l.CreatedAt.Local().Format("2006-01-02 15:04:05"),
				)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&page, "page", 1, "页码")
	cmd.Flags().IntVar(&limit, "limit", 20, "每页条数（最大 100）")
	return cmd
}

func newLicenseSyncCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "把全部 License 同步到 Google Sheet，已有密钥覆盖原行",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.open(); err != nil {
				return err
			}
			defer a.close()

			sheetSync, err := a.sheetSync(cmd.Context())
			if err != nil {
				return err
			}
			if sheetSync == nil {
				return errors.New("sheet sync is disabled, set SHEET_SYNC_ENABLED=true")
			}

			licenses, err := service.NewLicenseService(a.db, a.log).All(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to load licenses: %w", err)
			}
			if err := sheetSync.BatchPublish(cmd.Context(), licenses); err != nil {
				return fmt.Errorf("failed to sync licenses: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Synced %d licenses\n", len(licenses))
			return nil
		},
	}
}

func formatExpiry(t *time.Time) string {
	if t == nil {
		return "never"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}
