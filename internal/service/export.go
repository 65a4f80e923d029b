package service

import (
	"fmt"
	"io"

	"license-server/internal/model"

	"github.com/xuri/excelize/v2"
)

const statsSheetName = "使用统计"

// WriteStatsWorkbook 把统计结果写成 xlsx
func WriteStatsWorkbook(w io.Writer, stats []model.UsageStat) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", statsSheetName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	// 设置表头
	headers := []string{"日期", "动作", "次数"}
	for i, h := range headers {
		if err := f.SetCellValue(statsSheetName, fmt.Sprintf("%c1", 'A'+i), h); err != nil {
			return err
		}
	}

	// 写入数据
	for idx, st := range stats {
		row := idx + 2
		f.SetCellValue(statsSheetName, fmt.Sprintf("A%d", row), st.Date)
		f.SetCellValue(statsSheetName, fmt.Sprintf("B%d", row), st.Action)
		f.SetCellValue(statsSheetName, fmt.Sprintf("C%d", row), st.Count)
	}

	f.SetColWidth(statsSheetName, "A", "A", 12)
	f.SetColWidth(statsSheetName, "B", "B", 24)
	f.SetColWidth(statsSheetName, "C", "C", 10)

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}
