package ledger

import (
	"fmt"
	"strings"

	"ledger_bot/internal/telegram/models"
)

// labels 账单文案表
// 只支持 zh/th 两套固定文案，不做通用 i18n
type labels struct {
	Title           string
	DepositSection  string
	WithdrawSection string
	NoRecords       string
	Gross           string
	FeeRate         string
	Actual          string
	NetBalance      string
	USDTEquivalent  string
	CountSuffix     string
}

var labelTables = map[string]labels{
	models.LanguageZH: {
		Title:           "📊 账单",
		DepositSection:  "入款",
		WithdrawSection: "下发",
		NoRecords:       "无记录",
		Gross:           "总额",
		FeeRate:         "费率",
		Actual:          "应下发",
		NetBalance:      "未下发",
		USDTEquivalent:  "USDT 等值",
		CountSuffix:     "笔",
	},
	models.LanguageTH: {
		Title:           "📊 บัญชี",
		DepositSection:  "ฝาก",
		WithdrawSection: "ถอน",
		NoRecords:       "ไม่มีรายการ",
		Gross:           "ยอดรวม",
		FeeRate:         "ค่าธรรมเนียม",
		Actual:          "ยอดสุทธิ",
		NetBalance:      "คงเหลือ",
		USDTEquivalent:  "เทียบเท่า USDT",
		CountSuffix:     "รายการ",
	},
}

// Format 将结算报告渲染为发送给群组的文本
func Format(report *Report) string {
	table, ok := labelTables[report.Language]
	if !ok {
		table = labelTables[models.LanguageZH]
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%s - %s\n\n", table.Title, report.GeneratedAt.Format("2006-01-02 15:04")))

	writeSection(&sb, table, table.DepositSection, report.Lines, models.RecordTypeDeposit, report.DepositCount)
	sb.WriteString(fmt.Sprintf("%s: %s | %s %s | %s: %s\n\n",
		table.Gross, formatAmount(report.GrossDeposits),
		table.FeeRate, formatMultiplier(report.FeeMultiplierIn),
		table.Actual, formatAmount(report.ActualDeposits)))

	writeSection(&sb, table, table.WithdrawSection, report.Lines, models.RecordTypeWithdraw, report.WithdrawCount)
	sb.WriteString(fmt.Sprintf("%s: %s | %s %s | %s: %s\n\n",
		table.Gross, formatAmount(report.GrossWithdrawals),
		table.FeeRate, formatMultiplier(report.FeeMultiplierOut),
		table.Actual, formatAmount(report.ActualWithdrawals)))

	sb.WriteString(fmt.Sprintf("%s: <b>%s</b>\n", table.NetBalance, formatAmount(report.NetBalance)))

	if report.ExchangeRate > 0 {
		sb.WriteString(fmt.Sprintf("%s: %s (1 USDT = %s)\n",
			table.USDTEquivalent,
			formatAmount(report.NetBalance/report.ExchangeRate),
			formatAmount(report.ExchangeRate)))
	}

	return sb.String()
}

// writeSection 输出一类记录的明细段
func writeSection(sb *strings.Builder, table labels, title string, lines []ReportLine, recordType string, count int) {
	sb.WriteString(fmt.Sprintf("%s (%d%s)\n", title, count, table.CountSuffix))

	if count == 0 {
		sb.WriteString(fmt.Sprintf("  %s\n", table.NoRecords))
		return
	}

	for _, line := range lines {
		if line.Type != recordType {
			continue
		}
		sb.WriteString(fmt.Sprintf("  %s  %s %s × %s = %s\n",
			line.RecordedAt.Format("15:04"),
			formatAmount(line.Amount),
			line.Currency,
			formatMultiplier(line.FeeMultiplier),
			formatAmount(line.Adjusted)))
	}
}

// formatAmount 格式化金额（整数省略小数位）
func formatAmount(amount float64) string {
	if amount == float64(int64(amount)) {
		return fmt.Sprintf("%d", int64(amount))
	}
	return fmt.Sprintf("%.2f", amount)
}

// formatMultiplier 格式化费率系数
func formatMultiplier(multiplier float64) string {
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.4f", multiplier), "0"), ".")
}
