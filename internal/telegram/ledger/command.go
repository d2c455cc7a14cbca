package ledger

import (
	"regexp"
	"strconv"
	"strings"

	"ledger_bot/internal/expr"
	"ledger_bot/internal/telegram/models"
)

// Kind 指令类型
type Kind string

const (
	KindWhoAmI             Kind = "whoami"                // 查询自己的用户 ID
	KindAddOperator        Kind = "add_operator"          // 添加操作人
	KindRemoveOperator     Kind = "remove_operator"       // 移除操作人
	KindListOperators      Kind = "list_operators"        // 查看操作人列表
	KindDeposit            Kind = "deposit"               // 入款
	KindWithdraw           Kind = "withdraw"              // 下发
	KindShowLedger         Kind = "show_ledger"           // 查询账单
	KindDailySettle        Kind = "daily_settle"          // 日结算
	KindReverseLast        Kind = "reverse_last"          // 撤销最近一笔
	KindSetIncomeFeeRate   Kind = "set_income_fee_rate"   // 设置入款费率
	KindSetOutgoingFeeRate Kind = "set_outgoing_fee_rate" // 设置下发费率
	KindSetExchangeRate    Kind = "set_exchange_rate"     // 设置汇率
	KindSetCutoffHour      Kind = "set_cutoff_hour"       // 设置切账小时
	KindSetLanguage        Kind = "set_language"          // 设置账单语言
	KindDeleteAll          Kind = "delete_all"            // 删除全部账单
	KindCalc               Kind = "calc"                  // 算术表达式
	KindUnrecognized       Kind = "unrecognized"          // 未识别（静默忽略）
)

// Target 指令作用的目标用户（来自被回复的消息或 text_mention 实体）
type Target struct {
	UserID int64
	Name   string
}

// Input 待解析的消息内容
type Input struct {
	Text      string
	ReplyFrom *Target // 被回复消息的发送者
	Mention   *Target // 消息中 text_mention 实体指向的用户
}

// Command 解析后的指令
// Err 非空表示指令被识别但参数校验失败，调用方应将 Err 文案回复给用户
type Command struct {
	Kind     Kind
	Amount   float64 // 入款/下发金额
	Currency string  // THB/USD
	Full     bool    // 是否完整账单
	Pct      float64 // 费率（百分比）
	Rate     float64 // 汇率
	Hour     int     // 切账小时
	Language string  // zh/th
	Expr     string  // 原始算术表达式
	Target   *Target // 操作人指令的目标用户
	Err      error
}

// 金额与费率的匹配模式
var (
	depositPattern      = regexp.MustCompile(`^\+(\d+(\.\d+)?)(\$)?$`)
	withdrawPattern     = regexp.MustCompile(`^-(\d+(\.\d+)?)(\$)?$`)
	incomeFeePattern    = regexp.MustCompile(`^入款费率\s*(-?\d+(\.\d+)?)$`)
	outgoingFeePattern  = regexp.MustCompile(`^下发费率\s*(-?\d+(\.\d+)?)$`)
	exchangeRatePattern = regexp.MustCompile(`^设置汇率\s*(\d+(\.\d+)?)$`)
	cutoffHourPattern   = regexp.MustCompile(`^设置切账\s*(-?\d+)$`)
)

// matcher 按优先级排列的（谓词, 构造器）对
// 返回 false 表示不匹配，交给下一条规则
type matcher func(in Input, text string) (Command, bool)

var matchers = []matcher{
	matchWhoAmI,
	matchAddOperator,
	matchRemoveOperator,
	matchListOperators,
	matchDeposit,
	matchWithdraw,
	matchShowLedger,
	matchShowLedgerFull,
	matchDailySettle,
	matchIncomeFeeRate,
	matchOutgoingFeeRate,
	matchReverseLast,
	matchExchangeRate,
	matchCutoffHour,
	matchLanguage,
	matchDeleteAll,
	matchCalc,
}

// Parse 将消息文本解析为指令
// 纯函数，对任意输入都返回且仅返回一个指令，从不 panic
// 未匹配任何规则时返回 KindUnrecognized，调用方应静默忽略
func Parse(in Input) Command {
	text := strings.TrimSpace(in.Text)
	if text == "" {
		return Command{Kind: KindUnrecognized}
	}

	for _, match := range matchers {
		if cmd, ok := match(in, text); ok {
			return cmd
		}
	}

	return Command{Kind: KindUnrecognized}
}

func matchWhoAmI(_ Input, text string) (Command, bool) {
	switch text {
	case "我的ID", "我的id", "/myid":
		return Command{Kind: KindWhoAmI}, true
	}
	return Command{}, false
}

func matchAddOperator(in Input, text string) (Command, bool) {
	if !strings.Contains(text, "添加权限") && !strings.Contains(text, "添加操作人") {
		return Command{}, false
	}

	// 目标优先取被回复消息的发送者，其次取 text_mention 实体
	target := in.ReplyFrom
	if target == nil {
		target = in.Mention
	}
	if target == nil {
		return Command{
			Kind: KindAddOperator,
			Err:  NewValidationError("请回复目标用户的消息，或在消息中 @提及 目标用户"),
		}, true
	}

	return Command{Kind: KindAddOperator, Target: target}, true
}

func matchRemoveOperator(in Input, text string) (Command, bool) {
	if !strings.Contains(text, "移除权限") && !strings.Contains(text, "删除操作人") {
		return Command{}, false
	}

	// 移除只接受回复消息的方式指定目标
	if in.ReplyFrom == nil {
		return Command{
			Kind: KindRemoveOperator,
			Err:  NewValidationError("请回复目标用户的消息以移除其权限"),
		}, true
	}

	return Command{Kind: KindRemoveOperator, Target: in.ReplyFrom}, true
}

func matchListOperators(_ Input, text string) (Command, bool) {
	switch text {
	case "操作人列表", "查看操作人":
		return Command{Kind: KindListOperators}, true
	}
	return Command{}, false
}

func matchDeposit(_ Input, text string) (Command, bool) {
	matches := depositPattern.FindStringSubmatch(text)
	if matches == nil {
		return matchAmountExpression(text, "+", KindDeposit)
	}

	amount, err := strconv.ParseFloat(matches[1], 64)
	if err != nil {
		return Command{}, false
	}
	if amount <= 0 {
		return Command{Kind: KindDeposit, Err: NewValidationError("金额必须大于 0")}, true
	}

	return Command{Kind: KindDeposit, Amount: amount, Currency: parseCurrencySuffix(matches[3])}, true
}

func matchWithdraw(_ Input, text string) (Command, bool) {
	matches := withdrawPattern.FindStringSubmatch(text)
	if matches == nil {
		return matchAmountExpression(text, "-", KindWithdraw)
	}

	amount, err := strconv.ParseFloat(matches[1], 64)
	if err != nil {
		return Command{}, false
	}
	if amount <= 0 {
		return Command{Kind: KindWithdraw, Err: NewValidationError("金额必须大于 0")}, true
	}

	return Command{Kind: KindWithdraw, Amount: amount, Currency: parseCurrencySuffix(matches[3])}, true
}

// matchAmountExpression 金额支持四则运算表达式，如 "+100*7.2" 记入款 720
// 前缀符号决定方向，余下部分必须是合法表达式；计算失败时不匹配，
// 交给后面的算术指令规则
func matchAmountExpression(text, prefix string, kind Kind) (Command, bool) {
	if !strings.HasPrefix(text, prefix) {
		return Command{}, false
	}

	payload := strings.TrimSpace(strings.TrimPrefix(text, prefix))
	currency := models.CurrencyTHB
	if strings.HasSuffix(payload, "$") {
		payload = strings.TrimSuffix(payload, "$")
		currency = models.CurrencyUSD
	}

	if !expr.IsMathExpression(payload) {
		return Command{}, false
	}
	amount, err := expr.Evaluate(payload)
	if err != nil {
		return Command{}, false
	}
	if amount <= 0 {
		return Command{Kind: kind, Err: NewValidationError("金额必须大于 0")}, true
	}

	return Command{Kind: kind, Amount: amount, Currency: currency}, true
}

func matchShowLedger(_ Input, text string) (Command, bool) {
	switch text {
	case "总账", "账单", "查询":
		return Command{Kind: KindShowLedger, Full: false}, true
	}
	return Command{}, false
}

func matchShowLedgerFull(_ Input, text string) (Command, bool) {
	switch text {
	case "结算", "全部", "完整账单":
		return Command{Kind: KindShowLedger, Full: true}, true
	}
	return Command{}, false
}

func matchDailySettle(_ Input, text string) (Command, bool) {
	switch text {
	case "日结算", "今日结算":
		return Command{Kind: KindDailySettle}, true
	}
	return Command{}, false
}

func matchIncomeFeeRate(_ Input, text string) (Command, bool) {
	matches := incomeFeePattern.FindStringSubmatch(text)
	if matches == nil {
		return Command{}, false
	}

	pct, err := strconv.ParseFloat(matches[1], 64)
	if err != nil {
		return Command{}, false
	}
	if !models.IsValidFeeRate(pct) {
		return Command{
			Kind: KindSetIncomeFeeRate,
			Err:  NewValidationError("入款费率必须在 -100 到 100 之间"),
		}, true
	}

	return Command{Kind: KindSetIncomeFeeRate, Pct: pct}, true
}

func matchOutgoingFeeRate(_ Input, text string) (Command, bool) {
	matches := outgoingFeePattern.FindStringSubmatch(text)
	if matches == nil {
		return Command{}, false
	}

	pct, err := strconv.ParseFloat(matches[1], 64)
	if err != nil {
		return Command{}, false
	}
	if !models.IsValidFeeRate(pct) {
		return Command{
			Kind: KindSetOutgoingFeeRate,
			Err:  NewValidationError("下发费率必须在 -100 到 100 之间"),
		}, true
	}

	return Command{Kind: KindSetOutgoingFeeRate, Pct: pct}, true
}

func matchReverseLast(_ Input, text string) (Command, bool) {
	switch text {
	case "撤销", "撤回":
		return Command{Kind: KindReverseLast}, true
	}
	return Command{}, false
}

func matchExchangeRate(_ Input, text string) (Command, bool) {
	matches := exchangeRatePattern.FindStringSubmatch(text)
	if matches == nil {
		return Command{}, false
	}

	rate, err := strconv.ParseFloat(matches[1], 64)
	if err != nil {
		return Command{}, false
	}
	if rate <= 0 {
		return Command{Kind: KindSetExchangeRate, Err: NewValidationError("汇率必须大于 0")}, true
	}

	return Command{Kind: KindSetExchangeRate, Rate: rate}, true
}

func matchCutoffHour(_ Input, text string) (Command, bool) {
	matches := cutoffHourPattern.FindStringSubmatch(text)
	if matches == nil {
		return Command{}, false
	}

	hour, err := strconv.Atoi(matches[1])
	if err != nil {
		return Command{}, false
	}
	if !models.IsValidCutoffHour(hour) {
		return Command{
			Kind: KindSetCutoffHour,
			Err:  NewValidationError("切账小时必须在 0 到 23 之间，-1 表示关闭自动切账"),
		}, true
	}

	return Command{Kind: KindSetCutoffHour, Hour: hour}, true
}

func matchLanguage(_ Input, text string) (Command, bool) {
	switch text {
	case "中文":
		return Command{Kind: KindSetLanguage, Language: models.LanguageZH}, true
	case "泰文", "ภาษาไทย":
		return Command{Kind: KindSetLanguage, Language: models.LanguageTH}, true
	}
	return Command{}, false
}

func matchDeleteAll(_ Input, text string) (Command, bool) {
	if strings.Contains(text, "删除") && strings.Contains(text, "账单") {
		return Command{Kind: KindDeleteAll}, true
	}
	return Command{}, false
}

func matchCalc(_ Input, text string) (Command, bool) {
	if expr.IsMathExpression(text) {
		return Command{Kind: KindCalc, Expr: text}, true
	}
	return Command{}, false
}

// parseCurrencySuffix "$" 后缀表示 USD，默认 THB
func parseCurrencySuffix(suffix string) string {
	if suffix == "$" {
		return models.CurrencyUSD
	}
	return models.CurrencyTHB
}
