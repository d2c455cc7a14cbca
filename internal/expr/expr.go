package expr

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// parser 四则运算表达式解析器
// 支持 +, -, *, / 与括号，递归下降实现，不执行任何代码
type parser struct {
	input    string
	position int
	current  rune
}

// Evaluate 计算四则运算表达式
// 返回计算结果；表达式非法或出现除零时返回错误
func Evaluate(input string) (float64, error) {
	// 移除所有空格
	input = strings.ReplaceAll(input, " ", "")

	if input == "" {
		return 0, fmt.Errorf("表达式为空")
	}

	p := &parser{input: input, current: rune(input[0])}

	result, err := p.parseExpr()
	if err != nil {
		return 0, err
	}

	// 解析结束后不允许残留字符
	if p.position < len(p.input) {
		return 0, fmt.Errorf("表达式包含无效字符: %c", p.current)
	}

	return result, nil
}

// advance 移动到下一个字符
func (p *parser) advance() {
	p.position++
	if p.position < len(p.input) {
		p.current = rune(p.input[p.position])
	}
}

// parseExpr 解析表达式: Term (('+' | '-') Term)*
func (p *parser) parseExpr() (float64, error) {
	result, err := p.parseTerm()
	if err != nil {
		return 0, err
	}

	for p.position < len(p.input) && (p.current == '+' || p.current == '-') {
		op := p.current
		p.advance()

		term, err := p.parseTerm()
		if err != nil {
			return 0, err
		}

		if op == '+' {
			result += term
		} else {
			result -= term
		}
	}

	return result, nil
}

// parseTerm 解析项: Factor (('*' | '/') Factor)*
func (p *parser) parseTerm() (float64, error) {
	result, err := p.parseFactor()
	if err != nil {
		return 0, err
	}

	for p.position < len(p.input) && (p.current == '*' || p.current == '/') {
		op := p.current
		p.advance()

		factor, err := p.parseFactor()
		if err != nil {
			return 0, err
		}

		if op == '*' {
			result *= factor
		} else {
			if factor == 0 {
				return 0, fmt.Errorf("除数不能为零")
			}
			result /= factor
		}
	}

	return result, nil
}

// parseFactor 解析因子: Number | '(' Expr ')' | ('+' | '-') Factor
func (p *parser) parseFactor() (float64, error) {
	if p.position >= len(p.input) {
		return 0, fmt.Errorf("表达式意外结束")
	}

	// 一元负号
	if p.current == '-' {
		p.advance()
		factor, err := p.parseFactor()
		if err != nil {
			return 0, err
		}
		return -factor, nil
	}

	// 一元正号
	if p.current == '+' {
		p.advance()
		return p.parseFactor()
	}

	// 括号
	if p.current == '(' {
		p.advance()
		result, err := p.parseExpr()
		if err != nil {
			return 0, err
		}

		if p.position >= len(p.input) || p.current != ')' {
			return 0, fmt.Errorf("缺少右括号")
		}
		p.advance()
		return result, nil
	}

	return p.parseNumber()
}

// parseNumber 解析数字（整数或小数）
func (p *parser) parseNumber() (float64, error) {
	start := p.position

	for p.position < len(p.input) && (unicode.IsDigit(p.current) || p.current == '.') {
		p.advance()
	}

	if start == p.position {
		if p.position < len(p.input) {
			return 0, fmt.Errorf("无效的字符: %c", p.current)
		}
		return 0, fmt.Errorf("表达式结尾缺少数字")
	}

	numStr := p.input[start:p.position]
	num, err := strconv.ParseFloat(numStr, 64)
	if err != nil {
		return 0, fmt.Errorf("无效的数字: %s", numStr)
	}

	return num, nil
}

// IsMathExpression 判断文本是否为数学表达式
// 只包含数字、运算符、括号与小数点，至少含一个数字和一个运算符，
// 且不以运算符结尾（开头的负号不算运算符）
func IsMathExpression(text string) bool {
	text = strings.TrimSpace(text)
	if text == "" {
		return false
	}

	for _, ch := range text {
		switch {
		case unicode.IsDigit(ch):
		case ch == '+' || ch == '-' || ch == '*' || ch == '/':
		case ch == '(' || ch == ')' || ch == '.' || ch == ' ':
		default:
			return false
		}
	}

	cleaned := strings.ReplaceAll(text, " ", "")
	if cleaned == "" {
		return false
	}

	hasDigit := false
	for _, ch := range cleaned {
		if unicode.IsDigit(ch) {
			hasDigit = true
			break
		}
	}
	if !hasDigit {
		return false
	}

	// 排除纯数字：必须包含至少一个真正的运算符
	hasOperator := false
	for i, ch := range cleaned {
		switch ch {
		case '+', '*', '/':
			hasOperator = true
		case '-':
			if i > 0 {
				hasOperator = true
			}
		}
		if hasOperator {
			break
		}
	}
	if !hasOperator {
		return false
	}

	last := cleaned[len(cleaned)-1]
	if last == '+' || last == '-' || last == '*' || last == '/' {
		return false
	}

	return true
}
