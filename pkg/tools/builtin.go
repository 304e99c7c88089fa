package tools

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

// ============================================================================
// CALCULATOR
// ============================================================================

// CalculatorTool evaluates arithmetic expressions: + - * / and ** with
// right-associative exponentiation, parentheses, the constants pi and e,
// and the functions sqrt, sin, cos, tan, log, log10.
type CalculatorTool struct{}

func NewCalculatorTool() *CalculatorTool {
	return &CalculatorTool{}
}

func (t *CalculatorTool) GetName() string { return "calculator" }

func (t *CalculatorTool) GetDescription() string {
	return "Evaluate an arithmetic expression. Supports + - * / ** ( ), the constants pi and e, and sqrt, sin, cos, tan, log, log10."
}

func (t *CalculatorTool) GetInfo() ToolInfo {
	return ToolInfo{
		Name:        t.GetName(),
		Description: t.GetDescription(),
		Parameters: []ToolParameter{
			{
				Name:        "expression",
				Type:        "string",
				Description: "The arithmetic expression to evaluate, e.g. '2 * (3 + 4)' or 'sqrt(16) + 2**3'",
				Required:    true,
			},
		},
	}
}

func (t *CalculatorTool) Execute(ctx context.Context, args map[string]any) (ToolResult, error) {
	expression, _ := args["expression"].(string)
	expression = strings.TrimSpace(expression)
	if expression == "" {
		return errorResult(t.GetName(), "expression cannot be empty"), nil
	}

	value, err := evalExpression(expression)
	if err != nil {
		return errorResult(t.GetName(), fmt.Sprintf("Error calculating '%s': %v", expression, err)), nil
	}

	formatted := strconv.FormatFloat(value, 'g', -1, 64)
	result := successResult(t.GetName(), fmt.Sprintf("The result of %s is %s", expression, formatted))
	result.Metadata = map[string]any{"value": value}
	return result, nil
}

// exprParser is a recursive-descent evaluator with the usual precedence:
// unary sign binds looser than **, so -2**2 is -4, and ** is
// right-associative, so 2**3**2 is 512.
type exprParser struct {
	input string
	pos   int
}

func evalExpression(expression string) (float64, error) {
	p := &exprParser{input: expression}
	value, err := p.parseExpr()
	if err != nil {
		return 0, err
	}
	p.skipSpaces()
	if p.pos < len(p.input) {
		return 0, fmt.Errorf("unexpected character %q at position %d", p.input[p.pos], p.pos)
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, fmt.Errorf("result is not a finite number")
	}
	return value, nil
}

func (p *exprParser) parseExpr() (float64, error) {
	left, err := p.parseTerm()
	if err != nil {
		return 0, err
	}
	for {
		p.skipSpaces()
		switch {
		case p.consume('+'):
			right, err := p.parseTerm()
			if err != nil {
				return 0, err
			}
			left += right
		case p.consume('-'):
			right, err := p.parseTerm()
			if err != nil {
				return 0, err
			}
			left -= right
		default:
			return left, nil
		}
	}
}

func (p *exprParser) parseTerm() (float64, error) {
	left, err := p.parseFactor()
	if err != nil {
		return 0, err
	}
	for {
		p.skipSpaces()
		switch {
		case p.consume('*'):
			right, err := p.parseFactor()
			if err != nil {
				return 0, err
			}
			left *= right
		case p.consume('/'):
			right, err := p.parseFactor()
			if err != nil {
				return 0, err
			}
			if right == 0 {
				return 0, fmt.Errorf("division by zero")
			}
			left /= right
		default:
			return left, nil
		}
	}
}

func (p *exprParser) parseFactor() (float64, error) {
	p.skipSpaces()
	if p.consume('+') {
		return p.parseFactor()
	}
	if p.consume('-') {
		value, err := p.parseFactor()
		return -value, err
	}
	return p.parsePower()
}

func (p *exprParser) parsePower() (float64, error) {
	base, err := p.parseAtom()
	if err != nil {
		return 0, err
	}
	p.skipSpaces()
	if p.consumeWord("**") {
		// Exponent may carry its own sign: 2**-3.
		exponent, err := p.parseFactor()
		if err != nil {
			return 0, err
		}
		return math.Pow(base, exponent), nil
	}
	return base, nil
}

func (p *exprParser) parseAtom() (float64, error) {
	p.skipSpaces()
	if p.pos >= len(p.input) {
		return 0, fmt.Errorf("unexpected end of expression")
	}

	c := p.input[p.pos]
	switch {
	case c == '(':
		p.pos++
		value, err := p.parseExpr()
		if err != nil {
			return 0, err
		}
		p.skipSpaces()
		if !p.consume(')') {
			return 0, fmt.Errorf("missing closing parenthesis")
		}
		return value, nil
	case c >= '0' && c <= '9' || c == '.':
		return p.parseNumber()
	case isIdentChar(rune(c)):
		return p.parseIdent()
	default:
		return 0, fmt.Errorf("unexpected character %q at position %d", c, p.pos)
	}
}

func (p *exprParser) parseNumber() (float64, error) {
	start := p.pos
	for p.pos < len(p.input) {
		c := p.input[p.pos]
		if (c >= '0' && c <= '9') || c == '.' {
			p.pos++
			continue
		}
		break
	}
	text := p.input[start:p.pos]
	value, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q", text)
	}
	return value, nil
}

func (p *exprParser) parseIdent() (float64, error) {
	start := p.pos
	for p.pos < len(p.input) && isIdentChar(rune(p.input[p.pos])) {
		p.pos++
	}
	name := p.input[start:p.pos]

	switch name {
	case "pi":
		return math.Pi, nil
	case "e":
		return math.E, nil
	}

	p.skipSpaces()
	if !p.consume('(') {
		return 0, fmt.Errorf("unknown identifier %q", name)
	}
	arg, err := p.parseExpr()
	if err != nil {
		return 0, err
	}
	p.skipSpaces()
	if !p.consume(')') {
		return 0, fmt.Errorf("missing closing parenthesis after %s", name)
	}

	switch name {
	case "sqrt":
		if arg < 0 {
			return 0, fmt.Errorf("sqrt of negative number")
		}
		return math.Sqrt(arg), nil
	case "sin":
		return math.Sin(arg), nil
	case "cos":
		return math.Cos(arg), nil
	case "tan":
		return math.Tan(arg), nil
	case "log":
		if arg <= 0 {
			return 0, fmt.Errorf("log of non-positive number")
		}
		return math.Log(arg), nil
	case "log10":
		if arg <= 0 {
			return 0, fmt.Errorf("log10 of non-positive number")
		}
		return math.Log10(arg), nil
	default:
		return 0, fmt.Errorf("unknown function %q", name)
	}
}

func (p *exprParser) skipSpaces() {
	for p.pos < len(p.input) && (p.input[p.pos] == ' ' || p.input[p.pos] == '\t') {
		p.pos++
	}
}

func (p *exprParser) consume(c byte) bool {
	if p.pos < len(p.input) && p.input[p.pos] == c {
		// A lone '*' is multiplication only when not the start of '**'.
		if c == '*' && p.pos+1 < len(p.input) && p.input[p.pos+1] == '*' {
			return false
		}
		p.pos++
		return true
	}
	return false
}

func (p *exprParser) consumeWord(word string) bool {
	if strings.HasPrefix(p.input[p.pos:], word) {
		p.pos += len(word)
		return true
	}
	return false
}

func isIdentChar(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_'
}

// ============================================================================
// CURRENT TIME
// ============================================================================

const defaultTimeLayout = "2006-01-02 15:04:05"

// CurrentTimeTool reports the current time, optionally in a caller-supplied
// Go reference layout.
type CurrentTimeTool struct {
	now func() time.Time
}

func NewCurrentTimeTool() *CurrentTimeTool {
	return &CurrentTimeTool{now: time.Now}
}

func (t *CurrentTimeTool) GetName() string { return "current_time" }

func (t *CurrentTimeTool) GetDescription() string {
	return "Get the current date and time."
}

func (t *CurrentTimeTool) GetInfo() ToolInfo {
	return ToolInfo{
		Name:        t.GetName(),
		Description: t.GetDescription(),
		Parameters: []ToolParameter{
			{
				Name:        "format",
				Type:        "string",
				Description: "Go time layout to format with, e.g. '2006-01-02'",
				Default:     defaultTimeLayout,
			},
		},
	}
}

func (t *CurrentTimeTool) Execute(ctx context.Context, args map[string]any) (ToolResult, error) {
	layout, _ := args["format"].(string)
	if layout == "" {
		layout = defaultTimeLayout
	}
	formatted := t.now().Format(layout)
	return successResult(t.GetName(), fmt.Sprintf("Current time: %s", formatted)), nil
}

// ============================================================================
// STRING REVERSE
// ============================================================================

// StringReverseTool reverses the runes of a string.
type StringReverseTool struct{}

func NewStringReverseTool() *StringReverseTool {
	return &StringReverseTool{}
}

func (t *StringReverseTool) GetName() string { return "string_reverse" }

func (t *StringReverseTool) GetDescription() string {
	return "Reverse the characters of a text."
}

func (t *StringReverseTool) GetInfo() ToolInfo {
	return ToolInfo{
		Name:        t.GetName(),
		Description: t.GetDescription(),
		Parameters: []ToolParameter{
			{
				Name:        "text",
				Type:        "string",
				Description: "The text to reverse",
				Required:    true,
			},
		},
	}
}

func (t *StringReverseTool) Execute(ctx context.Context, args map[string]any) (ToolResult, error) {
	text, _ := args["text"].(string)
	runes := []rune(text)
	for i, j := 0, len(runes)-1; i < j; i, j = i+1, j-1 {
		runes[i], runes[j] = runes[j], runes[i]
	}
	return successResult(t.GetName(), fmt.Sprintf("Reversed string: %s", string(runes))), nil
}

// ============================================================================
// WORD COUNT
// ============================================================================

// WordCountTool counts words, characters, or lines in a text.
type WordCountTool struct{}

func NewWordCountTool() *WordCountTool {
	return &WordCountTool{}
}

func (t *WordCountTool) GetName() string { return "word_count" }

func (t *WordCountTool) GetDescription() string {
	return "Count words, characters, or lines in a text."
}

func (t *WordCountTool) GetInfo() ToolInfo {
	return ToolInfo{
		Name:        t.GetName(),
		Description: t.GetDescription(),
		Parameters: []ToolParameter{
			{
				Name:        "text",
				Type:        "string",
				Description: "The text to analyze",
				Required:    true,
			},
			{
				Name:        "count_type",
				Type:        "string",
				Description: "What to count",
				Default:     "words",
				Enum:        []string{"words", "characters", "lines"},
			},
		},
	}
}

func (t *WordCountTool) Execute(ctx context.Context, args map[string]any) (ToolResult, error) {
	text, _ := args["text"].(string)
	countType, _ := args["count_type"].(string)
	if countType == "" {
		countType = "words"
	}

	switch countType {
	case "words":
		return successResult(t.GetName(), fmt.Sprintf("Word count: %d", len(strings.Fields(text)))), nil
	case "characters":
		return successResult(t.GetName(), fmt.Sprintf("Character count: %d", utf8.RuneCountInString(text))), nil
	case "lines":
		return successResult(t.GetName(), fmt.Sprintf("Line count: %d", countLines(text))), nil
	default:
		return errorResult(t.GetName(), fmt.Sprintf("unknown count_type %q", countType)), nil
	}
}

func countLines(text string) int {
	if text == "" {
		return 0
	}
	n := strings.Count(text, "\n")
	if !strings.HasSuffix(text, "\n") {
		n++
	}
	return n
}
