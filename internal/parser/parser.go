// Package parser builds an ast.Strategy from AlgoScript tokens.
//
// The parser is single pass and never backtracks. Inside a handler body it
// skips tokens it does not recognise so that newer syntax degrades quietly.
package parser

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/algoscript/internal/ast"
	"github.com/rxtech-lab/algoscript/internal/lexer"
	"github.com/rxtech-lab/algoscript/internal/types"
)

// ParseError is a structural violation of the grammar.
type ParseError struct {
	Message string
	// Token is where the violation was detected. It may be nil.
	Token *lexer.Token
}

func (e *ParseError) Error() string {
	if e.Token != nil {
		return fmt.Sprintf("%s at line %d, column %d", e.Message, e.Token.Line, e.Token.Column)
	}

	return e.Message
}

func newParseError(message string, token lexer.Token) *ParseError {
	return &ParseError{Message: message, Token: &token}
}

type parser struct {
	tokens  []lexer.Token
	current int
}

// Parse converts tokens into a strategy. No partial strategy is returned on error.
func Parse(tokens []lexer.Token) (*ast.Strategy, error) {
	p := &parser{tokens: tokens}

	return p.parse()
}

func (p *parser) parse() (*ast.Strategy, error) {
	strategy := &ast.Strategy{EventHandlers: []ast.EventHandler{}}

	p.skipNewlines()

	symbol, err := p.parseSymbol()
	if err != nil {
		return nil, err
	}

	strategy.Symbol = symbol

	p.skipNewlines()

	timeframe, err := p.parseTimeframe()
	if err != nil {
		return nil, err
	}

	strategy.Timeframe = timeframe

	p.skipNewlines()

	for !p.isAtEnd() && !p.check(lexer.KindEnd) {
		if p.check(lexer.KindOn) {
			handler, err := p.parseEventHandler()
			if err != nil {
				return nil, err
			}

			strategy.EventHandlers = append(strategy.EventHandlers, handler)
		} else {
			p.advance()
		}

		p.skipNewlines()
	}

	return strategy, nil
}

func (p *parser) parseSymbol() (string, error) {
	if !p.match(lexer.KindSymbol) {
		return "", newParseError("Expected SYMBOL declaration", p.peek())
	}

	if !p.check(lexer.KindString) {
		return "", newParseError("Expected symbol name as string", p.peek())
	}

	return p.advance().Text, nil
}

func (p *parser) parseTimeframe() (string, error) {
	if !p.match(lexer.KindTimeframe) {
		return "", newParseError("Expected TIMEFRAME declaration", p.peek())
	}

	tok := p.advance()
	if tok.Kind.IsTimeframe() || tok.Kind == lexer.KindString {
		return tok.Text, nil
	}

	return "", newParseError("Expected valid timeframe", tok)
}

func (p *parser) parseEventHandler() (ast.EventHandler, error) {
	p.match(lexer.KindOn)

	eventTok := p.advance()
	if !eventTok.Kind.IsEvent() {
		return ast.EventHandler{}, newParseError("Expected valid event type", eventTok)
	}

	if !p.match(lexer.KindColon) {
		return ast.EventHandler{}, newParseError("Expected ':' after event type", p.peek())
	}

	p.skipNewlines()

	handler := ast.EventHandler{
		EventType:  types.EventType(eventTok.Text),
		Conditions: []ast.Condition{},
		Actions:    []ast.Action{},
	}

	for !p.isAtEnd() && !p.check(lexer.KindOn) && !p.check(lexer.KindEnd) {
		switch kind := p.peek().Kind; {
		case kind == lexer.KindIf:
			p.advance()

			condition, err := p.parseIf()
			if err != nil {
				return ast.EventHandler{}, err
			}

			handler.Conditions = append(handler.Conditions, condition)
		case kind.IsAction():
			action, err := p.parseAction()
			if err != nil {
				return ast.EventHandler{}, err
			}

			handler.Actions = append(handler.Actions, action)
		default:
			p.advance()
		}

		p.skipNewlines()
	}

	return handler, nil
}

// parseIf parses one IF clause: a single comparison and an optional trailing
// AND/OR. Anything after the connective is left for the handler loop to skip.
func (p *parser) parseIf() (ast.Condition, error) {
	condition, err := p.parseCondition()
	if err != nil {
		return ast.Condition{}, err
	}

	if p.check(lexer.KindAnd) || p.check(lexer.KindOr) {
		condition.LogicalOp = ast.LogicalOp(p.advance().Text)
	}

	return condition, nil
}

func (p *parser) parseCondition() (ast.Condition, error) {
	left, err := p.parseExpression()
	if err != nil {
		return ast.Condition{}, err
	}

	opTok := p.peek()
	if opTok.Kind == lexer.KindNewline || opTok.Kind == lexer.KindEOF {
		return ast.Condition{}, newParseError("Expected comparison operator", opTok)
	}

	p.advance()

	switch opTok.Kind {
	case lexer.KindCrosses:
		return p.parseCrosses(left)
	case lexer.KindIs:
		return p.parseIs(left)
	case lexer.KindLessThan:
		return p.parseBinary(left, ast.OpLessThan)
	case lexer.KindGreaterThan:
		return p.parseBinary(left, ast.OpGreaterThan)
	default:
		return p.parseBinary(left, opTok.Text)
	}
}

func (p *parser) parseBinary(left ast.ValueRef, operator string) (ast.Condition, error) {
	right, err := p.parseExpression()
	if err != nil {
		return ast.Condition{}, err
	}

	return ast.Condition{Left: left, Operator: operator, Right: right}, nil
}

// parseCrosses accepts both "CROSSES UPWARDS level" and "CROSSES level UPWARDS".
func (p *parser) parseCrosses(left ast.ValueRef) (ast.Condition, error) {
	if direction, ok := p.matchDirection(); ok {
		return p.parseBinary(left, "CROSSES_"+direction)
	}

	right, err := p.parseExpression()
	if err != nil {
		return ast.Condition{}, err
	}

	direction, ok := p.matchDirection()
	if !ok {
		return ast.Condition{}, newParseError("Expected UPWARDS or DOWNWARDS after CROSSES", p.peek())
	}

	return ast.Condition{Left: left, Operator: "CROSSES_" + direction, Right: right}, nil
}

func (p *parser) matchDirection() (string, bool) {
	if p.check(lexer.KindUpwards) || p.check(lexer.KindDownwards) {
		return string(p.advance().Kind), true
	}

	return "", false
}

func (p *parser) parseIs(left ast.ValueRef) (ast.Condition, error) {
	switch p.peek().Kind {
	case lexer.KindPositive:
		p.advance()

		return ast.Condition{Left: left, Operator: ast.OpIsPositive, Right: ast.NumberRef{Value: 0}}, nil
	case lexer.KindNegative:
		p.advance()

		return ast.Condition{Left: left, Operator: ast.OpIsNegative, Right: ast.NumberRef{Value: 0}}, nil
	case lexer.KindLessThan:
		p.advance()

		return p.parseBinary(left, ast.OpIsLessThan)
	case lexer.KindGreaterThan:
		p.advance()

		return p.parseBinary(left, ast.OpIsGreaterThan)
	default:
		return p.parseBinary(left, ast.OpIs)
	}
}

func (p *parser) parseExpression() (ast.ValueRef, error) {
	tok := p.peek()

	switch {
	case tok.Kind == lexer.KindNewline || tok.Kind == lexer.KindEOF:
		return nil, newParseError("Expected expression", tok)
	case tok.Kind == lexer.KindPrice:
		p.advance()

		return ast.StateRef{Name: ast.StatePrice}, nil
	case tok.Kind == lexer.KindEntryPrice:
		p.advance()

		return ast.StateRef{Name: ast.StateEntryPrice}, nil
	case tok.Kind == lexer.KindBalance:
		p.advance()

		return ast.StateRef{Name: ast.StateBalance}, nil
	case tok.Kind.IsIndicator() || tok.Kind == lexer.KindVolume:
		return p.parseIndicator()
	case tok.Kind == lexer.KindNumber:
		p.advance()

		return ast.NumberRef{Value: parseFloat(tok.Text)}, nil
	case tok.Kind == lexer.KindPercentage:
		p.advance()

		return ast.NumberRef{Value: parsePercentage(tok.Text) / 100.0}, nil
	default:
		p.advance()

		return ast.RawRef{Text: tok.Text}, nil
	}
}

func (p *parser) parseIndicator() (ast.ValueRef, error) {
	nameTok := p.advance()
	call := ast.IndicatorCall{
		Name:      types.IndicatorType(nameTok.Text),
		Period:    optional.None[int](),
		Timeframe: optional.None[string](),
	}

	if !p.match(lexer.KindLParen) {
		return call, nil
	}

	param := p.advance()

	switch {
	case param.Kind == lexer.KindNumber:
		call.Period = optional.Some(int(parseFloat(param.Text)))
	case param.Kind.IsTimeframe():
		call.Timeframe = optional.Some(param.Text)
	default:
		return nil, newParseError("Expected valid indicator parameter", param)
	}

	if !p.match(lexer.KindRParen) {
		return nil, newParseError("Expected ')' after indicator parameter", p.peek())
	}

	return call, nil
}

func (p *parser) parseAction() (ast.Action, error) {
	tok := p.advance()

	switch tok.Kind {
	case lexer.KindBuy:
		return p.parseBuy(), nil
	case lexer.KindSell:
		return p.parseSell(), nil
	case lexer.KindSet:
		return p.parseSet(), nil
	case lexer.KindLog:
		return p.parseLog(), nil
	}

	return nil, newParseError("Expected action", tok)
}

func (p *parser) parseBuy() ast.BuyAction {
	action := ast.BuyAction{LimitBase: optional.None[ast.StateName]()}

	switch {
	case p.check(lexer.KindPercentage):
		amount := ast.PercentageAmount{Percent: parsePercentage(p.advance().Text)}
		if p.match(lexer.KindOf) && p.match(lexer.KindBalance) {
			amount.Of = ast.AmountOfBalance
		}

		action.Amount = amount
	case p.check(lexer.KindNumber):
		action.Amount = ast.AbsoluteAmount{Quantity: parseFloat(p.advance().Text)}
	}

	if p.match(lexer.KindWith) {
		orderTok, ok := p.advanceInLine()
		if ok && (orderTok.Kind == lexer.KindMarketOrder || orderTok.Kind == lexer.KindLimitOrder) {
			action.OrderType = types.OrderType(orderTok.Kind)

			if orderTok.Kind == lexer.KindLimitOrder && p.match(lexer.KindAt) && p.match(lexer.KindPrice) {
				action.LimitBase = optional.Some(ast.StatePrice)
			}
		}
	}

	return action
}

func (p *parser) parseSell() ast.SellAction {
	action := ast.SellAction{}

	switch {
	case p.check(lexer.KindPercentage):
		amount := ast.PercentageAmount{Percent: parsePercentage(p.advance().Text)}
		if p.match(lexer.KindOf) && p.match(lexer.KindPosition) {
			amount.Of = ast.AmountOfPosition
		}

		action.Amount = amount
	case p.check(lexer.KindNumber):
		action.Amount = ast.AbsoluteAmount{Quantity: parseFloat(p.advance().Text)}
	}

	if p.match(lexer.KindWith) {
		orderTok, ok := p.advanceInLine()
		if ok && (orderTok.Kind == lexer.KindMarketOrder || orderTok.Kind == lexer.KindLimitOrder) {
			action.OrderType = types.OrderType(orderTok.Kind)
		}
	}

	return action
}

func (p *parser) parseSet() ast.SetAction {
	action := ast.SetAction{Percentage: optional.None[float64]()}

	target, ok := p.advanceInLine()
	if !ok {
		return action
	}

	action.Target = ast.SetTarget(target.Text)

	if !p.match(lexer.KindAt) || !p.check(lexer.KindPercentage) {
		return action
	}

	action.Percentage = optional.Some(parsePercentage(p.advance().Text))

	direction, ok := p.advanceInLine()
	if !ok || (direction.Kind != lexer.KindAbove && direction.Kind != lexer.KindBelow) {
		return action
	}

	action.Direction = ast.Direction(direction.Kind)

	if base, ok := p.advanceInLine(); ok {
		action.Base = base.Text
	}

	return action
}

func (p *parser) parseLog() ast.LogAction {
	if p.check(lexer.KindString) {
		return ast.LogAction{Message: p.advance().Text}
	}

	return ast.LogAction{}
}

func parseFloat(text string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSuffix(text, "."), 64)
	if err != nil {
		return 0
	}

	return v
}

func parsePercentage(text string) float64 {
	return parseFloat(strings.TrimSuffix(text, "%"))
}

// advanceInLine consumes the current token unless it ends the line.
func (p *parser) advanceInLine() (lexer.Token, bool) {
	if p.check(lexer.KindNewline) || p.isAtEnd() {
		return lexer.Token{}, false
	}

	return p.advance(), true
}

func (p *parser) match(kind lexer.Kind) bool {
	if p.check(kind) {
		p.advance()

		return true
	}

	return false
}

func (p *parser) check(kind lexer.Kind) bool {
	if p.isAtEnd() {
		return false
	}

	return p.peek().Kind == kind
}

// advance consumes and returns the current token. At the end of input it
// returns the EOF token without moving.
func (p *parser) advance() lexer.Token {
	tok := p.peek()
	if !p.isAtEnd() {
		p.current++
	}

	return tok
}

func (p *parser) isAtEnd() bool {
	return p.current >= len(p.tokens) || p.tokens[p.current].Kind == lexer.KindEOF
}

func (p *parser) peek() lexer.Token {
	if p.current >= len(p.tokens) {
		return lexer.Token{Kind: lexer.KindEOF}
	}

	return p.tokens[p.current]
}

func (p *parser) skipNewlines() {
	for p.check(lexer.KindNewline) {
		p.advance()
	}
}
