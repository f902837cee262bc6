package filter

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/CESNET/ipfixcol-sub004/ie"
)

// Parser builds an Expr tree from filter source text, resolving IE operands
// against dict as it goes (spec.md §4.6: "Field operands may be IPFIX IEs
// (resolved via the element dictionary)"). Resolution happens once at parse
// time rather than per record, since a channel's filter is parsed once and
// evaluated many times.
type Parser struct {
	lex  *lexer
	tok  token
	dict ie.Dict
}

var syntheticFields = map[string]SyntheticField{
	"ODID":    SynODID,
	"SrcAddr": SynSrcAddr,
	"SrcPort": SynSrcPort,
	"DstAddr": SynDstAddr,
	"DstPort": SynDstPort,
}

// Parse compiles a filter expression string into an Expr, per the grammar
// of spec.md §4.6.
func Parse(src string, dict ie.Dict) (Expr, error) {
	p := &Parser{lex: newLexer(src), dict: dict}
	if err := p.advance(); err != nil {
		return nil, err
	}
	expr, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if p.tok.kind != tokEOF {
		return nil, fmt.Errorf("filter: unexpected trailing token %q", p.tok.text)
	}
	return expr, nil
}

func (p *Parser) advance() error {
	t, err := p.lex.next()
	if err != nil {
		return err
	}
	p.tok = t
	return nil
}

func (p *Parser) parseOr() (Expr, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.tok.kind == tokOr {
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = Or{Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseAnd() (Expr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.tok.kind == tokAnd {
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = And{Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseUnary() (Expr, error) {
	if p.tok.kind == tokNot {
		if err := p.advance(); err != nil {
			return nil, err
		}
		inner, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return Not{Inner: inner}, nil
	}
	return p.parsePrimary()
}

func (p *Parser) parsePrimary() (Expr, error) {
	switch p.tok.kind {
	case tokLParen:
		if err := p.advance(); err != nil {
			return nil, err
		}
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if p.tok.kind != tokRParen {
			return nil, fmt.Errorf("filter: expected ')'")
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
		return inner, nil

	case tokExists:
		if err := p.advance(); err != nil {
			return nil, err
		}
		field, err := p.parseField()
		if err != nil {
			return nil, err
		}
		return Exists{Field: field}, nil

	case tokIdent:
		field, err := p.parseField()
		if err != nil {
			return nil, err
		}
		return p.parseComparison(field)

	default:
		return nil, fmt.Errorf("filter: unexpected token %q", p.tok.text)
	}
}

func (p *Parser) parseField() (Field, error) {
	if p.tok.kind != tokIdent {
		return Field{}, fmt.Errorf("filter: expected field name, got %q", p.tok.text)
	}
	name := p.tok.text
	if err := p.advance(); err != nil {
		return Field{}, err
	}
	if syn, ok := syntheticFields[name]; ok {
		return Field{IsSynthetic: true, Synthetic: syn}, nil
	}
	if p.dict == nil {
		return Field{Name: name}, nil
	}
	res := p.dict.ByName(name, false)
	if res.Count == 0 {
		return Field{Name: name}, nil
	}
	return Field{Name: name, EnterpriseNumber: res.First.EnterpriseNumber, ElementID: res.First.ID}, nil
}

func (p *Parser) parseComparison(field Field) (Expr, error) {
	switch p.tok.kind {
	case tokOp:
		op, err := parseOp(p.tok.text)
		if err != nil {
			return nil, err
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
		val, err := p.parseValue()
		if err != nil {
			return nil, err
		}
		return Compare{Field: field, Op: op, Value: val}, nil

	case tokTilde:
		if err := p.advance(); err != nil {
			return nil, err
		}
		if p.tok.kind != tokString && p.tok.kind != tokRegex {
			return nil, fmt.Errorf("filter: expected string or regex after '~'")
		}
		m := Match{Field: field, Regex: p.tok.kind == tokRegex, Value: p.tok.text}
		if err := p.advance(); err != nil {
			return nil, err
		}
		return m, nil

	case tokIn:
		if err := p.advance(); err != nil {
			return nil, err
		}
		if p.tok.kind != tokIdent {
			return nil, fmt.Errorf("filter: expected a CIDR prefix after IN")
		}
		prefix := p.tok.text
		if err := p.advance(); err != nil {
			return nil, err
		}
		return CIDR{Field: field, Prefix: prefix}, nil

	default:
		return nil, fmt.Errorf("filter: expected comparison operator, got %q", p.tok.text)
	}
}

func parseOp(s string) (Op, error) {
	switch s {
	case "=":
		return Eq, nil
	case "!=":
		return Ne, nil
	case "<":
		return Lt, nil
	case "<=":
		return Le, nil
	case ">":
		return Gt, nil
	case ">=":
		return Ge, nil
	default:
		return 0, fmt.Errorf("filter: unknown operator %q", s)
	}
}

func (p *Parser) parseValue() (Value, error) {
	tok := p.tok
	if err := p.advance(); err != nil {
		return Value{}, err
	}
	switch tok.kind {
	case tokString:
		return Value{Kind: ValString, Text: tok.text}, nil
	case tokIdent:
		return parseLiteral(tok.text)
	default:
		return Value{}, fmt.Errorf("filter: unexpected value token %q", tok.text)
	}
}

// parseLiteral classifies a bare identifier token as a number, hex number,
// IPv4, IPv6, or timestamp literal, per spec.md §4.6's value grammar.
func parseLiteral(s string) (Value, error) {
	if strings.Contains(s, ":") && strings.Count(s, ":") >= 2 {
		if ip := parseIP(s); ip != nil {
			return Value{Kind: ValIPv6, IP: ip}, nil
		}
	}
	if strings.Count(s, ".") == 3 {
		if ip := parseIP(s); ip != nil {
			return Value{Kind: ValIPv4, IP: ip}, nil
		}
	}
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		n, err := strconv.ParseInt(s[2:], 16, 64)
		if err != nil {
			return Value{}, fmt.Errorf("filter: invalid hex literal %q", s)
		}
		return Value{Kind: ValNumber, Number: n}, nil
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return Value{Kind: ValNumber, Number: n}, nil
	}
	if millis, ok := parseTimestamp(s); ok {
		return Value{Kind: ValTimestamp, Millis: millis}, nil
	}
	return Value{Kind: ValString, Text: s}, nil
}
