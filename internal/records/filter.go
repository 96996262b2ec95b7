package records

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// ErrBadFilter wraps every filter syntax or field error.
var ErrBadFilter = errors.New("invalid filter")

type tokenKind int

const (
	tEOF tokenKind = iota
	tIdent
	tString
	tNumber
	tOp
	tAnd
	tOr
	tLParen
	tRParen
)

type token struct {
	kind tokenKind
	text string
}

func lex(src string) ([]token, error) {
	var toks []token
	rs := []rune(src)
	for i := 0; i < len(rs); {
		r := rs[i]
		switch {
		case unicode.IsSpace(r):
			i++
		case r == '(':
			toks = append(toks, token{tLParen, "("})
			i++
		case r == ')':
			toks = append(toks, token{tRParen, ")"})
			i++
		case r == '&' && i+1 < len(rs) && rs[i+1] == '&':
			toks = append(toks, token{tAnd, "&&"})
			i += 2
		case r == '|' && i+1 < len(rs) && rs[i+1] == '|':
			toks = append(toks, token{tOr, "||"})
			i += 2
		case strings.ContainsRune("=!~<>", r):
			op := string(r)
			if i+1 < len(rs) && (rs[i+1] == '=' || rs[i+1] == '~') && r != '=' && r != '~' {
				op += string(rs[i+1])
			}
			switch op {
			case "=", "!=", "~", "!~", "<", "<=", ">", ">=":
			default:
				return nil, fmt.Errorf("%w: unknown operator %q", ErrBadFilter, op)
			}
			toks = append(toks, token{tOp, op})
			i += len(op)
		case r == '\'' || r == '"':
			quote := r
			var b strings.Builder
			j := i + 1
			for ; j < len(rs) && rs[j] != quote; j++ {
				if rs[j] == '\\' && j+1 < len(rs) {
					j++
				}
				b.WriteRune(rs[j])
			}
			if j >= len(rs) {
				return nil, fmt.Errorf("%w: unterminated string", ErrBadFilter)
			}
			toks = append(toks, token{tString, b.String()})
			i = j + 1
		case r == '-' || unicode.IsDigit(r):
			j := i + 1
			for j < len(rs) && (unicode.IsDigit(rs[j]) || rs[j] == '.') {
				j++
			}
			toks = append(toks, token{tNumber, string(rs[i:j])})
			i = j
		case unicode.IsLetter(r) || r == '_':
			j := i + 1
			for j < len(rs) && (unicode.IsLetter(rs[j]) || unicode.IsDigit(rs[j]) || rs[j] == '_') {
				j++
			}
			toks = append(toks, token{tIdent, string(rs[i:j])})
			i = j
		default:
			return nil, fmt.Errorf("%w: unexpected %q", ErrBadFilter, r)
		}
	}
	return append(toks, token{kind: tEOF}), nil
}

type filterParser struct {
	col  *Collection
	toks []token
	pos  int
	args []any
}

// buildFilter translates a record filter such as
// (manga='abc' && idx>=3) || title~'berserk' into a SQL condition.
func buildFilter(col *Collection, src string) (string, []any, error) {
	if strings.TrimSpace(src) == "" {
		return "", nil, nil
	}
	toks, err := lex(src)
	if err != nil {
		return "", nil, err
	}
	p := &filterParser{col: col, toks: toks}
	sql, err := p.or()
	if err != nil {
		return "", nil, err
	}
	if p.peek().kind != tEOF {
		return "", nil, fmt.Errorf("%w: unexpected %q", ErrBadFilter, p.peek().text)
	}
	return sql, p.args, nil
}

func (p *filterParser) peek() token { return p.toks[p.pos] }

func (p *filterParser) next() token {
	t := p.toks[p.pos]
	if t.kind != tEOF {
		p.pos++
	}
	return t
}

func (p *filterParser) or() (string, error) {
	left, err := p.and()
	if err != nil {
		return "", err
	}
	for p.peek().kind == tOr {
		p.next()
		right, err := p.and()
		if err != nil {
			return "", err
		}
		left = "(" + left + " OR " + right + ")"
	}
	return left, nil
}

func (p *filterParser) and() (string, error) {
	left, err := p.unary()
	if err != nil {
		return "", err
	}
	for p.peek().kind == tAnd {
		p.next()
		right, err := p.unary()
		if err != nil {
			return "", err
		}
		left = "(" + left + " AND " + right + ")"
	}
	return left, nil
}

func (p *filterParser) unary() (string, error) {
	if p.peek().kind == tLParen {
		p.next()
		inner, err := p.or()
		if err != nil {
			return "", err
		}
		if p.next().kind != tRParen {
			return "", fmt.Errorf("%w: missing )", ErrBadFilter)
		}
		return inner, nil
	}
	return p.cond()
}

func (p *filterParser) cond() (string, error) {
	ft := p.next()
	if ft.kind != tIdent {
		return "", fmt.Errorf("%w: expected field, got %q", ErrBadFilter, ft.text)
	}
	column, kind, ok := p.col.column(ft.text)
	if !ok || kind == kindFiles {
		return "", fmt.Errorf("%w: unknown field %q", ErrBadFilter, ft.text)
	}

	op := p.next()
	if op.kind != tOp {
		return "", fmt.Errorf("%w: expected operator after %s", ErrBadFilter, ft.text)
	}

	vt := p.next()
	var val any
	switch vt.kind {
	case tString:
		val = vt.text
	case tNumber:
		n, err := strconv.ParseFloat(vt.text, 64)
		if err != nil {
			return "", fmt.Errorf("%w: bad number %q", ErrBadFilter, vt.text)
		}
		val = n
	case tIdent:
		switch vt.text {
		case "true":
			val = int64(1)
		case "false":
			val = int64(0)
		case "null":
			if kind == kindInt {
				val = int64(0)
			} else {
				val = ""
			}
		default:
			return "", fmt.Errorf("%w: unexpected %q", ErrBadFilter, vt.text)
		}
	default:
		return "", fmt.Errorf("%w: expected value after %s%s", ErrBadFilter, ft.text, op.text)
	}

	if s, ok := val.(string); ok && kind == kindInt {
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			val = n
		}
	}

	switch op.text {
	case "~", "!~":
		s := fmt.Sprint(val)
		if !strings.Contains(s, "%") {
			s = "%" + s + "%"
		}
		p.args = append(p.args, s)
		if op.text == "~" {
			return column + " LIKE ?", nil
		}
		return column + " NOT LIKE ?", nil
	default:
		p.args = append(p.args, val)
		return column + " " + op.text + " ?", nil
	}
}

// buildSort translates "-created,idx" into an ORDER BY list.
func buildSort(col *Collection, src string) (string, error) {
	if strings.TrimSpace(src) == "" {
		return "created ASC, id ASC", nil
	}
	var parts []string
	for _, s := range strings.Split(src, ",") {
		s = strings.TrimSpace(s)
		dir := "ASC"
		switch {
		case strings.HasPrefix(s, "-"):
			dir, s = "DESC", s[1:]
		case strings.HasPrefix(s, "+"):
			s = s[1:]
		}
		column, kind, ok := col.column(s)
		if !ok || kind == kindFiles {
			return "", fmt.Errorf("%w: cannot sort by %q", ErrBadFilter, s)
		}
		parts = append(parts, column+" "+dir)
	}
	return strings.Join(append(parts, "id ASC"), ", "), nil
}
