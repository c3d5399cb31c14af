package dsl

import (
	"fmt"
	"strings"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokString
	tokDocString
	tokNumber
	tokLBrace
	tokRBrace
	tokLBracket
	tokRBracket
	tokLParen
	tokRParen
	tokLess
	tokGreater
	tokSemicolon
	tokColon
	tokDoubleColon
	tokComma
	tokAssign
	tokDot
	tokQuestion
	tokArrowRight // ->
	tokArrowLeft  // <-
	tokArrowBoth  // <->
	tokDash       // -
	tokDoubleDash // --
)

var tokenNames = map[tokenKind]string{
	tokEOF:         "end of input",
	tokIdent:       "identifier",
	tokString:      "string",
	tokDocString:   "doc string",
	tokNumber:      "number",
	tokLBrace:      "'{'",
	tokRBrace:      "'}'",
	tokLBracket:    "'['",
	tokRBracket:    "']'",
	tokLParen:      "'('",
	tokRParen:      "')'",
	tokLess:        "'<'",
	tokGreater:     "'>'",
	tokSemicolon:   "';'",
	tokColon:       "':'",
	tokDoubleColon: "'::'",
	tokComma:       "','",
	tokAssign:      "'='",
	tokDot:         "'.'",
	tokQuestion:    "'?'",
	tokArrowRight:  "'->'",
	tokArrowLeft:   "'<-'",
	tokArrowBoth:   "'<->'",
	tokDash:        "'-'",
	tokDoubleDash:  "'--'",
}

func (k tokenKind) String() string {
	if name, ok := tokenNames[k]; ok {
		return name
	}
	return fmt.Sprintf("token(%d)", int(k))
}

// token is a lexeme. For strings and doc strings text holds the decoded
// content; start/end always delimit the raw lexeme in the source.
type token struct {
	kind  tokenKind
	text  string
	start int
	end   int
}

func (t token) describe() string {
	switch t.kind {
	case tokEOF:
		return "end of input"
	case tokIdent, tokNumber:
		return fmt.Sprintf("%q", t.text)
	case tokString:
		return fmt.Sprintf("string %q", t.text)
	case tokDocString:
		return "doc string"
	default:
		return t.kind.String()
	}
}

var punctuation = map[byte]tokenKind{
	'{': tokLBrace,
	'}': tokRBrace,
	'[': tokLBracket,
	']': tokRBracket,
	'(': tokLParen,
	')': tokRParen,
	'>': tokGreater,
	';': tokSemicolon,
	',': tokComma,
	'=': tokAssign,
	'.': tokDot,
	'?': tokQuestion,
}

type lexer struct {
	src  string
	pos  int
	toks []token
}

// lex splits src into tokens, dropping whitespace and comments.
func lex(src string) ([]token, error) {
	l := &lexer{src: src}
	for {
		if err := l.skipSpaceAndComments(); err != nil {
			return nil, err
		}
		if l.pos >= len(l.src) {
			l.emit(tokEOF, "", l.pos, l.pos)
			return l.toks, nil
		}
		if err := l.scan(); err != nil {
			return nil, err
		}
	}
}

func (l *lexer) emit(kind tokenKind, text string, start, end int) {
	l.toks = append(l.toks, token{kind: kind, text: text, start: start, end: end})
}

func (l *lexer) errorAt(offset, length int, found, expected string) error {
	return newSyntaxError(l.src, "token", offset, length, found, expected)
}

func (l *lexer) skipSpaceAndComments() error {
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			l.pos++
		case strings.HasPrefix(l.src[l.pos:], "//"):
			end := strings.IndexByte(l.src[l.pos:], '\n')
			if end < 0 {
				l.pos = len(l.src)
			} else {
				l.pos += end + 1
			}
		case strings.HasPrefix(l.src[l.pos:], "/*"):
			end := strings.Index(l.src[l.pos+2:], "*/")
			if end < 0 {
				return l.errorAt(l.pos, 2, "unterminated block comment", "'*/'")
			}
			l.pos += end + 4
		default:
			return nil
		}
	}
	return nil
}

func (l *lexer) scan() error {
	start := l.pos
	c := l.src[l.pos]

	switch {
	case isIdentStart(c):
		for l.pos < len(l.src) && isIdentPart(l.src[l.pos]) {
			l.pos++
		}
		l.emit(tokIdent, l.src[start:l.pos], start, l.pos)
		return nil

	case isDigit(c):
		for l.pos < len(l.src) && isDigit(l.src[l.pos]) {
			l.pos++
		}
		l.emit(tokNumber, l.src[start:l.pos], start, l.pos)
		return nil

	case strings.HasPrefix(l.src[l.pos:], `"""`):
		end := strings.Index(l.src[l.pos+3:], `"""`)
		if end < 0 {
			return l.errorAt(start, 3, "unterminated doc string", `'"""'`)
		}
		text := l.src[start+3 : start+3+end]
		l.pos = start + 3 + end + 3
		l.emit(tokDocString, text, start, l.pos)
		return nil

	case c == '"':
		return l.scanString()

	case c == '-':
		switch {
		case strings.HasPrefix(l.src[l.pos:], "->"):
			l.pos += 2
			l.emit(tokArrowRight, "->", start, l.pos)
		case strings.HasPrefix(l.src[l.pos:], "--"):
			l.pos += 2
			l.emit(tokDoubleDash, "--", start, l.pos)
		default:
			l.pos++
			l.emit(tokDash, "-", start, l.pos)
		}
		return nil

	case c == '<':
		switch {
		case strings.HasPrefix(l.src[l.pos:], "<->"):
			l.pos += 3
			l.emit(tokArrowBoth, "<->", start, l.pos)
		case strings.HasPrefix(l.src[l.pos:], "<-"):
			l.pos += 2
			l.emit(tokArrowLeft, "<-", start, l.pos)
		default:
			l.pos++
			l.emit(tokLess, "<", start, l.pos)
		}
		return nil

	case c == ':':
		if strings.HasPrefix(l.src[l.pos:], "::") {
			l.pos += 2
			l.emit(tokDoubleColon, "::", start, l.pos)
		} else {
			l.pos++
			l.emit(tokColon, ":", start, l.pos)
		}
		return nil
	}

	if kind, ok := punctuation[c]; ok {
		l.pos++
		l.emit(kind, string(c), start, l.pos)
		return nil
	}
	return l.errorAt(start, 1, fmt.Sprintf("character %q", c), "a token")
}

func (l *lexer) scanString() error {
	start := l.pos
	l.pos++ // opening quote
	var sb strings.Builder
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		switch c {
		case '"':
			l.pos++
			l.emit(tokString, sb.String(), start, l.pos)
			return nil
		case '\\':
			if l.pos+1 >= len(l.src) {
				return l.errorAt(start, l.pos-start, "unterminated string", `'"'`)
			}
			switch esc := l.src[l.pos+1]; esc {
			case 'n':
				sb.WriteByte('\n')
			case 't':
				sb.WriteByte('\t')
			case 'r':
				sb.WriteByte('\r')
			default:
				sb.WriteByte(esc)
			}
			l.pos += 2
		default:
			sb.WriteByte(c)
			l.pos++
		}
	}
	return l.errorAt(start, l.pos-start, "unterminated string", `'"'`)
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || isDigit(c)
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
