package parser

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strconv"
	"unicode"

	"github.com/panyam/jsmlc/decl"
)

const eof = 0

// Lexer produces Tokens from JSML source.  Newlines are significant only outside
// brackets, and runs of blank lines collapse into a single NEWLINE.
type Lexer struct {
	lookaheadRunes  []rune
	lookaheadWidths []int
	reader          *bufio.Reader
	buf             bytes.Buffer // Temporary buffer for scanned text
	pos             int          // Current byte offset from the beginning of the input

	// Current line and column (rune-based) in the input
	line int
	col  int

	// nesting of (), [] and {}
	depth       int
	lastNewline bool
}

// NewLexer creates a new lexer instance
func NewLexer(r io.Reader) *Lexer {
	return &Lexer{
		reader:      bufio.NewReader(r),
		line:        1,
		col:         1,
		lastNewline: true,
	}
}

func (l *Lexer) location() decl.Location {
	return decl.Location{Pos: l.pos, Line: l.line, Col: l.col}
}

// --- Rune Reading Helpers (with line/col tracking) ---
func (l *Lexer) read() rune {
	if l.peek() == eof {
		return eof
	}
	r, width := l.lookaheadRunes[0], l.lookaheadWidths[0]
	l.lookaheadRunes, l.lookaheadWidths = l.lookaheadRunes[1:], l.lookaheadWidths[1:]
	l.pos += width
	if r == '\n' {
		l.line++
		l.col = 1
	} else {
		l.col++
	}
	return r
}

func (l *Lexer) peek() rune {
	return l.peekN(0)
}

func (l *Lexer) peekN(n int) rune {
	for len(l.lookaheadRunes) <= n {
		r, width, err := l.reader.ReadRune()
		if err != nil {
			return eof
		}
		l.lookaheadRunes = append(l.lookaheadRunes, r)
		l.lookaheadWidths = append(l.lookaheadWidths, width)
	}
	return l.lookaheadRunes[n]
}

func (l *Lexer) readTill(stop rune) {
	for r := l.peek(); r != eof && r != stop; r = l.peek() {
		l.read()
	}
}

// skipSpace skips blanks and comments.  Newlines are skipped too unless they are
// significant, in which case skipping stops in front of them.
func (l *Lexer) skipSpace() (errmsg string) {
	for {
		r := l.peek()
		switch {
		case r == eof:
			return
		case r == '\n':
			if l.depth == 0 && !l.lastNewline {
				return
			}
			l.read()
		case unicode.IsSpace(r):
			l.read()
		case r == '#' || (r == '/' && l.peekN(1) == '/'):
			l.readTill('\n')
		case r == '/' && l.peekN(1) == '*':
			l.read()
			l.read()
			for {
				c := l.read()
				if c == eof {
					return "unterminated block comment"
				}
				if c == '*' && l.peek() == '/' {
					l.read()
					break
				}
			}
		default:
			return
		}
	}
}

// Lex returns the next token.
func (l *Lexer) Lex() (tok Token) {
	errmsg := l.skipSpace()
	tok.Start = l.location()
	defer func() {
		tok.End = l.location()
		l.lastNewline = tok.Kind == NEWLINE
	}()
	if errmsg != "" {
		tok.Kind, tok.Text = ILLEGAL, errmsg
		return
	}

	r := l.peek()
	switch {
	case r == eof:
		tok.Kind = EOF
		return
	case r == '\n':
		l.read()
		tok.Kind, tok.Text = NEWLINE, "\n"
		return
	case unicode.IsLetter(r) || r == '_':
		tok.Text = l.scanIdentifier()
		if kw, ok := keywords[tok.Text]; ok {
			tok.Kind = kw
		} else {
			tok.Kind = IDENT
		}
		return
	case unicode.IsDigit(r):
		tok.Kind, tok.Text = NUMBER, l.scanNumber()
		return
	case r == '"':
		text, err := l.scanString()
		if err != "" {
			tok.Kind, tok.Text = ILLEGAL, err
		} else {
			tok.Kind, tok.Text = STRING, text
		}
		return
	}

	l.read()
	tok.Text = string(r)
	switch r {
	case ';':
		tok.Kind = NEWLINE
		if l.depth > 0 || l.lastNewline {
			// an empty statement, keep going
			return l.Lex()
		}
	case '(':
		l.depth++
		tok.Kind = LPAREN
	case '[':
		l.depth++
		tok.Kind = LBRACK
	case '{':
		l.depth++
		tok.Kind = LBRACE
	case ')', ']', '}':
		if l.depth > 0 {
			l.depth--
		}
		tok.Kind = map[rune]int{')': RPAREN, ']': RBRACK, '}': RBRACE}[r]
	case ',':
		tok.Kind = COMMA
	case '?':
		tok.Kind = QUESTION
	case ':':
		tok.Kind = COLON
		if l.peek() == ':' {
			l.read()
			tok.Kind, tok.Text = DCOLON, "::"
		}
	case '.':
		tok.Kind = DOT
		switch l.peek() {
		case '+', '-', '*', '/', '^', '%':
			tok.Kind, tok.Text = OPERATOR, "."+string(l.read())
		}
	case '=':
		tok.Kind = ASSIGN
		if l.peek() == '=' {
			l.read()
			tok.Kind, tok.Text = OPERATOR, "=="
		}
	case '!':
		if l.peek() == '=' {
			l.read()
			tok.Kind, tok.Text = OPERATOR, "!="
		} else {
			tok.Kind, tok.Text = ILLEGAL, "unexpected character '!'"
		}
	case '<', '>':
		tok.Kind = OPERATOR
		if l.peek() == '=' {
			l.read()
			tok.Text += "="
		}
	case '+', '-', '*', '/', '^', '%':
		tok.Kind = OPERATOR
	default:
		tok.Kind, tok.Text = ILLEGAL, fmt.Sprintf("unexpected character %q", r)
	}
	return
}

func (l *Lexer) scanIdentifier() string {
	l.buf.Reset()
	for r := l.peek(); r != eof && (unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_'); r = l.peek() {
		l.buf.WriteRune(l.read())
	}
	return l.buf.String()
}

// scanNumber reads digits [. digits] [(e|E) [+|-] digits]
func (l *Lexer) scanNumber() string {
	l.buf.Reset()
	l.readDigits()
	if l.peek() == '.' && unicode.IsDigit(l.peekN(1)) {
		l.buf.WriteRune(l.read())
		l.readDigits()
	}
	if r := l.peek(); r == 'e' || r == 'E' {
		next := l.peekN(1)
		if unicode.IsDigit(next) || ((next == '+' || next == '-') && unicode.IsDigit(l.peekN(2))) {
			l.buf.WriteRune(l.read())
			if next == '+' || next == '-' {
				l.buf.WriteRune(l.read())
			}
			l.readDigits()
		}
	}
	return l.buf.String()
}

func (l *Lexer) readDigits() {
	for r := l.peek(); unicode.IsDigit(r); r = l.peek() {
		l.buf.WriteRune(l.read())
	}
}

// scanString reads a double quoted string using Go escape rules.
func (l *Lexer) scanString() (string, string) {
	l.buf.Reset()
	l.buf.WriteRune(l.read()) // opening quote
	for {
		r := l.read()
		switch r {
		case eof, '\n':
			return "", "unterminated string literal"
		case '\\':
			l.buf.WriteRune(r)
			esc := l.read()
			if esc == eof {
				return "", "unterminated string literal"
			}
			l.buf.WriteRune(esc)
			continue
		}
		l.buf.WriteRune(r)
		if r == '"' {
			break
		}
	}
	out, err := strconv.Unquote(l.buf.String())
	if err != nil {
		return "", fmt.Sprintf("invalid string literal %s", l.buf.String())
	}
	return out, ""
}
