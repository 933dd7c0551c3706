package parser

import "github.com/panyam/jsmlc/decl"

// Token kinds
const (
	EOF = iota
	ILLEGAL
	NEWLINE
	IDENT
	NUMBER
	STRING
	OPERATOR // arithmetic, element-wise and relational operators

	// punctuation
	LPAREN
	RPAREN
	LBRACK
	RBRACK
	LBRACE
	RBRACE
	COMMA
	DOT
	COLON
	DCOLON
	ASSIGN
	QUESTION

	// keywords
	IMPORT
	TYPE
	CONNECTOR
	COMPONENT
	PARTIAL
	PARAMETER
	VARIABLE
	RELATIONS
	METADATA
	END
	INITIAL
	CONNECT
	POTENTIAL
	FLOW
	STREAM
	SINGLETON
	TRUE
	FALSE
	NULL
	AND
	OR
	NOT
)

var tokenNames = map[int]string{
	EOF:       "EOF",
	ILLEGAL:   "ILLEGAL",
	NEWLINE:   "NEWLINE",
	IDENT:     "IDENT",
	NUMBER:    "NUMBER",
	STRING:    "STRING",
	OPERATOR:  "OPERATOR",
	LPAREN:    "'('",
	RPAREN:    "')'",
	LBRACK:    "'['",
	RBRACK:    "']'",
	LBRACE:    "'{'",
	RBRACE:    "'}'",
	COMMA:     "','",
	DOT:       "'.'",
	COLON:     "':'",
	DCOLON:    "'::'",
	ASSIGN:    "'='",
	QUESTION:  "'?'",
	IMPORT:    "import",
	TYPE:      "type",
	CONNECTOR: "connector",
	COMPONENT: "component",
	PARTIAL:   "partial",
	PARAMETER: "parameter",
	VARIABLE:  "variable",
	RELATIONS: "relations",
	METADATA:  "metadata",
	END:       "end",
	INITIAL:   "initial",
	CONNECT:   "connect",
	POTENTIAL: "potential",
	FLOW:      "flow",
	STREAM:    "stream",
	SINGLETON: "singleton",
	TRUE:      "true",
	FALSE:     "false",
	NULL:      "null",
	AND:       "and",
	OR:        "or",
	NOT:       "not",
}

var keywords = map[string]int{}

func init() {
	for tok := IMPORT; tok <= NOT; tok++ {
		keywords[tokenNames[tok]] = tok
	}
}

// TokenString returns a printable name for a token kind.
func TokenString(tok int) string {
	if name, ok := tokenNames[tok]; ok {
		return name
	}
	return "UNKNOWN"
}

// Token is a single lexeme with its source span.
type Token struct {
	Kind  int
	Text  string // raw text, or the unquoted value for strings and the message for ILLEGAL
	Start decl.Location
	End   decl.Location
}

func (t Token) NodeInfo() decl.NodeInfo {
	return decl.NodeInfo{StartPos: t.Start, StopPos: t.End}
}
