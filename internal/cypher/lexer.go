package cypher

import (
	"fmt"
	"strings"
	"unicode"
)

// TokenType classifies a lexer token.
type TokenType int

const (
	// Keywords
	TokMatch    TokenType = iota // MATCH
	TokWhere                     // WHERE
	TokReturn                    // RETURN
	TokOrder                     // ORDER
	TokBy                        // BY
	TokLimit                     // LIMIT
	TokAnd                       // AND
	TokOr                        // OR
	TokAs                        // AS
	TokDistinct                  // DISTINCT
	TokCount                     // COUNT
	TokContains                  // CONTAINS
	TokStarts                    // STARTS
	TokWith                      // WITH
	TokNot                       // NOT
	TokAsc                       // ASC
	TokDesc                      // DESC
	TokMerge                     // MERGE
	TokSet                       // SET

	// Symbols
	TokLParen   // (
	TokRParen   // )
	TokLBracket // [
	TokRBracket // ]
	TokDash     // -
	TokGT       // >
	TokLT       // <
	TokColon    // :
	TokDot      // .
	TokLBrace   // {
	TokRBrace   // }
	TokStar     // *
	TokComma    // ,
	TokEQ       // =
	TokRegex    // =~
	TokGTE      // >=
	TokLTE      // <=
	TokNEQ      // <>
	TokPipe     // |
	TokDotDot   // ..

	// Literals
	TokIdent  // identifier
	TokString // "..." or '...'
	TokNumber // integer or decimal
	TokParam  // $name

	TokEOF // end of input
)

// Token is a single lexer token.
type Token struct {
	Type  TokenType
	Value string
	Pos   int // byte offset in the input
}

func (t Token) String() string {
	return fmt.Sprintf("Token(%d, %q, pos=%d)", t.Type, t.Value, t.Pos)
}

// keywords maps uppercase keyword strings to their token type.
var keywords = map[string]TokenType{
	"MATCH":    TokMatch,
	"WHERE":    TokWhere,
	"RETURN":   TokReturn,
	"ORDER":    TokOrder,
	"BY":       TokBy,
	"LIMIT":    TokLimit,
	"AND":      TokAnd,
	"OR":       TokOr,
	"AS":       TokAs,
	"DISTINCT": TokDistinct,
	"COUNT":    TokCount,
	"CONTAINS": TokContains,
	"STARTS":   TokStarts,
	"WITH":     TokWith,
	"NOT":      TokNot,
	"ASC":      TokAsc,
	"DESC":     TokDesc,
	"MERGE":    TokMerge,
	"SET":      TokSet,
}

// isKeyword reports whether t is a keyword token. Keywords are accepted as
// property names after a dot (f.count, n.set).
func isKeyword(t TokenType) bool {
	return t <= TokSet
}

// operators lists symbol tokens, longest first so "<>" wins over "<".
var operators = []struct {
	text string
	typ  TokenType
}{
	{"..", TokDotDot}, {"=~", TokRegex}, {">=", TokGTE}, {"<=", TokLTE}, {"<>", TokNEQ},
	{"(", TokLParen}, {")", TokRParen}, {"[", TokLBracket}, {"]", TokRBracket},
	{"{", TokLBrace}, {"}", TokRBrace}, {"*", TokStar}, {",", TokComma},
	{"|", TokPipe}, {":", TokColon}, {"-", TokDash}, {".", TokDot},
	{">", TokGT}, {"<", TokLT}, {"=", TokEQ},
}

// Lex splits a query into tokens, ending with TokEOF. String literals are
// returned unescaped; keywords keep their original spelling in Value.
func Lex(input string) ([]Token, error) {
	sc := &scanner{src: input}
	for {
		sc.skipSpace()
		if sc.pos >= len(sc.src) {
			break
		}
		if err := sc.next(); err != nil {
			return nil, err
		}
	}
	sc.tokens = append(sc.tokens, Token{Type: TokEOF, Pos: sc.pos})
	return sc.tokens, nil
}

type scanner struct {
	src    string
	pos    int
	tokens []Token
}

func (sc *scanner) peek(off int) byte {
	if i := sc.pos + off; i < len(sc.src) {
		return sc.src[i]
	}
	return 0
}

func (sc *scanner) add(typ TokenType, val string, start int) {
	sc.tokens = append(sc.tokens, Token{Type: typ, Value: val, Pos: start})
}

// skipSpace skips whitespace plus // line and /* block */ comments.
func (sc *scanner) skipSpace() {
	for sc.pos < len(sc.src) {
		switch c := sc.src[sc.pos]; {
		case unicode.IsSpace(rune(c)):
			sc.pos++
		case c == '/' && sc.peek(1) == '/':
			if i := strings.IndexByte(sc.src[sc.pos:], '\n'); i >= 0 {
				sc.pos += i
			} else {
				sc.pos = len(sc.src)
			}
		case c == '/' && sc.peek(1) == '*':
			if i := strings.Index(sc.src[sc.pos+2:], "*/"); i >= 0 {
				sc.pos += i + 4
			} else {
				sc.pos = len(sc.src)
			}
		default:
			return
		}
	}
}

func (sc *scanner) next() error {
	c := sc.src[sc.pos]
	switch {
	case c == '"' || c == '\'':
		return sc.quoted(c)
	case c == '$':
		return sc.param()
	case isDigit(c):
		sc.number()
		return nil
	case isIdentStart(c):
		sc.word()
		return nil
	}
	rest := sc.src[sc.pos:]
	for _, op := range operators {
		if strings.HasPrefix(rest, op.text) {
			sc.add(op.typ, op.text, sc.pos)
			sc.pos += len(op.text)
			return nil
		}
	}
	return fmt.Errorf("unexpected char %q at pos %d", string(c), sc.pos)
}

func (sc *scanner) quoted(quote byte) error {
	start := sc.pos
	var b strings.Builder
	for i := sc.pos + 1; i < len(sc.src); i++ {
		c := sc.src[i]
		switch {
		case c == '\\' && i+1 < len(sc.src):
			i++
			b.WriteByte(unescape(sc.src[i]))
		case c == quote:
			sc.add(TokString, b.String(), start)
			sc.pos = i + 1
			return nil
		default:
			b.WriteByte(c)
		}
	}
	return fmt.Errorf("unterminated string at pos %d", start)
}

// unescape maps the character after a backslash to the byte it stands for.
func unescape(c byte) byte {
	switch c {
	case 'n':
		return '\n'
	case 't':
		return '\t'
	case 'r':
		return '\r'
	}
	return c
}

func (sc *scanner) param() error {
	start := sc.pos
	if !isIdentStart(sc.peek(1)) {
		return fmt.Errorf("expected parameter name after '$' at pos %d", start)
	}
	sc.pos++
	sc.add(TokParam, sc.ident(), start)
	return nil
}

// number scans an integer or decimal. "1..3" is a range, so a dot only
// belongs to the number when a digit follows it.
func (sc *scanner) number() {
	start := sc.pos
	sc.digits()
	if sc.peek(0) == '.' && isDigit(sc.peek(1)) {
		sc.pos++
		sc.digits()
	}
	sc.add(TokNumber, sc.src[start:sc.pos], start)
}

func (sc *scanner) digits() {
	for sc.pos < len(sc.src) && isDigit(sc.src[sc.pos]) {
		sc.pos++
	}
}

func (sc *scanner) ident() string {
	start := sc.pos
	for sc.pos < len(sc.src) && isIdentPart(sc.src[sc.pos]) {
		sc.pos++
	}
	return sc.src[start:sc.pos]
}

func (sc *scanner) word() {
	start := sc.pos
	w := sc.ident()
	typ, ok := keywords[strings.ToUpper(w)]
	if !ok {
		typ = TokIdent
	}
	sc.add(typ, w, start)
}

func isDigit(c byte) bool { return '0' <= c && c <= '9' }

func isIdentStart(c byte) bool {
	return ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z') || c == '_'
}

func isIdentPart(c byte) bool { return isIdentStart(c) || isDigit(c) }
