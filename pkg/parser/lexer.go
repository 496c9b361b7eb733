package parser

import (
	"bytes"
	"fmt"
	"strconv"
)

// TokenType represents the type of a content stream token
type TokenType int

const (
	TokenEOF TokenType = iota
	TokenNumber
	TokenString
	TokenHexString
	TokenName
	TokenKeyword
	TokenArrayStart
	TokenArrayEnd
	TokenDictStart
	TokenDictEnd
)

func (t TokenType) String() string {
	switch t {
	case TokenEOF:
		return "EOF"
	case TokenNumber:
		return "Number"
	case TokenString:
		return "String"
	case TokenHexString:
		return "HexString"
	case TokenName:
		return "Name"
	case TokenKeyword:
		return "Keyword"
	case TokenArrayStart:
		return "ArrayStart"
	case TokenArrayEnd:
		return "ArrayEnd"
	case TokenDictStart:
		return "DictStart"
	case TokenDictEnd:
		return "DictEnd"
	default:
		return "Unknown"
	}
}

// Token is a lexical element with its byte span [Start, End) in the source
type Token struct {
	Type  TokenType
	Value PDFObject
	Start int
	End   int
}

// ParseError reports malformed content at a byte offset
type ParseError struct {
	Offset int
	Msg    string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("content stream offset %d: %s", e.Offset, e.Msg)
}

// Lexer tokenizes a content stream held in memory
type Lexer struct {
	data []byte
	pos  int
}

// NewLexer creates a new content stream lexer
func NewLexer(data []byte) *Lexer {
	return &Lexer{data: data}
}

// Position returns the current offset in the stream
func (l *Lexer) Position() int {
	return l.pos
}

// NextToken returns the next token. After an error the lexer has already
// moved past the offending bytes, so callers may keep reading.
func (l *Lexer) NextToken() (*Token, error) {
	l.skipWhitespaceAndComments()

	start := l.pos
	if l.pos >= len(l.data) {
		return &Token{Type: TokenEOF, Start: start, End: start}, nil
	}

	tok, err := l.readToken()
	if err != nil {
		if l.pos == start {
			l.pos++
		}
		return nil, &ParseError{Offset: start, Msg: err.Error()}
	}
	tok.Start = start
	tok.End = l.pos
	return tok, nil
}

func (l *Lexer) readToken() (*Token, error) {
	ch := l.data[l.pos]
	switch ch {
	case '[':
		l.pos++
		return &Token{Type: TokenArrayStart}, nil
	case ']':
		l.pos++
		return &Token{Type: TokenArrayEnd}, nil
	case '<':
		if l.peekAt(1) == '<' {
			l.pos += 2
			return &Token{Type: TokenDictStart}, nil
		}
		return l.readHexString()
	case '>':
		if l.peekAt(1) == '>' {
			l.pos += 2
			return &Token{Type: TokenDictEnd}, nil
		}
		l.pos++
		return nil, fmt.Errorf("unexpected '>'")
	case '(':
		return l.readString()
	case ')', '{', '}':
		l.pos++
		return nil, fmt.Errorf("unexpected %q", ch)
	case '/':
		return l.readName()
	case '+', '-', '.', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		return l.readNumber()
	default:
		return l.readKeyword()
	}
}

// skipWhitespaceAndComments skips whitespace and comments
func (l *Lexer) skipWhitespaceAndComments() {
	for l.pos < len(l.data) {
		ch := l.data[l.pos]
		if isWhitespace(ch) {
			l.pos++
			continue
		}
		if ch == '%' {
			for l.pos < len(l.data) && l.data[l.pos] != '\n' && l.data[l.pos] != '\r' {
				l.pos++
			}
			continue
		}
		return
	}
}

func (l *Lexer) peekAt(offset int) byte {
	if l.pos+offset < len(l.data) {
		return l.data[l.pos+offset]
	}
	return 0
}

// readNumber reads a number token
func (l *Lexer) readNumber() (*Token, error) {
	start := l.pos
	for l.pos < len(l.data) {
		ch := l.data[l.pos]
		if ch == '+' || ch == '-' || ch == '.' || (ch >= '0' && ch <= '9') {
			l.pos++
			continue
		}
		break
	}
	// A number glued to letters is a keyword-like token
	if l.pos < len(l.data) && !isDelimiter(l.data[l.pos]) && !isWhitespace(l.data[l.pos]) {
		l.pos = start
		return l.readKeyword()
	}

	raw := l.data[start:l.pos]
	str := string(raw)

	if bytes.ContainsAny(raw, ".") {
		f, err := strconv.ParseFloat(str, 64)
		if err != nil {
			f, err = parseLenientFloat(str)
			if err != nil {
				return nil, fmt.Errorf("invalid number: %s", str)
			}
		}
		return &Token{Type: TokenNumber, Value: PDFFloat(f)}, nil
	}

	i, err := strconv.ParseInt(str, 10, 64)
	if err != nil {
		f, ferr := parseLenientFloat(str)
		if ferr != nil {
			return nil, fmt.Errorf("invalid number: %s", str)
		}
		return &Token{Type: TokenNumber, Value: PDFFloat(f)}, nil
	}
	return &Token{Type: TokenNumber, Value: PDFInt(i)}, nil
}

// parseLenientFloat accepts forms such as "--1" or "1.2.3" written by broken
// producers, reading as much of a number as makes sense
func parseLenientFloat(s string) (float64, error) {
	neg := false
	i := 0
	for i < len(s) && (s[i] == '-' || s[i] == '+') {
		if s[i] == '-' {
			neg = !neg
		}
		i++
	}
	s = s[i:]
	if j := bytes.IndexByte([]byte(s), '.'); j >= 0 {
		if k := bytes.IndexByte([]byte(s[j+1:]), '.'); k >= 0 {
			s = s[:j+1+k]
		}
	}
	if s == "" || s == "." {
		return 0, fmt.Errorf("no digits")
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if neg {
		f = -f
	}
	return f, nil
}

// readString reads a literal string token, resolving escapes
func (l *Lexer) readString() (*Token, error) {
	l.pos++ // consume opening (

	var buf []byte
	depth := 1
	for {
		if l.pos >= len(l.data) {
			return nil, fmt.Errorf("unterminated string")
		}
		ch := l.data[l.pos]
		l.pos++

		switch ch {
		case '\\':
			if l.pos >= len(l.data) {
				return nil, fmt.Errorf("unterminated string")
			}
			esc := l.data[l.pos]
			l.pos++
			switch esc {
			case 'n':
				buf = append(buf, '\n')
			case 'r':
				buf = append(buf, '\r')
			case 't':
				buf = append(buf, '\t')
			case 'b':
				buf = append(buf, '\b')
			case 'f':
				buf = append(buf, '\f')
			case '(', ')', '\\':
				buf = append(buf, esc)
			case '\r':
				// Line continuation
				if l.pos < len(l.data) && l.data[l.pos] == '\n' {
					l.pos++
				}
			case '\n':
			default:
				if esc >= '0' && esc <= '7' {
					val := int(esc - '0')
					for i := 0; i < 2 && l.pos < len(l.data); i++ {
						d := l.data[l.pos]
						if d < '0' || d > '7' {
							break
						}
						val = val*8 + int(d-'0')
						l.pos++
					}
					buf = append(buf, byte(val))
				} else {
					buf = append(buf, esc)
				}
			}
		case '(':
			depth++
			buf = append(buf, ch)
		case ')':
			depth--
			if depth == 0 {
				return &Token{Type: TokenString, Value: PDFString(buf)}, nil
			}
			buf = append(buf, ch)
		default:
			buf = append(buf, ch)
		}
	}
}

// readHexString reads a hexadecimal string token
func (l *Lexer) readHexString() (*Token, error) {
	l.pos++ // consume <

	var digits []byte
	for {
		if l.pos >= len(l.data) {
			return nil, fmt.Errorf("unterminated hex string")
		}
		ch := l.data[l.pos]
		l.pos++
		if ch == '>' {
			break
		}
		if isHexDigit(ch) {
			digits = append(digits, ch)
		} else if !isWhitespace(ch) {
			return nil, fmt.Errorf("invalid character in hex string: %q", ch)
		}
	}

	if len(digits)%2 != 0 {
		digits = append(digits, '0')
	}

	result := make([]byte, len(digits)/2)
	for i := range result {
		result[i] = hexValue(digits[2*i])<<4 | hexValue(digits[2*i+1])
	}
	return &Token{Type: TokenHexString, Value: PDFString(result)}, nil
}

// readName reads a name token
func (l *Lexer) readName() (*Token, error) {
	l.pos++ // consume /

	var buf []byte
	for l.pos < len(l.data) {
		ch := l.data[l.pos]
		if isDelimiter(ch) || isWhitespace(ch) {
			break
		}
		l.pos++

		// Handle # escape sequences
		if ch == '#' && l.pos+1 < len(l.data) && isHexDigit(l.data[l.pos]) && isHexDigit(l.data[l.pos+1]) {
			buf = append(buf, hexValue(l.data[l.pos])<<4|hexValue(l.data[l.pos+1]))
			l.pos += 2
			continue
		}
		buf = append(buf, ch)
	}
	return &Token{Type: TokenName, Value: PDFName(buf)}, nil
}

// readKeyword reads an operator or one of the literals true, false and null
func (l *Lexer) readKeyword() (*Token, error) {
	start := l.pos
	for l.pos < len(l.data) {
		ch := l.data[l.pos]
		if isDelimiter(ch) || isWhitespace(ch) {
			break
		}
		l.pos++
	}
	if l.pos == start {
		return nil, fmt.Errorf("unexpected %q", l.data[start])
	}

	switch keyword := string(l.data[start:l.pos]); keyword {
	case "true":
		return &Token{Type: TokenKeyword, Value: PDFBool(true)}, nil
	case "false":
		return &Token{Type: TokenKeyword, Value: PDFBool(false)}, nil
	case "null":
		return &Token{Type: TokenKeyword, Value: PDFNull{}}, nil
	default:
		return &Token{Type: TokenKeyword, Value: PDFKeyword(keyword)}, nil
	}
}

// ReadInlineImageData consumes the binary data following an ID operator up
// to and including the terminating EI. It returns the data without the
// single whitespace byte that follows ID.
func (l *Lexer) ReadInlineImageData() ([]byte, error) {
	if l.pos < len(l.data) && isWhitespace(l.data[l.pos]) {
		l.pos++
	}
	start := l.pos
	for i := start; i+1 < len(l.data); i++ {
		if l.data[i] != 'E' || l.data[i+1] != 'I' {
			continue
		}
		if i > start && !isWhitespace(l.data[i-1]) {
			continue
		}
		if i+2 < len(l.data) && !isWhitespace(l.data[i+2]) && !isDelimiter(l.data[i+2]) {
			continue
		}
		end := i
		if end > start {
			end-- // whitespace before EI
		}
		l.pos = i + 2
		return l.data[start:end], nil
	}
	l.pos = len(l.data)
	return nil, &ParseError{Offset: start, Msg: "inline image without EI"}
}

// Helper functions
func isWhitespace(ch byte) bool {
	return ch == ' ' || ch == '\t' || ch == '\r' || ch == '\n' || ch == '\f' || ch == 0
}

func isDelimiter(ch byte) bool {
	return ch == '(' || ch == ')' || ch == '<' || ch == '>' ||
		ch == '[' || ch == ']' || ch == '{' || ch == '}' ||
		ch == '/' || ch == '%'
}

func isHexDigit(ch byte) bool {
	return (ch >= '0' && ch <= '9') || (ch >= 'A' && ch <= 'F') || (ch >= 'a' && ch <= 'f')
}

func hexValue(ch byte) byte {
	switch {
	case ch >= '0' && ch <= '9':
		return ch - '0'
	case ch >= 'a' && ch <= 'f':
		return ch - 'a' + 10
	case ch >= 'A' && ch <= 'F':
		return ch - 'A' + 10
	}
	return 0
}
