// Package lexer converts Lox source text into a stream of tokens for
// the parser. Scanning is one of the two external collaborators named
// by spec.md §1 ("the lexer ... the compiler") — the VM core never
// sees source text, only the compiled chunk the front end produces.
package lexer

import (
	"github.com/kristofer/loxvm/token"
)

// Lexer converts a string input into tokens for the Lox grammar.
// It keeps track of the current position, the next readable position,
// the current character under examination, and the current source
// line (carried into the compiled chunk's line table, §4.7).
type Lexer struct {
	input        string
	position     int  // current position in input (points to the current char)
	readPosition int  // current reading position in input (points to the char that will be read next)
	ch           byte // current char under examination
	line         int
}

// New creates a new Lexer for a given input. It calls readChar a
// single time to initialize the first char to be examined, then sets
// the position and the next readPosition for the lexer.
func New(input string) *Lexer {
	l := &Lexer{input: input, line: 1}
	l.readChar()
	return l
}

// readChar finds the next character in the input and then advances our position in the input
func (l *Lexer) readChar() {
	if l.readPosition >= len(l.input) {
		l.ch = 0 // 0 is the ASCII code for the "NUL" character
	} else {
		l.ch = l.input[l.readPosition]
	}

	l.position = l.readPosition
	l.readPosition += 1
}

// peekChar finds the next character in the input. It does not increment the position and readPosition of the lexer.
func (l *Lexer) peekChar() byte {
	if l.readPosition >= len(l.input) {
		return 0
	}
	return l.input[l.readPosition]
}

// skipWhitespaceAndComments advances past spaces, tabs, newlines (bumping
// the line counter) and `//` line comments.
func (l *Lexer) skipWhitespaceAndComments() {
	for {
		switch l.ch {
		case ' ', '\t', '\r':
			l.readChar()
		case '\n':
			l.line++
			l.readChar()
		case '/':
			if l.peekChar() == '/' {
				for l.ch != '\n' && l.ch != 0 {
					l.readChar()
				}
			} else {
				return
			}
		default:
			return
		}
	}
}

// readNumber reads a number, including an optional fractional part,
// and advances the lexer position until it encounters a non-digit character
func (l *Lexer) readNumber() string {
	position := l.position
	for isDigit(l.ch) {
		l.readChar()
	}
	if l.ch == '.' && isDigit(l.peekChar()) {
		l.readChar()
		for isDigit(l.ch) {
			l.readChar()
		}
	}
	return l.input[position:l.position]
}

// readIdentifier reads an identifer and advances the lexer position until it encounters a non-letter character
func (l *Lexer) readIdentifier() string {
	position := l.position
	for isLetter(l.ch) || isDigit(l.ch) {
		l.readChar()
	}

	return l.input[position:l.position]
}

// readString constructs a string literal using the input between the current character '"' and the
// closing '"' character. It advances the lexer's position until it encounters the closing '"' character or EOF.
func (l *Lexer) readString() string {
	position := l.position + 1
	for {
		l.readChar()
		if l.ch == '"' || l.ch == 0 {
			break
		}
		if l.ch == '\n' {
			l.line++
		}
	}
	return l.input[position:l.position]
}

// NextToken looks at the current character under examination and returns a Token depending on which character it is.
func (l *Lexer) NextToken() token.Token {
	var tok token.Token

	l.skipWhitespaceAndComments()
	line := l.line

	switch l.ch {
	case '=':
		if l.peekChar() == '=' {
			l.readChar()
			tok = token.Token{Type: token.EQ, Literal: "==", Line: line}
		} else {
			tok = newToken(token.ASSIGN, l.ch, line)
		}
	case '+':
		tok = newToken(token.PLUS, l.ch, line)
	case '-':
		tok = newToken(token.MINUS, l.ch, line)
	case '!':
		if l.peekChar() == '=' {
			l.readChar()
			tok = token.Token{Type: token.BANG_EQ, Literal: "!=", Line: line}
		} else {
			tok = newToken(token.BANG, l.ch, line)
		}
	case '*':
		tok = newToken(token.STAR, l.ch, line)
	case '/':
		tok = newToken(token.SLASH, l.ch, line)
	case '<':
		if l.peekChar() == '=' {
			l.readChar()
			tok = token.Token{Type: token.LT_EQ, Literal: "<=", Line: line}
		} else {
			tok = newToken(token.LT, l.ch, line)
		}
	case '>':
		if l.peekChar() == '=' {
			l.readChar()
			tok = token.Token{Type: token.GT_EQ, Literal: ">=", Line: line}
		} else {
			tok = newToken(token.GT, l.ch, line)
		}
	case '.':
		tok = newToken(token.DOT, l.ch, line)
	case ',':
		tok = newToken(token.COMMA, l.ch, line)
	case ';':
		tok = newToken(token.SEMICOLON, l.ch, line)
	case '(':
		tok = newToken(token.LPAREN, l.ch, line)
	case ')':
		tok = newToken(token.RPAREN, l.ch, line)
	case '{':
		tok = newToken(token.LBRACE, l.ch, line)
	case '}':
		tok = newToken(token.RBRACE, l.ch, line)
	case '[':
		tok = newToken(token.LBRACKET, l.ch, line)
	case ']':
		tok = newToken(token.RBRACKET, l.ch, line)
	case '"':
		tok.Type = token.STRING
		tok.Literal = l.readString()
		tok.Line = line
	case 0:
		tok.Literal = ""
		tok.Type = token.EOF
		tok.Line = line
	default:
		if isLetter(l.ch) {
			tok.Literal = l.readIdentifier()
			tok.Type = token.LookupIdent(tok.Literal)
			tok.Line = line
			return tok
		} else if isDigit(l.ch) {
			tok.Type = token.NUMBER
			tok.Literal = l.readNumber()
			tok.Line = line
			return tok
		} else {
			tok = newToken(token.ILLEGAL, l.ch, line)
		}
	}

	// advance position of input after reading character
	l.readChar()

	return tok
}

// isLetter checks whether the given character is a letter
func isLetter(ch byte) bool {
	return 'a' <= ch && ch <= 'z' || 'A' <= ch && ch <= 'Z' || ch == '_'
}

// isDigit checks whether the given character is a digit
func isDigit(ch byte) bool {
	return '0' <= ch && ch <= '9'
}

// newToken creates a new Token with the given TokenType and character
func newToken(tokenType token.TokenType, ch byte, line int) token.Token {
	return token.Token{
		Type:    tokenType,
		Literal: string(ch),
		Line:    line,
	}
}
