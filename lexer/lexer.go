package lexer

import (
	"strconv"

	"vela/token"
)

const (
	COMMENT_CHAR = '#'
)

func isLetter(char rune) bool {
	return rune('a') <= char && char <= rune('z') || rune('A') <= char && char <= rune('Z') || char == rune('_')
}

func isNumber(char rune) bool {
	return rune('0') <= char && char <= rune('9')
}

// Lexer represents a lexical scanner producing tokens from source text
// on demand. The parser pulls one token per NextToken call; a single
// forward pass over the input suffices.
type Lexer struct {
	// rune slice of the input string being scanned.
	characters []rune

	// Total number of runes in the input.
	totalChars int

	// The index of the next character to be read.
	position int
}

// Initializes and returns a new Lexer instance for the provided source
// code.
func New(input string) *Lexer {
	lexer := &Lexer{
		characters: []rune(input),
	}
	lexer.totalChars = len(lexer.characters)
	return lexer
}

// Determines if the lexer has consumed all the source code.
func (lexer *Lexer) isFinished() bool {
	return lexer.position >= lexer.totalChars
}

// Returns the character at the lexer's current position without
// consuming it, or rune(0) at end of input.
func (lexer *Lexer) peek() rune {
	if lexer.isFinished() {
		return rune(0)
	}
	return lexer.characters[lexer.position]
}

// Returns the character one past the current position without consuming
// anything, or rune(0) at end of input.
func (lexer *Lexer) peekNext() rune {
	nextPos := lexer.position + 1
	if nextPos >= lexer.totalChars {
		return rune(0)
	}
	return lexer.characters[nextPos]
}

// Consumes and returns the character at the current position.
func (lexer *Lexer) readChar() rune {
	char := lexer.peek()
	lexer.position++
	return char
}

// Determines if the character at the current position matches the
// `expected` character, consuming it when it does.
func (lexer *Lexer) isMatch(expected rune) bool {
	if lexer.isFinished() {
		return false
	}
	if lexer.characters[lexer.position] == expected {
		lexer.position++
		return true
	}
	return false
}

// Skips whitespace other than newlines. Newlines are significant: the
// parser decides per position whether they separate expressions, so
// they come through as tokens.
func (lexer *Lexer) skipWhiteSpace() {
	for {
		switch lexer.peek() {
		case rune(' '), rune('\r'), rune('\t'):
			lexer.position++
		case rune(COMMENT_CHAR):
			for lexer.peek() != rune('\n') && !lexer.isFinished() {
				lexer.position++
			}
		default:
			return
		}
	}
}

// handleNumber scans a base-10 numeric literal with an optional
// fractional part. A second decimal point or a trailing one with no
// digits after it makes the lexeme malformed.
func (lexer *Lexer) handleNumber(initPos int) token.Token {
	for isNumber(lexer.peek()) {
		lexer.position++
	}

	if lexer.peek() == rune('.') && isNumber(lexer.peekNext()) {
		lexer.position++
		for isNumber(lexer.peek()) {
			lexer.position++
		}
	}

	if lexer.peek() == rune('.') {
		// handles numbers such as 1. and 1.1.
		for !lexer.isFinished() && (isNumber(lexer.peek()) || lexer.peek() == rune('.')) {
			lexer.position++
		}
		lexeme := string(lexer.characters[initPos:lexer.position])
		return token.CreateLiteralToken(token.ERROR, nil, lexeme, initPos)
	}

	lexeme := string(lexer.characters[initPos:lexer.position])
	result, _ := strconv.ParseFloat(lexeme, 64)
	return token.CreateLiteralToken(token.NUM, result, lexeme, initPos)
}

// handleIdentifier scans a user identifier or a language keyword.
func (lexer *Lexer) handleIdentifier(initPos int) token.Token {
	for isLetter(lexer.peek()) || isNumber(lexer.peek()) {
		lexer.position++
	}

	lexeme := string(lexer.characters[initPos:lexer.position])
	if keywordType, exists := token.KeyWords[lexeme]; exists {
		return token.CreateLiteralToken(keywordType, nil, lexeme, initPos)
	}
	return token.CreateLiteralToken(token.IDENTIFIER, nil, lexeme, initPos)
}

// handleStringLiteral scans a double-quoted string literal. The core
// performs no escape processing. An unterminated literal is malformed.
func (lexer *Lexer) handleStringLiteral(initPos int) token.Token {
	for {
		if lexer.isFinished() {
			lexeme := string(lexer.characters[initPos:lexer.position])
			return token.CreateLiteralToken(token.ERROR, nil, lexeme, initPos)
		}
		if lexer.readChar() == rune('"') {
			break
		}
	}

	// trim the surrounding quotes off the payload
	payload := string(lexer.characters[initPos+1 : lexer.position-1])
	return token.CreateLiteralToken(token.STRING, payload, payload, initPos)
}

// NextToken scans and returns the next token in the input. After the
// input is exhausted every call returns an EOF token.
func (lexer *Lexer) NextToken() token.Token {
	lexer.skipWhiteSpace()

	if lexer.isFinished() {
		return token.CreateToken(token.EOF, lexer.position)
	}

	initPos := lexer.position
	char := lexer.readChar()

	switch char {
	case rune('\n'):
		return token.CreateToken(token.NEWLINE, initPos)
	case rune('('):
		return token.CreateToken(token.LPA, initPos)
	case rune(')'):
		return token.CreateToken(token.RPA, initPos)
	case rune('{'):
		return token.CreateToken(token.LCUR, initPos)
	case rune('}'):
		return token.CreateToken(token.RCUR, initPos)
	case rune(','):
		return token.CreateToken(token.COMMA, initPos)
	case rune('.'):
		return token.CreateToken(token.DOT, initPos)
	case rune('+'):
		return token.CreateToken(token.ADD, initPos)
	case rune('-'):
		return token.CreateToken(token.SUB, initPos)
	case rune('*'):
		return token.CreateToken(token.MULT, initPos)
	case rune('/'):
		return token.CreateToken(token.DIV, initPos)
	case rune('%'):
		return token.CreateToken(token.MOD, initPos)
	case rune('='):
		if lexer.isMatch(rune('=')) {
			return token.CreateToken(token.EQUAL_EQUAL, initPos)
		}
		return token.CreateToken(token.ASSIGN, initPos)
	case rune('!'):
		if lexer.isMatch(rune('=')) {
			return token.CreateToken(token.NOT_EQUAL, initPos)
		}
		return token.CreateToken(token.BANG, initPos)
	case rune('<'):
		if lexer.isMatch(rune('=')) {
			return token.CreateToken(token.LESS_EQUAL, initPos)
		}
		return token.CreateToken(token.LESS, initPos)
	case rune('>'):
		if lexer.isMatch(rune('=')) {
			return token.CreateToken(token.LARGER_EQUAL, initPos)
		}
		return token.CreateToken(token.LARGER, initPos)
	case rune('"'):
		return lexer.handleStringLiteral(initPos)
	default:
		if isLetter(char) {
			return lexer.handleIdentifier(initPos)
		}
		if isNumber(char) {
			return lexer.handleNumber(initPos)
		}
		return token.CreateLiteralToken(token.ERROR, nil, string(char), initPos)
	}
}
