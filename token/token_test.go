package token

import (
	"testing"
)

func TestCreateToken(t *testing.T) {
	tests := []struct {
		tokenType      TokenType
		expectedLexeme string
	}{
		{LPA, "("},
		{RPA, ")"},
		{LCUR, "{"},
		{RCUR, "}"},
		{COMMA, ","},
		{DOT, "."},
		{ASSIGN, "="},
		{EQUAL_EQUAL, "=="},
		{NOT_EQUAL, "!="},
		{LESS_EQUAL, "<="},
		{LARGER_EQUAL, ">="},
		{MOD, "%"},
		{EOF, ""},
	}

	for _, tt := range tests {
		tok := CreateToken(tt.tokenType, 7)
		if tok.Lexeme != tt.expectedLexeme {
			t.Errorf("CreateToken(%s) lexeme - got: %q, want: %q", tt.tokenType, tok.Lexeme, tt.expectedLexeme)
		}
		if tok.CharIdx != 7 {
			t.Errorf("CreateToken(%s) charIdx - got: %d, want: 7", tt.tokenType, tok.CharIdx)
		}
	}
}

func TestCreateLiteralToken(t *testing.T) {
	tok := CreateLiteralToken(NUM, float64(12.5), "12.5", 3)
	if tok.TokenType != NUM {
		t.Errorf("token type - got: %s, want: %s", tok.TokenType, NUM)
	}
	if tok.Literal.(float64) != 12.5 {
		t.Errorf("token literal - got: %v, want: 12.5", tok.Literal)
	}
	if tok.Lexeme != "12.5" {
		t.Errorf("token lexeme - got: %q, want: %q", tok.Lexeme, "12.5")
	}
}

func TestKeyWords(t *testing.T) {
	tests := []struct {
		lexeme   string
		expected TokenType
	}{
		{"var", VAR},
		{"const", CONST},
		{"if", IF},
		{"else", ELSE},
		{"true", TRUE},
		{"false", FALSE},
		{"nil", NIL},
		{"import", IMPORT},
		{"as", AS},
		{"fn", FUNC},
	}

	for _, tt := range tests {
		got, ok := KeyWords[tt.lexeme]
		if !ok {
			t.Errorf("keyword %q not found", tt.lexeme)
			continue
		}
		if got != tt.expected {
			t.Errorf("keyword %q - got: %s, want: %s", tt.lexeme, got, tt.expected)
		}
	}
}

func TestTokenString(t *testing.T) {
	tok := CreateLiteralToken(NUM, float64(123), "123", 10)
	want := `Token {Type: NUM, Value: "123"}`
	if tok.String() != want {
		t.Errorf("token string - got: %s, want: %s", tok.String(), want)
	}
}
