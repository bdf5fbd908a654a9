package metadata

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/ternarybob/modernizer/internal/models"
)

// buildFunction is the shared library step whose arguments describe the build matrix
const buildFunction = "buildPlugin"

// ParseBuildMatrix returns the distinct jdk versions declared in the configurations
// argument of every buildPlugin call, in first-seen order. Both the parenthesized
// and the command (no parentheses) call forms are recognized.
func ParseBuildMatrix(src string) ([]models.JDK, error) {
	tokens, err := tokenize(src)
	if err != nil {
		return nil, err
	}

	p := &matrixParser{tokens: tokens}
	seen := make(map[models.JDK]bool)
	var jdks []models.JDK

	for p.pos < len(p.tokens) {
		tok := p.next()
		if tok.kind != tokIdent || tok.text != buildFunction {
			continue
		}
		args := p.parseCallArguments()
		for _, jdk := range jdksFromConfigurations(args["configurations"]) {
			if !seen[jdk] {
				seen[jdk] = true
				jdks = append(jdks, jdk)
			}
		}
	}

	return jdks, nil
}

func jdksFromConfigurations(v any) []models.JDK {
	entries, ok := v.([]any)
	if !ok {
		return nil
	}
	var jdks []models.JDK
	for _, entry := range entries {
		m, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		switch jdk := m["jdk"].(type) {
		case int:
			jdks = append(jdks, models.JDK(jdk))
		case string:
			if n, err := strconv.Atoi(strings.TrimSpace(jdk)); err == nil {
				jdks = append(jdks, models.JDK(n))
			}
		}
	}
	return jdks
}

type tokenKind int

const (
	tokIdent tokenKind = iota
	tokNumber
	tokString
	tokPunct
)

type token struct {
	kind tokenKind
	text string
}

// tokenize splits a groovy script into identifiers, numbers, string literals and
// single-character punctuation. Comments and whitespace are dropped.
func tokenize(src string) ([]token, error) {
	var tokens []token
	r := []rune(src)
	i := 0

	for i < len(r) {
		c := r[i]
		switch {
		case unicode.IsSpace(c):
			i++

		case c == '/' && i+1 < len(r) && r[i+1] == '/':
			for i < len(r) && r[i] != '\n' {
				i++
			}

		case c == '/' && i+1 < len(r) && r[i+1] == '*':
			j := i + 2
			for j+1 < len(r) && !(r[j] == '*' && r[j+1] == '/') {
				j++
			}
			if j+1 >= len(r) {
				return nil, fmt.Errorf("unterminated block comment")
			}
			i = j + 2

		case c == '\'' || c == '"':
			quote := string(c)
			if i+2 < len(r) && r[i+1] == c && r[i+2] == c {
				quote = strings.Repeat(quote, 3)
			}
			start := i + len(quote)
			j := start
			var sb strings.Builder
			for {
				if j >= len(r) {
					return nil, fmt.Errorf("unterminated string literal")
				}
				if r[j] == '\\' && j+1 < len(r) {
					sb.WriteRune(r[j+1])
					j += 2
					continue
				}
				if strings.HasPrefix(string(r[j:min(j+len(quote), len(r))]), quote) {
					break
				}
				sb.WriteRune(r[j])
				j++
			}
			tokens = append(tokens, token{kind: tokString, text: sb.String()})
			i = j + len(quote)

		case unicode.IsDigit(c):
			j := i
			for j < len(r) && (unicode.IsDigit(r[j]) || r[j] == '.' || r[j] == '_') {
				j++
			}
			tokens = append(tokens, token{kind: tokNumber, text: string(r[i:j])})
			i = j

		case unicode.IsLetter(c) || c == '_' || c == '$':
			j := i
			for j < len(r) && (unicode.IsLetter(r[j]) || unicode.IsDigit(r[j]) || r[j] == '_' || r[j] == '$') {
				j++
			}
			tokens = append(tokens, token{kind: tokIdent, text: string(r[i:j])})
			i = j

		default:
			tokens = append(tokens, token{kind: tokPunct, text: string(c)})
			i++
		}
	}

	return tokens, nil
}

type matrixParser struct {
	tokens []token
	pos    int
}

func (p *matrixParser) peek() (token, bool) {
	if p.pos >= len(p.tokens) {
		return token{}, false
	}
	return p.tokens[p.pos], true
}

func (p *matrixParser) peekAt(offset int) (token, bool) {
	if p.pos+offset >= len(p.tokens) {
		return token{}, false
	}
	return p.tokens[p.pos+offset], true
}

func (p *matrixParser) next() token {
	tok := p.tokens[p.pos]
	p.pos++
	return tok
}

func (p *matrixParser) isPunct(text string) bool {
	tok, ok := p.peek()
	return ok && tok.kind == tokPunct && tok.text == text
}

// isNamedArg reports whether the upcoming tokens are "name :"
func (p *matrixParser) isNamedArg() bool {
	name, ok := p.peek()
	if !ok || (name.kind != tokIdent && name.kind != tokString) {
		return false
	}
	colon, ok := p.peekAt(1)
	return ok && colon.kind == tokPunct && colon.text == ":"
}

// parseCallArguments reads the named arguments following the function name
func (p *matrixParser) parseCallArguments() map[string]any {
	args := make(map[string]any)

	if p.isPunct("(") {
		p.next()
		for p.pos < len(p.tokens) && !p.isPunct(")") {
			start := p.pos
			if p.isNamedArg() {
				name := p.next().text
				p.next()
				args[name] = p.parseValue()
			} else {
				p.parseValue()
			}
			if p.isPunct(",") {
				p.next()
			}
			p.ensureProgress(start)
		}
		if p.isPunct(")") {
			p.next()
		}
		return args
	}

	// Command form: buildPlugin name: value, name: value
	for p.isNamedArg() {
		name := p.next().text
		p.next()
		args[name] = p.parseValue()
		if !p.isPunct(",") {
			break
		}
		p.next()
	}
	return args
}

// parseValue reads a literal. Lists become []any, maps map[string]any, integers int,
// strings string. Any other expression is skipped up to the next separator and yields nil.
func (p *matrixParser) parseValue() any {
	tok, ok := p.peek()
	if !ok {
		return nil
	}

	switch {
	case tok.kind == tokPunct && tok.text == "[":
		return p.parseCollection()
	case tok.kind == tokString:
		p.next()
		if p.isSeparator() {
			return tok.text
		}
	case tok.kind == tokNumber:
		p.next()
		if p.isSeparator() {
			if n, err := strconv.Atoi(strings.ReplaceAll(tok.text, "_", "")); err == nil {
				return n
			}
			return tok.text
		}
	}

	p.skipExpression()
	return nil
}

func (p *matrixParser) isSeparator() bool {
	tok, ok := p.peek()
	if !ok {
		return true
	}
	return tok.kind == tokPunct && (tok.text == "," || tok.text == ")" || tok.text == "]" || tok.text == ";" || tok.text == "}")
}

// parseCollection reads "[...]" as a list or, when the first element is "key:", a map.
// "[:]" is the empty map.
func (p *matrixParser) parseCollection() any {
	p.next()

	if p.isPunct(":") {
		p.next()
		if p.isPunct("]") {
			p.next()
		}
		return map[string]any{}
	}

	if p.isNamedArg() {
		m := make(map[string]any)
		for p.pos < len(p.tokens) && !p.isPunct("]") {
			start := p.pos
			if p.isNamedArg() {
				key := p.next().text
				p.next()
				m[key] = p.parseValue()
			} else {
				p.skipExpression()
			}
			if p.isPunct(",") {
				p.next()
			}
			p.ensureProgress(start)
		}
		if p.isPunct("]") {
			p.next()
		}
		return m
	}

	list := make([]any, 0)
	for p.pos < len(p.tokens) && !p.isPunct("]") {
		start := p.pos
		list = append(list, p.parseValue())
		if p.isPunct(",") {
			p.next()
		}
		p.ensureProgress(start)
	}
	if p.isPunct("]") {
		p.next()
	}
	return list
}

// ensureProgress drops a stray token when a loop iteration consumed nothing
func (p *matrixParser) ensureProgress(start int) {
	if p.pos == start && p.pos < len(p.tokens) {
		p.pos++
	}
}

// skipExpression advances past balanced brackets until a separator at depth zero
func (p *matrixParser) skipExpression() {
	depth := 0
	for p.pos < len(p.tokens) {
		tok, _ := p.peek()
		if tok.kind == tokPunct {
			switch tok.text {
			case "(", "[", "{":
				depth++
			case ")", "]", "}":
				if depth == 0 {
					return
				}
				depth--
			case ",", ";":
				if depth == 0 {
					return
				}
			}
		}
		p.next()
	}
}
