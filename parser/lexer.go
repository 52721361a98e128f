package parser

import "strings"

// tokenize splits an expression into tokens. Beyond whitespace splitting it
// understands:
//
//   - single-quoted SQL strings, kept whole with their quotes ('' escapes)
//   - double-quoted names in Go string syntax, kept attached to any
//     r0.-style qualifier so a qualified reference stays one token
//   - the two-character operators != <> <= >= :: and ||
//   - exponent signs inside numeric literals such as 1e+20
//
// Everything else accumulates into identifier-like tokens, which keeps
// dotted references, numbers, and frame encodings such as
// rows:2_preceding:current_row intact.
func tokenize(input string) []string {
	var tokens []string
	var cur strings.Builder

	flush := func() {
		if cur.Len() > 0 {
			tokens = append(tokens, cur.String())
			cur.Reset()
		}
	}
	emit := func(tok string) {
		flush()
		tokens = append(tokens, tok)
	}

	inString := false
	inName := false
	for i := 0; i < len(input); i++ {
		ch := input[i]
		if inString {
			cur.WriteByte(ch)
			if ch == '\'' {
				if i+1 < len(input) && input[i+1] == '\'' {
					cur.WriteByte('\'')
					i++
				} else {
					inString = false
					flush()
				}
			}
			continue
		}
		if inName {
			cur.WriteByte(ch)
			if ch == '\\' && i+1 < len(input) {
				i++
				cur.WriteByte(input[i])
			} else if ch == '"' {
				inName = false
			}
			continue
		}
		var next byte
		if i+1 < len(input) {
			next = input[i+1]
		}
		switch {
		case ch == '\'':
			flush()
			cur.WriteByte(ch)
			inString = true
		case ch == '"':
			cur.WriteByte(ch)
			inName = true
		case ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r':
			flush()
		case ch == '!' && next == '=':
			emit("!=")
			i++
		case ch == '<' && next == '>':
			emit("<>")
			i++
		case ch == '<' && next == '=':
			emit("<=")
			i++
		case ch == '>' && next == '=':
			emit(">=")
			i++
		case ch == ':' && next == ':':
			emit("::")
			i++
		case ch == '|' && next == '|':
			emit("||")
			i++
		case ch == '+' || ch == '-':
			if s := cur.String(); s != "" && isExponentTail(s) {
				cur.WriteByte(ch)
			} else {
				emit(string(ch))
			}
		case ch == '(' || ch == ')' || ch == '[' || ch == ']' || ch == ',' ||
			ch == '*' || ch == '/' || ch == '%' || ch == '=' || ch == '<' || ch == '>':
			emit(string(ch))
		default:
			cur.WriteByte(ch)
		}
	}
	flush()
	return tokens
}

// isExponentTail reports whether s is a numeric literal ending in its
// exponent marker, so that a following sign belongs to the number.
func isExponentTail(s string) bool {
	last := s[len(s)-1]
	if last != 'e' && last != 'E' {
		return false
	}
	c := s[0]
	return c >= '0' && c <= '9' || c == '.'
}

// isNumberToken reports whether tok starts a numeric literal, including the
// Inf and NaN spellings float formatting produces.
func isNumberToken(tok string) bool {
	if tok == "" {
		return false
	}
	if tok[0] >= '0' && tok[0] <= '9' {
		return true
	}
	if tok[0] == '.' && len(tok) > 1 && tok[1] >= '0' && tok[1] <= '9' {
		return true
	}
	return strings.EqualFold(tok, "inf") || strings.EqualFold(tok, "nan")
}
