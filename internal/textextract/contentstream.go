package textextract

import (
	"bytes"
	"encoding/hex"
	"strconv"
	"strings"
	"unicode/utf16"
	"unicode/utf8"
)

type tokenKind int

const (
	tokOperator tokenKind = iota
	tokNumber
	tokString
	tokArrayStart
	tokArrayEnd
	tokOther
)

type token struct {
	kind tokenKind
	text string
	num  float64
}

// decodeContentStream renders the text-showing operators of a PDF page
// content stream as lines. Line breaks come from T*, ', ", ET and vertical
// moves (Td, TD, Tm).
func decodeContentStream(data []byte) string {
	var (
		out      strings.Builder
		operands []token
		inArray  bool
		array    []token
		lastY    float64
		haveY    bool
	)

	newline := func() {
		s := out.String()
		if s != "" && !strings.HasSuffix(s, "\n") {
			out.WriteByte('\n')
		}
	}

	for _, tok := range tokenize(data) {
		switch tok.kind {
		case tokArrayStart:
			inArray, array = true, array[:0]
			continue
		case tokArrayEnd:
			inArray = false
			operands = append(operands, token{kind: tokOther, text: "array"})
			continue
		}
		if inArray {
			array = append(array, tok)
			continue
		}
		if tok.kind != tokOperator {
			operands = append(operands, tok)
			continue
		}

		switch tok.text {
		case "Tj":
			writeLastString(&out, operands)
		case "'", "\"":
			newline()
			writeLastString(&out, operands)
		case "TJ":
			for _, el := range array {
				switch {
				case el.kind == tokString:
					out.WriteString(el.text)
				case el.kind == tokNumber && el.num < -200:
					out.WriteByte(' ')
				}
			}
		case "T*", "ET":
			newline()
		case "Td", "TD":
			if n := len(operands); n >= 2 && operands[n-1].kind == tokNumber && operands[n-2].kind == tokNumber {
				if operands[n-1].num != 0 {
					newline()
				} else if operands[n-2].num > 0 {
					out.WriteByte(' ')
				}
			}
		case "Tm":
			if n := len(operands); n >= 6 && operands[n-1].kind == tokNumber {
				y := operands[n-1].num
				if haveY && y != lastY {
					newline()
				}
				lastY, haveY = y, true
			}
		}
		operands = operands[:0]
	}
	return out.String()
}

func writeLastString(out *strings.Builder, operands []token) {
	for i := len(operands) - 1; i >= 0; i-- {
		if operands[i].kind == tokString {
			out.WriteString(operands[i].text)
			return
		}
	}
}

func isDelimiter(b byte) bool {
	switch b {
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return true
	}
	return false
}

func isWhite(b byte) bool {
	switch b {
	case ' ', '\t', '\r', '\n', '\f', 0:
		return true
	}
	return false
}

func tokenize(data []byte) []token {
	var tokens []token
	for i := 0; i < len(data); {
		b := data[i]
		switch {
		case isWhite(b):
			i++
		case b == '%':
			for i < len(data) && data[i] != '\n' && data[i] != '\r' {
				i++
			}
		case b == '(':
			s, next := readLiteral(data, i+1)
			tokens = append(tokens, token{kind: tokString, text: decodePDFString(s)})
			i = next
		case b == '<' && i+1 < len(data) && data[i+1] == '<':
			tokens = append(tokens, token{kind: tokOther, text: "<<"})
			i += 2
		case b == '>' && i+1 < len(data) && data[i+1] == '>':
			tokens = append(tokens, token{kind: tokOther, text: ">>"})
			i += 2
		case b == '<':
			end := bytes.IndexByte(data[i+1:], '>')
			if end < 0 {
				return tokens
			}
			tokens = append(tokens, token{kind: tokString, text: decodePDFString(decodeHex(data[i+1 : i+1+end]))})
			i += end + 2
		case b == '[':
			tokens = append(tokens, token{kind: tokArrayStart})
			i++
		case b == ']':
			tokens = append(tokens, token{kind: tokArrayEnd})
			i++
		case b == '/':
			j := i + 1
			for j < len(data) && !isWhite(data[j]) && !isDelimiter(data[j]) {
				j++
			}
			tokens = append(tokens, token{kind: tokOther, text: string(data[i:j])})
			i = j
		case isDelimiter(b):
			i++
		default:
			j := i
			for j < len(data) && !isWhite(data[j]) && !isDelimiter(data[j]) {
				j++
			}
			word := string(data[i:j])
			if n, err := strconv.ParseFloat(word, 64); err == nil {
				tokens = append(tokens, token{kind: tokNumber, num: n, text: word})
			} else {
				tokens = append(tokens, token{kind: tokOperator, text: word})
			}
			i = j
		}
	}
	return tokens
}

// readLiteral reads a (...) string starting after the opening paren and
// returns its raw bytes and the index after the closing paren.
func readLiteral(data []byte, i int) ([]byte, int) {
	var buf []byte
	depth := 1
	for i < len(data) {
		b := data[i]
		switch b {
		case '\\':
			i++
			if i >= len(data) {
				return buf, i
			}
			e := data[i]
			switch e {
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
			case '\r':
				if i+1 < len(data) && data[i+1] == '\n' {
					i++
				}
			case '\n':
			default:
				if e >= '0' && e <= '7' {
					v, n := 0, 0
					for n < 3 && i < len(data) && data[i] >= '0' && data[i] <= '7' {
						v = v*8 + int(data[i]-'0')
						i++
						n++
					}
					buf = append(buf, byte(v))
					continue
				}
				buf = append(buf, e)
			}
			i++
		case '(':
			depth++
			buf = append(buf, b)
			i++
		case ')':
			depth--
			i++
			if depth == 0 {
				return buf, i
			}
			buf = append(buf, b)
		default:
			buf = append(buf, b)
			i++
		}
	}
	return buf, i
}

func decodeHex(h []byte) []byte {
	clean := make([]byte, 0, len(h)+1)
	for _, b := range h {
		if !isWhite(b) {
			clean = append(clean, b)
		}
	}
	if len(clean)%2 == 1 {
		clean = append(clean, '0')
	}
	out := make([]byte, hex.DecodedLen(len(clean)))
	n, err := hex.Decode(out, clean)
	if err != nil {
		return nil
	}
	return out[:n]
}

// decodePDFString maps string bytes to text: UTF-16BE with a BOM, UTF-8
// when valid and non-ASCII, otherwise one rune per byte.
func decodePDFString(b []byte) string {
	if len(b) >= 2 && b[0] == 0xFE && b[1] == 0xFF {
		units := make([]uint16, 0, (len(b)-2)/2)
		for i := 2; i+1 < len(b); i += 2 {
			units = append(units, uint16(b[i])<<8|uint16(b[i+1]))
		}
		return string(utf16.Decode(units))
	}
	if utf8.Valid(b) {
		return string(b)
	}
	runes := make([]rune, len(b))
	for i, c := range b {
		runes[i] = rune(c)
	}
	return string(runes)
}
