// Package syntax compiles one line of user input into a types.Tape, per
// spec.md §6's grammar: numeric literals become WRITE ops, quoted ASCII
// becomes one WRITE op per character, bracket pairs wrap START/STOP,
// and `:N`/`.N` suffixes set repeat count and bit width on the token
// they're glued to.
//
// The bytecode shape is grounded on original_source/bytecode.h's op/value
// pair. Bit-width clamping reuses pinfabric.ClampBits so the compiler and
// the pin fabric agree on the same [1,32] range (spec.md §4.3.c).
package syntax

import (
	"strconv"
	"strings"

	"buspirate-go/errcode"
	"buspirate-go/pinfabric"
	"buspirate-go/types"

	"github.com/google/shlex"
)

// Compile turns one line of input into a tape. An empty or comment-only
// line yields an empty, non-nil tape and a nil error (spec.md §8: "a line
// with only comments produces an empty tape").
func Compile(line string) (types.Tape, error) {
	line = stripComment(line)
	toks := tokenize(line)

	tape := make(types.Tape, 0, len(toks))
	for _, tk := range toks {
		op, ok, err := compileToken(tk)
		if err != nil {
			return nil, err
		}
		if ok {
			tape = append(tape, op...)
		}
	}
	return tape, nil
}

// stripComment cuts the line at the first unquoted '#'.
func stripComment(line string) string {
	inQuote := false
	for i, r := range line {
		switch r {
		case '"':
			inQuote = !inQuote
		case '#':
			if !inQuote {
				return line[:i]
			}
		}
	}
	return line
}

type token struct {
	text   string
	quoted bool
}

// tokenize splits line on whitespace, quotes and bracket boundaries.
// Brackets always end a bareword run, glued or not, so "[0x41" and "r]"
// split into "[", "0x41" and "r", "]" the same way "[ 0x41 r ]" does.
// A lone ":" or ";" token is a pure separator (spec.md §6: "whitespace/
// colon/semicolon-separated"); colons and periods glued to a token (as in
// "r:5" or "0x41.8") stay attached for compileToken to parse as suffixes.
func tokenize(line string) []token {
	var out []token
	runes := []rune(line)
	i := 0
	for i < len(runes) {
		r := runes[i]
		switch {
		case r == ' ' || r == '\t':
			i++
		case r == '"':
			j := i + 1
			for j < len(runes) && runes[j] != '"' {
				j++
			}
			out = append(out, token{text: string(runes[i+1 : j]), quoted: true})
			if j < len(runes) {
				j++ // skip closing quote
			}
			i = j
		case r == '[' || r == ']':
			out = append(out, token{text: string(r)})
			i++
		default:
			j := i
			for j < len(runes) {
				c := runes[j]
				if c == ' ' || c == '\t' || c == '"' || c == '[' || c == ']' {
					break
				}
				j++
			}
			out = append(out, token{text: string(runes[i:j])})
			i = j
		}
	}
	return out
}

// compileToken expands one token into zero or more ops. ok is false for
// a pure separator token that contributes nothing to the tape.
func compileToken(tk token) ([]types.Op, bool, error) {
	if tk.quoted {
		ops := make([]types.Op, 0, len(tk.text))
		for _, b := range []byte(tk.text) {
			ops = append(ops, types.Op{
				Kind: types.OpWrite, Format: types.FormatASCII,
				Bits: 8, HasBits: true, Repeat: 1, OutData: uint32(b),
			})
		}
		return ops, len(ops) > 0, nil
	}

	switch tk.text {
	case "[":
		return []types.Op{{Kind: types.OpStart}}, true, nil
	case "]":
		return []types.Op{{Kind: types.OpStop}}, true, nil
	case ":", ";":
		return nil, false, nil
	case "":
		return nil, false, nil
	}

	base, bits, hasBits, repeat, hasRepeat, err := splitSuffixes(tk.text)
	if err != nil {
		return nil, false, err
	}
	if base == "" {
		return nil, false, errcode.InvalidParams
	}

	op, err := classifyBase(base)
	if err != nil {
		return nil, false, err
	}

	if hasBits {
		if bits == 0 {
			return nil, false, errcode.BitsOutOfRange
		}
		clamped, warned := pinfabric.ClampBits(bits)
		op.Bits = clamped
		op.HasBits = true
		op.BitsClamped = warned
	}
	if hasRepeat {
		if repeat == 0 {
			return nil, false, errcode.RepeatInvalid
		}
		op.Repeat = repeat
		op.HasRepeat = true
	}
	return []types.Op{op}, true, nil
}

// splitSuffixes strips up to one trailing ".N" (bits) and one trailing
// ":N" (repeat) from tok, in either order, returning what's left as base.
func splitSuffixes(tok string) (base string, bits uint32, hasBits bool, repeat uint32, hasRepeat bool, err error) {
	base = tok
	for i := 0; i < 2; i++ {
		if b, n, ok := stripTrailingNumeric(base, '.'); ok {
			if hasBits {
				return "", 0, false, 0, false, errcode.InvalidParams
			}
			base, bits, hasBits = b, n, true
			continue
		}
		if b, n, ok := stripTrailingNumeric(base, ':'); ok {
			if hasRepeat {
				return "", 0, false, 0, false, errcode.InvalidParams
			}
			base, repeat, hasRepeat = b, n, true
			continue
		}
		break
	}
	return base, bits, hasBits, repeat, hasRepeat, nil
}

// stripTrailingNumeric removes a trailing sep+digits suffix from s, e.g.
// stripTrailingNumeric("r:5", ':') -> ("r", 5, true).
func stripTrailingNumeric(s string, sep rune) (string, uint32, bool) {
	idx := strings.LastIndexByte(s, byte(sep))
	if idx < 0 || idx == len(s)-1 {
		return s, 0, false
	}
	digits := s[idx+1:]
	for _, c := range digits {
		if c < '0' || c > '9' {
			return s, 0, false
		}
	}
	n, err := strconv.ParseUint(digits, 10, 32)
	if err != nil {
		return s, 0, false
	}
	return s[:idx], uint32(n), true
}

func classifyBase(base string) (types.Op, error) {
	switch base {
	case "r", "R":
		return types.Op{Kind: types.OpRead, Repeat: 1}, nil
	case "w", "W":
		return types.Op{Kind: types.OpWrite, Repeat: 1}, nil
	case "a":
		return types.Op{Kind: types.OpAuxOut, Repeat: 1}, nil
	case "A":
		return types.Op{Kind: types.OpAuxIn, Repeat: 1}, nil
	case "@":
		return types.Op{Kind: types.OpADC, Repeat: 1}, nil
	}

	if len(base) >= 2 && base[0] == 'd' && isDigits(base[1:]) {
		n, _ := strconv.ParseUint(base[1:], 10, 32)
		return types.Op{Kind: types.OpDelayUS, OutData: uint32(n), Repeat: 1}, nil
	}
	if len(base) >= 2 && base[0] == 'D' && isDigits(base[1:]) {
		n, _ := strconv.ParseUint(base[1:], 10, 32)
		return types.Op{Kind: types.OpDelayMS, OutData: uint32(n), Repeat: 1}, nil
	}

	v, format, err := parseNumber(base)
	if err != nil {
		return types.Op{}, err
	}
	return types.Op{Kind: types.OpWrite, Format: format, OutData: v, Repeat: 1}, nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

func parseNumber(s string) (uint32, types.NumberFormat, error) {
	switch {
	case strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X"):
		n, err := strconv.ParseUint(s[2:], 16, 32)
		if err != nil {
			return 0, 0, errcode.InvalidParams
		}
		return uint32(n), types.FormatHex, nil
	case strings.HasPrefix(s, "0b") || strings.HasPrefix(s, "0B"):
		n, err := strconv.ParseUint(s[2:], 2, 32)
		if err != nil {
			return 0, 0, errcode.InvalidParams
		}
		return uint32(n), types.FormatBin, nil
	default:
		n, err := strconv.ParseUint(s, 10, 32)
		if err != nil {
			return 0, 0, errcode.InvalidParams
		}
		return uint32(n), types.FormatDecimal, nil
	}
}

// SplitScriptArgs tokenizes the argument portion of a script/macro
// invocation line (spec.md §6's "Script/macro files"), where arguments
// may themselves be quoted shell-style (a path with spaces, say). This is
// genuinely shell-like tokenization, unlike the bytecode grammar above,
// so it is delegated to shlex rather than hand-rolled.
func SplitScriptArgs(line string) ([]string, error) {
	return shlex.Split(line)
}
