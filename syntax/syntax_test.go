package syntax

import (
	"testing"

	"buspirate-go/errcode"
	"buspirate-go/types"
)

func TestCommentOnlyLineIsEmptyTape(t *testing.T) {
	tape, err := Compile("  # just a comment")
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if len(tape) != 0 {
		t.Fatalf("tape = %+v, want empty", tape)
	}
}

func TestNumericLiteralFormats(t *testing.T) {
	cases := []struct {
		in   string
		want types.NumberFormat
		val  uint32
	}{
		{"0x41", types.FormatHex, 0x41},
		{"0b101", types.FormatBin, 5},
		{"65", types.FormatDecimal, 65},
	}
	for _, c := range cases {
		tape, err := Compile(c.in)
		if err != nil {
			t.Fatalf("Compile(%q): %v", c.in, err)
		}
		if len(tape) != 1 || tape[0].Kind != types.OpWrite || tape[0].Format != c.want || tape[0].OutData != c.val {
			t.Fatalf("Compile(%q) = %+v", c.in, tape)
		}
	}
}

func TestQuotedStringEmitsPerCharWrites(t *testing.T) {
	tape, err := Compile(`"hi"`)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if len(tape) != 2 || tape[0].OutData != 'h' || tape[1].OutData != 'i' {
		t.Fatalf("tape = %+v", tape)
	}
}

func TestBracketPairWrapsStartStop(t *testing.T) {
	tape, err := Compile("[0x41 r]")
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if len(tape) != 4 {
		t.Fatalf("tape len = %d, want 4: %+v", len(tape), tape)
	}
	if tape[0].Kind != types.OpStart || tape[1].Kind != types.OpWrite || tape[2].Kind != types.OpRead || tape[3].Kind != types.OpStop {
		t.Fatalf("tape = %+v", tape)
	}
}

func TestReadWithRepeat(t *testing.T) {
	tape, err := Compile("r:3")
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if len(tape) != 1 || tape[0].Kind != types.OpRead || tape[0].Repeat != 3 || !tape[0].HasRepeat {
		t.Fatalf("tape = %+v", tape)
	}
}

func TestBitsZeroRejected(t *testing.T) {
	if _, err := Compile("0x41.0"); err != errcode.BitsOutOfRange {
		t.Fatalf("Compile(0x41.0) err = %v, want BitsOutOfRange", err)
	}
}

func TestBitsOverflowClamped(t *testing.T) {
	tape, err := Compile("0x41.40")
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if tape[0].Bits != 32 || !tape[0].BitsClamped {
		t.Fatalf("tape[0] = %+v, want Bits=32 BitsClamped=true", tape[0])
	}
}

func TestRepeatZeroRejected(t *testing.T) {
	if _, err := Compile("r:0"); err != errcode.RepeatInvalid {
		t.Fatalf("Compile(r:0) err = %v, want RepeatInvalid", err)
	}
}

func TestDelayTokens(t *testing.T) {
	tape, err := Compile("d100 D5")
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if len(tape) != 2 || tape[0].Kind != types.OpDelayUS || tape[0].OutData != 100 {
		t.Fatalf("tape[0] = %+v", tape[0])
	}
	if tape[1].Kind != types.OpDelayMS || tape[1].OutData != 5 {
		t.Fatalf("tape[1] = %+v", tape[1])
	}
}

func TestAuxAndADCTokens(t *testing.T) {
	tape, err := Compile("a A @")
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if len(tape) != 3 || tape[0].Kind != types.OpAuxOut || tape[1].Kind != types.OpAuxIn || tape[2].Kind != types.OpADC {
		t.Fatalf("tape = %+v", tape)
	}
}

func TestTapeLengthMatchesTokenCount(t *testing.T) {
	tape, err := Compile("0x41 0x42 r")
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if len(tape) != 3 {
		t.Fatalf("tape len = %d, want 3", len(tape))
	}
}

func TestSplitScriptArgsHandlesQuotes(t *testing.T) {
	args, err := SplitScriptArgs(`run "my script.mcr" 1`)
	if err != nil {
		t.Fatalf("SplitScriptArgs: %v", err)
	}
	want := []string{"run", "my script.mcr", "1"}
	if len(args) != len(want) {
		t.Fatalf("args = %v, want %v", args, want)
	}
	for i := range want {
		if args[i] != want[i] {
			t.Fatalf("args = %v, want %v", args, want)
		}
	}
}
