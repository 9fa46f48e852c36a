// Package executor walks a compiled types.Tape against the currently
// active mode, producing one types.Result per (possibly repeated) op and
// an aggregate error flag a script runner can check for "-e" abort
// semantics (spec.md §6, §7, §8).
//
// Timing and the never-panics-across-the-boundary discipline are
// grounded on the teacher's worker loop (services/hal/worker.go): every
// error a mode driver can produce is a value attached to a Result, never
// a Go panic, and delays block the caller through the injected sleep
// function (time.Sleep by default) rather than busy-waiting (spec.md §5:
// "no op is asynchronously cancelled").
package executor

import (
	"time"

	"buspirate-go/errcode"
	"buspirate-go/modes"
	"buspirate-go/types"
)

// Outcome is the full record of one tape's execution.
type Outcome struct {
	Results   []types.Result
	HasError  bool // aggregate flag for script "-e" abort (spec.md §6)
	Aborted   bool // true if a compiler/dispatch error stopped the tape early
}

// Run executes every op in tape against driver in order, applying mode
// defaults for bit width and a default repeat of 1. sleep is injectable
// so tests don't actually busy-wait; production callers pass time.Sleep.
func Run(driver modes.Driver, tape types.Tape, sleep func(time.Duration)) Outcome {
	if sleep == nil {
		sleep = time.Sleep
	}
	out := Outcome{Results: make([]types.Result, 0, len(tape))}

	for _, op := range tape {
		// Delays need no mode capability and run in every mode.
		switch op.Kind {
		case types.OpDelayUS:
			sleep(time.Duration(op.OutData) * time.Microsecond)
			out.Results = append(out.Results, types.Result{Severity: types.SevNone})
			continue
		case types.OpDelayMS:
			sleep(time.Duration(op.OutData) * time.Millisecond)
			out.Results = append(out.Results, types.Result{Severity: types.SevNone})
			continue
		}

		if err := modes.RequiresCapability(driver, op.Kind); err != nil {
			out.Results = append(out.Results, types.Result{Severity: types.SevError, Message: err.Error()})
			out.HasError = true
			continue
		}

		if !op.HasBits {
			op.Bits = driver.DefaultBits()
		}
		repeat := op.Repeat
		if repeat == 0 {
			repeat = 1
		}

		before := len(out.Results)
		op.Repeat = repeat
		out.Results = driver.Execute(op, out.Results)
		if len(out.Results) == before {
			// A driver that produced nothing still owes the invariant of
			// spec.md §8: at least one result per op.
			out.Results = append(out.Results, types.Result{Severity: types.SevError, Message: string(errcode.Error)})
		}
		if op.BitsClamped {
			out.Results[len(out.Results)-1].Severity = maxSeverity(out.Results[len(out.Results)-1].Severity, types.SevWarn)
			appendWarnNote(&out.Results[len(out.Results)-1], "bits clamped to 32")
		}
		for i := before; i < len(out.Results); i++ {
			if out.Results[i].Severity >= types.SevError {
				out.HasError = true
			}
		}
	}
	return out
}

func maxSeverity(a, b types.Severity) types.Severity {
	if b > a {
		return b
	}
	return a
}

func appendWarnNote(r *types.Result, note string) {
	if r.Message == "" {
		r.Message = note
		return
	}
	r.Message = r.Message + "; " + note
}
