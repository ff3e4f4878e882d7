// Package numbering renders official document numbers from a per-kind
// sequence value, either with the built-in format or a template script.
package numbering

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/d5/tengo/v2"
	"github.com/d5/tengo/v2/stdlib"
)

// Input is what a format script can see.
type Input struct {
	Seq      int64
	Kind     string
	Template string
	IssuedAt time.Time
}

const scriptTimeout = 500 * time.Millisecond

var romanMonths = [...]string{"I", "II", "III", "IV", "V", "VI", "VII", "VIII", "IX", "X", "XI", "XII"}

// RomanMonth returns the month in roman numerals, e.g. X for October.
func RomanMonth(m time.Month) string {
	if m < time.January || m > time.December {
		return ""
	}
	return romanMonths[m-1]
}

// Default renders NNN/KIND/ROMAN_MONTH/YEAR.
func Default(in Input) string {
	return fmt.Sprintf("%03d/%s/%s/%d",
		in.Seq, strings.ToUpper(in.Kind), RomanMonth(in.IssuedAt.Month()), in.IssuedAt.Year())
}

// Format runs script with the input bound as globals and returns the value
// it assigns to `number`. An empty script falls back to Default.
//
//	number = fmt.sprintf("%04d-%s-%d", seq, kind, year)
func Format(ctx context.Context, script string, in Input) (string, error) {
	if strings.TrimSpace(script) == "" {
		return Default(in), nil
	}

	s := tengo.NewScript([]byte(script))
	s.SetImports(stdlib.GetModuleMap("fmt", "text", "times"))
	s.SetMaxAllocs(10000)

	globals := map[string]interface{}{
		"seq":         in.Seq,
		"kind":        in.Kind,
		"kind_code":   strings.ToUpper(in.Kind),
		"template":    in.Template,
		"year":        int64(in.IssuedAt.Year()),
		"month":       int64(in.IssuedAt.Month()),
		"roman_month": RomanMonth(in.IssuedAt.Month()),
		"number":      "",
	}
	for name, value := range globals {
		if err := s.Add(name, value); err != nil {
			return "", fmt.Errorf("failed to bind %s: %w", name, err)
		}
	}

	compiled, err := s.Compile()
	if err != nil {
		return "", fmt.Errorf("failed to compile number format: %w", err)
	}

	runCtx, cancel := context.WithTimeout(ctx, scriptTimeout)
	defer cancel()
	if err := compiled.RunContext(runCtx); err != nil {
		return "", fmt.Errorf("failed to run number format: %w", err)
	}

	number := compiled.Get("number").String()
	if number == "" {
		return "", fmt.Errorf("number format did not assign a number")
	}
	return number, nil
}

// Validate dry-runs script against a sample input.
func Validate(script string) error {
	_, err := Format(context.Background(), script, Input{
		Seq:      1,
		Kind:     "letter",
		Template: "sample",
		IssuedAt: time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC),
	})
	return err
}
