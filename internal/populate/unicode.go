package populate

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"unicode/utf8"
)

const UnicodeDir = "unicode"

type Outcome string

const (
	OutcomeCreated  Outcome = "created"
	OutcomeRejected Outcome = "rejected"
)

// UnicodeAttempt is the result of creating the file for one code point.
type UnicodeAttempt struct {
	CodePoint rune
	Name      string
	Outcome   Outcome
	Err       error
}

// UnicodeReport holds one attempt per input code point, in input order.
type UnicodeReport struct {
	Attempts []UnicodeAttempt
	Created  int
	Rejected int
}

func (r *UnicodeReport) add(a UnicodeAttempt) {
	r.Attempts = append(r.Attempts, a)
	switch a.Outcome {
	case OutcomeCreated:
		r.Created++
	case OutcomeRejected:
		r.Rejected++
	}
}

// ReadUnicodeDB reads the code point column of a UnicodeData.txt style file:
// the first ';' separated field of every non-empty line, in hex. Values above
// U+10FFFF are rejected.
func ReadUnicodeDB(r io.Reader) ([]rune, error) {
	var points []rune

	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}

		field, _, _ := strings.Cut(text, ";")
		cp, err := strconv.ParseUint(strings.TrimSpace(field), 16, 32)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %q: %w", ErrInvalidUnicodeDB, line, field, err)
		}
		if cp > utf8.MaxRune {
			return nil, fmt.Errorf("%w: line %d: %q: above U+10FFFF", ErrInvalidUnicodeDB, line, field)
		}
		points = append(points, rune(cp))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read unicode database: %w", err)
	}

	return points, nil
}

// ReadUnicodeDBFile is ReadUnicodeDB on a file.
func ReadUnicodeDBFile(path string) ([]rune, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open unicode database: %w", err)
	}
	defer f.Close()

	return ReadUnicodeDB(f)
}

// UnicodeFileName is the name tried for cp: the 8 digit hex code point, an
// underscore and the encoded code point.
func UnicodeFileName(cp rune) string {
	return fmt.Sprintf("u+%08X_", cp) + string(encodeRune(cp))
}

// encodeRune is UTF-8 without the scalar value check, so surrogates get
// their 3 byte form instead of U+FFFD. cp must be at most U+10FFFF.
func encodeRune(cp rune) []byte {
	if utf8.ValidRune(cp) {
		return utf8.AppendRune(nil, cp)
	}

	return []byte{
		0xE0 | byte(cp>>12),
		0x80 | byte(cp>>6)&0x3F,
		0x80 | byte(cp)&0x3F,
	}
}

func UnicodeStep(points []rune, report *UnicodeReport) Step {
	return Step{
		Name:     "unicode names",
		Provides: []string{UnicodeDir},
		Do: func(ctx context.Context, env *Env) error {
			r, err := Unicode(ctx, env, points)
			if r != nil {
				*report = *r
			}
			return err
		},
	}
}

// Unicode tries to create one empty file per code point. A failed creation is
// logged and recorded as rejected; only a cancelled context stops the loop.
func Unicode(ctx context.Context, env *Env, points []rune) (*UnicodeReport, error) {
	dir := env.Path(UnicodeDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	report := &UnicodeReport{Attempts: make([]UnicodeAttempt, 0, len(points))}
	for i, cp := range points {
		if i%cancelCheck == 0 {
			if err := ctx.Err(); err != nil {
				return report, err
			}
		}

		name := UnicodeFileName(cp)
		attempt := UnicodeAttempt{CodePoint: cp, Name: name, Outcome: OutcomeCreated}

		// no filepath.Join: it would clean away a trailing separator
		if err := createEmpty(dir + "/" + name); err != nil {
			attempt.Outcome = OutcomeRejected
			attempt.Err = err
			env.Logger.WarnContext(ctx, "code point rejected", "code_point", fmt.Sprintf("U+%04X", cp), "err", err)
		}
		report.add(attempt)
	}

	env.Logger.InfoContext(ctx, "unicode names done", "created", report.Created, "rejected", report.Rejected)
	return report, nil
}

func createEmpty(path string) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	return f.Close()
}
