package harness

import (
	"fmt"

	"github.com/roach88/perstore/internal/ir"
)

// checkExpect returns one message per unmet expectation.
func checkExpect(e *Expect, out outcome) []string {
	if e == nil || e.Error == "" {
		if out.err != nil {
			return []string{fmt.Sprintf("unexpected error: %v", out.err)}
		}
	}
	if e == nil {
		return nil
	}

	if e.Error != "" {
		if out.err == nil {
			return []string{fmt.Sprintf("expected error %s, got success", e.Error)}
		}
		if got := errorCode(out.err); got != e.Error {
			return []string{fmt.Sprintf("expected error %s, got %s", e.Error, got)}
		}
		return nil
	}

	var msgs []string
	fail := func(format string, args ...any) {
		msgs = append(msgs, fmt.Sprintf(format, args...))
	}

	if e.ID != nil {
		want, err := ir.FromAny(e.ID)
		switch {
		case err != nil:
			fail("expect.id: %v", err)
		case !ir.Equal(want, out.id):
			fail("expected id %s, got %s", ir.String(want), ir.String(out.id))
		}
	}

	if e.Record != nil {
		want, err := ir.ObjectFromAny(e.Record)
		switch {
		case err != nil:
			fail("expect.record: %v", err)
		case !out.found:
			fail("expected record %s, got none", ir.String(want))
		case !ir.Equal(want, out.record):
			fail("expected record %s, got %s", ir.String(want), ir.String(out.record))
		}
	}

	if e.Empty {
		if out.found || len(out.records) > 0 {
			fail("expected no result, got %s", ir.String(toValue(out.output())))
		}
	}

	if e.Records != nil {
		want := make(ir.IRArray, 0, len(e.Records))
		for i, raw := range e.Records {
			rec, err := ir.ObjectFromAny(raw)
			if err != nil {
				fail("expect.records[%d]: %v", i, err)
				return msgs
			}
			want = append(want, rec)
		}
		got := toValue(out.output())
		if !ir.Equal(want, got) {
			fail("expected records %s, got %s", ir.String(want), ir.String(got))
		}
	}

	if e.Count != nil && len(out.records) != *e.Count {
		fail("expected %d records, got %d", *e.Count, len(out.records))
	}

	return msgs
}

func toValue(v any) ir.IRValue {
	if iv, ok := v.(ir.IRValue); ok {
		return iv
	}
	return ir.IRNull{}
}
