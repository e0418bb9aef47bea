package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/perstore/internal/ir"
	"github.com/roach88/perstore/internal/store"
)

func TestOutputFormatter_Success(t *testing.T) {
	t.Run("json", func(t *testing.T) {
		buf := &bytes.Buffer{}
		f := &OutputFormatter{Format: "json", Writer: buf}

		require.NoError(t, f.Success(map[string]any{"id": ir.IRInt(7)}))

		var resp CLIResponse
		require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
		assert.Equal(t, "ok", resp.Status)
		assert.Equal(t, map[string]any{"id": float64(7)}, resp.Data)
		assert.Nil(t, resp.Error)
	})

	t.Run("text", func(t *testing.T) {
		buf := &bytes.Buffer{}
		f := &OutputFormatter{Format: "text", Writer: buf}

		require.NoError(t, f.Success("imported 3 record(s)"))
		assert.Equal(t, "imported 3 record(s)\n", buf.String())
	})
}

func TestOutputFormatter_Records(t *testing.T) {
	recs := []ir.IRObject{
		ir.NewIRObjectFromPairs(ir.O("id", ir.IRInt(1)), ir.O("name", ir.IRString("<b>"))),
		ir.NewIRObjectFromPairs(ir.O("id", ir.IRInt(2))),
	}

	t.Run("text", func(t *testing.T) {
		buf := &bytes.Buffer{}
		f := &OutputFormatter{Format: "text", Writer: buf}

		require.NoError(t, f.Records(recs))
		assert.Equal(t, `{"id":1,"name":"<b>"}`+"\n"+`{"id":2}`+"\n", buf.String())
	})

	t.Run("json", func(t *testing.T) {
		buf := &bytes.Buffer{}
		f := &OutputFormatter{Format: "json", Writer: buf}

		require.NoError(t, f.Records(recs))
		resp := decodeResponse(t, buf.String())
		data := resp.Data.(map[string]any)
		assert.Equal(t, float64(2), data["count"])
		assert.Len(t, data["records"], 2)
	})

	t.Run("json empty", func(t *testing.T) {
		buf := &bytes.Buffer{}
		f := &OutputFormatter{Format: "json", Writer: buf}

		require.NoError(t, f.Records(nil))
		resp := decodeResponse(t, buf.String())
		assert.Equal(t, []any{}, resp.Data.(map[string]any)["records"])
	})
}

func TestOutputFormatter_Error(t *testing.T) {
	tests := []struct {
		name    string
		format  string
		verbose bool
		details any
		want    []string
		absent  []string
	}{
		{name: "text", format: "text", want: []string{"Error [NOT_FOUND]: no record"}},
		{name: "text verbose details", format: "text", verbose: true, details: map[string]string{"key": "1"}, want: []string{"Error [NOT_FOUND]", "Details:"}},
		{name: "text quiet details", format: "text", details: map[string]string{"key": "1"}, absent: []string{"Details:"}},
		{name: "json", format: "json", details: map[string]string{"key": "1"}, want: []string{`"status":"error"`, `"code":"NOT_FOUND"`, `"details":{"key":"1"}`}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			f := &OutputFormatter{Format: tt.format, Writer: buf, Verbose: tt.verbose}

			require.NoError(t, f.Error(ErrCodeNotFound, "no record", tt.details))
			for _, s := range tt.want {
				assert.Contains(t, buf.String(), s)
			}
			for _, s := range tt.absent {
				assert.NotContains(t, buf.String(), s)
			}
		})
	}
}

func TestOutputFormatter_Fail(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode string
		wantKey  bool
	}{
		{
			name:     "store error",
			err:      &store.Error{Code: store.CodeAlreadyExists, Message: "exists", Key: ir.IRString("foo")},
			wantCode: "ALREADY_EXISTS",
			wantKey:  true,
		},
		{
			name:     "wrapped store error",
			err:      fmt.Errorf("outer: %w", &store.Error{Code: store.CodeInvalidQuery, Message: "bad"}),
			wantCode: "INVALID_QUERY",
		},
		{
			name:     "other",
			err:      errors.New("disk on fire"),
			wantCode: ErrCodeStore,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			f := &OutputFormatter{Format: "json", Writer: buf}

			err := f.Fail(tt.err)
			assert.Equal(t, ExitFailure, GetExitCode(err))
			assert.ErrorIs(t, err, tt.err)

			resp := decodeResponse(t, buf.String())
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.wantCode, resp.Error.Code)
			if tt.wantKey {
				assert.Equal(t, map[string]any{"key": "foo"}, resp.Error.Details)
			} else {
				assert.Nil(t, resp.Error.Details)
			}
		})
	}
}

func TestOutputFormatter_VerboseLog(t *testing.T) {
	tests := []struct {
		name    string
		verbose bool
		wantLog bool
	}{
		{"verbose_enabled", true, true},
		{"verbose_disabled", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := &bytes.Buffer{}
			errOut := &bytes.Buffer{}
			f := &OutputFormatter{
				Format:    "json",
				Writer:    out,
				ErrWriter: errOut,
				Verbose:   tt.verbose,
			}

			f.VerboseLog("imported %s", "rec-1")

			assert.Empty(t, out.String(), "diagnostics never corrupt stdout")
			if tt.wantLog {
				assert.Equal(t, "imported rec-1\n", errOut.String())
			} else {
				assert.Empty(t, errOut.String())
			}
		})
	}
}
