package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/ffspoints/internal/point"
)

func TestOutputFormatter_JSON(t *testing.T) {
	tests := []struct {
		name    string
		write   func(*OutputFormatter) error
		status  string
		code    string
		details bool
		hasData bool
	}{
		{
			name:    "success",
			write:   func(f *OutputFormatter) error { return f.Success(map[string]int{"inserted": 3}) },
			status:  "ok",
			hasData: true,
		},
		{
			name:   "error",
			write:  func(f *OutputFormatter) error { return f.Error("COMMAND_ERROR", "failed to open database", nil) },
			status: "error",
			code:   "COMMAND_ERROR",
		},
		{
			name: "error with details",
			write: func(f *OutputFormatter) error {
				return f.Error("INVALID_POINT", "negative cost", map[string]string{"point_id": "p_42"})
			},
			status:  "error",
			code:    "INVALID_POINT",
			details: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			require.NoError(t, tt.write(&OutputFormatter{Format: "json", Writer: buf}))

			var resp CLIResponse
			require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
			assert.Equal(t, tt.status, resp.Status)
			assert.Equal(t, tt.hasData, resp.Data != nil)
			if tt.code == "" {
				assert.Nil(t, resp.Error)
				return
			}
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.code, resp.Error.Code)
			assert.Equal(t, tt.details, resp.Error.Details != nil)
		})
	}
}

func TestOutputFormatter_TextSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "text",
		Writer: buf,
	}

	err := formatter.Success("3 points stored")
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "3 points stored")
}

func TestOutputFormatter_TextError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format:  "text",
		Writer:  buf,
		Verbose: false,
	}

	err := formatter.Error("COMMAND_ERROR", "failed to open database", nil)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Error [COMMAND_ERROR]")
	assert.Contains(t, buf.String(), "failed to open database")
}

func TestOutputFormatter_TextErrorVerbose(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format:  "text",
		Writer:  buf,
		Verbose: true,
	}

	details := map[string]string{"point_id": "p_1"}
	err := formatter.Error("EMPTY_DISTRIBUTION", "nothing to sample", details)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Error [EMPTY_DISTRIBUTION]")
	assert.Contains(t, buf.String(), "Details:")
}

func TestOutputFormatter_VerboseLog(t *testing.T) {
	tests := []struct {
		name     string
		verbose  bool
		wantLog  bool
	}{
		{"verbose_enabled", true, true},
		{"verbose_disabled", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			formatter := &OutputFormatter{
				Format:  "text",
				Writer:  buf,
				Verbose: tt.verbose,
			}

			formatter.VerboseLog("Opening %s", "points.db")

			if tt.wantLog {
				assert.Contains(t, buf.String(), "Opening points.db")
			} else {
				assert.Empty(t, buf.String())
			}
		})
	}
}

func TestCLIResponse_JSON(t *testing.T) {
	resp := CLIResponse{
		Status: "ok",
		Data:   map[string]int{"count": 42},
	}

	data, err := json.Marshal(resp)
	require.NoError(t, err)

	var decoded CLIResponse
	err = json.Unmarshal(data, &decoded)
	require.NoError(t, err)
	assert.Equal(t, "ok", decoded.Status)
}

func TestCLIError_JSON(t *testing.T) {
	cliErr := CLIError{
		Code:    "DEGENERATE_WEIGHT",
		Message: "no used weight at interface 2",
		Details: []string{"used=0"},
	}

	data, err := json.Marshal(cliErr)
	require.NoError(t, err)

	var decoded CLIError
	err = json.Unmarshal(data, &decoded)
	require.NoError(t, err)
	assert.Equal(t, "DEGENERATE_WEIGHT", decoded.Code)
	assert.Equal(t, "no used weight at interface 2", decoded.Message)
}

type renderedResult struct{ n int }

func (r renderedResult) WriteText(w io.Writer) error {
	_, err := fmt.Fprintf(w, "rendered %d\n", r.n)
	return err
}

func TestOutputFormatter_TextRenderer(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "text", Writer: buf}

	require.NoError(t, formatter.Success(renderedResult{n: 3}))
	assert.Equal(t, "rendered 3\n", buf.String())
}

func TestOutputFormatter_Fail(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: buf}

	err := fmt.Errorf("sample: %w", point.NewEmptyDistribution("sample", 4, 0))
	require.NoError(t, formatter.Fail(err))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, "EMPTY_DISTRIBUTION", resp.Error.Code)
	assert.NotNil(t, resp.Error.Details)
}

func TestErrorCodeAndExitCode(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode string
		wantExit int
	}{
		{"point error", domainError("x", point.NewEmptyDistribution("sample", 1, 0)), "EMPTY_DISTRIBUTION", ExitFailure},
		{"write exhausted", domainError("x", point.NewWriteExhausted("add point", "p", 3, errors.New("locked"))), "WRITE_EXHAUSTED", ExitCommandError},
		{"plain error", domainError("x", errors.New("disk gone")), "COMMAND_ERROR", ExitCommandError},
		{"exit error", NewExitError(ExitFailure, "not found"), "FAILURE", ExitFailure},
		{"unwrapped", errors.New("boom"), "FAILURE", ExitFailure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantCode, ErrorCode(tt.err))
			assert.Equal(t, tt.wantExit, GetExitCode(tt.err))
		})
	}
}
