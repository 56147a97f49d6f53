package execute

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunReturnsCapturedOutput(t *testing.T) {
	var seen executeRequest

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/execute", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&seen))

		json.NewEncoder(w).Encode(map[string]any{
			"run": map[string]any{"stdout": "2\n", "stderr": "", "code": 0},
		})
	}))
	defer ts.Close()

	client := NewClient(ts.URL)
	result, err := client.Run(context.Background(), "python", "print(1+1)", "")
	require.NoError(t, err)

	assert.Equal(t, "2\n", result.Stdout)
	assert.Empty(t, result.Stderr)
	assert.False(t, result.Failed)

	// The pinned version must go out with the request.
	assert.Equal(t, "python", seen.Language)
	assert.Equal(t, "3.10.0", seen.Version)
	require.Len(t, seen.Files, 1)
	assert.Equal(t, "print(1+1)", seen.Files[0].Content)
}

func TestRunMarksNonZeroExit(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"run": map[string]any{"stdout": "", "stderr": "NameError: name 'x' is not defined\n", "code": 1},
		})
	}))
	defer ts.Close()

	client := NewClient(ts.URL)
	result, err := client.Run(context.Background(), "python", "x", "")
	require.NoError(t, err)

	assert.True(t, result.Failed)
	assert.Contains(t, result.Stderr, "NameError")
}

func TestRunRejectsEmptySource(t *testing.T) {
	client := NewClient("http://unused")
	_, err := client.Run(context.Background(), "python", "", "")
	assert.ErrorIs(t, err, ErrEmptySource)
}

func TestRunRejectsUnknownLanguage(t *testing.T) {
	client := NewClient("http://unused")
	_, err := client.Run(context.Background(), "cobol", "DISPLAY '2'.", "")
	assert.ErrorIs(t, err, ErrUnknownLanguage)
}

func TestRunSurfacesServiceError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]any{"message": "runtime unavailable"})
	}))
	defer ts.Close()

	client := NewClient(ts.URL)
	_, err := client.Run(context.Background(), "python", "print(1)", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "runtime unavailable")
}

func TestLanguageCycle(t *testing.T) {
	first := Supported()[0]
	assert.Equal(t, "javascript", Next("python").Name)
	assert.Equal(t, first.Name, Next("rust").Name, "cycle wraps")
	assert.Equal(t, first.Name, Next("unknown").Name, "unknown restarts")
}
