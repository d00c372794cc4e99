package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"pyctx/internal/bundle"
	"pyctx/internal/extractor"
	"pyctx/internal/git"
	"pyctx/internal/metrics"
	"pyctx/internal/service"
	"pyctx/internal/syntax"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeAnalyzer struct {
	got  service.Request
	resp *service.Response
	err  error
}

func (f *fakeAnalyzer) Analyze(ctx context.Context, req service.Request) (*service.Response, error) {
	f.got = req
	return f.resp, f.err
}

func post(t *testing.T, router http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, "/analyze/", strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

const validBody = `{
	"function_name": "handle",
	"file_path": "/p/app.py",
	"issue_description": "breaks",
	"request": "fix",
	"branch_name": "dev",
	"commit_hash": "abc123",
	"categories": "bug_fix"
}`

func TestHandleAnalyze_StatusMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"ok", nil, http.StatusOK},
		{"invalid category", fmt.Errorf("%w: invalid category", service.ErrInvalidRequest), http.StatusUnprocessableEntity},
		{"function missing", fmt.Errorf("%w: function handle", syntax.ErrNotFound), http.StatusNotFound},
		{"parse failure", &syntax.ParseError{Path: "/p/app.py", Message: "syntax error", Line: 1, Column: 1}, http.StatusNotFound},
		{"read failure", &extractor.ReadError{Path: "/p/app.py", Err: os.ErrNotExist}, http.StatusNotFound},
		{"other", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeAnalyzer{err: tt.err}
			if tt.err == nil {
				fake.resp = &service.Response{ID: "r1", Message: service.MessagePromptOnly, Warnings: []string{}}
			}
			w := post(t, NewRouter(fake, nil), validBody)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
		})
	}
}

func TestHandleAnalyze_MapsRequest(t *testing.T) {
	fake := &fakeAnalyzer{resp: &service.Response{Message: service.MessagePromptOnly}}
	w := post(t, NewRouter(fake, nil), validBody)
	require.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, "handle", fake.got.FunctionName)
	assert.Equal(t, "bug_fix", fake.got.Category)
	assert.Equal(t, git.Revision{Branch: "dev", Commit: "abc123"}, fake.got.Revision)
}

func TestHandleAnalyze_BadBody(t *testing.T) {
	router := NewRouter(&fakeAnalyzer{}, nil)

	t.Run("missing fields", func(t *testing.T) {
		w := post(t, router, `{"function_name": "handle"}`)
		require.Equal(t, http.StatusBadRequest, w.Code)

		var resp ErrorResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, []string{"file_path", "issue_description", "request"}, resp.Fields)
	})

	t.Run("not json", func(t *testing.T) {
		w := post(t, router, `{`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestRouter_EndToEnd(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "app.py"), []byte("def handle(x):\n    return x\n"), 0o644))

	m := metrics.New()
	svc := service.New(service.Options{
		Bundle:     bundle.Options{Root: root, DocstringPlaceholder: "No docstring provided."},
		Categories: map[string]string{"bug_fix": "Fix the defect."},
	}, service.Deps{Metrics: m})
	router := NewRouter(svc, m)

	body, err := json.Marshal(AnalyzeRequest{
		FunctionName:     "handle",
		FilePath:         filepath.Join(root, "app.py"),
		IssueDescription: "returns wrong value",
		Request:          "fix",
		Categories:       "bug_fix",
	})
	require.NoError(t, err)

	w := post(t, router, string(body))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, service.MessagePromptOnly, resp["message"])
	deep, ok := resp["deep_object"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "def handle(x):\n    return x", deep["function_code"])
	assert.Equal(t, "Fix the defect.", deep["categories"])

	w = post(t, router, strings.Replace(string(body), `"handle"`, `"missing"`, 1))
	assert.Equal(t, http.StatusNotFound, w.Code)

	req, _ := http.NewRequest(http.MethodGet, "/metrics", nil)
	mw := httptest.NewRecorder()
	router.ServeHTTP(mw, req)
	require.Equal(t, http.StatusOK, mw.Code)
	assert.Contains(t, mw.Body.String(), `pyctx_analyses_total{outcome="ok"} 1`)
	assert.Contains(t, mw.Body.String(), `pyctx_analyses_total{outcome="not_found"} 1`)

	req, _ = http.NewRequest(http.MethodGet, "/health", nil)
	hw := httptest.NewRecorder()
	router.ServeHTTP(hw, req)
	assert.Equal(t, http.StatusOK, hw.Code)
	assert.JSONEq(t, `{"status":"ok"}`, hw.Body.String())
}

func TestNewRouter_NoMetrics(t *testing.T) {
	router := NewRouter(&fakeAnalyzer{}, nil)
	req, _ := http.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
