package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"pyctx/internal/git"
	"pyctx/internal/metrics"
	"pyctx/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// AnalyzeRequest is the JSON body of POST /analyze/.
type AnalyzeRequest struct {
	FunctionName     string `json:"function_name" binding:"required"`
	FilePath         string `json:"file_path" binding:"required"`
	IssueDescription string `json:"issue_description" binding:"required"`
	Request          string `json:"request" binding:"required"`
	APIKey           string `json:"api_key"`
	RepoPath         string `json:"repo_path"`
	BranchName       string `json:"branch_name"`
	TagName          string `json:"tag_name"`
	CommitHash       string `json:"commit_hash"`
	Categories       string `json:"categories"`
}

// ErrorResponse is returned for every non-200 status.
type ErrorResponse struct {
	Detail string   `json:"detail"`
	Fields []string `json:"fields,omitempty"`
}

type Analyzer interface {
	Analyze(ctx context.Context, req service.Request) (*service.Response, error)
}

type Handlers struct {
	analyzer Analyzer
}

// NewRouter wires the routes onto a gin engine. m may be nil, in which case
// /metrics is not served.
func NewRouter(analyzer Analyzer, m *metrics.Metrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger())

	h := &Handlers{analyzer: analyzer}
	r.POST("/analyze/", h.HandleAnalyze)
	r.GET("/health", h.HandleHealth)
	if m != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})))
	}
	return r
}

// HandleAnalyze runs one analysis.
//
// Response:
//
//	200 OK: service.Response
//	400 Bad Request: malformed body or missing required fields
//	404 Not Found: target file unreadable, unparsable, or function missing
//	422 Unprocessable Entity: unknown category
//	500 Internal Server Error: anything else
func (h *Handlers) HandleAnalyze(c *gin.Context) {
	var body AnalyzeRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, bindError(err))
		return
	}

	resp, err := h.analyzer.Analyze(c.Request.Context(), service.Request{
		FunctionName:     body.FunctionName,
		FilePath:         body.FilePath,
		IssueDescription: body.IssueDescription,
		Request:          body.Request,
		Category:         body.Categories,
		APIKey:           body.APIKey,
		RepoPath:         body.RepoPath,
		Revision: git.Revision{
			Branch: body.BranchName,
			Tag:    body.TagName,
			Commit: body.CommitHash,
		},
	})
	switch {
	case err == nil:
		c.JSON(http.StatusOK, resp)
	case errors.Is(err, service.ErrInvalidRequest):
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{Detail: err.Error()})
	case service.IsNotFound(err):
		c.JSON(http.StatusNotFound, ErrorResponse{Detail: notFoundDetail(body, err)})
	default:
		slog.Error("analysis failed", "file", body.FilePath, "symbol", body.FunctionName, "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Detail: "analysis failed: " + err.Error()})
	}
}

func (h *Handlers) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func notFoundDetail(body AnalyzeRequest, err error) string {
	return "Function " + body.FunctionName + " not found in the specified file " + body.FilePath + ": " + err.Error()
}

func bindError(err error) ErrorResponse {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return ErrorResponse{Detail: "malformed request body: " + err.Error()}
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, jsonName(fe.Field()))
	}
	return ErrorResponse{
		Detail: "missing required fields: " + strings.Join(fields, ", "),
		Fields: fields,
	}
}

var fieldNames = map[string]string{
	"FunctionName":     "function_name",
	"FilePath":         "file_path",
	"IssueDescription": "issue_description",
	"Request":          "request",
}

func jsonName(field string) string {
	if name, ok := fieldNames[field]; ok {
		return name
	}
	return field
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		slog.Info("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}
