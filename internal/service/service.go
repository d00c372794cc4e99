package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"pyctx/internal/bundle"
	"pyctx/internal/extractor"
	"pyctx/internal/git"
	"pyctx/internal/knowledge"
	"pyctx/internal/metrics"
	"pyctx/internal/storage"
	"pyctx/internal/syntax"

	"github.com/google/uuid"
)

var ErrInvalidRequest = errors.New("invalid request")

const (
	MessagePromptOnly  = "Deep prompt generated for manual refinement."
	MessageLLMResponse = "LLM response:"
	MessageLLMFailed   = "LLM query failed."
	WarningGitFetch    = "Failed to fetch code from the specified branch|commit|tag."
)

// Request is one analysis request. Empty optional fields fall back to the
// service defaults.
type Request struct {
	FunctionName     string
	FilePath         string
	IssueDescription string
	Request          string
	Category         string

	APIKey   string
	RepoPath string
	Revision git.Revision
	// Root overrides the configured project root.
	Root string
}

// DeepObject is the bundle together with the request text it was rendered with.
type DeepObject struct {
	*bundle.Bundle
	IssueDescription string `json:"issue_description"`
	Request          string `json:"request"`
	Categories       string `json:"categories,omitempty"`
}

type Response struct {
	ID         string      `json:"id"`
	Message    string      `json:"message"`
	DeepObject *DeepObject `json:"deep_object"`
	DeepPrompt string      `json:"deep_prompt"`
	Response   string      `json:"response,omitempty"`
	Warnings   []string    `json:"warnings"`
}

// RevisionFetcher checks out a revision before the files are read.
type RevisionFetcher interface {
	Fetch(ctx context.Context, repoPath string, rev git.Revision) (bool, error)
}

// GeneratorFactory builds the text-generation client for one request.
type GeneratorFactory func(ctx context.Context, opts knowledge.GeneratorOptions) (knowledge.Generator, error)

type ReportStore interface {
	SaveReport(ctx context.Context, r *storage.Report) error
}

// Options hold the process-wide defaults of the service.
type Options struct {
	Bundle     bundle.Options
	Categories map[string]string
	AI         knowledge.GeneratorOptions
	RepoPath   string
	Revision   git.Revision
}

// Deps are the collaborators of the service. Nil members disable the step
// they serve, except NewGenerator which defaults to knowledge.NewGenerator.
type Deps struct {
	Fetcher      RevisionFetcher
	NewGenerator GeneratorFactory
	Store        ReportStore
	Metrics      *metrics.Metrics
}

// Service runs the analysis workflow behind the CLI and the HTTP surface.
type Service struct {
	opts      Options
	deps      Deps
	assembler *bundle.Assembler
}

func New(opts Options, deps Deps) *Service {
	if deps.NewGenerator == nil {
		deps.NewGenerator = knowledge.NewGenerator
	}
	bopts := opts.Bundle
	if deps.Metrics != nil {
		bopts.OnResolve = deps.Metrics.RecordResolution
	}
	return &Service{
		opts:      opts,
		deps:      deps,
		assembler: bundle.NewAssembler(bopts),
	}
}

// Categories returns the configured category descriptions by key.
func (s *Service) Categories() map[string]string {
	return s.opts.Categories
}

// Analyze assembles the context of the requested function and renders the
// prompt. The model is queried only when an API key is available. Errors
// are returned for invalid categories (ErrInvalidRequest) and for targets
// that cannot be read, parsed or found; everything else is reported in the
// response.
func (s *Service) Analyze(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()
	resp, err := s.analyze(ctx, req)
	s.deps.Metrics.RecordAnalysis(outcome(resp, err), time.Since(start))
	return resp, err
}

func (s *Service) analyze(ctx context.Context, req Request) (*Response, error) {
	resp := &Response{ID: uuid.NewString(), Warnings: []string{}}

	// 1. Validate the category
	var category string
	if req.Category != "" {
		desc, ok := s.opts.Categories[req.Category]
		if !ok {
			return nil, fmt.Errorf("%w: invalid category %q, valid categories are: %s",
				ErrInvalidRequest, req.Category, strings.Join(s.categoryKeys(), ", "))
		}
		category = desc
	}

	// 2. Check out the requested revision
	if repo := firstNonEmpty(req.RepoPath, s.opts.RepoPath); repo != "" && s.deps.Fetcher != nil {
		rev := req.Revision
		if rev.IsZero() {
			rev = s.opts.Revision
		}
		if ok, err := s.deps.Fetcher.Fetch(ctx, repo, rev); !ok {
			slog.Warn("revision checkout failed", "repo", repo, "revision", rev.String(), "error", err)
			resp.Warnings = append(resp.Warnings, WarningGitFetch)
		}
	}

	// 3. Assemble the bundle
	b, err := s.assembler.Assemble(ctx, bundle.Target{
		FilePath:     req.FilePath,
		FunctionName: req.FunctionName,
		Root:         req.Root,
	})
	if err != nil {
		return nil, err
	}
	resp.Warnings = append(resp.Warnings, b.Warnings...)

	// 4. Render the prompt
	requestText := strings.TrimSpace(req.Request + "\n" + knowledge.StandingInstruction)
	resp.DeepPrompt = bundle.RenderPrompt(b, bundle.PromptInput{
		IssueDescription: req.IssueDescription,
		Request:          requestText,
		Category:         category,
	})
	resp.DeepObject = &DeepObject{
		Bundle:           b,
		IssueDescription: req.IssueDescription,
		Request:          requestText,
		Categories:       category,
	}
	resp.Message = MessagePromptOnly

	// 5. Query the model
	if key := firstNonEmpty(req.APIKey, s.opts.AI.APIKey); key != "" {
		aiOpts := s.opts.AI
		aiOpts.APIKey = key
		answer, err := s.generate(ctx, aiOpts, resp.DeepPrompt)
		if err != nil {
			slog.Error("llm query failed", "symbol", req.FunctionName, "error", err)
			resp.Message = MessageLLMFailed
		} else {
			resp.Message = MessageLLMResponse
			resp.Response = answer
		}
	}

	// 6. Persist the report
	if s.deps.Store != nil {
		s.persist(ctx, req, b, resp)
	}

	return resp, nil
}

func (s *Service) generate(ctx context.Context, opts knowledge.GeneratorOptions, prompt string) (string, error) {
	gen, err := s.deps.NewGenerator(ctx, opts)
	if err != nil {
		return "", fmt.Errorf("failed to create generator: %w", err)
	}
	return gen.Generate(ctx, prompt)
}

func (s *Service) persist(ctx context.Context, req Request, b *bundle.Bundle, resp *Response) {
	if err := bundle.Validate(b); err != nil {
		slog.Warn("bundle failed schema validation", "file", b.FilePath, "error", err)
		resp.Warnings = append(resp.Warnings, "report not saved: "+err.Error())
		return
	}
	raw, err := json.Marshal(resp.DeepObject)
	if err != nil {
		resp.Warnings = append(resp.Warnings, "report not saved: "+err.Error())
		return
	}
	report := &storage.Report{
		ID:           resp.ID,
		FunctionName: req.FunctionName,
		FilePath:     b.FilePath,
		Category:     req.Category,
		Prompt:       resp.DeepPrompt,
		Response:     resp.Response,
		Bundle:       raw,
	}
	if err := s.deps.Store.SaveReport(ctx, report); err != nil {
		slog.Warn("failed to save report", "id", resp.ID, "error", err)
		resp.Warnings = append(resp.Warnings, "report not saved: "+err.Error())
	}
}

func (s *Service) categoryKeys() []string {
	keys := make([]string, 0, len(s.opts.Categories))
	for k := range s.opts.Categories {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// IsNotFound reports whether err means the target could not be analyzed at
// all: unreadable, unparsable, or missing the function.
func IsNotFound(err error) bool {
	var (
		perr *syntax.ParseError
		rerr *extractor.ReadError
	)
	return errors.Is(err, syntax.ErrNotFound) || errors.As(err, &perr) || errors.As(err, &rerr)
}

func outcome(resp *Response, err error) string {
	switch {
	case errors.Is(err, ErrInvalidRequest):
		return metrics.OutcomeInvalidRequest
	case IsNotFound(err):
		return metrics.OutcomeNotFound
	case err != nil:
		return metrics.OutcomeError
	case resp.Message == MessageLLMFailed:
		return metrics.OutcomeLLMError
	}
	return metrics.OutcomeOK
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
