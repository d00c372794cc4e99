package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"pyctx/internal/analysis"
	"pyctx/internal/bundle"
	"pyctx/internal/config"
	"pyctx/internal/crawler"
	"pyctx/internal/git"
	"pyctx/internal/graph"
	"pyctx/internal/index"
	"pyctx/internal/knowledge"
	"pyctx/internal/metrics"
	"pyctx/internal/server"
	"pyctx/internal/service"
	"pyctx/internal/storage"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

var (
	rootCmd = &cobra.Command{
		Use:   "pyctx",
		Short: "Context extraction for Python functions",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			cfg = loadConfig()
		},
	}
	configPath string
	dbPath     string
	cfg        *config.Config
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "pyctx.yaml", "Path to the YAML configuration")
	rootCmd.PersistentFlags().StringVarP(&dbPath, "db", "d", "", "Path to the report database (SQLite); overrides storage.db_path")

	analyzeCmd.Flags().String("root", "", "Project root used to resolve imports")
	analyzeCmd.Flags().String("issue", "", "Issue description")
	analyzeCmd.Flags().String("request", "", "What should be done with the function")
	analyzeCmd.Flags().String("category", "", "Request category key")
	analyzeCmd.Flags().String("repo", "", "Repository to check out before analysis")
	analyzeCmd.Flags().String("branch", "", "Branch to check out")
	analyzeCmd.Flags().String("tag", "", "Tag to check out")
	analyzeCmd.Flags().String("commit", "", "Commit to check out")
	analyzeCmd.Flags().Bool("deep", false, "Also walk calls nested in compound statements")
	analyzeCmd.Flags().Bool("json", false, "Print the full response as JSON")
	analyzeCmd.Flags().Bool("save", false, "Store the report in the database")

	serveCmd.Flags().String("addr", "", "Listen address; overrides server.addr")

	historyCmd.Flags().Int("limit", 20, "Number of reports to list")
	historyCmd.Flags().String("show", "", "Print the prompt of one report by ID")

	indexCmd.Flags().String("out", "", "Write the graph as JSON to this file")
	indexCmd.Flags().Bool("save", false, "Store the graph in the database")
	indexCmd.Flags().Int("top", 10, "Number of most imported modules to show")

	impactCmd.Flags().String("root", "", "Project root; defaults to the repository")
	impactCmd.Flags().Int("hops", 0, "Maximum importer hops (0 = unlimited)")
	impactCmd.Flags().Bool("from-db", false, "Use the graph stored by 'index --save' instead of rebuilding it")

	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(impactCmd)
}

func loadConfig() *config.Config {
	c, err := config.LoadConfig(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if dbPath != "" {
		c.Storage.DBPath = dbPath
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: c.SlogLevel()})))
	return c
}

// initStore initializes the SQLite store.
func initStore() (*storage.SQLiteStore, error) {
	return storage.NewSQLiteStore(cfg.Storage.DBPath)
}

func newService(store service.ReportStore, m *metrics.Metrics, deep bool) *service.Service {
	return service.New(service.Options{
		Bundle: bundle.Options{
			Root:                 cfg.Project.Root,
			Excludes:             cfg.Project.Excludes,
			CacheSize:            cfg.Analysis.CacheSize,
			Deep:                 cfg.Analysis.Deep || deep,
			UsageFrequency:       cfg.Analysis.UsageFrequency,
			DocstringPlaceholder: cfg.Analysis.DocstringPlaceholder,
		},
		Categories: cfg.Categories,
		AI: knowledge.GeneratorOptions{
			Provider: cfg.AI.Provider,
			APIKey:   cfg.AI.APIKey,
			Model:    cfg.AI.Model,
			BaseURL:  cfg.AI.BaseURL,
		},
		RepoPath: cfg.Git.RepoPath,
		Revision: git.Revision{Branch: cfg.Git.Branch, Tag: cfg.Git.Tag, Commit: cfg.Git.Commit},
	}, service.Deps{
		Fetcher: git.NewFetcher(),
		Store:   store,
		Metrics: m,
	})
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze <file> <function>",
	Short: "Assemble the context of a top-level function and render the prompt",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		flags := cmd.Flags()
		root, _ := flags.GetString("root")
		issue, _ := flags.GetString("issue")
		request, _ := flags.GetString("request")
		category, _ := flags.GetString("category")
		repo, _ := flags.GetString("repo")
		branch, _ := flags.GetString("branch")
		tag, _ := flags.GetString("tag")
		commit, _ := flags.GetString("commit")
		deep, _ := flags.GetBool("deep")
		asJSON, _ := flags.GetBool("json")
		save, _ := flags.GetBool("save")

		// 1. Initialize Store
		var store service.ReportStore
		if save {
			s, err := initStore()
			if err != nil {
				log.Fatalf("Failed to initialize database: %v", err)
			}
			defer s.Close()
			store = s
		}

		// 2. Analyze
		svc := newService(store, nil, deep)
		resp, err := svc.Analyze(ctx, service.Request{
			FunctionName:     args[1],
			FilePath:         args[0],
			IssueDescription: issue,
			Request:          request,
			Category:         category,
			RepoPath:         repo,
			Revision:         git.Revision{Branch: branch, Tag: tag, Commit: commit},
			Root:             root,
		})
		if err != nil {
			log.Fatalf("Analysis failed: %v", err)
		}

		// 3. Print
		if asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if err := enc.Encode(resp); err != nil {
				log.Fatalf("Failed to encode response: %v", err)
			}
			return
		}
		for _, w := range resp.Warnings {
			fmt.Fprintf(os.Stderr, "⚠️  %s\n", w)
		}
		fmt.Println(resp.Message)
		if resp.Response != "" {
			fmt.Println(resp.Response)
			return
		}
		fmt.Print(resp.DeepPrompt)
		if save {
			fmt.Fprintf(os.Stderr, "💾 Saved report %s to %s\n", resp.ID, cfg.Storage.DBPath)
		}
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the analysis API over HTTP",
	Run: func(cmd *cobra.Command, args []string) {
		addr, _ := cmd.Flags().GetString("addr")
		if addr == "" {
			addr = cfg.Server.Addr
		}
		slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()})))
		gin.SetMode(gin.ReleaseMode)

		store, err := initStore()
		if err != nil {
			log.Fatalf("Failed to initialize database: %v", err)
		}
		defer store.Close()

		m := metrics.New()
		srv := &http.Server{
			Addr:              addr,
			Handler:           server.NewRouter(newService(store, m, false), m),
			ReadHeaderTimeout: 10 * time.Second,
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		slog.Info("listening", "addr", addr, "db", cfg.Storage.DBPath)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server failed: %v", err)
		}
	},
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List stored analysis reports",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		limit, _ := cmd.Flags().GetInt("limit")
		show, _ := cmd.Flags().GetString("show")

		store, err := initStore()
		if err != nil {
			log.Fatalf("Failed to initialize database: %v", err)
		}
		defer store.Close()

		if show != "" {
			r, err := store.GetReport(ctx, show)
			if err != nil {
				log.Fatalf("Failed to load report: %v", err)
			}
			fmt.Print(r.Prompt)
			if r.Response != "" {
				fmt.Printf("\n--- response ---\n%s\n", r.Response)
			}
			return
		}

		reports, err := store.ListReports(ctx, limit)
		if err != nil {
			log.Fatalf("Failed to list reports: %v", err)
		}
		if len(reports) == 0 {
			fmt.Println("No reports stored.")
			return
		}
		for _, r := range reports {
			category := r.Category
			if category == "" {
				category = "-"
			}
			fmt.Printf("%s  %s  %-12s %s:%s\n", r.ID, r.CreatedAt.Local().Format(time.DateTime), category, r.FilePath, r.FunctionName)
		}
	},
}

var indexCmd = &cobra.Command{
	Use:   "index [path]",
	Short: "Build the project import graph",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		root := cfg.Project.Root
		if len(args) > 0 {
			root = args[0]
		}
		out, _ := cmd.Flags().GetString("out")
		save, _ := cmd.Flags().GetBool("save")
		top, _ := cmd.Flags().GetInt("top")

		fmt.Printf("📂 Scanning directory: %s\n", root)

		// 1. Build Graph
		idx := index.NewIndexer(crawler.NewCrawler(cfg.Project.Excludes...))
		start := time.Now()
		g, err := idx.BuildGraph(ctx, root)
		if err != nil {
			log.Fatalf("Build failed: %v", err)
		}
		fmt.Printf("✅ Graph built in %v. Found %d modules, %d imports.\n", time.Since(start), len(g.Nodes), len(g.Edges))

		// 2. Persist
		if out != "" {
			if err := idx.SaveGraph(g, out); err != nil {
				log.Fatalf("Failed to write graph: %v", err)
			}
			fmt.Printf("💾 Graph written to %s\n", out)
		}
		if save {
			store, err := initStore()
			if err != nil {
				log.Fatalf("Failed to initialize database: %v", err)
			}
			defer store.Close()
			if err := store.SaveGraph(ctx, g); err != nil {
				log.Fatalf("Failed to save graph: %v", err)
			}
			fmt.Printf("💾 Graph saved to %s\n", cfg.Storage.DBPath)
		}

		// 3. Report
		printGraphSummary(g, top)
	},
}

func printGraphSummary(g *graph.Graph, top int) {
	if most := g.MostImported(top); len(most) > 0 {
		fmt.Println("Most imported modules:")
		for _, id := range most {
			fmt.Printf("  %-40s %d\n", id, len(g.GetDependents(id)))
		}
	}
	counts := g.UnresolvedReasonCounts()
	if len(counts) > 0 {
		fmt.Println("Imports outside the project:")
		for _, reason := range []graph.UnresolvedReason{graph.ReasonNoCandidate, graph.ReasonOutsideRoot, graph.ReasonSelf} {
			if n := counts[reason]; n > 0 {
				fmt.Printf("  %-40s %d\n", reason, n)
			}
		}
	}
}

var impactCmd = &cobra.Command{
	Use:   "impact [repo]",
	Short: "List modules affected by uncommitted changes",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		repo := cfg.Git.RepoPath
		if len(args) > 0 {
			repo = args[0]
		}
		if repo == "" {
			repo = "."
		}
		root, _ := cmd.Flags().GetString("root")
		if root == "" {
			root = repo
		}
		hops, _ := cmd.Flags().GetInt("hops")
		fromDB, _ := cmd.Flags().GetBool("from-db")

		// 1. Get Local Git Changes
		changes, err := git.ChangedFiles(ctx, repo)
		if err != nil {
			log.Fatalf("Failed to get git changes: %v", err)
		}
		if len(changes) == 0 {
			fmt.Println("✅ No changes detected.")
			return
		}
		fmt.Printf("📝 Detected %d changed Python files.\n", len(changes))

		// 2. Load or build the graph
		var g *graph.Graph
		if fromDB {
			store, err := initStore()
			if err != nil {
				log.Fatalf("Failed to initialize database: %v", err)
			}
			defer store.Close()
			if g, err = store.LoadGraph(ctx); err != nil {
				log.Fatalf("Failed to load graph: %v", err)
			}
		} else {
			abs, err := filepath.Abs(root)
			if err != nil {
				log.Fatalf("Failed to resolve root: %v", err)
			}
			if g, err = index.NewIndexer(crawler.NewCrawler(cfg.Project.Excludes...)).BuildGraph(ctx, abs); err != nil {
				log.Fatalf("Build failed: %v", err)
			}
		}

		// 3. Impact Analysis
		report := analysis.NewAnalyzer(g).AnalyzeImpact(changes, hops)
		fmt.Printf("  -> %d modules directly affected\n", len(report.DirectlyAffected))
		for _, a := range report.DirectlyAffected {
			fmt.Printf("     %s\n", a.ID)
		}
		fmt.Printf("  -> %d modules indirectly affected (importers)\n", len(report.IndirectlyAffected))
		for _, a := range report.IndirectlyAffected {
			fmt.Printf("     %s (%d hops)\n", a.ID, a.Hops)
		}
		for _, path := range report.Unindexed {
			fmt.Printf("⚠️  %s is not part of the graph\n", path)
		}
	},
}
