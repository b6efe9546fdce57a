package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/devindrajit1998/ai-novaintel/internal/config"
	chiTransport "github.com/devindrajit1998/ai-novaintel/internal/transport/chi"
	mcpTransport "github.com/devindrajit1998/ai-novaintel/internal/transport/mcp"
	"github.com/devindrajit1998/ai-novaintel/internal/version"
)

func runtimeFromFlags(ctx context.Context, c *cli.Context) (*runtime, error) {
	return newRuntime(ctx, c.String("env"), c.String("config-dir"), c.String("log-level"))
}

// watchConfig applies retrieval edits to the live optimizer until ctx ends.
func (r *runtime) watchConfig(ctx context.Context) {
	w := config.NewWatcher(r.dir, r.env, r.cfg, func(rc config.RetrievalConfig) {
		r.optimizer.UpdateSettings(settingsFromConfig(rc))
	}, r.logger)
	go func() {
		if err := w.Run(ctx); err != nil {
			r.logger.Warn("Config hot reload disabled", zap.Error(err))
		}
	}()
}

func serveCommand(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := runtimeFromFlags(ctx, c)
	if err != nil {
		return err
	}
	defer rt.Close()
	rt.watchConfig(ctx)

	port := rt.cfg.HTTP.Port
	if c.IsSet("port") {
		port = c.Int("port")
	}
	addr := fmt.Sprintf(":%d", port)

	server := chiTransport.NewServer(rt.optimizer, rt.embedder, rt.health, rt.logger)
	srv := &http.Server{
		Addr:              addr,
		Handler:           server.Routes(rt.cfg.Auth.APIKeys),
		ReadHeaderTimeout: time.Duration(rt.cfg.HTTP.ReadTimeoutSec) * time.Second,
		ReadTimeout:       time.Duration(rt.cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout:      time.Duration(rt.cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	rt.logger.Info("Starting retrievald HTTP server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", rt.env),
		zap.String("addr", addr),
	)

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	rt.logger.Info("Received shutdown signal")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(rt.cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		rt.logger.Error("Error during shutdown", zap.Error(err))
	}
	rt.logger.Info("Server stopped gracefully")
	return nil
}

func mcpCommand(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := runtimeFromFlags(ctx, c)
	if err != nil {
		return err
	}
	defer rt.Close()
	rt.watchConfig(ctx)

	return mcpTransport.NewServer(rt.optimizer, version.Version, rt.logger).Serve() //nolint:wrapcheck // already wrapped
}

func expandCommand(c *cli.Context) error {
	query := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
	if query == "" {
		return fmt.Errorf("expand: a query argument is required")
	}

	rt, err := runtimeFromFlags(c.Context, c)
	if err != nil {
		return err
	}
	defer rt.Close()

	var maxExpansions *int
	if c.IsSet("max-expansions") {
		n := c.Int("max-expansions")
		maxExpansions = &n
	}

	variants, err := rt.optimizer.ExpandQuery(c.Context, query, maxExpansions)
	if err != nil {
		return fmt.Errorf("expand: %w", err)
	}
	for _, v := range variants {
		fmt.Fprintln(c.App.Writer, v.Text)
	}
	return nil
}

func optimizeCommand(c *cli.Context) error {
	req, err := readOptimizeRequest(c.String("request"), c.App.Reader)
	if err != nil {
		return err
	}
	if c.IsSet("query") {
		req.Query = c.String("query")
	}
	if c.IsSet("top-k") {
		k := c.Int("top-k")
		req.TopK = &k
	}

	rt, err := runtimeFromFlags(c.Context, c)
	if err != nil {
		return err
	}
	defer rt.Close()

	resp, err := rt.optimizer.Optimize(c.Context, req.ToDomain())
	if err != nil {
		return fmt.Errorf("optimize: %w", err)
	}

	enc := json.NewEncoder(c.App.Writer)
	enc.SetIndent("", "  ")
	if err := enc.Encode(chiTransport.NewOptimizeResponse(resp)); err != nil {
		return fmt.Errorf("write result: %w", err)
	}
	return nil
}

func readOptimizeRequest(path string, stdin io.Reader) (*chiTransport.OptimizeRequest, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(filepath.Clean(path))
	}
	if err != nil {
		return nil, fmt.Errorf("read request: %w", err)
	}

	var req chiTransport.OptimizeRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("decode request: %w", err)
	}
	return &req, nil
}
