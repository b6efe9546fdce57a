// Package mcp exposes the retrieval pipeline as MCP tools over stdio.
package mcp

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/devindrajit1998/ai-novaintel/internal/domain"
	"github.com/devindrajit1998/ai-novaintel/internal/usecase/optimizer"
)

// ServerName is the name announced to MCP clients.
const ServerName = "retrievald"

// Optimizer is the pipeline the tools drive.
type Optimizer interface {
	Optimize(ctx context.Context, req *optimizer.Request) (*optimizer.Response, error)
	ExpandQuery(ctx context.Context, query string, maxExpansions *int) ([]domain.QueryVariant, error)
}

// Server wraps the MCP server with the pipeline.
type Server struct {
	mcp       *server.MCPServer
	optimizer Optimizer
	logger    *zap.Logger
}

// NewServer creates an MCP server with the optimize_retrieval and expand_query tools.
func NewServer(opt Optimizer, version string, logger *zap.Logger) *Server {
	s := &Server{
		mcp:       server.NewMCPServer(ServerName, version),
		optimizer: opt,
		logger:    logger,
	}
	s.mcp.AddTool(optimizeRetrievalTool(), s.handleOptimizeRetrieval)
	s.mcp.AddTool(expandQueryTool(), s.handleExpandQuery)
	return s
}

// Serve runs the stdio transport until the client disconnects.
func (s *Server) Serve() error {
	s.logger.Info("Serving MCP over stdio")
	if err := server.ServeStdio(s.mcp); err != nil {
		return fmt.Errorf("serve stdio: %w", err)
	}
	return nil
}
