package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/devindrajit1998/ai-novaintel/internal/config"
	"github.com/devindrajit1998/ai-novaintel/internal/version"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "retrievald:", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:    "retrievald",
		Usage:   "Retrieval optimization service: query expansion, hybrid BM25 fusion and cross-encoder reranking",
		Version: fmt.Sprintf("%s (commit %s, built %s)", version.Version, version.Commit, version.Date),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "env",
				Aliases: []string{"e"},
				Usage:   "Config environment, selects <config-dir>/<env>.yaml (local, dev, docker, prod)",
				Value:   config.GetEnv(),
			},
			&cli.StringFlag{
				Name:    "config-dir",
				Aliases: []string{"c"},
				Usage:   "Directory holding the YAML configs; empty searches ./config and the project root",
				EnvVars: []string{"CONFIG_DIR"},
			},
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Override logging.level (debug, info, warn, error)",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP API",
				Action: serveCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "port",
						Usage: "Override http.port",
					},
				},
			},
			{
				Name:   "mcp",
				Usage:  "Serve the optimize_retrieval and expand_query tools over MCP stdio",
				Action: mcpCommand,
			},
			{
				Name:      "expand",
				Usage:     "Print the query variants used for a query, one per line",
				ArgsUsage: "QUERY",
				Action:    expandCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:    "max-expansions",
						Aliases: []string{"n"},
						Usage:   "Maximum number of generated phrasings (default: retrieval.max_expansions)",
					},
				},
			},
			{
				Name:   "optimize",
				Usage:  "Run the pipeline on a JSON request (the /v1/optimize body) and print the result",
				Action: optimizeCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "request",
						Aliases: []string{"r"},
						Usage:   "Path to the request JSON, - reads stdin",
						Value:   "-",
					},
					&cli.StringFlag{
						Name:    "query",
						Aliases: []string{"q"},
						Usage:   "Override the request query",
					},
					&cli.IntFlag{
						Name:    "top-k",
						Aliases: []string{"k"},
						Usage:   "Override the request top_k",
					},
				},
			},
		},
	}
}
