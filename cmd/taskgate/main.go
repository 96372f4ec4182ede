// Package main provides the entry point for taskgate.
//
// taskgate is an MCP server exposing a supervised coding-agent task
// orchestrator over stdio:
// - delegate_coding_task / monitor_task_progress / get_task_results /
//   list_active_tasks / cancel_task for the task lifecycle
// - analyze_project / set_active_project for project context
// - check_agent_availability / get_system_status for diagnostics
//
// Usage:
//
//	taskgate                   Start the MCP server (stdio mode, default)
//	taskgate version           Show version
//	taskgate init-config       Write an example configuration file
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/ternarybob/taskgate/internal/config"
	"github.com/ternarybob/taskgate/internal/logger"
	"github.com/ternarybob/taskgate/internal/mcpserver"
	"github.com/ternarybob/taskgate/internal/orchestrator"
)

var version = "dev"

var configPath string

func main() {
	args := os.Args[1:]
	command := ""
	cmdArgs := []string{}

	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case strings.HasPrefix(arg, "--config="):
			configPath = strings.TrimPrefix(arg, "--config=")
		case arg == "--config" && i+1 < len(args):
			configPath = args[i+1]
			i++
		case strings.HasPrefix(arg, "-"):
			// ignore unrecognized flags
		case command == "":
			command = arg
		default:
			cmdArgs = append(cmdArgs, arg)
		}
	}

	if command == "" {
		command = "serve"
	}

	var err error
	switch command {
	case "serve", "mcp":
		err = cmdServe()
	case "version", "-v", "--version":
		fmt.Printf("taskgate version %s\n", version)
	case "init-config":
		err = cmdInitConfig()
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`taskgate - supervised coding-agent task orchestrator

Usage:
  taskgate [flags] [command]

Commands:
  serve         Start the MCP server over stdio (default)
  version       Show version information
  init-config   Write an example configuration file
  help          Show this help

Flags:
  --config PATH   Path to configuration file (default: ./taskgate.toml)

Environment:
  AGENT_CLI_PATH       Path to the coding-agent CLI to supervise
  AGENT_MOCK           Run tasks in mock mode instead of spawning a real agent
  MAX_CONCURRENCY      Maximum concurrently RUNNING tasks
  BUFFER_BYTES         Per-stream ring buffer capacity in bytes
  GRACE_PERIOD_MS      SIGTERM-to-SIGKILL grace period in milliseconds
  TASK_HISTORY_LIMIT   Maximum tracked tasks before oldest terminal eviction
  TASKGATE_LOG_LEVEL   Log level (debug, info, warn, error)`)
}

func getConfigPath() string {
	if configPath != "" {
		return configPath
	}
	if envPath := os.Getenv("TASKGATE_CONFIG"); envPath != "" {
		return envPath
	}
	return "taskgate.toml"
}

func cmdServe() error {
	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := logger.SetupLogger(cfg)
	defer logger.Stop()
	log.Info().Str("version", version).Msg("taskgate starting")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	orch := orchestrator.New(ctx, cfg, log)
	defer orch.Stop()

	srv := mcpserver.New(orch)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ServeStdio()
	}()

	select {
	case err := <-errCh:
		if err != nil {
			log.Error().Err(err).Msg("mcp server exited")
			return err
		}
		log.Info().Msg("mcp server stopped: stdin closed")
		return nil
	case sig := <-sigCh:
		log.Info().Str("signal", sig.String()).Msg("shutting down")
		cancel()
		return nil
	}
}

func cmdInitConfig() error {
	path := getConfigPath()
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists: %s", path)
	}

	const example = `# taskgate configuration
agent_cli_path = ""
agent_mock = false
max_concurrency = 4
buffer_bytes = 1048576
grace_period_ms = 5000
task_history_limit = 10000

[logging]
level = "info"
format = "json"
output = ["console"]
`
	if err := os.WriteFile(path, []byte(example), 0644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	fmt.Printf("Created example configuration: %s\n", path)
	return nil
}
