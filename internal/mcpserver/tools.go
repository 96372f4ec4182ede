package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/ternarybob/taskgate/internal/orchestrator"
	"github.com/ternarybob/taskgate/internal/taskerr"
)

func registerTools(mcpServer *server.MCPServer, orch *orchestrator.Orchestrator) {
	h := &handlers{orch: orch}

	mcpServer.AddTool(
		mcp.NewTool("check_agent_availability",
			mcp.WithDescription("Report whether the configured coding-agent CLI is available to run tasks."),
		),
		h.checkAgentAvailability,
	)

	mcpServer.AddTool(
		mcp.NewTool("analyze_project",
			mcp.WithDescription("Analyze a project directory: detect its ecosystem, dependencies, build/test/lint commands, and VCS metadata."),
			mcp.WithString("path", mcp.Required(), mcp.Description("Absolute path to the project directory")),
		),
		h.analyzeProject,
	)

	mcpServer.AddTool(
		mcp.NewTool("set_active_project",
			mcp.WithDescription("Mark a previously analyzed project as the active project for tasks submitted without an explicit project_path."),
			mcp.WithString("path", mcp.Required(), mcp.Description("Path of a project already analyzed via analyze_project")),
		),
		h.setActiveProject,
	)

	mcpServer.AddTool(
		mcp.NewTool("get_system_status",
			mcp.WithDescription("Return host resource usage, task counts by state, and scheduler saturation."),
		),
		h.getSystemStatus,
	)

	mcpServer.AddTool(
		mcp.NewTool("delegate_coding_task",
			mcp.WithDescription("Submit a new coding task to the scheduler."),
			mcp.WithString("description", mcp.Required(), mcp.Description("What the coding agent should do")),
			mcp.WithString("project_path", mcp.Description("Target project directory, or omit to use the active project")),
			mcp.WithString("priority", mcp.Description("One of CRITICAL, HIGH, NORMAL (default), LOW")),
			mcp.WithArray("tags", mcp.Description("Arbitrary labels, e.g. \"mock:fail\" to force a synthetic failure in tests")),
			mcp.WithArray("dependencies", mcp.Description("Task ids that must COMPLETE before this task is eligible")),
			mcp.WithNumber("retry_limit", mcp.Description("Retries allowed on FAILED/ERROR before giving up (default 0)")),
			mcp.WithNumber("timeout_seconds", mcp.Description("Hard wall-clock limit for the task's child process")),
		),
		h.delegateCodingTask,
	)

	mcpServer.AddTool(
		mcp.NewTool("monitor_task_progress",
			mcp.WithDescription("Return a point-in-time snapshot of one task's state and metadata."),
			mcp.WithString("task_id", mcp.Required()),
		),
		h.monitorTaskProgress,
	)

	mcpServer.AddTool(
		mcp.NewTool("get_task_results",
			mcp.WithDescription("Return a task's captured stdout/stderr and final outcome."),
			mcp.WithString("task_id", mcp.Required()),
		),
		h.getTaskResults,
	)

	mcpServer.AddTool(
		mcp.NewTool("list_active_tasks",
			mcp.WithDescription("List tasks ordered by priority DESC, created_at ASC. Defaults to QUEUED/STARTED/RUNNING tasks; pass states to override."),
			mcp.WithArray("states", mcp.Description("Task states to include, e.g. [\"QUEUED\",\"RUNNING\"]; omit for the non-terminal default")),
			mcp.WithArray("tags", mcp.Description("If given, only tasks carrying at least one of these tags are returned")),
		),
		h.listActiveTasks,
	)

	mcpServer.AddTool(
		mcp.NewTool("cancel_task",
			mcp.WithDescription("Cancel a task: QUEUED tasks are removed immediately, running tasks are soft-then-hard cancelled."),
			mcp.WithString("task_id", mcp.Required()),
		),
		h.cancelTask,
	)
}

type handlers struct {
	orch *orchestrator.Orchestrator
}

func (h *handlers) checkAgentAvailability(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	available, detail := h.orch.CheckAgentAvailability()
	return jsonResult(map[string]any{"available": available, "detail": detail})
}

func (h *handlers) analyzeProject(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path := req.GetString("path", "")
	if path == "" {
		return mcp.NewToolResultError("path is required"), nil
	}
	p, err := h.orch.AnalyzeProject(path)
	if err != nil {
		return errorResult(err)
	}
	return jsonResult(p)
}

func (h *handlers) setActiveProject(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path := req.GetString("path", "")
	if path == "" {
		return mcp.NewToolResultError("path is required"), nil
	}
	if err := h.orch.SetActiveProject(path); err != nil {
		return errorResult(err)
	}
	return mcp.NewToolResultText(fmt.Sprintf("active project set to %s", path)), nil
}

func (h *handlers) getSystemStatus(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(h.orch.GetSystemStatus())
}

func (h *handlers) delegateCodingTask(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	description := req.GetString("description", "")
	if description == "" {
		return mcp.NewToolResultError("description is required"), nil
	}

	params := orchestrator.DelegateParams{
		Description:  description,
		ProjectPath:  req.GetString("project_path", ""),
		Priority:     req.GetString("priority", ""),
		Tags:         getStringArray(req, "tags"),
		Dependencies: getStringArray(req, "dependencies"),
		RetryLimit:   req.GetInt("retry_limit", 0),
		TimeoutSecs:  req.GetInt("timeout_seconds", 0),
	}

	t, err := h.orch.DelegateCodingTask(params)
	if err != nil {
		return errorResult(err)
	}
	return jsonResult(t.Snapshot())
}

func (h *handlers) monitorTaskProgress(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := req.GetString("task_id", "")
	if id == "" {
		return mcp.NewToolResultError("task_id is required"), nil
	}
	snap, err := h.orch.MonitorTaskProgress(id)
	if err != nil {
		return errorResult(err)
	}
	return jsonResult(snap)
}

func (h *handlers) getTaskResults(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := req.GetString("task_id", "")
	if id == "" {
		return mcp.NewToolResultError("task_id is required"), nil
	}
	res, err := h.orch.GetTaskResults(id)
	if err != nil {
		return errorResult(err)
	}
	return jsonResult(res)
}

func (h *handlers) listActiveTasks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	params := orchestrator.ListActiveTasksParams{
		States: getStringArray(req, "states"),
		Tags:   getStringArray(req, "tags"),
	}
	return jsonResult(h.orch.ListActiveTasks(params))
}

func (h *handlers) cancelTask(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := req.GetString("task_id", "")
	if id == "" {
		return mcp.NewToolResultError("task_id is required"), nil
	}
	if err := h.orch.CancelTask(id); err != nil {
		return errorResult(err)
	}
	return mcp.NewToolResultText(fmt.Sprintf("task %s cancelled", id)), nil
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("marshal result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(b)), nil
}

func errorResult(err error) (*mcp.CallToolResult, error) {
	if te, ok := taskerr.As(err); ok {
		return mcp.NewToolResultError(fmt.Sprintf("[%s] %s", te.Code, te.Message)), nil
	}
	return mcp.NewToolResultError(err.Error()), nil
}

func getStringArray(req mcp.CallToolRequest, key string) []string {
	raw, ok := req.GetArguments()[key]
	if !ok {
		return nil
	}
	items, ok := raw.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, it := range items {
		if s, ok := it.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
