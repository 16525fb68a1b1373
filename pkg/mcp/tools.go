package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/cascadehq/cascade/internal/store"
	"github.com/cascadehq/cascade/pkg/diagram"
	"github.com/cascadehq/cascade/pkg/engine"
	"github.com/cascadehq/cascade/pkg/flow"
)

// handleFlows lists registered flows or inspects one flow's structure.
func (s *CascadeServer) handleFlows(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name := req.GetString("name", "")
	if name == "" {
		return marshalResult(map[string]any{"flows": s.registry.Names()})
	}

	e, err := s.registry.Get(name)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("flow lookup failed: %v", err)), nil
	}

	return marshalResult(describeGraph(e.Graph()))
}

// describeGraph builds the inspection payload for one flow graph.
func describeGraph(g *flow.Graph) map[string]any {
	levels := g.Levels()
	outDegree := g.OutDegree()

	var methods []map[string]any
	for _, m := range g.Methods() {
		entry := map[string]any{
			"name":       m.Name,
			"role":       string(m.Role),
			"level":      levels[m.Name],
			"out_degree": outDegree[m.Name],
		}
		if m.Condition != nil {
			entry["condition"] = m.Condition.String()
		}
		if len(m.Outcomes) > 0 {
			entry["outcomes"] = m.Outcomes
		}
		if m.Guard != nil {
			entry["guard"] = map[string]any{"engine": m.Guard.Engine, "expr": m.Guard.Expr}
		}
		methods = append(methods, entry)
	}

	out := map[string]any{
		"name":    g.Name(),
		"methods": methods,
	}
	if schema := g.InputSchema(); len(schema) > 0 {
		out["input_schema"] = json.RawMessage(schema)
	}
	return out
}

// handleRun kicks off a registered flow.
func (s *CascadeServer) handleRun(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError("name is required"), nil
	}
	inputs := mcp.ParseStringMap(req, "inputs", nil)
	wait := req.GetBool("wait", true)

	e, lookupErr := s.registry.Get(name)
	if lookupErr != nil {
		return mcp.NewToolResultError(fmt.Sprintf("flow lookup failed: %v", lookupErr)), nil
	}

	if wait {
		result, runErr := e.Kickoff(ctx, inputs)
		if runErr != nil {
			return mcp.NewToolResultError(fmt.Sprintf("kickoff failed: %v", runErr)), nil
		}
		s.recordResult(ctx, result)
		return marshalResult(result)
	}

	// Background run: track the session so the completion notification
	// reaches the caller.
	trackID := uuid.NewString()
	if session := server.ClientSessionFromContext(ctx); session != nil {
		s.sessions.Register(trackID, session.SessionID())
	}

	runCtx := context.WithoutCancel(ctx)
	ar := e.KickoffAsync(runCtx, inputs)
	go func() {
		result, runErr := ar.Wait()
		payload := map[string]any{"flow": name}
		if runErr != nil {
			payload["error"] = runErr.Error()
		} else {
			payload["run_id"] = result.RunID
			payload["status"] = string(result.Status)
			s.recordResult(runCtx, result)
		}
		if notifyErr := s.notifier.Notify(runCtx, trackID, payload); notifyErr != nil {
			s.logger.Warn("run completion notification failed",
				"flow", name, "error", notifyErr)
		}
	}()

	return marshalResult(map[string]any{"started": true, "flow": name})
}

// recordResult persists outputs and final value into the run history.
func (s *CascadeServer) recordResult(ctx context.Context, result *engine.RunResult) {
	if s.history == nil || result == nil {
		return
	}
	if err := s.history.RecordResult(ctx, result); err != nil {
		s.logger.Warn("failed to record run result",
			"run_id", result.RunID, "error", err)
	}
}

// handlePlot renders a flow graph, optionally overlaying a past run's
// per-method statuses.
func (s *CascadeServer) handlePlot(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError("name is required"), nil
	}
	format, err := req.RequireString("format")
	if err != nil {
		return mcp.NewToolResultError("format is required"), nil
	}

	e, lookupErr := s.registry.Get(name)
	if lookupErr != nil {
		return mcp.NewToolResultError(fmt.Sprintf("flow lookup failed: %v", lookupErr)), nil
	}

	model := diagram.Build(e.Graph())

	if runID := req.GetString("run_id", ""); runID != "" {
		if s.store == nil {
			return mcp.NewToolResultError("run status overlay requires history to be configured"), nil
		}
		states, replayErr := store.NewEventLog(s.store).Replay(ctx, runID)
		if replayErr != nil {
			return mcp.NewToolResultError(fmt.Sprintf("replay failed: %v", replayErr)), nil
		}
		statuses := make(map[string]string, len(states))
		for method, st := range states {
			statuses[method] = st.Status
		}
		diagram.Annotate(model, statuses)
	}

	switch format {
	case "ascii":
		return mcp.NewToolResultText(diagram.RenderASCII(model)), nil
	case "mermaid":
		return mcp.NewToolResultText(diagram.RenderMermaid(model)), nil
	case "dot":
		return mcp.NewToolResultText(diagram.RenderDOT(model)), nil
	default:
		return mcp.NewToolResultError("format must be ascii, mermaid, or dot"), nil
	}
}

// handleHistory queries past runs, event streams, or a replayed run view.
func (s *CascadeServer) handleHistory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.store == nil {
		return mcp.NewToolResultError("history is not configured"), nil
	}

	resource, err := req.RequireString("resource")
	if err != nil {
		return mcp.NewToolResultError("resource is required"), nil
	}
	filter := mcp.ParseStringMap(req, "filter", nil)

	switch resource {
	case "runs":
		return s.queryRuns(ctx, filter)
	case "events":
		return s.queryEvents(ctx, filter)
	case "replay":
		return s.queryReplay(ctx, filter)
	default:
		return mcp.NewToolResultError(fmt.Sprintf("unknown resource type: %s", resource)), nil
	}
}

func (s *CascadeServer) queryRuns(ctx context.Context, filter map[string]any) (*mcp.CallToolResult, error) {
	rf := store.RunFilter{
		Limit: extractInt(filter, "limit", 50),
	}
	if flowName, ok := filter["flow"].(string); ok {
		rf.Flow = flowName
	}
	if status, ok := filter["status"].(string); ok {
		rf.Status = status
	}
	if since, ok := filter["since"].(string); ok && since != "" {
		if t, parseErr := time.Parse(time.RFC3339, since); parseErr == nil {
			rf.Since = &t
		}
	}

	runs, err := s.store.ListRuns(ctx, rf)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("query failed: %v", err)), nil
	}
	return marshalResult(map[string]any{"runs": runs})
}

func (s *CascadeServer) queryEvents(ctx context.Context, filter map[string]any) (*mcp.CallToolResult, error) {
	ef := store.EventFilter{
		Limit: extractInt(filter, "limit", 100),
	}
	if runID, ok := filter["run_id"].(string); ok {
		ef.RunID = runID
	}
	if flowName, ok := filter["flow"].(string); ok {
		ef.Flow = flowName
	}
	if method, ok := filter["method"].(string); ok {
		ef.Method = method
	}
	eventType, _ := filter["event_type"].(string)
	if since, ok := filter["since"].(string); ok && since != "" {
		if t, parseErr := time.Parse(time.RFC3339, since); parseErr == nil {
			ef.Since = &t
		}
	}

	if eventType != "" {
		events, err := s.store.GetEventsByType(ctx, eventType, ef)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("query failed: %v", err)), nil
		}
		return marshalResult(map[string]any{"events": events})
	}

	if ef.RunID == "" {
		return mcp.NewToolResultError("event query requires either 'event_type' or 'run_id' in filter"), nil
	}
	events, err := s.store.GetEvents(ctx, ef.RunID, 0)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("query failed: %v", err)), nil
	}
	return marshalResult(map[string]any{"events": events})
}

func (s *CascadeServer) queryReplay(ctx context.Context, filter map[string]any) (*mcp.CallToolResult, error) {
	runID, _ := filter["run_id"].(string)
	if runID == "" {
		return mcp.NewToolResultError("replay requires 'run_id' in filter"), nil
	}

	states, err := store.NewEventLog(s.store).Replay(ctx, runID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("replay failed: %v", err)), nil
	}
	return marshalResult(map[string]any{"run_id": runID, "methods": states})
}

// --- Internal helpers ---

// extractInt safely extracts an integer from a filter map.
func extractInt(filter map[string]any, key string, defaultVal int) int {
	if filter == nil {
		return defaultVal
	}
	v, ok := filter[key]
	if !ok {
		return defaultVal
	}
	switch val := v.(type) {
	case float64:
		return int(val)
	case int:
		return val
	case string:
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
	}
	return defaultVal
}

// marshalResult converts a value to a JSON text tool result.
func marshalResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultJSON(json.RawMessage(data))
}
