// Package mcp implements a stdio Model Context Protocol server that bridges
// JSON-RPC 2.0 tool calls to the LakeOps REST API, so AI agents can inspect
// and manage Databricks clusters.
package mcp

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
)

const (
	serverName      = "lakeops-mcp"
	serverVersion   = "1.0.0"
	protocolVersion = "2024-11-05"
)

// MCPServer is the MCP server that bridges stdio JSON-RPC to the LakeOps REST API.
type MCPServer struct {
	client *APIClient
	tools  []Tool
	logger *log.Logger
}

// NewMCPServer creates a new MCPServer with the given API base URL.
func NewMCPServer(baseURL string) *MCPServer {
	return &MCPServer{
		client: NewAPIClient(baseURL),
		tools:  AllTools(),
		logger: log.New(os.Stderr, "[lakeops-mcp] ", log.LstdFlags),
	}
}

// Run starts the stdio JSON-RPC loop. It reads requests from stdin, dispatches
// them, and writes responses to stdout. It blocks until stdin is closed.
func (s *MCPServer) Run() error {
	reader := bufio.NewReader(os.Stdin)
	writer := os.Stdout

	s.logger.Println("MCP server starting, reading from stdin")

	for {
		line, err := reader.ReadBytes('\n')
		if err != nil {
			if err == io.EOF {
				s.logger.Println("stdin closed, shutting down")
				return nil
			}
			return fmt.Errorf("reading stdin: %w", err)
		}

		// Skip empty lines
		if len(line) == 0 || (len(line) == 1 && line[0] == '\n') {
			continue
		}

		var req Request
		if err := json.Unmarshal(line, &req); err != nil {
			s.writeError(writer, nil, ErrCodeParseError, "Parse error: "+err.Error())
			continue
		}

		s.logger.Printf("received method=%s id=%s", req.Method, string(req.ID))

		resp := s.dispatch(&req)
		s.writeResponse(writer, resp)
	}
}

// dispatch routes a JSON-RPC request to the appropriate handler.
func (s *MCPServer) dispatch(req *Request) *Response {
	switch req.Method {
	case "initialize":
		return s.handleInitialize(req)
	case "initialized":
		// Notification, no response required per MCP spec.
		// Return nil to signal no response should be written.
		return nil
	case "notifications/initialized":
		return nil
	case "tools/list":
		return s.handleToolsList(req)
	case "tools/call":
		return s.handleToolsCall(req)
	case "ping":
		return &Response{
			JSONRPC: "2.0",
			ID:      req.ID,
			Result:  map[string]interface{}{},
		}
	default:
		return &Response{
			JSONRPC: "2.0",
			ID:      req.ID,
			Error: &RPCError{
				Code:    ErrCodeMethodNotFound,
				Message: fmt.Sprintf("Method not found: %s", req.Method),
			},
		}
	}
}

// handleInitialize handles the "initialize" method.
func (s *MCPServer) handleInitialize(req *Request) *Response {
	result := InitializeResult{
		ProtocolVersion: protocolVersion,
		Capabilities: ServerCaps{
			Tools: &ToolsCap{},
		},
		ServerInfo: ServerInfo{
			Name:    serverName,
			Version: serverVersion,
		},
		Instructions: "LakeOps MCP server. Provides tools to inspect, manage, and optimize Databricks clusters. Connect to a running LakeOps instance to use these tools.",
	}
	return &Response{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result:  result,
	}
}

// handleToolsList handles the "tools/list" method.
func (s *MCPServer) handleToolsList(req *Request) *Response {
	result := ToolsListResult{
		Tools: s.tools,
	}
	return &Response{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result:  result,
	}
}

// handleToolsCall handles the "tools/call" method.
func (s *MCPServer) handleToolsCall(req *Request) *Response {
	var params ToolCallParams
	if req.Params != nil {
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return &Response{
				JSONRPC: "2.0",
				ID:      req.ID,
				Error: &RPCError{
					Code:    ErrCodeInvalidParams,
					Message: "Invalid params: " + err.Error(),
				},
			}
		}
	}

	if params.Name == "" {
		return &Response{
			JSONRPC: "2.0",
			ID:      req.ID,
			Error: &RPCError{
				Code:    ErrCodeInvalidParams,
				Message: "Missing required parameter: name",
			},
		}
	}

	s.logger.Printf("calling tool: %s", params.Name)

	result, apiErr := s.executeTool(params.Name, params.Arguments)
	if apiErr != nil {
		s.logger.Printf("tool %s error: %v", params.Name, apiErr)
		return &Response{
			JSONRPC: "2.0",
			ID:      req.ID,
			Result: ToolCallResult{
				Content: []TextContent{
					{Type: "text", Text: fmt.Sprintf("Error: %s", apiErr.Error())},
				},
				IsError: true,
			},
		}
	}

	return &Response{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: ToolCallResult{
			Content: []TextContent{
				{Type: "text", Text: string(result)},
			},
		},
	}
}

// executeTool dispatches to the correct API client method based on the tool name.
func (s *MCPServer) executeTool(name string, args map[string]interface{}) (json.RawMessage, error) {
	// Helper to extract a string argument.
	getString := func(key string) (string, error) {
		v, ok := args[key]
		if !ok {
			return "", fmt.Errorf("missing required argument: %s", key)
		}
		str, ok := v.(string)
		if !ok {
			return "", fmt.Errorf("argument %s must be a string", key)
		}
		return str, nil
	}
	// Helper to extract an optional integer argument; JSON numbers decode
	// to float64.
	getInt := func(key string) int {
		if v, ok := args[key].(float64); ok {
			return int(v)
		}
		return 0
	}

	switch name {
	// ── Clusters ──
	case "list_clusters":
		state, _ := args["state"].(string)
		return s.client.ListClusters(state, getInt("limit"))
	case "get_cluster":
		id, err := getString("cluster_id")
		if err != nil {
			return nil, err
		}
		return s.client.GetCluster(id)
	case "start_cluster":
		id, err := getString("cluster_id")
		if err != nil {
			return nil, err
		}
		return s.client.StartCluster(id)
	case "stop_cluster":
		id, err := getString("cluster_id")
		if err != nil {
			return nil, err
		}
		return s.client.StopCluster(id)
	case "get_cluster_events":
		id, err := getString("cluster_id")
		if err != nil {
			return nil, err
		}
		return s.client.GetClusterEvents(id, getInt("limit"))

	// ── Policies ──
	case "list_policies":
		return s.client.ListPolicies()
	case "get_policy":
		id, err := getString("policy_id")
		if err != nil {
			return nil, err
		}
		return s.client.GetPolicy(id)

	// ── Fleet metrics ──
	case "get_metrics_summary":
		return s.client.GetMetricsSummary()
	case "list_idle_clusters":
		return s.client.ListIdleClusters()

	// ── Optimization ──
	case "get_optimization_summary":
		return s.client.GetOptimizationSummary()
	case "get_spark_config_recommendations":
		return s.client.GetSparkConfigRecommendations()
	case "get_cost_recommendations":
		return s.client.GetCostRecommendations()
	case "get_autoscaling_recommendations":
		return s.client.GetAutoscalingRecommendations()
	case "get_node_type_recommendations":
		return s.client.GetNodeTypeRecommendations()
	case "get_utilization_trends":
		return s.client.GetUtilizationTrends(getInt("days"))
	case "collect_metrics":
		return s.client.CollectMetrics()

	default:
		return nil, fmt.Errorf("unknown tool: %s", name)
	}
}

// writeResponse writes a JSON-RPC response to the writer as a single JSON line.
func (s *MCPServer) writeResponse(w io.Writer, resp *Response) {
	if resp == nil {
		// Notifications don't get a response.
		return
	}
	data, err := json.Marshal(resp)
	if err != nil {
		s.logger.Printf("ERROR: failed to marshal response: %v", err)
		return
	}
	data = append(data, '\n')
	if _, err := w.Write(data); err != nil {
		s.logger.Printf("ERROR: failed to write response: %v", err)
	}
}

// writeError writes a JSON-RPC error response to the writer.
func (s *MCPServer) writeError(w io.Writer, id json.RawMessage, code int, message string) {
	resp := &Response{
		JSONRPC: "2.0",
		ID:      id,
		Error: &RPCError{
			Code:    code,
			Message: message,
		},
	}
	s.writeResponse(w, resp)
}
