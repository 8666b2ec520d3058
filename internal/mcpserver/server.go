package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"taskledger/internal/model"
	"taskledger/internal/service"
)

// Runner serializes a tool call with the rest of the system.
// service.Coordinator satisfies it.
type Runner interface {
	HandleMessage(ctx context.Context, fn func(ctx context.Context) error) error
}

// NewServer exposes every toolbox tool over MCP. Each call runs as one
// inbound message: under the processing lock and followed by a reconcile.
func NewServer(toolbox *service.Toolbox, runner Runner) *server.MCPServer {
	s := server.NewMCPServer("taskledger", "0.1.0", server.WithToolCapabilities(false))

	for _, t := range toolbox.Tools() {
		s.AddTool(mcp.NewToolWithRawSchema(t.Name, t.Description, t.Parameters), toolHandler(toolbox, runner, t.Name))
	}
	return s
}

// Serve runs the server on the given streams until ctx is cancelled.
func Serve(ctx context.Context, s *server.MCPServer, in io.Reader, out io.Writer) error {
	log.Println("[info] serving MCP on stdio")
	return server.NewStdioServer(s).Listen(ctx, in, out)
}

func toolHandler(toolbox *service.Toolbox, runner Runner, name string) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args, err := rawArguments(request.Params.Arguments)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		var out string
		err = runner.HandleMessage(ctx, func(ctx context.Context) error {
			var err error
			out, err = toolbox.Call(service.WithCreator(ctx, model.CreatedByAgent), name, args)
			return err
		})
		if err != nil {
			log.Printf("[warn] mcp tool %s: %v", name, err)
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(out), nil
	}
}

func rawArguments(v any) (json.RawMessage, error) {
	switch a := v.(type) {
	case nil:
		return json.RawMessage("{}"), nil
	case json.RawMessage:
		return a, nil
	case map[string]any:
		if len(a) == 0 {
			return json.RawMessage("{}"), nil
		}
		return json.Marshal(a)
	default:
		data, err := json.Marshal(a)
		if err != nil {
			return nil, fmt.Errorf("encode arguments: %w", err)
		}
		return data, nil
	}
}
