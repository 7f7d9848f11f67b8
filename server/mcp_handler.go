package server

import (
	"context"
	"net/http"

	"github.com/jrsteele09/datum-mcp-bridge/auth"
	"github.com/jrsteele09/datum-mcp-bridge/internal/utils"
	"github.com/jrsteele09/datum-mcp-bridge/openapi"
	"github.com/jrsteele09/datum-mcp-bridge/sandbox"
	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
)

// Tool names.
const (
	ToolSearch  = "search"
	ToolExecute = "execute"
)

// MCPHandler serves one stateless MCP exchange. The tool set is built per
// request around the caller's credential, so nothing is shared between callers.
func (s *Server) MCPHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cred, ok := CredentialFromContext(r.Context())
		if !ok {
			s.writeLoginRequired(w, "Not authenticated")
			return
		}

		mcpServer := s.newMCPServer(cred)
		mcpserver.NewStreamableHTTPServer(mcpServer, mcpserver.WithStateLess(true)).ServeHTTP(w, r)
	}
}

func (s *Server) newMCPServer(cred auth.Credential) *mcpserver.MCPServer {
	mcpServer := mcpserver.NewMCPServer(mcpServerName, mcpServerVersion, mcpserver.WithToolCapabilities(false))

	products := openapi.LoadProducts(s.config.GetProductsPath())
	mcpServer.AddTool(mcp.NewTool(ToolSearch,
		mcp.WithDescription(searchDescription(products)),
		mcp.WithString("code",
			mcp.Required(),
			mcp.Description("JavaScript async arrow function to search the OpenAPI spec"),
		),
	), s.runTool(func() sandbox.Profile {
		return &sandbox.SearchProfile{SpecPath: s.config.GetSpecPath()}
	}))

	mcpServer.AddTool(mcp.NewTool(ToolExecute,
		mcp.WithDescription(executeDescription()),
		mcp.WithString("code",
			mcp.Required(),
			mcp.Description("JavaScript async arrow function to execute"),
		),
	), s.runTool(func() sandbox.Profile {
		return &sandbox.ExecutionProfile{
			Client:      s.apiClient,
			AccessToken: utils.Value(cred.AccessToken),
			UserID:      utils.Value(cred.UserID),
		}
	}))

	return mcpServer
}

// runTool evaluates the code argument under a fresh profile. Failures are
// reported as tool errors, never as protocol errors.
func (s *Server) runTool(newProfile func() sandbox.Profile) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		code, err := req.RequireString("code")
		if err != nil {
			return mcp.NewToolResultError("Error: " + err.Error()), nil
		}

		out := s.executor.Run(ctx, code, newProfile())
		if !out.OK {
			return mcp.NewToolResultError("Error: " + out.Error), nil
		}
		return mcp.NewToolResultText(out.Text), nil
	}
}
