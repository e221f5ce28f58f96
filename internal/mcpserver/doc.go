// Package mcpserver implements a JSON-RPC 2.0 over stdio MCP server
// exposing the memory service's operations as tools for an LLM agent.
package mcpserver
