// Command mnemod is the memory service's daemon and CLI: it starts the
// REST API and MCP server, and offers direct CLI access to the core
// memory operations for scripting and debugging.
package main

func main() {
	Execute()
}
