// Command beehive runs the supervisor: as an MCP server, for a single task,
// or to drive a composition of platform agents.
package main

func main() {
	Execute()
}
