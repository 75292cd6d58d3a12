// Package testutil provides an in-process agent platform for tests and
// examples. Scripted agents are exposed as MCP tools on an mcp-go server and
// reached through a platform.DialFunc without any network transport.
package testutil
