// Command mcprelay is an interactive man-in-the-middle proxy for an
// MCP server's JSON-RPC message stream: it sits between a client and a
// spawned server subprocess, lets an operator hold, edit, drop, or
// replay messages in flight, and records every session to disk.
package main

import "github.com/sentinel-gate/mcprelay/cmd/mcprelay/cmd"

func main() {
	cmd.Execute()
}
