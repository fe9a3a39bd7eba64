package main

import "github.com/thegrumpylion/gdocs-mcp/cmd"

var version = "dev"

func main() {
	cmd.SetVersion(version)
	cmd.Execute()
}
