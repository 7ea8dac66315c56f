// Command envmanager is the CLI that keeps a local .env file in step with an
// Env Manager server.
package main

import "github.com/atinyakov/envmanager/internal/client/cli"

var (
	version   string
	commit    string
	buildDate string
)

func main() {
	if version != "" {
		cli.Version = version
	}
	cli.Commit = commit
	cli.Date = buildDate
	cli.Execute()
}
