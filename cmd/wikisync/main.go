// Command wikisync exports, imports and synchronises wiki content, resolves
// image links and serves the wiki API.
package main

import (
	"context"
	"os"

	"github.com/roach88/wikisync/internal/cli"
)

func main() {
	os.Exit(cli.Main(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}
