package main

import (
	"os"

	tokf "github.com/mpecan/tokf-sub001"
	"github.com/mpecan/tokf-sub001/internal/cli"
	"github.com/mpecan/tokf-sub001/internal/filter"
)

func main() {
	filter.EmbeddedFS = tokf.EmbeddedFilters
	os.Exit(cli.Run(os.Args))
}
