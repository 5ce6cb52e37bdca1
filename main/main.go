// main - main entry-point to mall-go commands through cobra
// individual commands are outlined in ./cmd/
package main

import (
	"github.com/openmall/mall-go/cmd"
	"github.com/openmall/mall-go/libs/logging"

	// pull in orders service
	_ "github.com/openmall/mall-go/services/orders/cmd"
)

var (
	// variables will be overwritten at build time
	version   string
	commit    string
	buildTime string
)

func main() {
	defer func() {
		if logging.Writer != nil {
			logging.Writer.Close()
		}
	}()
	cmd.Execute(version, commit, buildTime)
}
