// Command heirfinder screens property owners against county portals.
package main

import (
	"os"

	"github.com/JakeFAU/heir-finder/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
