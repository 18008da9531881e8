package main

import (
	"os"

	"github.com/cedarlane/phrasedrop/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
