package main

import (
	"os"

	"github.com/kebairia/mealie-backup/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
