package main

import (
	"os"

	"github.com/Treamyracle/INFOMEDIA/internal/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
