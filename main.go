package main

import (
	"fmt"
	"os"

	"github.com/cppla/blogfeed/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "blogfeed:", err)
		os.Exit(1)
	}
}
