package main

import (
	"fmt"
	"os"
)

func main() {
	err := rootCommand().Invoke().WithOS().Run()
	if err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}
