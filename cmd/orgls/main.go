package main

import (
	"context"
	"fmt"
	"os"
	"runtime"

	"orgls/internal/cli"

	_ "github.com/tliron/commonlog/simple"
)

func main() {
	// 4 Cores
	runtime.GOMAXPROCS(4)

	if err := cli.Execute(context.Background(), os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "orgls: %v\n", err)
		os.Exit(1)
	}
}
