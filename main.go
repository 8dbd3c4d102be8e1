package main

import "github.com/0xKoda/tracekit/cmd"

func main() {
	cmd.Execute()
}
