package main

import "github.com/chainwatch/ingestor/cmd"

func main() {
	cmd.Execute()
}
