package main

import "github.com/lgreg1908/papa-rag/internal/cli"

func main() {
	cli.Execute()
}
