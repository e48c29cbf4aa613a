package main

import "github.com/atelierlab/portfoliomatch/internal/cli"

func main() {
	cli.Execute()
}
