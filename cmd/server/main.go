package main

import "github.com/iliyamo/dock-slot-reservation/internal/cli"

func main() {
	cli.Execute()
}
