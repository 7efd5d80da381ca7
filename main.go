package main

import cmd "github.com/rohmanhakim/docs-crawler/internal/cli"

func main() {
	cmd.Execute()
}
