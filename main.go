package main

import "github.com/strrl/activator/internal/cmd"

func main() {
	cmd.Execute()
}
