package main

import "github.com/promptlabs/evalharness/cmd"

func main() {
	cmd.Execute()
}
