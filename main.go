package main

import "github.com/qobs-build/mike/cmd"

func main() {
	cmd.Execute()
}
