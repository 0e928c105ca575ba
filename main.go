package main

import "github.com/timvw/tcssh/cmd"

func main() {
	cmd.Execute()
}
