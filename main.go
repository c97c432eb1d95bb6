package main

import "github.com/iksnae/research-trace/cmd"

func main() {
	cmd.Execute()
}
