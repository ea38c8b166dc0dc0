package main

import "github.com/iksnae/agentos-chat/cmd"

func main() {
	cmd.Execute()
}
