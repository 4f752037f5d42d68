package main

import "github.com/velora/chat-core/cmd"

func main() {
	cmd.Execute()
}
