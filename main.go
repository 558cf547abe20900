package main

import "github.com/todobus/todobus/cmd"

func main() {
	cmd.Execute()
}
