package main

import "commerce-api/commands"

func main() {
	commands.Execute()
}
