package main

import "modelsync/cmd/modelsync/cmd"

func main() {
	cmd.Execute()
}
