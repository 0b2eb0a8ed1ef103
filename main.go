package main

import "variants/cmd"

func main() {
	cmd.Execute()
}
