package main

import "sosguard/cmd"

func main() {
	cmd.Execute()
}
