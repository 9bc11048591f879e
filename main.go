package main

import "autoprobe/cmd"

func main() {
	cmd.Execute()
}
