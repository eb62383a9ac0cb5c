package main

import "storyreel/cmd"

func main() {
	cmd.Execute()
}
