package main

import "github.com/notargets/goheat/cmd"

func main() {
	cmd.Execute()
}
