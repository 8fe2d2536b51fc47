package main

import "github.com/upcat-dev/upcat/cmd"

func main() {
	cmd.Execute()
}
