package main

import "github.com/kestrelcad/addons/cmd"

func main() {
	cmd.Execute()
}
