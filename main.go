package main

import "nathanbeddoewebdev/snapcycle/cmd"

func main() {
	cmd.Execute()
}
