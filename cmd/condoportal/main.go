package main

import "github.com/example/condo-portal/cmd"

func main() {
	cmd.Execute()
}
