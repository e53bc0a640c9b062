package main

import "github.com/encodeous/babelcore/cmd"

func main() {
	cmd.Execute()
}
