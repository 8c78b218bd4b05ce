package main

import "github.com/dzjyyds666/pdxu/cmd"

func main() {
	cmd.Execute()
}
