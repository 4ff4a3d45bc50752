package main

import "github.com/unisphere-campus/server/cmd/server/cmd"

func main() {
	cmd.Execute()
}
