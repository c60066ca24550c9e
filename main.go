package main

import "github.com/ferumlab/ferum-hub/cmd"

func main() {
	cmd.Execute()
}
