package main

import "github.com/waitsampling-io/waitsampling/cmd/waitsampler/cmd"

func main() {
	cmd.Execute()
}
