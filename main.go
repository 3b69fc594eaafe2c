package main

import "github.com/zijiren233/livepush/cmd"

func main() {
	cmd.Execute()
}
