package main

import "worksync/cmd/client/cmd"

func main() {
	cmd.Execute()
}
