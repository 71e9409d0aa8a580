package main

import "github.com/terraconstructs/idmgr/cmd/idmgr/cmd"

func main() {
	cmd.Execute()
}
