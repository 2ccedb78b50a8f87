package main

import "costmanager/internal/cli"

func main() {
	cli.RunCtl()
}
