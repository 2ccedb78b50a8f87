// Command log-worker stores the request logs the HTTP services publish
// to the broker.
package main

import "costmanager/internal/cli"

func main() {
	cli.RunLogWorker()
}
