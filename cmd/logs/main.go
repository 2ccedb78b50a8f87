// Command logs runs the Logs service: lists the stored request logs.
package main

import (
	"costmanager/internal/cli"
	apphttp "costmanager/internal/http"
)

func main() {
	cli.RunService(apphttp.ServiceLogs, "3003")
}
