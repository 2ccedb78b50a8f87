// Command users runs the Users service: user registry and per-user totals.
package main

import (
	"costmanager/internal/cli"
	apphttp "costmanager/internal/http"
)

func main() {
	cli.RunService(apphttp.ServiceUsers, "3001")
}
