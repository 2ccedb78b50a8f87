// Command costs runs the Costs service: monthly reports and expense records.
package main

import (
	"costmanager/internal/cli"
	apphttp "costmanager/internal/http"
)

func main() {
	cli.RunService(apphttp.ServiceCosts, "3002")
}
