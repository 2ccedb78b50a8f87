// Command admin runs the Admin service: team information.
package main

import (
	"costmanager/internal/cli"
	apphttp "costmanager/internal/http"
)

func main() {
	cli.RunService(apphttp.ServiceAdmin, "3004")
}
