package main

import "github.com/logistics-platform/booking-dashboard/internal/cli"

func main() {
	cli.Execute()
}
