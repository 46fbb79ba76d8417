package main

import "github.com/Auto-Bike/frontend/internal/cli"

func main() {
	cli.Execute()
}
