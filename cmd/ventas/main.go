package main

import "ventas/internal/cli"

func main() {
	cli.Execute()
}
