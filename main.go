package main

import "vector-viz/cli"

func main() {
	cli.Execute()
}
