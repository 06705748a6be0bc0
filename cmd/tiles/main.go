package main

import "tiles/internal/cli"

func main() { cli.Main() }
