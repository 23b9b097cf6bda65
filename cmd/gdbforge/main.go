package main

import "gdbforge/internal/gdbforge"

func main() {
	gdbforge.Main()
}
