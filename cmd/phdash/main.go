package main

import "phdash/cmd/handlers"

func main() {
	handlers.Execute()
}
