package main

import "searchscaler/internal/server"

func main() {
	server.Run()
}
