package main

import (
	"github.com/knograph/knograph/internal/server"
)

func main() {
	server.Init()
}
