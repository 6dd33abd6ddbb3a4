package main

import (
	"log"

	"wagate/internal/server"
	"wagate/internal/utils"
)

func main() {
	utils.LoadDotEnv()

	s, err := server.NewServer()
	if err != nil {
		log.Fatalf("Failed to initialize server: %v", err)
	}

	s.Run()
}
