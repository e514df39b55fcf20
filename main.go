package main

import (
	"log"

	"github.com/KodaTao/ai-chat/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
