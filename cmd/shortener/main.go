package main

import (
	"log"

	"github.com/vrsjns/bearlink-sub000/internal/app"
)

func main() {
	if err := app.Run(); err != nil {
		log.Fatal(err)
	}
}
