package main

import (
	"github.com/MeKo-Tech/scanbridge/cmd/scanbridge/cmd"
)

func main() {
	cmd.Execute()
}
