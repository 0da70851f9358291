package main

import (
	_ "go.uber.org/automaxprocs"

	"github.com/rusenback/dockerstats/cmd/dockerstats/cmd"
)

func main() {
	cmd.Execute()
}
