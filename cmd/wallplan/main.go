package main

import "github.com/MeKo-Tech/wallplan/cmd/wallplan/cmd"

func main() {
	cmd.Execute()
}
