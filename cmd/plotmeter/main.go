package main

import "github.com/MeKo-Tech/plotmeter/cmd/plotmeter/cmd"

func main() {
	cmd.Execute()
}
