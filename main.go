package main

import "relun-backend/cmd"

func main() {
	cmd.Run()
}
