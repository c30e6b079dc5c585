package main

import "LocalFM/cmd"

func main() {
	cmd.Execute()
}
