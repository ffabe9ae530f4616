package main

import "github.com/frahmantamala/leaf/cmd"

func main() {
	cmd.Execute()
}
