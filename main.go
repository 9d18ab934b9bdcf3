package main

import "ImageToVideo-server/cli"

func main() {
	cli.Execute()
}
