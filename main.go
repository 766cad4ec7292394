package main

import "manim-service/app"

func main() {
	app.Run()
}
