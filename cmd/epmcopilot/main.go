package main

import "github.com/cleitonmarx/epm-copilot/internal/app"

func main() {
	err := app.NewCopilotApp().
		Run()
	if err != nil {
		panic(err)
	}
}
