package main

import (
	"github.com/joho/godotenv"

	"github.com/MrJamesThe3rd/accountbook/cmd/admin/commands"
)

func main() {
	_ = godotenv.Load()

	commands.Execute()
}
