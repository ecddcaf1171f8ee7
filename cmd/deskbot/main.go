package main

import (
	"fmt"
	"os"

	"github.com/hitoshi/deskbot/internal/app"
	"github.com/joho/godotenv"
)

func main() {
	// .envが無い環境（コンテナ等）では環境変数のみを使う
	_ = godotenv.Load()

	if err := app.Run(os.Stdout, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "deskbot: %v\n", err)
		os.Exit(1)
	}
}
