// Package main provides the voxgate CLI.
//
// Usage:
//
//	voxgate [flags] <command> [args]
//
// Commands:
//
//	serve   - Run the speak gateway (websocket TTS streaming)
//	chat    - Stream a model reply with reasoning separated from text
//	segment - Split stdin text into sentence units
//
// Configuration comes from an optional YAML file (--config), VOXGATE_*
// environment variables, and a .env file in the working directory.
package main

import (
	"fmt"
	"os"

	"github.com/voxgate/voxgate/cmd/voxgate/commands"
	"github.com/voxgate/voxgate/internal/dotenv"
)

func main() {
	if err := dotenv.LoadFile(".env"); err != nil {
		fmt.Fprintln(os.Stderr, "voxgate:", err)
		os.Exit(1)
	}
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "voxgate:", err)
		os.Exit(1)
	}
}
