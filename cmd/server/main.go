package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/kong"
	"github.com/fatih/color"
	"github.com/joho/godotenv"
)

var version = "dev"

// Globals are flags shared by every command.
type Globals struct {
	Config string `short:"c" type:"path" env:"CONFIG_PATH" help:"Path to the TOML config file"`
}

type CLI struct {
	Globals

	Version   kong.VersionFlag `help:"Show version information"`
	Serve     ServeCmd         `cmd:"" default:"1" help:"Run the capture endpoint and the source poller"`
	PollOnce  PollOnceCmd      `cmd:"" name:"poll-once" help:"Poll every source once and exit"`
	Capture   CaptureCmd       `cmd:"" help:"Run one text or URL through the pipeline"`
	Checklist ChecklistCmd     `cmd:"" help:"Print the grocery checklist projected from the graph"`
}

func main() {
	if err := godotenv.Load(); err != nil {
		fmt.Fprintln(os.Stderr, "No .env file found, using defaults")
	}

	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("second-brain"),
		kong.Description("Captures groceries from reminders, notes and web pages into a knowledge graph"),
		kong.UsageOnError(),
		kong.Vars{"version": version},
	)
	if err := ctx.Run(&cli.Globals); err != nil {
		color.Red("✗ %v", err)
		os.Exit(1)
	}
}
