package commands

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"
)

// EnvFileVar names the dotenv file loaded before flags and environment are read.
const EnvFileVar = "ISSUERELAY_ENV_FILE"

type cliCtx struct {
	context.Context
	Logger *slog.Logger
}

type cli struct {
	Serve   ServeCmd         `cmd:"" help:"Run the relay"`
	Token   TokenCmd         `cmd:"" help:"Mint or verify session tokens"`
	Version kong.VersionFlag `help:"Show version"`
}

func Execute(version string) {
	if err := loadEnvFile(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	var cli cli
	ctx := kong.Parse(&cli,
		kong.UsageOnError(),
		kong.Name("issuerelay"),
		kong.Description("issuerelay signs players in with Steam and files their GitHub issues"),
		kong.Vars{"version": version},
	)

	err := ctx.Run(&cliCtx{Context: context.Background(), Logger: slog.Default()})
	ctx.FatalIfErrorf(err)
}

// loadEnvFile loads .env, or the file named by ISSUERELAY_ENV_FILE, without
// overriding variables already set. A missing file is not an error.
func loadEnvFile() error {
	name := os.Getenv(EnvFileVar)
	if name == "" {
		name = ".env"
	}
	if err := godotenv.Load(name); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("loading %s: %w", name, err)
	}
	return nil
}
