package commands

import (
	"fmt"

	"github.com/mscno/issuerelay/pkg/session"
	"github.com/mscno/issuerelay/pkg/steam"
)

type TokenCmd struct {
	Mint   TokenMintCmd   `cmd:"" help:"Print the session token for a Steam id"`
	Verify TokenVerifyCmd `cmd:"" help:"Check that a session token belongs to a Steam id"`
}

type TokenMintCmd struct {
	SteamID       string `name:"steam-id" required:"" help:"SteamID64 to mint the token for"`
	SessionSecret string `name:"session-secret" env:"SESSION_SECRET" help:"Secret used to sign session tokens"`
}

func (c *TokenMintCmd) Run(ctx *cliCtx) error {
	if _, ok := steam.ParseClaimedID("https://steamcommunity.com/openid/id/" + c.SteamID); !ok {
		ctx.Logger.Warn("steam id is not a 17 digit SteamID64", "steam_id", c.SteamID)
	}
	token, err := session.Mint(c.SteamID, c.SessionSecret)
	if err != nil {
		return err
	}
	ctx.Logger.Debug("minted session token", "steam_id", c.SteamID, "token", token)
	fmt.Println(string(token))
	return nil
}

type TokenVerifyCmd struct {
	SteamID       string `name:"steam-id" required:"" help:"SteamID64 the token claims"`
	Token         string `arg:"" help:"Session token to check"`
	SessionSecret string `name:"session-secret" env:"SESSION_SECRET" help:"Secret used to sign session tokens"`
}

func (c *TokenVerifyCmd) Run(ctx *cliCtx) error {
	if err := session.Verify(c.SteamID, c.Token, c.SessionSecret); err != nil {
		return err
	}
	fmt.Println("valid")
	return nil
}
