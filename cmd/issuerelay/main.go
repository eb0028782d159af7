// Package main provides the issuerelay server and its operator commands.
package main

import "github.com/mscno/issuerelay/cmd/issuerelay/commands"

func main() {
	commands.Execute(Version)
}
