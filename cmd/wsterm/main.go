package main

import (
	"runtime/debug"

	"github.com/GiGurra/boa/pkg/boa"
	"github.com/gigurra/wsterm/cmd/connect"
	"github.com/gigurra/wsterm/cmd/serve"
	"github.com/spf13/cobra"
)

// Command group IDs
const (
	groupClient = "client"
	groupServer = "server"
)

// withGroup sets the GroupID on a command and returns it
func withGroup(cmd *cobra.Command, group string) *cobra.Command {
	cmd.GroupID = group
	return cmd
}

func main() {
	boa.CmdT[boa.NoParams]{
		Use:     "wsterm",
		Short:   "Remote shells over websocket terminals",
		Version: appVersion(),
		Groups: []*cobra.Group{
			{ID: groupClient, Title: "Client:"},
			{ID: groupServer, Title: "Server:"},
		},
		SubCmds: []*cobra.Command{
			withGroup(connect.Cmd(), groupClient),
			withGroup(serve.Cmd(), groupServer),
		},
	}.Run()
}

func appVersion() string {
	bi, hasBuilInfo := debug.ReadBuildInfo()
	if !hasBuilInfo {
		return "unknown-(no build info)"
	}

	versionString := bi.Main.Version
	if versionString == "" {
		versionString = "unknown-(no version)"
	}

	return versionString
}
