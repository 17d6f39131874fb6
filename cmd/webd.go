/*
Copyright © 2024 NAME HERE <EMAIL ADDRESS>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"log"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/drivelab/drived/common"
	"github.com/drivelab/drived/daemon/webd"
	"github.com/drivelab/drived/params"
)

var optHTTPAddr string
var optDataDir string

// webdCmd represents the serve command
var webdCmd = &cobra.Command{
	Use:   "webd",
	Short: "Start the ingest webserver",
	Long: `Serves the sample ingest API and the live event websocket.

Recording clients POST sample batches to /ingest (token-authenticated via
the DRIVED_TOKEN environment variable); dashboards connect to /live and
read /last, /counters/{participant}, /stats/{participant}.`,
	Run: func(cmd *cobra.Command, args []string) {
		setDefaultSlog(cmd, args)
		slog.Info("webd.Run")
		server, err := webd.NewWebDaemon(&params.WebDaemonConfig{
			DataDir: optDataDir,
			ListenerConfig: params.ListenerConfig{
				Address: optHTTPAddr,
				Network: "tcp",
			},
			TokenEnv: params.DefaultWebDaemonConfig().TokenEnv,
		})
		if err != nil {
			log.Fatalln(err)
		}

		go func() {
			if err := server.Run(); err != nil {
				log.Fatalln(err)
			}
		}()
		sig := <-common.Interrupted()
		slog.Info("webd interrupted", "signal", sig)
		server.Close()
	},
}

func init() {
	rootCmd.AddCommand(webdCmd)

	defaults := params.DefaultWebDaemonConfig()

	pFlags := webdCmd.PersistentFlags()
	pFlags.StringVar(&optHTTPAddr, "address", defaults.Address, "HTTP address to listen on")
	pFlags.StringVar(&optDataDir, "datadir", defaults.DataDir, "Participant session data directory")
}
