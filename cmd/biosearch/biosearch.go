// Package biosearchcmder
package biosearchcmder

import (
	"github.com/spf13/cobra"

	configcmder "github.com/papercomputeco/biosearch/cmd/biosearch/config"
	ingestcmder "github.com/papercomputeco/biosearch/cmd/biosearch/ingest"
	initcmder "github.com/papercomputeco/biosearch/cmd/biosearch/init"
	searchcmder "github.com/papercomputeco/biosearch/cmd/biosearch/search"
	servecmder "github.com/papercomputeco/biosearch/cmd/biosearch/serve"
	versioncmder "github.com/papercomputeco/biosearch/cmd/version"
)

const biosearchLongDesc string = `Biosearch finds people in media by voice and by face.

Run the server using:
  biosearch serve                     Run the API server

Talk to a running server using:
  biosearch ingest audio --speaker alice a.wav b.wav
  biosearch ingest video me.jpg clip.mp4
  biosearch search audio query.wav
  biosearch search face query.jpg`

const biosearchShortDesc string = "Biosearch - speaker and face search"

func NewBiosearchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "biosearch",
		Short:        biosearchShortDesc,
		Long:         biosearchLongDesc,
		SilenceUsage: true,
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Override the .biosearch/ directory")

	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(initcmder.NewInitCmd())
	cmd.AddCommand(searchcmder.NewSearchCmd())
	cmd.AddCommand(ingestcmder.NewIngestCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
