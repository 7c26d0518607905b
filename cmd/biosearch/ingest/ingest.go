// Package ingestcmder provides the ingest command for storing recordings,
// images and videos through a running biosearch API.
package ingestcmder

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/biosearch/pkg/cliui"
	"github.com/papercomputeco/biosearch/pkg/client"
	"github.com/papercomputeco/biosearch/pkg/config"
)

type ingestCommander struct {
	apiTarget string
	speaker   string
}

const ingestLongDesc string = `Ingest media via the biosearch API.

Requires a running biosearch API server (biosearch serve).

  biosearch ingest audio --speaker <name> <recordings...>
  biosearch ingest video <images and videos...>

Examples:
  biosearch ingest audio --speaker alice intro.wav call.mp3
  biosearch ingest video team.jpg standup.mp4`

const ingestShortDesc string = "Ingest recordings, images and videos"

func NewIngestCmd() *cobra.Command {
	cmder := &ingestCommander{}

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: ingestShortDesc,
		Long:  ingestLongDesc,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return cmder.loadDefaults(cmd)
		},
	}

	cmd.PersistentFlags().StringVarP(&cmder.apiTarget, "api-target", "a", "", "biosearch API server URL")

	audio := &cobra.Command{
		Use:   "audio <recordings...>",
		Short: "Store recordings of one speaker",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.runAudio(cmd.Context(), cmd.OutOrStdout(), args)
		},
	}
	audio.Flags().StringVarP(&cmder.speaker, "speaker", "s", "", "Name of the speaker in the recordings")
	_ = audio.MarkFlagRequired("speaker")

	cmd.AddCommand(audio)
	cmd.AddCommand(&cobra.Command{
		Use:   "video <images and videos...>",
		Short: "Store the faces found in images and videos",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.runVideo(cmd.Context(), cmd.OutOrStdout(), args)
		},
	})

	return cmd
}

func (c *ingestCommander) loadDefaults(cmd *cobra.Command) error {
	if cmd.Flags().Changed("api-target") {
		return nil
	}

	configDir, _ := cmd.Flags().GetString("config-dir")
	cfger, err := config.NewConfiger(configDir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	cfg, err := cfger.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	c.apiTarget = cfg.Client.APITarget
	return nil
}

func (c *ingestCommander) runAudio(ctx context.Context, w io.Writer, paths []string) error {
	if c.speaker == "" {
		return errors.New("--speaker is required")
	}

	cl, err := client.New(c.apiTarget)
	if err != nil {
		return err
	}
	if ctx == nil {
		ctx = context.Background()
	}

	var (
		message  string
		ingested []ingestedFile
	)
	err = cliui.Step(w, fmt.Sprintf("Ingesting %d recordings of %s", len(paths), c.speaker), func() error {
		r, err := cl.IngestAudio(ctx, c.speaker, paths)
		if err != nil {
			return err
		}
		message = r.Message
		for _, a := range r.Data {
			ingested = append(ingested, ingestedFile{name: a.FileName, link: a.Link})
		}
		return nil
	})
	if err != nil {
		return err
	}

	printIngested(w, message, ingested)
	return nil
}

func (c *ingestCommander) runVideo(ctx context.Context, w io.Writer, paths []string) error {
	cl, err := client.New(c.apiTarget)
	if err != nil {
		return err
	}
	if ctx == nil {
		ctx = context.Background()
	}

	var (
		message  string
		ingested []ingestedFile
		upserts  int
	)
	err = cliui.Step(w, fmt.Sprintf("Ingesting %d files", len(paths)), func() error {
		r, err := cl.IngestMedia(ctx, paths)
		if err != nil {
			return err
		}
		message = r.Message
		upserts = r.Data.TotalUpserts
		for i, name := range r.Data.IngestedFiles {
			item := ingestedFile{name: name}
			if i < len(r.Data.Links) {
				item.link = r.Data.Links[i]
			}
			ingested = append(ingested, item)
		}
		return nil
	})
	if err != nil {
		return err
	}

	printIngested(w, message, ingested)
	fmt.Fprintf(w, "  %s %d\n\n", cliui.KeyStyle.Render("faces stored:"), upserts)
	return nil
}

type ingestedFile struct {
	name string
	link string
}

func printIngested(w io.Writer, message string, items []ingestedFile) {
	fmt.Fprintf(w, "\n  %s\n\n", cliui.HeaderStyle.Render(message))
	for _, it := range items {
		if it.link == "" {
			fmt.Fprintf(w, "  %s %s\n", cliui.SuccessMark, cliui.ValueStyle.Render(it.name))
			continue
		}
		fmt.Fprintf(w, "  %s %s %s\n", cliui.SuccessMark, cliui.ValueStyle.Render(it.name), cliui.DimStyle.Render(it.link))
	}
	fmt.Fprintln(w)
}
