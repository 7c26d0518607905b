// Package searchcmder provides the search command for looking up speakers
// and faces through a running biosearch API.
package searchcmder

import (
	"context"
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/biosearch/pkg/cliui"
	"github.com/papercomputeco/biosearch/pkg/client"
	"github.com/papercomputeco/biosearch/pkg/config"
	"github.com/papercomputeco/biosearch/pkg/search"
	"github.com/papercomputeco/biosearch/pkg/utils"
)

type searchCommander struct {
	apiTarget string
	topK      int
}

const searchLongDesc string = `Search stored media via the biosearch API.

Requires a running biosearch API server (biosearch serve).

  biosearch search audio <recording>    Find speakers by voice
  biosearch search face <image>         Find images and video frames by face

Examples:
  biosearch search audio query.wav
  biosearch search face me.jpg --top-k 10 --api-target http://localhost:8000`

const searchShortDesc string = "Search by voice or face"

func NewSearchCmd() *cobra.Command {
	cmder := &searchCommander{}

	cmd := &cobra.Command{
		Use:   "search",
		Short: searchShortDesc,
		Long:  searchLongDesc,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return cmder.loadDefaults(cmd)
		},
	}

	cmd.PersistentFlags().StringVarP(&cmder.apiTarget, "api-target", "a", "", "biosearch API server URL")
	cmd.PersistentFlags().IntVarP(&cmder.topK, "top-k", "k", 0, "Number of matches to request")

	cmd.AddCommand(&cobra.Command{
		Use:   "audio <recording>",
		Short: "Find speakers by voice",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.runAudio(cmd.Context(), cmd.OutOrStdout(), args[0])
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "face <image>",
		Short: "Find images and video frames by face",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.runFace(cmd.Context(), cmd.OutOrStdout(), args[0])
		},
	})

	return cmd
}

// loadDefaults fills unset flags from config.toml.
func (c *searchCommander) loadDefaults(cmd *cobra.Command) error {
	configDir, _ := cmd.Flags().GetString("config-dir")
	cfger, err := config.NewConfiger(configDir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	cfg, err := cfger.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if !cmd.Flags().Changed("api-target") {
		c.apiTarget = cfg.Client.APITarget
	}
	if !cmd.Flags().Changed("top-k") {
		c.topK = cfg.Search.TopK
	}
	return nil
}

func (c *searchCommander) runAudio(ctx context.Context, w io.Writer, path string) error {
	cl, err := client.New(c.apiTarget)
	if err != nil {
		return err
	}

	resp, err := cl.SearchAudio(orBackground(ctx), path, c.topK)
	if err != nil {
		return err
	}

	if len(resp.Data.Matches) == 0 {
		fmt.Fprintf(w, "\n  %s\n\n", cliui.DimStyle.Render(resp.Message))
		return nil
	}

	fmt.Fprintf(w, "\n%s %s\n\n", cliui.HeaderStyle.Render("Speakers matching"), cliui.KeyStyle.Render(path))
	for i, m := range resp.Data.Matches {
		fmt.Fprintf(w, "  %s  %s  %s  %s\n",
			cliui.RankStyle.Render(fmt.Sprintf("#%d", i+1)),
			cliui.ValueStyle.Render(m.Speaker),
			cliui.Score(m.Score),
			cliui.DimStyle.Render(utils.Truncate(m.FileName, 40)),
		)
		if m.Link != "" {
			fmt.Fprintf(w, "      %s\n", cliui.DimStyle.Render(m.Link))
		}
	}
	fmt.Fprintln(w)
	return nil
}

func (c *searchCommander) runFace(ctx context.Context, w io.Writer, path string) error {
	cl, err := client.New(c.apiTarget)
	if err != nil {
		return err
	}

	resp, err := cl.SearchFaces(orBackground(ctx), path, c.topK)
	if err != nil {
		return err
	}

	if resp.Data.Empty() {
		fmt.Fprintf(w, "\n  %s\n\n", cliui.DimStyle.Render(resp.Message))
		return nil
	}

	printFaceMatches(w, "Video frames", resp.Data.VideoMatches)
	printFaceMatches(w, "Images", resp.Data.ImageMatches)
	return nil
}

func printFaceMatches(w io.Writer, title string, matches []search.FaceMatch) {
	fmt.Fprintf(w, "\n%s\n\n", cliui.HeaderStyle.Render(title))
	if len(matches) == 0 {
		fmt.Fprintf(w, "  %s\n", cliui.DimStyle.Render("(none)"))
		return
	}

	for i, m := range matches {
		fmt.Fprintf(w, "  %s  %s  %s\n",
			cliui.RankStyle.Render(fmt.Sprintf("#%d", i+1)),
			cliui.Score(m.Score),
			cliui.ValueStyle.Render(m.ID),
		)

		keys := make([]string, 0, len(m.Metadata))
		for k := range m.Metadata {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(w, "      %s %v\n", cliui.KeyStyle.Render(k+":"), m.Metadata[k])
		}
	}
}

func orBackground(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}
