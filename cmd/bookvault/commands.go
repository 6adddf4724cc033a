package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/veranemoloko/bookvault/internal/domain"
)

func newDownloadCmd(opts *rootOptions) *cobra.Command {
	var noSkip bool

	cmd := &cobra.Command{
		Use:   "download <workID>",
		Short: "Archive a work and wait until it finishes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			a, err := newApp(opts, os.Stderr)
			if err != nil {
				return err
			}
			defer a.close()

			rootURL, err := a.resolveAPIRoot(ctx)
			if err != nil {
				return err
			}
			a.connect(rootURL)

			workID := args[0]
			result, err := a.archive.RequestDownload(workID, !noSkip)
			if err != nil {
				return err
			}
			if !result.Accepted {
				return fmt.Errorf("work %s is already downloading", workID)
			}

			stop := make(chan struct{})
			stopped := make(chan struct{})
			go func() {
				defer close(stopped)
				ticker := time.NewTicker(progressInterval)
				defer ticker.Stop()
				last := -1
				for {
					select {
					case <-stop:
						return
					case <-ticker.C:
						snap, err := a.archive.GetTask(workID)
						if err != nil || snap.DownloadedChapters == last {
							continue
						}
						last = snap.DownloadedChapters
						fmt.Fprintf(out, "%s: %d/%d chapters (%d%%)\n",
							snap.DisplayTitle, snap.DownloadedChapters, snap.TotalChapters, snap.Progress)
					}
				}
			}()

			snap, err := a.archive.Wait(ctx, workID)
			close(stop)
			<-stopped
			if err != nil {
				return err
			}

			if snap.Status == domain.TaskStatusFailed {
				return fmt.Errorf("download failed: %s", derefOr(snap.Error, "unknown error"))
			}
			fmt.Fprintf(out, "%s: %s, %d/%d chapters in %s\n",
				snap.DisplayTitle, snap.Status, snap.DownloadedChapters, snap.TotalChapters, snap.Path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&noSkip, "no-skip", false, "re-fetch chapters that are already stored")
	return cmd
}

func newSyncCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Synchronize the local resource cache with the remote manifest",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(opts, os.Stderr)
			if err != nil {
				return err
			}
			defer a.close()

			report, err := a.resources.Sync(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd, report)
		},
	}
}

func newListCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List archived works",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(opts, os.Stderr)
			if err != nil {
				return err
			}
			defer a.close()
			a.connect(a.cfg.APIRootURL)

			ids, err := a.archive.ListArchivedWorkIDs()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "archive: %s\n", a.archive.ArchiveRoot())
			for _, id := range ids {
				work, err := a.archive.WorkMetadata(id)
				if err != nil {
					continue
				}
				fmt.Fprintf(out, "%s\t%s\t%s\t%d chapters\n", id, work.Title, work.Author, len(work.Chapters))
			}
			return nil
		},
	}
}

func newReadCmd(opts *rootOptions) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "read <workID> <chapterID>",
		Short: "Print a stored chapter",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(opts, os.Stderr)
			if err != nil {
				return err
			}
			defer a.close()
			a.connect(a.cfg.APIRootURL)

			view, err := a.archive.Chapter(args[0], args[1])
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(cmd, view)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s\n\n%s\n\n", view.Title, view.Content)
			fmt.Fprintf(out, "prev: %s  next: %s\n", derefOr(view.Previous, "-"), derefOr(view.Next, "-"))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the chapter as JSON")
	return cmd
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func derefOr(s *string, fallback string) string {
	if s == nil {
		return fallback
	}
	return *s
}
