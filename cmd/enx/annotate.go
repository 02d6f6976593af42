package main

import (
	"bytes"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"golang.org/x/net/html"

	"github.com/japaniel/enx/pkg/annotate"
	"github.com/japaniel/enx/pkg/apperrors"
	"github.com/japaniel/enx/pkg/db"
	"github.com/japaniel/enx/pkg/dictionary"
	"github.com/japaniel/enx/pkg/overlay"
	"github.com/japaniel/enx/pkg/tokenize"
)

type annotateOptions struct {
	url      string
	out      string
	noRecord bool
}

func newAnnotateCmd(a *app) *cobra.Command {
	opts := annotateOptions{}
	cmd := &cobra.Command{
		Use:   "annotate [FILE]",
		Short: "Color every word of an article by how often it was looked up",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnnotate(cmd, a, args, &opts)
		},
	}
	cmd.Flags().StringVar(&opts.url, "url", "", "Fetch the article from this URL instead of a file")
	cmd.Flags().StringVarP(&opts.out, "out", "o", "", "Write annotated HTML here (default stdout)")
	cmd.Flags().BoolVar(&opts.noRecord, "no-record", false, "Do not write results to the word cache")
	return cmd
}

func runAnnotate(cmd *cobra.Command, a *app, args []string, opts *annotateOptions) error {
	ctx := cmd.Context()
	path := ""
	if len(args) == 1 {
		path = args[0]
	}
	if path != "" && opts.url != "" {
		return fmt.Errorf("give either FILE or --url, not both")
	}

	body, pageURL, err := readInput(ctx, cmd.InOrStdin(), path, opts.url)
	if err != nil {
		return err
	}
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to parse HTML: %w", err)
	}

	client, err := a.client(ctx)
	if err != nil {
		return err
	}
	ov := overlay.Options{
		API:        client,
		ChunkWords: a.cfg.Annotate.ChunkWords,
		ChunkBytes: a.cfg.Annotate.ChunkBytes,
		Workers:    a.cfg.Annotate.Workers,
		Logger:     a.log,
		Metrics:    a.metrics,
	}
	if !opts.noRecord {
		rec, err := a.recorderFor()
		if err != nil {
			return err
		}
		ov.Sink = rec
		ov.Page = a.pageInfo(body, pageURL)
	}
	o, err := overlay.New(doc, ov)
	if err != nil {
		return err
	}

	rep, runErr := o.Enable(ctx)
	if runErr != nil && !apperrors.IsSessionExpired(runErr) {
		return runErr
	}
	// Partial annotations are still worth writing out.
	if err := writeOutput(cmd.OutOrStdout(), opts.out, o.Render); err != nil {
		return err
	}

	if rep.NoArticle {
		fmt.Fprintln(cmd.ErrOrStderr(), "No article found; document left unchanged.")
	} else {
		fmt.Fprintf(cmd.ErrOrStderr(), "Annotated %d spans over %d words (%d chunks, %d failed).\n",
			rep.Spans, rep.Words, rep.Chunks, rep.FailedChunks)
	}
	if runErr != nil {
		return fmt.Errorf("%s Run `enx login` and try again", apperrors.PublicMessage(runErr))
	}
	return nil
}

func newStripCmd(a *app) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "strip [FILE]",
		Short: "Remove annotations from previously annotated HTML",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) == 1 {
				path = args[0]
			}
			body, _, err := readInput(cmd.Context(), cmd.InOrStdin(), path, "")
			if err != nil {
				return err
			}
			stripped := annotate.Strip(string(body))
			return writeOutput(cmd.OutOrStdout(), out, func(w io.Writer) error {
				_, err := io.WriteString(w, stripped)
				return err
			})
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "Write HTML here (default stdout)")
	return cmd
}

type renderOptions struct {
	dict string
	out  string
}

func newRenderCmd(a *app) *cobra.Command {
	opts := renderOptions{}
	cmd := &cobra.Command{
		Use:   "render [FILE]",
		Short: "Annotate offline from the word cache and a local word list",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRender(cmd, a, args, &opts)
		},
	}
	cmd.Flags().StringVar(&opts.dict, "dict", "", "JSON word list to use besides the built-in one")
	cmd.Flags().StringVarP(&opts.out, "out", "o", "", "Write annotated HTML here (default stdout)")
	return cmd
}

// runRender needs no backend: cached records carry counts, the word list
// fills in words never classified.
func runRender(cmd *cobra.Command, a *app, args []string, opts *renderOptions) error {
	path := ""
	if len(args) == 1 {
		path = args[0]
	}
	body, _, err := readInput(cmd.Context(), cmd.InOrStdin(), path, "")
	if err != nil {
		return err
	}
	idx, err := loadIndex(opts.dict)
	if err != nil {
		return err
	}
	conn, err := a.db()
	if err != nil {
		return err
	}

	markup := string(body)
	dict := make(annotate.Dictionary)
	for _, w := range tokenize.Distinct(tokenize.ExtractWords(tokenize.StripMarkup(markup))) {
		if rec, err := db.GetWord(conn, w); err != nil {
			return err
		} else if rec != nil {
			dict[w] = rec
			continue
		}
		if _, ok := idx.Lookup(w); ok {
			dict[w] = idx.Record(w)
		}
	}
	a.log.Debug("offline dictionary built", "words", len(dict))

	rendered := annotate.Render(markup, dict)
	return writeOutput(cmd.OutOrStdout(), opts.out, func(w io.Writer) error {
		_, err := io.WriteString(w, rendered)
		return err
	})
}

// loadIndex builds the built-in word list, extended by path when given.
func loadIndex(path string) (*dictionary.Index, error) {
	if path == "" {
		return dictionary.NewIndex(dictionary.Seed()), nil
	}
	entries, err := dictionary.LoadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load word list: %w", err)
	}
	return dictionary.NewIndex(dictionary.Seed(), entries), nil
}
