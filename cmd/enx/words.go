package main

import (
	"fmt"
	"strings"

	"github.com/k3a/html2text"
	"github.com/spf13/cobra"
	"golang.org/x/net/html"

	"github.com/japaniel/enx/pkg/apperrors"
	"github.com/japaniel/enx/pkg/familiarity"
	"github.com/japaniel/enx/pkg/overlay"
)

func newTranslateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "translate WORD...",
		Short: "Look words up and count the lookups",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTranslate(cmd, a, args)
		},
	}
}

func runTranslate(cmd *cobra.Command, a *app, words []string) error {
	ctx := cmd.Context()
	o, err := a.detachedOverlay(cmd)
	if err != nil {
		return err
	}

	failed := 0
	var expired error
	for _, res := range o.LookupWords(ctx, words) {
		if res.Err != nil {
			failed++
			if apperrors.IsSessionExpired(res.Err) {
				expired = res.Err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "%s: %s\n", res.Word, apperrors.PublicMessage(res.Err))
			continue
		}
		fmt.Fprintln(cmd.OutOrStdout(), formatRecord(res.Record))
	}
	if expired != nil {
		return fmt.Errorf("%s Run `enx login` and try again", apperrors.PublicMessage(expired))
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d lookups failed", failed, len(words))
	}
	return nil
}

// formatRecord prints one record on a line. Backends may send the gloss as
// markup; it is flattened to text.
func formatRecord(rec *familiarity.WordRecord) string {
	var b strings.Builder
	b.WriteString(rec.Key)
	if rec.Pronunciation != "" {
		fmt.Fprintf(&b, " [%s]", rec.Pronunciation)
	}
	if gloss := strings.TrimSpace(html2text.HTML2Text(rec.Translation)); gloss != "" {
		b.WriteString("  ")
		b.WriteString(strings.Join(strings.Fields(gloss), " "))
	}
	switch {
	case rec.Acquainted:
		b.WriteString("  (known)")
	case rec.Class == familiarity.ClassFunctional:
		b.WriteString("  (function word)")
	default:
		fmt.Fprintf(&b, "  (looked up %d times)", rec.LookupCount)
	}
	return b.String()
}

func newMarkCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "mark WORD",
		Short: "Mark a word as known so it is no longer highlighted",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			o, err := a.detachedOverlay(cmd)
			if err != nil {
				return err
			}
			if _, err := o.MarkKnown(cmd.Context(), args[0]); err != nil {
				if apperrors.IsSessionExpired(err) {
					return fmt.Errorf("%s Run `enx login` and try again", apperrors.PublicMessage(err))
				}
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Marked %q as known.\n", args[0])
			return nil
		},
	}
}

// detachedOverlay serves word commands that have no document: it still
// merges records and feeds the word cache.
func (a *app) detachedOverlay(cmd *cobra.Command) (*overlay.Overlay, error) {
	client, err := a.client(cmd.Context())
	if err != nil {
		return nil, err
	}
	rec, err := a.recorderFor()
	if err != nil {
		return nil, err
	}
	doc, err := html.Parse(strings.NewReader(""))
	if err != nil {
		return nil, err
	}
	return overlay.New(doc, overlay.Options{
		API:     client,
		Sink:    rec,
		Workers: a.cfg.Annotate.Workers,
		Logger:  a.log,
		Metrics: a.metrics,
	})
}

func newEnrichCmd(a *app) *cobra.Command {
	var dict string
	cmd := &cobra.Command{
		Use:   "enrich",
		Short: "Fill missing translations in the word cache from a word list",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			idx, err := loadIndex(dict)
			if err != nil {
				return err
			}
			conn, err := a.db()
			if err != nil {
				return err
			}
			n, err := idx.Enrich(conn)
			if err != nil {
				return fmt.Errorf("failed to update translations: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated translations for %d words.\n", n)
			return nil
		},
	}
	cmd.Flags().StringVar(&dict, "dict", "", "JSON word list to use besides the built-in one")
	return cmd
}
