package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	gojson "github.com/goccy/go-json"
	"github.com/hupe1980/redline"
	"github.com/hupe1980/redline/model"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// app carries the state shared by all subcommands of one invocation.
type app struct {
	configPath string
	backend    string
	root       string
	logLevel   string

	cfg   Config
	store *redline.Store
	close closer
}

func newRootCmd() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:           "redline",
		Short:         "Concurrently redline and search text documents",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if a.close != nil {
				return a.close()
			}
			return nil
		},
	}
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&a.configPath, "config", "c", "", "path to a YAML config file")
	flags.StringVar(&a.backend, "backend", "", "blob store backend (memory, local, s3, s3+dynamodb, minio, gcs, badger)")
	flags.StringVar(&a.root, "root", "", "root directory of the local backend")
	flags.StringVar(&a.logLevel, "log-level", "", "log level (debug, info, warn, error)")

	rootCmd.AddCommand(
		a.createCmd(),
		a.getCmd(),
		a.listCmd(),
		a.appendCmd(),
		a.updateCmd(),
		a.deleteCmd(),
		a.redlineCmd(),
		a.searchCmd(),
		a.locksCmd(),
		a.configCmd(),
	)
	return rootCmd
}

// load resolves the configuration and, except for config commands, opens
// the store.
func (a *app) load(cmd *cobra.Command) error {
	cfg, err := LoadConfig(a.configPath)
	if err != nil {
		return err
	}
	if a.backend != "" {
		cfg.Backend = a.backend
	}
	if a.root != "" {
		cfg.Local.Root = a.root
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	a.cfg = cfg

	if cmd.Annotations["store"] == "none" {
		return nil
	}

	opts, err := cfg.storeOptions()
	if err != nil {
		return err
	}
	blobs, closeFn, err := openBackend(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	a.store = redline.New(blobs, opts...)
	a.close = closeFn
	return nil
}

func printJSON(w io.Writer, v any) error {
	data, err := gojson.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

// textArg returns the text argument, reading stdin for "-".
func textArg(cmd *cobra.Command, arg string) (string, error) {
	if arg != "-" {
		return arg, nil
	}
	data, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (a *app) createCmd() *cobra.Command {
	var title string
	cmd := &cobra.Command{
		Use:   "create [text|-]",
		Short: "Create a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := textArg(cmd, args[0])
			if err != nil {
				return err
			}
			doc, err := a.store.Create(cmd.Context(), title, text)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), doc)
		},
	}
	cmd.Flags().StringVarP(&title, "title", "t", "", "document title")
	return cmd
}

func (a *app) getCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Print a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := a.store.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), doc)
		},
	}
}

func (a *app) listCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List document ids",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := a.store.List(cmd.Context())
			if err != nil {
				return err
			}
			for _, id := range ids {
				fmt.Fprintln(cmd.OutOrStdout(), id)
			}
			return nil
		},
	}
}

func (a *app) appendCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "append <id> <text|->",
		Short: "Append text to a document",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := textArg(cmd, args[1])
			if err != nil {
				return err
			}
			doc, err := a.store.Append(cmd.Context(), args[0], text)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), doc)
		},
	}
}

func (a *app) updateCmd() *cobra.Command {
	var title string
	cmd := &cobra.Command{
		Use:   "update <id> <text|->",
		Short: "Replace the title and text of a document",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := textArg(cmd, args[1])
			if err != nil {
				return err
			}
			doc, err := a.store.Update(cmd.Context(), args[0], title, text)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), doc)
		},
	}
	cmd.Flags().StringVarP(&title, "title", "t", "", "new title")
	return cmd
}

func (a *app) deleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.store.Delete(cmd.Context(), args[0])
		},
	}
}

// outcomeView is the printable form of a redline.Outcome.
type outcomeView struct {
	DocumentID string       `json:"document_id"`
	Kind       redline.Kind `json:"kind"`
	Version    int64        `json:"version,omitempty"`
	Matches    int          `json:"matches,omitempty"`
	Error      string       `json:"error,omitempty"`
}

type batchView struct {
	Outcomes  []outcomeView     `json:"outcomes"`
	Documents []*model.Document `json:"documents"`
}

func newBatchView(res *redline.BatchResult) batchView {
	v := batchView{
		Outcomes:  make([]outcomeView, len(res.Outcomes)),
		Documents: res.Documents,
	}
	for i, o := range res.Outcomes {
		v.Outcomes[i] = outcomeView{
			DocumentID: o.DocumentID,
			Kind:       o.Kind,
			Version:    o.Version,
			Matches:    o.Matches,
		}
		if o.Err != nil {
			v.Outcomes[i].Error = o.Err.Error()
		}
	}
	return v
}

func readEdits(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := gojson.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

func (a *app) redlineCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "redline",
		Short: "Apply batches of range or target edits",
	}

	var rangeFile string
	rangeCmd := &cobra.Command{
		Use:   "range [<id> <start> <end> <replacement>]",
		Short: "Replace code point ranges",
		Long: `Replace code point ranges [start, end).
Either give one edit as arguments or a JSON array of
{"document_id", "start", "end", "replacement"} objects with --edits.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var edits []model.RangeEdit
			switch {
			case rangeFile != "" && len(args) == 0:
				if err := readEdits(rangeFile, &edits); err != nil {
					return err
				}
			case rangeFile == "" && len(args) == 4:
				start, err := strconv.Atoi(args[1])
				if err != nil {
					return fmt.Errorf("start: %w", err)
				}
				end, err := strconv.Atoi(args[2])
				if err != nil {
					return fmt.Errorf("end: %w", err)
				}
				edits = []model.RangeEdit{{DocumentID: args[0], Start: start, End: end, Replacement: args[3]}}
			default:
				return fmt.Errorf("need either --edits or <id> <start> <end> <replacement>")
			}
			res, err := a.store.RedlineRange(cmd.Context(), edits)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), newBatchView(res))
		},
	}
	rangeCmd.Flags().StringVar(&rangeFile, "edits", "", "JSON file with range edits")

	var targetFile string
	targetCmd := &cobra.Command{
		Use:   "target [<id> <target> <occurrence> <replacement>]",
		Short: "Replace the n-th occurrence of a target text",
		Long: `Replace the n-th (1-based) non-overlapping occurrence of a target text.
Either give one edit as arguments or a JSON array of
{"document_id", "target", "occurrence", "replacement"} objects with --edits.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var edits []model.TargetEdit
			switch {
			case targetFile != "" && len(args) == 0:
				if err := readEdits(targetFile, &edits); err != nil {
					return err
				}
			case targetFile == "" && len(args) == 4:
				occurrence, err := strconv.Atoi(args[2])
				if err != nil {
					return fmt.Errorf("occurrence: %w", err)
				}
				edits = []model.TargetEdit{{DocumentID: args[0], Target: args[1], Occurrence: occurrence, Replacement: args[3]}}
			default:
				return fmt.Errorf("need either --edits or <id> <target> <occurrence> <replacement>")
			}
			res, err := a.store.RedlineTarget(cmd.Context(), edits)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), newBatchView(res))
		},
	}
	targetCmd.Flags().StringVar(&targetFile, "edits", "", "JSON file with target edits")

	cmd.AddCommand(rangeCmd, targetCmd)
	return cmd
}

func (a *app) searchCmd() *cobra.Command {
	var (
		limit     int
		offset    int
		buffer    int
		relevance bool
		document  string
	)
	defaults := model.DefaultSearchOptions()

	cmd := &cobra.Command{
		Use:   "search <query...>",
		Short: "Search all documents, or one with --document",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			opts := []model.SearchOption{
				model.WithLimit(limit),
				model.WithOffset(offset),
				model.WithBuffer(buffer),
			}
			if relevance {
				opts = append(opts, model.WithRank(model.RankRelevance))
			}

			var (
				hits []model.SearchHit
				err  error
			)
			if document != "" {
				hits, err = a.store.SearchDocument(cmd.Context(), document, query, opts...)
			} else {
				hits, err = a.store.Search(cmd.Context(), query, opts...)
			}
			if err != nil {
				return err
			}
			if hits == nil {
				hits = []model.SearchHit{}
			}
			return printJSON(cmd.OutOrStdout(), hits)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", defaults.Limit, "maximum number of hits")
	cmd.Flags().IntVar(&offset, "offset", defaults.Offset, "number of hits to skip")
	cmd.Flags().IntVarP(&buffer, "buffer", "b", defaults.Buffer, "code points of context on each side")
	cmd.Flags().BoolVar(&relevance, "relevance", false, "rank documents by BM25 relevance")
	cmd.Flags().StringVarP(&document, "document", "d", "", "search a single document")
	return cmd
}

func (a *app) locksCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "locks",
		Short: "Maintain lock tokens",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "sweep",
		Short: "Remove expired lock tokens left by crashed holders",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := a.store.SweepLocks(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %d expired lock(s)\n", n)
			return nil
		},
	})
	return cmd
}

func (a *app) configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the configuration",
	}
	cmd.AddCommand(&cobra.Command{
		Use:         "show",
		Short:       "Print the effective configuration as YAML",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{"store": "none"},
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := yaml.Marshal(a.cfg)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	})
	return cmd
}
