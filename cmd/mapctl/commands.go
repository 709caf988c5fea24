package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/couchcryptid/insurance-maps/internal/catalog"
	"github.com/couchcryptid/insurance-maps/internal/csvio"
	"github.com/couchcryptid/insurance-maps/internal/domain"
	"github.com/couchcryptid/insurance-maps/internal/ingest"
	"github.com/couchcryptid/insurance-maps/internal/render"
	"github.com/couchcryptid/insurance-maps/internal/storage"
	"github.com/couchcryptid/insurance-maps/internal/svgmap"
	"github.com/spf13/cobra"
)

var errIncomplete = errors.New("dataset is missing states")

func (a *app) importCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <trade> <file.csv>",
		Short: `Replace a trade's dataset with a CSV file ("-" reads stdin)`,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, closeFn, err := openInput(cmd, args[1])
			if err != nil {
				return err
			}
			defer closeFn()

			return a.withImporter(cmd.Context(), func(im *ingest.Importer) error {
				res, err := im.Import(cmd.Context(), args[0], r)
				if err != nil {
					return err
				}
				fmt.Fprintf(a.out, "imported %s: %d states, class codes %s\n",
					res.Trade, res.Rows, strings.Join(res.ClassCodes, ", "))
				if len(res.Missing) > 0 {
					fmt.Fprintf(a.out, "missing %d states: %s\n", len(res.Missing), joinCodes(res.Missing))
				}
				return nil
			})
		},
	}
}

func (a *app) exportCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "export <trade>",
		Short: "Write a trade's dataset as CSV",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			trade, err := domain.ParseTrade(args[0])
			if err != nil {
				return err
			}
			return a.withStore(cmd.Context(), func(st storage.Store) error {
				ds, err := st.Get(cmd.Context(), trade)
				if err != nil {
					return err
				}
				return a.writeOutput(output, func(w io.Writer) error {
					return csvio.Write(w, ds)
				})
			})
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (stdout when empty)")
	return cmd
}

func (a *app) deleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <trade>",
		Short: "Remove a trade's dataset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			trade, err := domain.ParseTrade(args[0])
			if err != nil {
				return err
			}
			return a.withImporter(cmd.Context(), func(im *ingest.Importer) error {
				n, err := im.Delete(cmd.Context(), trade)
				if err != nil {
					return err
				}
				fmt.Fprintf(a.out, "deleted %s (%d states)\n", trade, n)
				return nil
			})
		},
	}
}

func (a *app) tradesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "trades",
		Short: "List stored trades",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withStore(cmd.Context(), func(st storage.Store) error {
				summaries, err := st.List(cmd.Context())
				if err != nil {
					return err
				}
				tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "TRADE\tSTATES\tCLASS CODES\tUPDATED")
				for _, s := range summaries {
					fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n",
						s.Trade, s.States, strings.Join(s.ClassCodes, ","), s.UpdatedAt.Format("2006-01-02 15:04"))
				}
				return tw.Flush()
			})
		},
	}
}

func (a *app) validateCmd() *cobra.Command {
	var tradeName string
	cmd := &cobra.Command{
		Use:   "validate <file.csv>",
		Short: "Check a CSV file without importing it",
		Long: "Parses the file with the same rules as an import and reports " +
			"missing states and suspicious rows. Exits non-zero when the file " +
			"is invalid or any state is missing.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := tradeName
			if name == "" {
				name = strings.TrimSuffix(filepath.Base(args[0]), filepath.Ext(args[0]))
			}
			trade, err := domain.ParseTrade(name)
			if err != nil {
				return fmt.Errorf("%w (pass --trade)", err)
			}

			r, closeFn, err := openInput(cmd, args[0])
			if err != nil {
				return err
			}
			defer closeFn()

			ds, err := csvio.Parse(r, trade)
			if err != nil {
				fmt.Fprintf(a.out, "FAIL: %v\n", err)
				return err
			}
			report := csvio.Check(ds)
			report.Print(a.out)
			if !report.Complete() {
				return errIncomplete
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&tradeName, "trade", "", "trade name (defaults to the file name)")
	return cmd
}

func (a *app) renderCmd() *cobra.Command {
	var (
		metricID string
		class    string
		state    string
		output   string
		asJSON   bool
	)
	cmd := &cobra.Command{
		Use:   "render <trade>",
		Short: "Render a trade's map page as static HTML",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			trade, err := domain.ParseTrade(args[0])
			if err != nil {
				return err
			}
			m, err := domain.ParseMetric(metricID, class)
			if err != nil {
				return err
			}
			var selected domain.StateCode
			if state != "" {
				code, ok := domain.ParseStateCode(state)
				if !ok {
					return fmt.Errorf("unknown state %q", state)
				}
				selected = code
			}

			cfg := a.config()
			cat, err := catalog.Load(cfg.CatalogPath)
			if err != nil {
				return err
			}
			svg, err := svgmap.Load(cfg.SVGPath)
			if err != nil {
				return err
			}
			pages, err := render.New(svg, cat, 0, a.metrics)
			if err != nil {
				return err
			}

			return a.withStore(cmd.Context(), func(st storage.Store) error {
				ds, err := st.Get(cmd.Context(), trade)
				if err != nil {
					return err
				}
				if asJSON {
					snap, err := pages.Snapshot(ds, m, selected)
					if err != nil {
						return err
					}
					return a.writeOutput(output, func(w io.Writer) error {
						enc := json.NewEncoder(w)
						enc.SetIndent("", "  ")
						return enc.Encode(snap)
					})
				}
				page, err := pages.Page(ds, m, selected)
				if err != nil {
					return err
				}
				return a.writeOutput(output, func(w io.Writer) error {
					_, err := w.Write(page)
					return err
				})
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&metricID, "metric", domain.DefaultMetric.ID(), "metric id (premiumPct, savingsPct, competitiveness, wcRate<class>)")
	f.StringVar(&class, "class", "", "WC class code when --metric is wcRate")
	f.StringVar(&state, "state", "", "two-letter code of the state to select")
	f.StringVarP(&output, "output", "o", "", "output file (stdout when empty)")
	f.BoolVar(&asJSON, "json", false, "write the heat map snapshot as JSON instead of HTML")
	return cmd
}

func openInput(cmd *cobra.Command, path string) (io.Reader, func(), error) {
	if path == "-" {
		return cmd.InOrStdin(), func() {}, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	return f, func() { _ = f.Close() }, nil
}

func (a *app) writeOutput(path string, fn func(io.Writer) error) error {
	if path == "" {
		return fn(a.out)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := fn(f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func joinCodes(codes []domain.StateCode) string {
	parts := make([]string, len(codes))
	for i, c := range codes {
		parts[i] = string(c)
	}
	return strings.Join(parts, ", ")
}
