package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/partner-finder/internal/catalog"
	"github.com/sells-group/partner-finder/internal/discovery"
	"github.com/sells-group/partner-finder/internal/export"
	"github.com/sells-group/partner-finder/internal/model"
)

var (
	searchCompany  string
	searchAddress  string
	searchPlaceID  string
	searchMax      int
	searchTypes    []string
	searchExclude  []string
	searchDescribe bool
	searchOut      string
)

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Find partner businesses around an address or place",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("search"); err != nil {
			return err
		}
		if searchAddress == "" && searchPlaceID == "" {
			return eris.New("one of --address or --place-id is required")
		}

		types, err := catalog.MustDefault().Resolve(searchTypes)
		if err != nil {
			return err
		}

		target := searchMax
		if target == 0 {
			target = cfg.Search.MaxResults
		}
		req := discovery.Request{
			CompanyName: searchCompany,
			Location:    model.LocationRef{PlaceID: searchPlaceID, Address: searchAddress},
			MaxResults:  target,
			Types:       types,
			ExcludedIDs: searchExclude,
		}

		ctx := cmd.Context()
		progress := func(accepted, target int) {
			fmt.Fprintf(cmd.ErrOrStderr(), "\r%d/%d partenaires", accepted, target)
		}

		res, runErr := newSearcher(cfg).Search(ctx, req, progress)
		fmt.Fprintln(cmd.ErrOrStderr())
		if res == nil {
			return runErr
		}
		if runErr != nil {
			zap.L().Warn("search interrupted, writing partial results", zap.Error(runErr))
		}

		cands := res.Candidates
		if searchDescribe && runErr == nil {
			gen, err := newGenerator(cfg)
			if err != nil {
				return err
			}
			cands, err = gen.DescribeAll(ctx, cands)
			if err != nil {
				runErr = err
			}
		}

		if res.CeilingReached {
			fmt.Fprintf(cmd.ErrOrStderr(), "%d résultats trouvés dans un rayon de %.0f km\n", len(cands), res.FinalRadius()/1000)
		}

		if err := writeResults(cmd.OutOrStdout(), searchOut, cands); err != nil {
			return err
		}
		return runErr
	},
}

// writeResults writes to path, or JSON to stdout when path is empty. The
// format follows the file extension.
func writeResults(stdout io.Writer, path string, cands []model.BusinessCandidate) error {
	doc := export.NewDocument(cands, time.Now())
	if path == "" {
		return export.WriteJSON(stdout, doc)
	}

	format := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrap(err, "create output file")
	}
	if err := export.Write(f, doc, format); err != nil {
		f.Close() //nolint:errcheck
		return err
	}
	if err := f.Close(); err != nil {
		return eris.Wrap(err, "close output file")
	}
	zap.L().Info("results written", zap.String("path", path), zap.Int("count", doc.Count))
	return nil
}

func init() {
	searchCmd.Flags().StringVar(&searchCompany, "company", "", "your own business name, excluded from results")
	searchCmd.Flags().StringVar(&searchAddress, "address", "", "starting address")
	searchCmd.Flags().StringVar(&searchPlaceID, "place-id", "", "starting Google place id")
	searchCmd.Flags().IntVar(&searchMax, "max", 0, "number of partners wanted (default from config)")
	searchCmd.Flags().StringSliceVar(&searchTypes, "type", nil, "category id (see `categories`)")
	searchCmd.Flags().StringSliceVar(&searchExclude, "exclude", nil, "place ids to leave out")
	searchCmd.Flags().BoolVar(&searchDescribe, "describe", false, "write AI descriptions")
	searchCmd.Flags().StringVar(&searchOut, "out", "", "output file (.json or .xlsx)")
	rootCmd.AddCommand(searchCmd)
}
