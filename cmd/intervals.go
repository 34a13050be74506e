package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/interval-research/internal/model"
)

var intervalsCmd = &cobra.Command{
	Use:   "intervals",
	Short: "Manage a car's stored service intervals",
}

// -- intervals list --

var intervalsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List a car's active intervals",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		userID, _ := cmd.Flags().GetInt64("user")
		carID, _ := cmd.Flags().GetInt64("car")
		format, _ := cmd.Flags().GetString("format")
		if err := checkFormat(format); err != nil {
			return err
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		ivs, err := st.ActiveIntervals(ctx, userID, carID)
		if err != nil {
			return eris.Wrap(err, "intervals list")
		}
		if format != "table" {
			return writeStructured(os.Stdout, format, ivs)
		}
		if len(ivs) == 0 {
			fmt.Fprintln(os.Stderr, "No active intervals.")
			return nil
		}
		formatIntervals(os.Stdout, ivs)
		return nil
	},
}

// -- intervals upsert --

var intervalsUpsertCmd = &cobra.Command{
	Use:   "upsert",
	Short: "Insert or update intervals by service item",
	Long:  "Applies one interval given by flags, or a list of intervals read from --file (YAML or JSON), to the car. Items match existing active intervals case-insensitively.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		userID, _ := cmd.Flags().GetInt64("user")
		carID, _ := cmd.Flags().GetInt64("car")

		cands, err := candidatesFromFlags(cmd)
		if err != nil {
			return err
		}

		env, err := initEnv(ctx, "intervals", nil)
		if err != nil {
			return err
		}
		defer env.Close()

		sum, err := applyCandidates(ctx, env, userID, carID, cands)
		if err != nil {
			return err
		}
		formatIntervals(os.Stdout, sum.Intervals)
		fmt.Fprintf(os.Stderr, "%d inserted, %d updated\n", sum.Inserted, sum.Updated)
		return nil
	},
}

// -- intervals deactivate --

var intervalsDeactivateCmd = &cobra.Command{
	Use:   "deactivate <interval-id>",
	Short: "Deactivate an interval",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		userID, _ := cmd.Flags().GetInt64("user")
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return eris.Wrapf(err, "invalid interval id %q", args[0])
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if err := st.DeactivateInterval(ctx, userID, id); err != nil {
			return eris.Wrapf(err, "intervals deactivate %d", id)
		}
		fmt.Fprintf(os.Stderr, "Interval %d deactivated.\n", id)
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{intervalsListCmd, intervalsUpsertCmd, intervalsDeactivateCmd} {
		c.Flags().Int64("user", 0, "user id owning the car")
		_ = c.MarkFlagRequired("user")
	}
	for _, c := range []*cobra.Command{intervalsListCmd, intervalsUpsertCmd} {
		c.Flags().Int64("car", 0, "car id")
		_ = c.MarkFlagRequired("car")
	}
	intervalsListCmd.Flags().String("format", "table", "output format (table, json, yaml)")

	f := intervalsUpsertCmd.Flags()
	f.String("file", "", "YAML or JSON file holding a list of intervals")
	f.String("item", "", "service item name")
	f.Int("miles", 0, "mileage interval")
	f.Int("months", 0, "time interval in months")
	f.String("priority", "", "priority (low, medium, high)")
	f.Float64("cost-low", 0, "low cost estimate")
	f.Float64("cost-high", 0, "high cost estimate")
	f.String("notes", "", "free-form notes")
	f.String("source", "", "where the interval came from")
	intervalsUpsertCmd.MarkFlagsMutuallyExclusive("file", "item")
	intervalsUpsertCmd.MarkFlagsOneRequired("file", "item")

	intervalsCmd.AddCommand(intervalsListCmd)
	intervalsCmd.AddCommand(intervalsUpsertCmd)
	intervalsCmd.AddCommand(intervalsDeactivateCmd)
	rootCmd.AddCommand(intervalsCmd)
}

// candidatesFromFlags builds the batch for intervals upsert. Numeric flags
// left unset stay nil.
func candidatesFromFlags(cmd *cobra.Command) ([]model.Candidate, error) {
	if path, _ := cmd.Flags().GetString("file"); path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, eris.Wrap(err, "open intervals file")
		}
		defer f.Close() //nolint:errcheck
		return readCandidates(f)
	}

	fl := cmd.Flags()
	c := model.Candidate{}
	c.ServiceItem, _ = fl.GetString("item")
	if fl.Changed("miles") {
		n, _ := fl.GetInt("miles")
		c.IntervalMiles = model.Int(n)
	}
	if fl.Changed("months") {
		n, _ := fl.GetInt("months")
		c.IntervalMonths = model.Int(n)
	}
	if fl.Changed("cost-low") {
		x, _ := fl.GetFloat64("cost-low")
		c.CostEstimateLow = model.Float(x)
	}
	if fl.Changed("cost-high") {
		x, _ := fl.GetFloat64("cost-high")
		c.CostEstimateHigh = model.Float(x)
	}
	p, _ := fl.GetString("priority")
	c.Priority = model.Priority(p)
	c.Notes, _ = fl.GetString("notes")
	c.Source, _ = fl.GetString("source")
	return []model.Candidate{c}, nil
}

// readCandidates decodes a list of candidates. JSON is accepted as YAML.
func readCandidates(r io.Reader) ([]model.Candidate, error) {
	var cands []model.Candidate
	if err := yaml.NewDecoder(r).Decode(&cands); err != nil {
		return nil, eris.Wrap(err, "decode intervals file")
	}
	if len(cands) == 0 {
		return nil, eris.New("intervals file holds no intervals")
	}
	return cands, nil
}

// formatIntervals writes a tabular list of intervals to out.
func formatIntervals(out io.Writer, ivs []model.ServiceInterval) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tSERVICE ITEM\tMILES\tMONTHS\tPRIORITY\tCOST\tSOURCE\tUPDATED")
	for _, iv := range ivs {
		_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			iv.ID,
			iv.ServiceItem,
			optInt(iv.IntervalMiles),
			optInt(iv.IntervalMonths),
			iv.Priority,
			costRange(iv.CostEstimateLow, iv.CostEstimateHigh),
			iv.Source,
			iv.UpdatedAt.Format("2006-01-02 15:04"),
		)
	}
	_ = w.Flush()
}
