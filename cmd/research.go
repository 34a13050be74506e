package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/interval-research/internal/model"
	"github.com/sells-group/interval-research/internal/reconcile"
	"github.com/sells-group/interval-research/internal/research"
)

var researchCmd = &cobra.Command{
	Use:   "research",
	Short: "Research service intervals for a vehicle",
	Long:  "Runs every matching rule provider for the vehicle, merges the results, and prints the recommendation list. With --apply the list is reconciled into the car's stored intervals.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		v, err := vehicleFromFlags(cmd)
		if err != nil {
			return err
		}
		format, _ := cmd.Flags().GetString("format")
		if err := checkFormat(format); err != nil {
			return err
		}
		apply, _ := cmd.Flags().GetBool("apply")
		userID, _ := cmd.Flags().GetInt64("user")
		carID, _ := cmd.Flags().GetInt64("car")
		if apply && (userID <= 0 || carID <= 0) {
			return eris.New("research: --apply requires --user and --car")
		}

		env, err := initEnv(ctx, "research", nil)
		if err != nil {
			return err
		}
		defer env.Close()

		out, err := runResearch(ctx, env, v, userID, carID, apply)
		if err != nil {
			return err
		}
		return writeResearch(os.Stdout, format, out)
	},
}

// researchOutput is what the research command and the research endpoints
// return.
type researchOutput struct {
	research.Result `yaml:",inline"`

	Applied *reconcile.Summary `json:"applied,omitempty" yaml:"applied,omitempty"`
}

// runResearch researches v, persists the research log, and optionally
// reconciles the candidates into the car's intervals. A failed research call
// is logged and reported as a zero-candidate result whose log carries the
// error; the only error returned comes from applying candidates.
func runResearch(ctx context.Context, env *appEnv, v model.Vehicle, userID, carID int64, apply bool) (*researchOutput, error) {
	res := env.Engine.Safe(ctx, v)
	res.Log.UserID = userID
	res.Log.CarID = carID
	if err := env.Store.SaveResearchLog(ctx, &res.Log); err != nil {
		zap.L().Warn("failed to save research log", zap.String("log_id", res.Log.ID), zap.Error(err))
	}

	out := &researchOutput{Result: *res}
	if res.Log.Failed() {
		zap.L().Error("research failed",
			zap.String("make", res.Vehicle.Make),
			zap.String("model", res.Vehicle.Model),
			zap.String("error", res.Log.Error),
		)
		return out, nil
	}
	if !apply {
		return out, nil
	}
	sum, err := applyCandidates(ctx, env, userID, carID, res.Candidates)
	if err != nil {
		return nil, err
	}
	out.Applied = sum
	return out, nil
}

func vehicleFromFlags(cmd *cobra.Command) (model.Vehicle, error) {
	mk, _ := cmd.Flags().GetString("make")
	md, _ := cmd.Flags().GetString("model")
	year, _ := cmd.Flags().GetInt("year")
	engine, _ := cmd.Flags().GetString("engine")

	et, err := model.ParseEngineType(engine)
	if err != nil {
		return model.Vehicle{}, err
	}
	return model.Vehicle{Make: mk, Model: md, Year: year, EngineType: et}, nil
}

var outputFormats = []string{"table", "json", "yaml"}

func checkFormat(format string) error {
	for _, f := range outputFormats {
		if f == format {
			return nil
		}
	}
	return eris.Errorf("unknown output format %q (valid: %s)", format, strings.Join(outputFormats, ", "))
}

// writeStructured encodes v as indented JSON or YAML.
func writeStructured(w io.Writer, format string, v any) error {
	switch format {
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return eris.Wrap(err, "encode yaml")
		}
		return enc.Close()
	default:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
}

func writeResearch(w io.Writer, format string, out *researchOutput) error {
	if format != "table" {
		return writeStructured(w, format, out)
	}

	v := out.Vehicle
	sources := "none"
	if len(out.SourcesUsed) > 0 {
		sources = strings.Join(out.SourcesUsed, ", ")
	}
	_, _ = fmt.Fprintf(w, "%d %s %s: %d intervals, confidence %d/10 (sources: %s)\n\n",
		v.Year, v.Make, v.Model, len(out.Candidates), out.Confidence, sources)
	if out.Log.Failed() {
		_, _ = fmt.Fprintf(w, "Research failed: %s\n", out.Log.Error)
		return nil
	}
	formatCandidates(w, out.Candidates)

	if out.Applied != nil {
		_, _ = fmt.Fprintf(w, "\nApplied: %d inserted, %d updated\n", out.Applied.Inserted, out.Applied.Updated)
	}
	return nil
}

// formatCandidates writes a tabular list of candidates to out.
func formatCandidates(out io.Writer, cands []model.Candidate) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "SERVICE ITEM\tMILES\tMONTHS\tPRIORITY\tCOST\tCONF\tSOURCE")
	for _, c := range cands {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\t%s\n",
			c.ServiceItem,
			optInt(c.IntervalMiles),
			optInt(c.IntervalMonths),
			c.Priority,
			costRange(c.CostEstimateLow, c.CostEstimateHigh),
			c.ConfidenceScore,
			c.Source,
		)
	}
	_ = w.Flush()
}

func optInt(p *int) string {
	if p == nil {
		return "-"
	}
	return strconv.Itoa(*p)
}

func costRange(lo, hi *float64) string {
	switch {
	case lo != nil && hi != nil:
		return fmt.Sprintf("$%.0f-%.0f", *lo, *hi)
	case lo != nil:
		return fmt.Sprintf("$%.0f+", *lo)
	case hi != nil:
		return fmt.Sprintf("<$%.0f", *hi)
	default:
		return "-"
	}
}

func init() {
	addVehicleFlags(researchCmd)
	researchCmd.Flags().String("format", "table", "output format (table, json, yaml)")
	researchCmd.Flags().Bool("apply", false, "reconcile the results into the car's stored intervals")
	researchCmd.Flags().Int64("user", 0, "user id owning the car (required with --apply)")
	researchCmd.Flags().Int64("car", 0, "car id to apply results to (required with --apply)")
	rootCmd.AddCommand(researchCmd)
}

func addVehicleFlags(cmd *cobra.Command) {
	cmd.Flags().String("make", "", "vehicle make (e.g. Toyota)")
	cmd.Flags().String("model", "", "vehicle model (e.g. Camry)")
	cmd.Flags().Int("year", 0, "model year")
	cmd.Flags().String("engine", "", "engine type (gas, diesel, hybrid, electric)")
	_ = cmd.MarkFlagRequired("make")
	_ = cmd.MarkFlagRequired("year")
}
