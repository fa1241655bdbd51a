package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/popanda44/seedvalidator-finance/internal/services"
	"github.com/popanda44/seedvalidator-finance/pkg/forecast"
)

type globalFlags struct {
	input  string
	format string
	output string
}

// newRootCmd builds the forecastctl command tree around svc.
func newRootCmd(svc *services.ForecastService) *cobra.Command {
	flags := &globalFlags{}

	root := &cobra.Command{
		Use:   "forecastctl",
		Short: "Forecast financial metrics from local series files",
		Long: `forecastctl runs the forecasting engine over a monthly series read from
a JSON array of {"timestamp","value"} objects or a timestamp,value CSV file.

Examples:
  forecastctl forecast --input mrr.csv --horizon 12
  forecastctl anomalies --input revenue.json --threshold 2.5 --format yaml
  forecastctl runway --cash 500000 --burn 60000 --revenue 20000 --growth 5`,
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVarP(&flags.input, "input", "i", "-", "Series file (.json or .csv), - for stdin")
	root.PersistentFlags().StringVarP(&flags.format, "format", "f", "json", "Output format (json|yaml)")
	root.PersistentFlags().StringVarP(&flags.output, "output", "o", "", "Output file (default: stdout)")

	root.AddCommand(
		newForecastCmd(svc, flags),
		newTrendCmd(svc, flags),
		newSeasonalityCmd(svc, flags),
		newAnomaliesCmd(svc, flags),
		newBurnCmd(svc, flags),
		newRunwayCmd(svc, flags),
	)
	return root
}

func newForecastCmd(svc *services.ForecastService, flags *globalFlags) *cobra.Command {
	var opts forecast.Options
	cmd := &cobra.Command{
		Use:   "forecast",
		Short: "Holt-Winters forecast with confidence bands",
		RunE: func(cmd *cobra.Command, args []string) error {
			observations, err := flags.observations(cmd)
			if err != nil {
				return err
			}
			report, err := svc.ForecastSeries(cmd.Context(), observations, opts)
			if err != nil {
				return err
			}
			return flags.write(cmd, report)
		},
	}
	cmd.Flags().IntVar(&opts.HorizonMonths, "horizon", 0, "Months to project (0 uses the configured default)")
	cmd.Flags().Float64Var(&opts.ConfidenceLevel, "confidence", 0, "Confidence level: 0.90, 0.95 or 0.99")
	cmd.Flags().IntVar(&opts.SeasonalPeriod, "period", 0, "Seasonal period in months")
	return cmd
}

func newTrendCmd(svc *services.ForecastService, flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "trend",
		Short: "Least-squares trend and growth rate",
		RunE: func(cmd *cobra.Command, args []string) error {
			observations, err := flags.observations(cmd)
			if err != nil {
				return err
			}
			trend, err := svc.CalculateTrend(cmd.Context(), observations)
			if err != nil {
				return err
			}
			return flags.write(cmd, trend)
		},
	}
}

type seasonalityOutput struct {
	Factors  []float64 `json:"factors" yaml:"factors"`
	Strength float64   `json:"strength" yaml:"strength"`
	Detected bool      `json:"detected" yaml:"detected"`
}

func newSeasonalityCmd(svc *services.ForecastService, flags *globalFlags) *cobra.Command {
	var period int
	cmd := &cobra.Command{
		Use:   "seasonality",
		Short: "Seasonal factors and cycle strength",
		RunE: func(cmd *cobra.Command, args []string) error {
			observations, err := flags.observations(cmd)
			if err != nil {
				return err
			}
			values := make([]float64, len(observations))
			for i, o := range observations {
				values[i] = o.Value
			}
			result, err := svc.DetectSeasonality(cmd.Context(), values, period)
			if err != nil {
				return err
			}
			return flags.write(cmd, seasonalityOutput{
				Factors:  result.Factors,
				Strength: result.Strength,
				Detected: result.Detected(),
			})
		},
	}
	cmd.Flags().IntVar(&period, "period", 0, "Seasonal period in months")
	return cmd
}

func newAnomaliesCmd(svc *services.ForecastService, flags *globalFlags) *cobra.Command {
	var threshold float64
	cmd := &cobra.Command{
		Use:   "anomalies",
		Short: "Points further than the threshold from the mean",
		RunE: func(cmd *cobra.Command, args []string) error {
			observations, err := flags.observations(cmd)
			if err != nil {
				return err
			}
			report, err := svc.DetectAnomalies(cmd.Context(), observations, threshold)
			if err != nil {
				return err
			}
			return flags.write(cmd, report)
		},
	}
	cmd.Flags().Float64Var(&threshold, "threshold", 0, "Threshold in standard deviations")
	return cmd
}

func newBurnCmd(svc *services.ForecastService, flags *globalFlags) *cobra.Command {
	var months int
	cmd := &cobra.Command{
		Use:   "burn",
		Short: "Project monthly cash burn",
		RunE: func(cmd *cobra.Command, args []string) error {
			observations, err := flags.observations(cmd)
			if err != nil {
				return err
			}
			report, err := svc.PredictBurnRate(cmd.Context(), observations, months)
			if err != nil {
				return err
			}
			return flags.write(cmd, report)
		},
	}
	cmd.Flags().IntVar(&months, "months", 0, "Months to project")
	return cmd
}

func newRunwayCmd(svc *services.ForecastService, flags *globalFlags) *cobra.Command {
	var in services.RunwayInput
	cmd := &cobra.Command{
		Use:   "runway",
		Short: "Months of runway under three revenue scenarios",
		RunE: func(cmd *cobra.Command, args []string) error {
			report, err := svc.CalculateRunway(cmd.Context(), in)
			if err != nil {
				return err
			}
			return flags.write(cmd, report)
		},
	}
	cmd.Flags().Float64Var(&in.CashBalance, "cash", 0, "Current cash balance")
	cmd.Flags().Float64Var(&in.MonthlyBurn, "burn", 0, "Monthly expenses")
	cmd.Flags().Float64Var(&in.MonthlyRevenue, "revenue", 0, "Monthly revenue")
	cmd.Flags().Float64Var(&in.GrowthRatePercent, "growth", 0, "Monthly revenue growth in percent")
	_ = cmd.MarkFlagRequired("cash")
	_ = cmd.MarkFlagRequired("burn")
	return cmd
}

func (f *globalFlags) observations(cmd *cobra.Command) ([]forecast.Observation, error) {
	if f.input == "-" {
		return readObservations(cmd.InOrStdin(), "")
	}
	file, err := os.Open(f.input)
	if err != nil {
		return nil, fmt.Errorf("failed to open input: %w", err)
	}
	defer file.Close()
	return readObservations(file, f.input)
}

func (f *globalFlags) write(cmd *cobra.Command, v interface{}) error {
	var w io.Writer = cmd.OutOrStdout()
	if f.output != "" {
		file, err := os.Create(f.output)
		if err != nil {
			return fmt.Errorf("failed to create output: %w", err)
		}
		defer file.Close()
		w = file
	}
	return writeResult(w, f.format, v)
}
