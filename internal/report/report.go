// Package report renders analysis results for the command line tools. All
// writers are plain io.Writer so output is trivially testable.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	"taxwatch/internal/anomaly"
	"taxwatch/internal/profile"
	"taxwatch/internal/scan"
)

// JSON writes the analyses as an indented JSON array.
func JSON(w io.Writer, analyses []anomaly.SubjectAnalysis) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if analyses == nil {
		analyses = []anomaly.SubjectAnalysis{}
	}
	return enc.Encode(analyses)
}

// Table writes one line per flagged subject, highest risk first.
func Table(w io.Writer, analyses []anomaly.SubjectAnalysis) error {
	if len(analyses) == 0 {
		_, err := fmt.Fprintln(w, "No anomalies detected.")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RNOKPP\tRISK\tANOMALIES\tTOTAL INCOME\tNAME")
	for _, analysis := range analyses {
		fmt.Fprintf(tw, "%s\t%.0f/100\t%d\t%.2f\t%s\n",
			analysis.SubjectRNOKPP,
			analysis.RiskScore,
			len(analysis.Anomalies),
			analysis.TotalIncome,
			analysis.Name)
	}
	return tw.Flush()
}

// Verbose writes a full block per subject including every anomaly with its
// evidence and recommendation.
func Verbose(w io.Writer, analyses []anomaly.SubjectAnalysis) error {
	if len(analyses) == 0 {
		_, err := fmt.Fprintln(w, "No anomalies detected.")
		return err
	}
	for _, analysis := range analyses {
		fmt.Fprintf(w, "Subject %s", analysis.SubjectRNOKPP)
		if analysis.Name != "" {
			fmt.Fprintf(w, " (%s)", analysis.Name)
		}
		fmt.Fprintf(w, "\n  risk score:   %.0f/100\n", analysis.RiskScore)
		fmt.Fprintf(w, "  total income: %.2f\n", analysis.TotalIncome)
		fmt.Fprintf(w, "  total tax:    %.2f\n", analysis.TotalTaxPaid)
		for i, a := range analysis.Anomalies {
			fmt.Fprintf(w, "  [%d] %s (%s)\n", i+1, a.Code, a.Severity)
			fmt.Fprintf(w, "      %s\n", a.Description)
			if a.Recommendation != "" {
				fmt.Fprintf(w, "      recommendation: %s\n", a.Recommendation)
			}
			for _, key := range detailKeys(a.Details) {
				fmt.Fprintf(w, "      %s: %v\n", key, a.Details[key])
			}
		}
		if _, err := fmt.Fprintln(w); err != nil {
			return err
		}
	}
	return nil
}

// FamilyWealth writes the aggregate as one line per family member, the scan
// root first, followed by a totals line.
func FamilyWealth(w io.Writer, wealth *profile.FamilyWealth) error {
	fmt.Fprintf(w, "Family wealth for %s (depth %d, %d member(s))\n",
		wealth.RootRNOKPP, wealth.Depth, len(wealth.Members))
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RNOKPP\tDEPTH\tINCOME\tTAX\tPROPERTIES\tORGS\tNAME")
	for _, member := range wealth.Members {
		fmt.Fprintf(tw, "%s\t%d\t%.2f\t%.2f\t%d\t%d\t%s\n",
			member.RNOKPP,
			member.Depth,
			member.TotalIncome,
			member.TotalTax,
			member.PropertyCount,
			member.OrgCount,
			member.Name)
	}
	fmt.Fprintf(tw, "TOTAL\t\t%.2f\t%.2f\t%d\t%d\t\n",
		wealth.TotalIncome,
		wealth.TotalTax,
		wealth.PropertyCount,
		wealth.OrgCount)
	return tw.Flush()
}

// FamilyWealthJSON writes the aggregate as an indented JSON object.
func FamilyWealthJSON(w io.Writer, wealth *profile.FamilyWealth) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(wealth)
}

// Failures lists the subjects a scan could not analyze.
func Failures(w io.Writer, failures []scan.Failure) error {
	if len(failures) == 0 {
		return nil
	}
	fmt.Fprintf(w, "%d subject(s) could not be analyzed:\n", len(failures))
	for _, failure := range failures {
		if _, err := fmt.Fprintf(w, "  %s: %s\n", failure.RNOKPP, failure.Reason); err != nil {
			return err
		}
	}
	return nil
}

func detailKeys(details map[string]any) []string {
	keys := make([]string, 0, len(details))
	for key := range details {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
