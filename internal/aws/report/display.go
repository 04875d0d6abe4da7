package report

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"text/tabwriter"
)

// Display prints the report summary and per-instance table to stdout
func Display(r Report) {
	fmt.Println()
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("AWS INFRASTRUCTURE REPORT - %s\n", r.Region)
	fmt.Printf("Generated at: %s\n", r.Timestamp)
	fmt.Println(strings.Repeat("=", 80))

	fmt.Println("\nSUMMARY:")
	fmt.Printf("  Total Instances: %d\n", r.Summary.TotalInstances)
	fmt.Printf("  Running Instances: %d\n", r.Summary.RunningInstances)
	fmt.Printf("  Total Hourly Cost: $%.4f\n", r.Summary.TotalHourlyCost)
	fmt.Printf("  Total Monthly Cost: $%.2f\n", r.Summary.TotalMonthlyCost)

	if len(r.Instances) == 0 {
		fmt.Println("\nNo instances found.")
		return
	}

	fmt.Println("\nINSTANCE DETAILS:")
	w := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
	fmt.Fprintln(w, "INSTANCE ID\tTYPE\tSTATE\tAZ\tHOURLY\tMONTHLY\tTAGS")
	for _, instance := range r.Instances {
		hourly, monthly := "N/A", "N/A"
		if instance.Costs.Hourly != nil {
			hourly = fmt.Sprintf("$%.4f", *instance.Costs.Hourly)
			monthly = fmt.Sprintf("$%.2f", *instance.Costs.Monthly)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			instance.InstanceID,
			instance.InstanceType,
			instance.State,
			instance.AvailabilityZone,
			hourly,
			monthly,
			formatTags(instance.Tags),
		)
	}
	w.Flush()
}

func formatTags(tags map[string]string) string {
	if len(tags) == 0 {
		return "-"
	}
	pairs := make([]string, 0, len(tags))
	for key, value := range tags {
		pairs = append(pairs, fmt.Sprintf("%s=%s", key, value))
	}
	sort.Strings(pairs)
	return strings.Join(pairs, ",")
}
