package list

import (
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	awsinternal "stackpilot/internal/aws"
	"stackpilot/internal/config"
)

// NewListCmd creates the list command and its subcommands
func NewListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List configured solutions and AWS profiles",
	}

	cmd.AddCommand(newSolutionsCmd())
	cmd.AddCommand(newProfilesCmd())

	return cmd
}

func newSolutionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "solutions",
		Short: "List solutions from config.yaml",
		RunE: func(cmd *cobra.Command, args []string) error {
			solutions, err := config.Solutions()
			if err != nil {
				return err
			}
			if len(solutions) == 0 {
				fmt.Println("No solutions configured.")
				return nil
			}

			names := make([]string, 0, len(solutions))
			for name := range solutions {
				names = append(names, name)
			}
			sort.Strings(names)

			w := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
			fmt.Fprintln(w, "SOLUTION\tTEMPLATE\tCONTENT DIR")
			for _, name := range names {
				solution := solutions[name]
				fmt.Fprintf(w, "%s\t%s\t%s\n", name, solution.TemplatePath, solution.ContentDir)
			}
			return w.Flush()
		},
	}
}

func newProfilesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "profiles",
		Short: "List available AWS profiles",
		RunE: func(cmd *cobra.Command, args []string) error {
			profiles, err := awsinternal.ListProfiles()
			if err != nil {
				return err
			}
			for _, profile := range profiles {
				fmt.Println(profile)
			}
			return nil
		},
	}
}
