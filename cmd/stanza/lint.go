package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/merenth/stanza"
)

var lintCmd = &cobra.Command{
	Use:   "lint",
	Short: "Check the content tree for publishing problems",
	Long: `Lint walks the content tree and reports broken front matter, missing
titles, invalid dates, duplicate slugs, and dangling internal links.
The exit status is non-zero when any error-severity issue is found,
so lint can gate a deploy.`,
	RunE: runLint,
}

func init() {
	rootCmd.AddCommand(lintCmd)
}

func runLint(cmd *cobra.Command, args []string) error {
	cfg, err := loadSiteConfig()
	if err != nil {
		return err
	}

	report, err := stanza.LintTree(cfg.ContentDir)
	if err != nil {
		return err
	}

	for _, issue := range report.Issues {
		fmt.Println(issue)
	}

	if n := report.Errors(); n > 0 {
		return fmt.Errorf("%d error(s) in %s", n, cfg.ContentDir)
	}
	fmt.Printf("%s: no errors (%d issues reported)\n", cfg.ContentDir, len(report.Issues))
	return nil
}
