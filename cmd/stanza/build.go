package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/merenth/stanza"
	"github.com/merenth/stanza/views"
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Compile the site into the output directory",
	Long: `Build loads the content tree, drops drafts, and writes the complete
static site into the output directory. The output is replaced wholesale;
two builds of the same tree produce identical bytes.`,
	RunE: runBuild,
}

func init() {
	buildCmd.Flags().String("base-url", "", "canonical base URL for feeds and sitemaps")
	buildCmd.Flags().StringP("output", "o", "", "output directory")
	buildCmd.Flags().Bool("minify", false, "minify generated HTML and XML")
	viper.BindPFlag("url", buildCmd.Flags().Lookup("base-url"))
	viper.BindPFlag("output", buildCmd.Flags().Lookup("output"))
	viper.BindPFlag("minify", buildCmd.Flags().Lookup("minify"))
	rootCmd.AddCommand(buildCmd)
}

func runBuild(cmd *cobra.Command, args []string) error {
	cfg, err := loadSiteConfig()
	if err != nil {
		return err
	}

	builder := stanza.NewBuilder(cfg, views.New(cfg))
	res, err := builder.Build(cmd.Context())
	if err != nil {
		return fmt.Errorf("build: %w", err)
	}

	fmt.Printf("Built %s: %d posts, %d files", cfg.OutputDir, res.Posts, res.Pages)
	if res.Drafts > 0 {
		fmt.Printf(" (%d drafts excluded)", res.Drafts)
	}
	fmt.Println()
	return nil
}
