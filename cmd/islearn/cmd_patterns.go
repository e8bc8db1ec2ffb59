package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/smythi93/islearn/pkg/patterns"
)

var patternsFile string

// patternsCmd groups the pattern catalog commands
var patternsCmd = &cobra.Command{
	Use:   "patterns",
	Short: "Inspect and validate pattern catalogs",
}

// patternsListCmd prints the patterns of a catalog, grouped
var patternsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the patterns of a catalog",
	Long: `Lists every pattern of the built-in catalog, or of the catalog given
with --file, grouped by pattern group.`,
	Args: cobra.NoArgs,
	RunE: runPatternsList,
}

// patternsValidateCmd parses a catalog file and reports errors
var patternsValidateCmd = &cobra.Command{
	Use:   "validate <file>",
	Short: "Validate a pattern catalog file",
	Long: `Parses a pattern catalog file and reports the first constraint that
fails to parse. Exits non-zero on any error.`,
	Args: cobra.ExactArgs(1),
	RunE: runPatternsValidate,
}

func init() {
	patternsListCmd.Flags().StringVarP(&patternsFile, "file", "f", "", "Catalog file (default: built-in catalog)")
}

func runPatternsList(cmd *cobra.Command, args []string) error {
	repo, err := loadRepository(patternsFile)
	if err != nil {
		return err
	}

	for _, group := range repo.Groups() {
		fmt.Printf("[%s]\n", group)
		for _, name := range repo.Names(group) {
			for _, formula := range repo.Get(name) {
				fmt.Printf("  %s: %s\n", name, formula)
			}
		}
	}
	logger.Debug("listed pattern catalog",
		zap.Int("patterns", repo.Len()),
		zap.Int("groups", len(repo.Groups())))
	return nil
}

func runPatternsValidate(cmd *cobra.Command, args []string) error {
	repo, err := patterns.LoadFile(args[0])
	if err != nil {
		return fmt.Errorf("catalog %s is invalid: %w", args[0], err)
	}
	fmt.Printf("catalog %s is valid: %d patterns in %d groups\n",
		args[0], repo.Len(), len(repo.Groups()))
	return nil
}

func loadRepository(path string) (*patterns.Repository, error) {
	if path == "" {
		return patterns.BuiltIn()
	}
	return patterns.LoadFile(path)
}
