package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kidase-app/kidase-rules/internal/rules"
	"github.com/kidase-app/kidase-rules/internal/types"
)

var lintCmd = &cobra.Command{
	Use:   "lint <file.json|file.yaml>",
	Short: "Validate rule files without a database",
	Args:  cobra.ExactArgs(1),
	RunE:  runLint,
}

func init() {
	rootCmd.AddCommand(lintCmd)
}

func runLint(cmd *cobra.Command, args []string) error {
	doc, err := loadAuthoringFile(args[0])
	if err != nil {
		return err
	}

	engine := rules.NewEngine(rules.Options{})
	errorCount := 0
	warningCount := 0

	for i, rule := range doc.Rules {
		label := rule.Name
		if label == "" {
			label = fmt.Sprintf("rules[%d]", i)
		}

		if rule.Scope != "" && !types.Scope(rule.Scope).Valid() {
			fmt.Printf("%s: error: unknown scope %q\n", label, rule.Scope)
			errorCount++
		}

		result := engine.Validate(rule.entry())
		for _, issue := range result.Issues {
			fmt.Printf("%s: %s: %s (%s)\n", label, issue.Severity, issue.Message, issue.Path)
			if issue.Severity == rules.SeverityError {
				errorCount++
			} else {
				warningCount++
			}
		}
	}

	for i, reading := range doc.Readings {
		if reading.LineID == "" {
			fmt.Printf("readings[%d]: error: lineId is required\n", i)
			errorCount++
		}
	}

	fmt.Printf("%d rules, %d readings: %d errors, %d warnings\n",
		len(doc.Rules), len(doc.Readings), errorCount, warningCount)
	if errorCount > 0 {
		return fmt.Errorf("%d validation errors", errorCount)
	}
	return nil
}
