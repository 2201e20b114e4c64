package cmd

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kidase-app/kidase-rules/internal/core/store"
	"github.com/kidase-app/kidase-rules/internal/rules"
	"github.com/kidase-app/kidase-rules/internal/types"
)

var importCmd = &cobra.Command{
	Use:   "import <file.json|file.yaml>",
	Short: "Bulk-insert rules and readings from an authoring file",
	Args:  cobra.ExactArgs(1),
	RunE:  runImport,
}

func init() {
	rootCmd.AddCommand(importCmd)
}

// lectionColumns maps authoring-file lection names to record assignment.
func applyLection(record *store.ReadingRecord, name, value string) error {
	null := sql.NullString{String: value, Valid: true}
	switch name {
	case "misbak":
		record.Misbak = null
	case "wengel":
		record.Wengel = null
	case "messageStPaul":
		record.MessageStPaul = null
	case "messageApostle":
		record.MessageApostle = null
	case "messageBookOfActs":
		record.MessageBookOfActs = null
	case "evangelist":
		record.Evangelist = null
	default:
		return fmt.Errorf("unknown lection %q", name)
	}
	return nil
}

func runImport(cmd *cobra.Command, args []string) error {
	doc, err := loadAuthoringFile(args[0])
	if err != nil {
		return err
	}

	queries, closeDB, err := openDatabase()
	if err != nil {
		return err
	}
	defer closeDB()

	engine := rules.NewEngine(rules.Options{})
	rulesStore := store.NewRuleStore(queries, engine)
	readingsStore := store.NewReadingStore(queries)

	// Readings first so rules can reference them by line id.
	lineIDs := make(map[string]types.ReadingID)
	for i, reading := range doc.Readings {
		if reading.LineID == "" {
			return fmt.Errorf("readings[%d]: lineId is required", i)
		}
		record := store.ReadingRecord{
			LineID:   reading.LineID,
			Priority: reading.Priority,
		}
		if reading.Type != "" {
			record.ReadingType = sql.NullString{String: reading.Type, Valid: true}
		}
		for name, value := range reading.Lections {
			if err := applyLection(&record, name, value); err != nil {
				return fmt.Errorf("readings[%d]: %w", i, err)
			}
		}
		if err := readingsStore.Create(&record); err != nil {
			return fmt.Errorf("readings[%d]: %w", i, err)
		}
		lineIDs[record.LineID] = record.ID
	}

	imported := 0
	for i, rule := range doc.Rules {
		label := rule.Name
		if label == "" {
			label = fmt.Sprintf("rules[%d]", i)
		}

		scope := types.Scope(rule.Scope)
		if !scope.Valid() {
			return fmt.Errorf("%s: unknown scope %q", label, rule.Scope)
		}

		entry := rule.entry()
		result := engine.Validate(entry)
		if !result.Valid {
			for _, issue := range result.Issues {
				fmt.Printf("%s: %s: %s (%s)\n", label, issue.Severity, issue.Message, issue.Path)
			}
			return fmt.Errorf("%s: validation failed", label)
		}

		ruleJSON, err := json.Marshal(entry)
		if err != nil {
			return fmt.Errorf("%s: %w", label, err)
		}

		// A readingId in the file may name a line id from the same file.
		readingID := rule.ReadingID
		if mapped, ok := lineIDs[readingID]; ok {
			readingID = string(mapped)
		}

		record := store.RuleRecord{
			Name:           rule.Name,
			Scope:          scope,
			PresentationID: nullableString(rule.PresentationID),
			SlideID:        nullableString(rule.SlideID),
			ReadingID:      nullableString(readingID),
			RuleJSON:       string(ruleJSON),
			IsEnabled:      rule.Enabled == nil || *rule.Enabled,
		}
		if err := rulesStore.Create(&record); err != nil {
			return fmt.Errorf("%s: %w", label, err)
		}
		imported++
	}

	fmt.Printf("imported %d rules, %d readings\n", imported, len(doc.Readings))
	return nil
}

func nullableString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
