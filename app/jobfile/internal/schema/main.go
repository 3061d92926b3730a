// Command schema writes JSON schema of the job file, usable by editors for yaml validation
package main

import (
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/umputun/workdb/app/jobfile"
)

func main() {
	outputPath := "schema.json"
	if len(os.Args) > 1 {
		outputPath = os.Args[1]
	}
	if err := run(outputPath); err != nil {
		log.Fatalf("failed to generate schema: %v", err)
	}
	fmt.Printf("Schema generated successfully at %s\n", outputPath)
}

func run(outputPath string) error {
	schema, err := jobfile.GenerateSchema()
	if err != nil {
		return err
	}
	schema.Title = "workdb job file schema"
	schema.Description = "Schema for workdb yaml job definitions"
	schema.Version = "1.0.0"

	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal schema: %w", err)
	}
	if err := os.WriteFile(outputPath, data, 0o600); err != nil { //nolint:gosec // schema file is not sensitive
		return fmt.Errorf("failed to write schema file: %w", err)
	}
	return nil
}
