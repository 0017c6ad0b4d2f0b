// Command schema-generator writes the JSON Schema for tunnelkeeper.yml so
// editors can validate configuration files.
package main

import (
	"log"
	"os"
	"path/filepath"

	"github.com/grovetools/tunnelkeeper/config"
)

func main() {
	schemaBytes, err := config.GenerateSchema()
	if err != nil {
		log.Fatalf("Error generating schema: %v", err)
	}

	outputDir := filepath.Join("schema", "definitions")
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		log.Fatalf("Error creating schema directory: %v", err)
	}

	outputPath := filepath.Join(outputDir, "tunnelkeeper.schema.json")
	if err := os.WriteFile(outputPath, append(schemaBytes, '\n'), 0644); err != nil {
		log.Fatalf("Error writing schema file: %v", err)
	}

	log.Printf("Generated schema at %s", outputPath)
}
