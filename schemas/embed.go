// Package schemas holds the JSON Schema documents for the evaluator's data artifacts.
package schemas

import "embed"

//go:embed *.schema.json
var files embed.FS

// Read returns the contents of an embedded schema file
func Read(name string) ([]byte, error) {
	return files.ReadFile(name)
}
