// cmd/tools/step-generator/main.go
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"jobapply-workers/pkg/registry"
)

// StepData feeds the scaffold templates.
type StepData struct {
	PackageName string
	StepID      string
	Label       string
	Timeout     string
	ErrorCodes  []string
	Flows       []string
}

const configTemplate = `package {{ .PackageName }}

type Config struct {
	Enabled bool
}
`

const handlerTemplate = `package {{ .PackageName }}

import (
	"context"

	"jobapply-workers/internal/common/logger"
	"jobapply-workers/internal/pipeline"
)

const StepID = "{{ .StepID }}"

type Handler struct {
	config *Config
	logger logger.Logger
}

func NewHandler(config *Config, log logger.Logger) *Handler {
	return &Handler{
		config: config,
		logger: log.WithFields(map[string]interface{}{"stepId": StepID}),
	}
}

// Execute runs "{{ .Label }}" for one item.
func (h *Handler) Execute(ctx context.Context, req *pipeline.Request) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	h.logger.Info("step executed", map[string]interface{}{
		"batchId": req.BatchID,
		"itemId":  req.Item.ID,
	})
	return nil
}
`

const testTemplate = `package {{ .PackageName }}

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"jobapply-workers/internal/common/logger"
	"jobapply-workers/internal/models"
	"jobapply-workers/internal/pipeline"
)

func createRequest() *pipeline.Request {
	return &pipeline.Request{
		BatchID:   "batch-1",
		UserID:    "u1",
		Item:      models.JobLead{ID: "j1"},
		Artifacts: pipeline.Artifacts{},
	}
}

func TestHandler_Execute(t *testing.T) {
	h := NewHandler(&Config{Enabled: true}, logger.NewTestLogger(t))
	assert.NoError(t, h.Execute(context.Background(), createRequest()))
}

func TestHandler_Execute_Cancelled(t *testing.T) {
	h := NewHandler(&Config{Enabled: true}, logger.NewTestLogger(t))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, h.Execute(ctx, createRequest()), context.Canceled)
}
`

const readmeTemplate = `# {{ .Label }}

Step id: ` + "`{{ .StepID }}`" + `
Default timeout: {{ if .Timeout }}{{ .Timeout }}{{ else }}pipeline default{{ end }}
Used by flows: {{ if .Flows }}{{ join .Flows ", " }}{{ else }}none yet{{ end }}

## Error Codes
{{- if .ErrorCodes }}
{{ range .ErrorCodes }}
- {{ . }}
{{- end }}
{{- else }}
No specific error codes declared.
{{- end }}

## Wiring

Add the executor to the map in cmd/worker-manager/main.go:

` + "```go" + `
registry.Step{{ upperFirst .PackageName }}: {{ .PackageName }}.NewHandler(&{{ .PackageName }}.Config{Enabled: true}, log),
` + "```" + `
`

func upperFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// findStep returns the first definition of stepID and every flow using it.
func findStep(reg *registry.FlowRegistry, stepID string) (registry.StepSpec, []string, bool) {
	var spec registry.StepSpec
	var flows []string
	found := false
	for _, flow := range reg.Flows {
		for _, step := range flow.Steps {
			if step.ID != stepID {
				continue
			}
			if !found {
				spec = step
				found = true
			}
			flows = append(flows, flow.Name)
		}
	}
	return spec, flows, found
}

func main() {
	step := flag.String("step", "", "Step id (e.g., upload)")
	label := flag.String("label", "", "Step label when the step is not in the registry yet")
	pkg := flag.String("package", "", "Go package name; defaults to the step id without dashes")
	outputDir := flag.String("output", "./internal/workers/submission/", "Directory the step package is created in")
	registryPath := flag.String("registry", "configs/flow-registry.json", "Path to the flow registry JSON file")
	force := flag.Bool("force", false, "Overwrite an existing package directory")
	flag.Parse()

	if *step == "" {
		fmt.Println("Usage: step-generator --step <id> [--package <name>] [--label <text>] [--output <dir>] [--registry <path>]")
		fmt.Println("\nExample:")
		fmt.Println("  go run cmd/tools/step-generator/main.go --step upload --package uploadresume")
		os.Exit(1)
	}

	reg, err := registry.LoadOrDefault(*registryPath)
	if err != nil {
		fmt.Printf("Error loading registry from %s: %v\n", *registryPath, err)
		os.Exit(1)
	}

	data := StepData{StepID: *step, Label: *label}
	if spec, flows, ok := findStep(reg, *step); ok {
		data.Timeout = spec.Timeout
		data.ErrorCodes = spec.ErrorCodes
		data.Flows = flows
		if data.Label == "" {
			data.Label = spec.Label
		}
	} else if data.Label == "" {
		fmt.Printf("Step '%s' not found in registry %s; pass --label to scaffold it anyway\n", *step, *registryPath)
		os.Exit(1)
	}
	data.PackageName = *pkg
	if data.PackageName == "" {
		data.PackageName = strings.ReplaceAll(*step, "-", "")
	}

	stepDir := filepath.Join(*outputDir, data.PackageName)
	if _, err := os.Stat(stepDir); err == nil && !*force {
		fmt.Printf("Directory %s already exists; use --force to overwrite\n", stepDir)
		os.Exit(1)
	}
	if err := os.MkdirAll(stepDir, 0755); err != nil {
		fmt.Printf("Error creating directory: %v\n", err)
		os.Exit(1)
	}

	funcMap := template.FuncMap{
		"upperFirst": upperFirst,
		"join":       strings.Join,
	}

	templates := map[string]string{
		"config.go":       configTemplate,
		"handler.go":      handlerTemplate,
		"handler_test.go": testTemplate,
		"README.md":       readmeTemplate,
	}

	for filename, tmplStr := range templates {
		tmpl, err := template.New(filename).Funcs(funcMap).Parse(tmplStr)
		if err != nil {
			fmt.Printf("Error parsing template %s: %v\n", filename, err)
			continue
		}

		filePath := filepath.Join(stepDir, filename)
		file, err := os.Create(filePath)
		if err != nil {
			fmt.Printf("Error creating file %s: %v\n", filePath, err)
			continue
		}

		if err := tmpl.Execute(file, data); err != nil {
			fmt.Printf("Error executing template for %s: %v\n", filename, err)
		}
		file.Close()

		fmt.Printf("✓ Generated %s\n", filePath)
	}

	fmt.Printf("\n✅ Step scaffold generated at: %s\n", stepDir)
	fmt.Printf("\nNext steps:\n")
	fmt.Printf("  1. Implement Execute in handler.go\n")
	if len(data.Flows) == 0 {
		fmt.Printf("  2. Add the step id to registry.KnownSteps and a flow in %s\n", *registryPath)
	} else {
		fmt.Printf("  2. Flows already using it: %s\n", strings.Join(data.Flows, ", "))
	}
	fmt.Printf("  3. Register the executor in cmd/worker-manager/main.go\n")
}
