// cmd/tools/flow-registry/main.go
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"jobapply-workers/pkg/registry"
)

var registryPath string

func main() {
	initCmd := flag.NewFlagSet("init", flag.ExitOnError)
	addCmd := flag.NewFlagSet("add", flag.ExitOnError)
	updateCmd := flag.NewFlagSet("update", flag.ExitOnError)
	validateCmd := flag.NewFlagSet("validate", flag.ExitOnError)
	showCmd := flag.NewFlagSet("show", flag.ExitOnError)

	for _, fs := range []*flag.FlagSet{initCmd, addCmd, updateCmd, validateCmd, showCmd} {
		fs.StringVar(&registryPath, "path", "configs/flow-registry.json", "Path to registry file")
	}

	// Add command flags
	nameAdd := addCmd.String("name", "", "Flow name (e.g., greenhouse)")
	displayName := addCmd.String("displayName", "", "Display name")
	description := addCmd.String("description", "", "Description")
	taskType := addCmd.String("taskType", "", "Camunda task type")
	steps := addCmd.String("steps", "", "Comma separated step ids in execution order (e.g., format,login,submit)")

	// Update command flags
	flowUpdate := updateCmd.String("flow", "", "Flow name")
	stepUpdate := updateCmd.String("step", "", "Step id; omit to update a flow field")
	field := updateCmd.String("field", "", "Field to update (label, timeout, displayName, description, taskType)")
	value := updateCmd.String("value", "", "New value for the field")

	if len(os.Args) < 2 {
		help()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "init":
		initCmd.Parse(os.Args[2:])
		if err := registry.Save(registry.Default(), registryPath); err != nil {
			fmt.Printf("Error writing registry: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Wrote built-in flows to %s\n", registryPath)

	case "add":
		addCmd.Parse(os.Args[2:])
		if *nameAdd == "" || *taskType == "" || *steps == "" {
			fmt.Println("Error: name, taskType, and steps are required for add.")
			addCmd.Usage()
			os.Exit(1)
		}
		flow := registry.FlowSpec{
			Name:        *nameAdd,
			DisplayName: *displayName,
			Description: *description,
			TaskType:    *taskType,
		}
		for _, id := range strings.Split(*steps, ",") {
			id = strings.TrimSpace(id)
			flow.Steps = append(flow.Steps, registry.StepSpec{ID: id, Label: defaultLabel(id)})
		}
		if err := addFlow(flow); err != nil {
			fmt.Printf("Error adding flow: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Added flow: %s\n", *nameAdd)

	case "update":
		updateCmd.Parse(os.Args[2:])
		if *flowUpdate == "" || *field == "" || *value == "" {
			fmt.Println("Error: flow, field, and value are required for update.")
			updateCmd.Usage()
			os.Exit(1)
		}
		if err := updateFlow(*flowUpdate, *stepUpdate, *field, *value); err != nil {
			fmt.Printf("Error updating flow: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Updated flow %s, field %s to %s\n", *flowUpdate, *field, *value)

	case "validate":
		validateCmd.Parse(os.Args[2:])
		reg, err := registry.LoadRegistry(registryPath)
		if err == nil {
			err = registry.Validate(reg)
		}
		if err != nil {
			fmt.Printf("Registry validation failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Registry validation passed. Found %d flows.\n", len(reg.Flows))

	case "show":
		showCmd.Parse(os.Args[2:])
		reg, err := registry.LoadOrDefault(registryPath)
		if err != nil {
			fmt.Printf("Error loading registry: %v\n", err)
			os.Exit(1)
		}
		for _, flow := range reg.Flows {
			fmt.Printf("%s (%s)\n", flow.Name, flow.TaskType)
			for i, step := range flow.Steps {
				fmt.Printf("  %d. %-10s %-45s %s\n", i+1, step.ID, step.Label, step.Timeout)
			}
		}

	case "help":
		fallthrough
	default:
		help()
	}
}

// defaultLabel reuses the speed-apply label for a known step id.
func defaultLabel(id string) string {
	speed, err := registry.Default().Flow("speed-apply")
	if err == nil {
		for _, s := range speed.Steps {
			if s.ID == id {
				return s.Label
			}
		}
	}
	workday, err := registry.Default().Flow("workday")
	if err == nil {
		for _, s := range workday.Steps {
			if s.ID == id {
				return s.Label
			}
		}
	}
	return id
}

func addFlow(flow registry.FlowSpec) error {
	reg, err := registry.LoadOrDefault(registryPath)
	if err != nil {
		return fmt.Errorf("failed to load registry: %w", err)
	}
	if _, err := reg.Flow(flow.Name); err == nil {
		return fmt.Errorf("flow %s already exists", flow.Name)
	}
	reg.Flows = append(reg.Flows, flow)
	if err := registry.Validate(reg); err != nil {
		return err
	}
	return registry.Save(reg, registryPath)
}

func updateFlow(name, stepID, field, value string) error {
	reg, err := registry.LoadOrDefault(registryPath)
	if err != nil {
		return fmt.Errorf("failed to load registry: %w", err)
	}
	flow, err := reg.Flow(name)
	if err != nil {
		return err
	}

	if stepID == "" {
		switch field {
		case "displayName":
			flow.DisplayName = value
		case "description":
			flow.Description = value
		case "taskType":
			flow.TaskType = value
		default:
			return fmt.Errorf("unknown flow field: %s", field)
		}
	} else {
		found := false
		for i := range flow.Steps {
			if flow.Steps[i].ID != stepID {
				continue
			}
			found = true
			switch field {
			case "label":
				flow.Steps[i].Label = value
			case "timeout":
				flow.Steps[i].Timeout = value
			default:
				return fmt.Errorf("unknown step field: %s", field)
			}
		}
		if !found {
			return fmt.Errorf("step %s not found in flow %s", stepID, name)
		}
	}

	reg.Upsert(flow)
	if err := registry.Validate(reg); err != nil {
		return err
	}
	return registry.Save(reg, registryPath)
}

func help() {
	fmt.Print(`
Usage: flow-registry <command> [flags]

Commands:
  init     Write the built-in flows to the registry file
  add      Add a new flow
  update   Update a flow or step field
  validate Validate the registry file
  show     Print flows and their steps
  help     Show this help message

Examples:
  flow-registry init -path configs/flow-registry.json
  flow-registry add -name greenhouse -taskType greenhouse-apply -steps format,autofill,submit
  flow-registry update -flow workday -step login -field timeout -value 20s
  flow-registry validate -path configs/flow-registry.json

Use 'flow-registry <command> -h' for more information about a command.
` + "\n")
}
