package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/arbors/arbors/schema"
	"github.com/arbors/arbors/storage"
)

func newDescribeCmd() *cobra.Command {
	var arborName string
	cmd := &cobra.Command{
		Use:   "describe <db-path>",
		Short: "Print the compiled schema tree a stored arbor was written with",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return runDescribe(args[0], arborName)
		},
	}
	cmd.Flags().StringVar(&arborName, "name", "", "arbor_name to describe (required)")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func runDescribe(dbPath, name string) error {
	e, err := storage.NewEngine(dbPath, storage.DefaultEngineOptions(), nil)
	if err != nil {
		return fmt.Errorf("open %s: %w", dbPath, err)
	}
	defer e.Close()

	rt := e.BeginRead()
	ba, ok := rt.GetBatched(name)
	if !ok {
		return fmt.Errorf("arbor_name %q not found", name)
	}

	fmt.Printf("arbor_name: %s\n", name)
	fmt.Printf("batches:    %d\n", ba.Len())

	reg := ba.Schema()
	if reg == nil {
		fmt.Println("schema:     none (schemaless / inferred at parse time)")
		return nil
	}
	fmt.Println("schema:")
	printSchema(reg, schema.Root, "", make(map[schema.SchemaId]bool))
	return nil
}

// printSchema renders reg's tree starting at id, one line per node,
// indented by depth. visited guards against a self-referential schema
// (e.g. a recursive "items" edge) producing an infinite recursion.
func printSchema(reg *schema.Registry, id schema.SchemaId, indent string, visited map[schema.SchemaId]bool) {
	s := reg.Get(id)
	nullable := ""
	if s.Nullable {
		nullable = " (nullable)"
	}
	fmt.Printf("%s- %s%s\n", indent, s.Type.Kind, nullable)

	if id != schema.Any && visited[id] {
		fmt.Printf("%s  ... (cycle back to #%d)\n", indent, id)
		return
	}
	if id != schema.Any {
		visited[id] = true
	}

	switch s.Type.Kind {
	case schema.KindArray:
		printSchema(reg, s.Type.Items, indent+"    items: ", visited)
	case schema.KindTuple:
		for i, p := range s.Type.Prefix {
			printSchema(reg, p, fmt.Sprintf("%s    [%d]: ", indent, i), visited)
		}
		if s.Type.Additional != nil {
			printSchema(reg, *s.Type.Additional, indent+"    additional: ", visited)
		}
	case schema.KindObject:
		for _, p := range s.Type.Properties {
			req := ""
			if p.Required {
				req = " (required)"
			}
			printSchema(reg, p.Schema, fmt.Sprintf("%s    %s%s: ", indent, p.Name, req), visited)
		}
		if s.Type.AdditionalProperties != nil {
			printSchema(reg, *s.Type.AdditionalProperties, indent+"    additionalProperties: ", visited)
		}
	}
}
