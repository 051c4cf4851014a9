package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/zeusync/metacore/internal/core/meta"
	"github.com/zeusync/metacore/internal/runtime"
)

func NewClassesCmd() *cobra.Command {
	var verbose bool
	cmd := &cobra.Command{
		Use:     "classes",
		Short:   "List the registered classes",
		Example: "archivectl classes --verbose",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			r, err := runtime.ProvideRegistry()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, c := range r.Classes() {
				fmt.Fprintf(out, "%s\t%016x\t%d properties\n", c.Name(), c.SchemaHash(), c.NumProperties())
				if !verbose {
					continue
				}
				for _, p := range c.Properties() {
					fmt.Fprintf(out, "  %s\t%s%s\n", p.Name(), describe(p), flags(p))
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "list the properties of every class")
	return cmd
}

func describe(p *meta.Property) string {
	switch p.Category() {
	case meta.CategoryObject, meta.CategoryAsset:
		return fmt.Sprintf("%s<%s>", p.Category(), p.Element().ClassName)
	case meta.CategoryArray:
		e := p.Element()
		if e.ClassName != "" {
			return fmt.Sprintf("Array<%s<%s>>", e.Category, e.ClassName)
		}
		return fmt.Sprintf("Array<%s>", e.Category)
	case meta.CategoryMap:
		return fmt.Sprintf("Map<%s,%s>", p.KeyCategory(), p.Element().Category)
	default:
		return p.Category().String()
	}
}

func flags(p *meta.Property) string {
	var fs []string
	for _, f := range []struct {
		flag meta.Flags
		name string
	}{
		{meta.FlagReadOnly, "readonly"},
		{meta.FlagHidden, "hidden"},
		{meta.FlagTransient, "transient"},
		{meta.FlagWeak, "weak"},
	} {
		if p.Has(f.flag) {
			fs = append(fs, f.name)
		}
	}
	if len(fs) == 0 {
		return ""
	}
	return " [" + strings.Join(fs, ",") + "]"
}
