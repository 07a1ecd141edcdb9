package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/prasenjit/go-mockapi/internal/apidoc"
)

var validateCmd = &cobra.Command{
	Use:   "validate <api-file>",
	Short: "Load an API document and list the operations it declares",
	Args:  cobra.ExactArgs(1),
	RunE:  runValidate,
}

func runValidate(cmd *cobra.Command, args []string) error {
	doc, err := apidoc.LoadFile(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s %s (%s), base path %s\n\n", doc.Title, doc.Version, doc.SpecVersion, doc.BasePath)
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "METHOD\tPATH\tOPERATION\tRESPONSES")
	for _, p := range doc.Paths {
		for _, method := range p.Methods {
			op := p.Operations[method]
			codes := make([]string, 0, len(op.Responses))
			for _, r := range op.Responses {
				codes = append(codes, r.Code)
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", strings.ToUpper(method), p.Template, op.OperationID, strings.Join(codes, ","))
		}
	}
	return tw.Flush()
}
