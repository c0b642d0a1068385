package main

import (
	"fmt"

	"github.com/princekumarofficial/plate-console/internal/services/detect"
	"github.com/princekumarofficial/plate-console/internal/types/media"
	"github.com/spf13/cobra"
)

func kindCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "kind <file>",
		Short: "Print the media kind and endpoint a file would be sent to",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			contentType, err := declaredType(args[0])
			if err != nil {
				return err
			}

			kind := media.KindOf(contentType)
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", contentType, kind, media.Endpoint(kind))
			return nil
		},
	}
}

// declaredType reports the type a browser would declare for path
func declaredType(path string) (string, error) {
	head, err := readHead(path)
	if err != nil {
		return "", err
	}
	return detect.DeclaredType(path, head), nil
}
