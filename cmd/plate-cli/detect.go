package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/princekumarofficial/plate-console/internal/config"
	"github.com/princekumarofficial/plate-console/internal/objecturl"
	"github.com/princekumarofficial/plate-console/internal/services/detect"
	"github.com/princekumarofficial/plate-console/internal/types/media"
	"github.com/princekumarofficial/plate-console/internal/upload"
	"github.com/spf13/cobra"
)

var errDetectionFailed = errors.New("detection failed")

// cliEvent is the submit event of a terminal run; there is no default
// action to cancel.
type cliEvent struct{}

func (cliEvent) PreventDefault() {}

type fileInput struct {
	upload *media.Upload
}

func (i fileInput) File() (*media.Upload, bool) {
	return i.upload, i.upload != nil
}

// fileContainer saves the displayed result to disk and prints its markup
type fileContainer struct {
	ctx      context.Context
	registry *objecturl.Registry
	path     string
	out      io.Writer
	err      error
}

func (c *fileContainer) Replace(el upload.Element) {
	id, ok := objecturl.ID(el.Src)
	if !ok {
		c.err = fmt.Errorf("unexpected result source %q", el.Src)
		return
	}
	blob, err := c.registry.Open(c.ctx, id)
	if err != nil {
		c.err = err
		return
	}
	if err := os.WriteFile(c.path, blob.Body, 0o644); err != nil {
		c.err = fmt.Errorf("write result: %w", err)
		return
	}
	fmt.Fprintln(c.out, el.HTML())
	fmt.Fprintf(c.out, "saved %s (%s, %d bytes)\n", c.path, blob.ContentType, len(blob.Body))
}

type stderrAlerter struct {
	w       io.Writer
	alerted bool
}

func (a *stderrAlerter) Alert(message string) {
	a.alerted = true
	fmt.Fprintln(a.w, message)
}

func detectCmd() *cobra.Command {
	var (
		out    string
		server string
	)

	cmd := &cobra.Command{
		Use:   "detect <file>",
		Short: "Run plate detection on an image or video",
		Long: `Upload a file to the detection service and save the processed result.

The service address defaults to DETECTOR_BASE_URL, then http://127.0.0.1:5000.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadEnv()
			if err != nil {
				return err
			}
			if server != "" {
				cfg.Detector.BaseURL = server
			}
			detector := detect.New(cfg.Detector.BaseURL, &http.Client{Timeout: cfg.Detector.Timeout})

			return runDetect(cmd.Context(), detector, args[0], out, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "", "Where to save the result (default <name>.processed<ext>)")
	cmd.Flags().StringVarP(&server, "server", "s", "", "Detection service base URL")

	return cmd
}

func runDetect(ctx context.Context, detector upload.Detector, path, out string, stdout, stderr io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}

	head, err := readHead(path)
	if err != nil {
		return err
	}

	if out == "" {
		out = processedPath(path)
	}

	registry := objecturl.NewRegistry(objecturl.NewMemoryStore())
	container := &fileContainer{ctx: ctx, registry: registry, path: out, out: stdout}
	alerter := &stderrAlerter{w: stderr}

	handler := upload.New(upload.Deps{
		Input: fileInput{upload: &media.Upload{
			Filename:    filepath.Base(path),
			ContentType: detect.DeclaredType(path, head),
			Size:        info.Size(),
			Body:        f,
		}},
		Container: container,
		Alerter:   alerter,
		Detector:  detector,
		Registry:  registry,
	})
	defer handler.Close(ctx)

	if err := handler.Submit(ctx, cliEvent{}); err != nil {
		return err
	}
	if container.err != nil {
		return container.err
	}
	if alerter.alerted {
		return errDetectionFailed
	}
	return nil
}

// processedPath turns dir/car.jpg into dir/car.processed.jpg
func processedPath(path string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + ".processed" + ext
}

func readHead(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	head := make([]byte, 512)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return bytes.Clone(head[:n]), nil
}
