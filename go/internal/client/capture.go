package client

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/karmahq/questline/go/clients/karma_api_client"
	"github.com/karmahq/questline/go/internal/capture"
)

// stdinCamera treats bytes piped on stdin as the live camera frame. A
// terminal stdin means no camera is available; the --file fallback still
// works, matching the page's behavior when camera access is denied.
type stdinCamera struct {
	r     io.Reader
	frame []byte
}

func (c *stdinCamera) Open(ctx context.Context) error {
	data, err := io.ReadAll(c.r)
	if err != nil {
		return fmt.Errorf("read camera input: %w", err)
	}
	if len(data) == 0 {
		return fmt.Errorf("no camera input on stdin")
	}
	c.frame = data
	return nil
}

func (c *stdinCamera) Frame(ctx context.Context) (capture.Frame, error) {
	if len(c.frame) == 0 {
		return capture.Frame{}, fmt.Errorf("camera not open")
	}
	return capture.Frame{Data: c.frame}, nil
}

// printNavigator prints the post-upload destination instead of navigating.
type printNavigator struct {
	w io.Writer
}

func (n *printNavigator) Navigate(url string) {
	fmt.Fprintf(n.w, "Quest complete! Continue at: %s\n", url)
}

// printNotifier surfaces the flow's blocking alerts on stderr.
type printNotifier struct {
	w io.Writer
}

func (n *printNotifier) Alert(msg string) {
	fmt.Fprintln(n.w, msg)
}

func newCaptureCmd(opts *rootOptions) *cobra.Command {
	var filePath string

	cmd := &cobra.Command{
		Use:   "capture <quest-id>",
		Short: "Submit a quest-completion photo",
		Long:  "Submit a quest-completion photo, either piped on stdin (camera path) or from a file with --file.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			token, ok := cfg.SessionToken()
			if !ok {
				fmt.Fprintln(cmd.OutOrStdout(), MsgPleaseLogIn)
				return nil
			}

			questID := args[0]
			camera := &stdinCamera{r: cmd.InOrStdin()}
			flow := capture.NewFlow(
				cfg.ServerURL+karma_api_client.UploadEndpoint,
				questID,
				camera,
				&printNavigator{w: cmd.OutOrStdout()},
				&printNotifier{w: cmd.ErrOrStderr()},
				capture.WithUserID(token),
			)

			ctx := cmd.Context()
			if filePath != "" {
				f, err := os.Open(filePath)
				if err != nil {
					return fmt.Errorf("open image file: %w", err)
				}
				defer f.Close()
				return flow.SubmitFile(ctx, filepath.Base(filePath), f)
			}

			flow.Start(ctx)
			if err := flow.Capture(ctx); err != nil {
				return err
			}
			return flow.Submit(ctx)
		},
	}

	cmd.Flags().StringVarP(&filePath, "file", "f", "", "submit an image file instead of the stdin camera")
	return cmd
}
