package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/lazypower/vaultactivity/internal/client"
	"github.com/lazypower/vaultactivity/internal/engine"
	"github.com/lazypower/vaultactivity/internal/notice"
)

const healthTimeout = time.Second

// serverClient builds a client for --server, VAULTACTIVITY_URL or the
// configured listen address, in that order.
func serverClient() *client.Client {
	url := serverURL
	if url == "" && os.Getenv("VAULTACTIVITY_URL") == "" {
		if cfg, err := loadConfig(); err == nil {
			url = cfg.ServerURL()
		}
	}
	return client.New(url)
}

// remote runs commands on a running server, which owns the activity data
// while it is up.
type remote struct {
	c      *client.Client
	errOut io.Writer
}

func dialServer(ctx context.Context, errOut io.Writer) (*remote, bool) {
	c := serverClient()
	hctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()
	if !c.Healthy(hctx) {
		return nil, false
	}
	return &remote{c: c, errOut: errOut}, true
}

func getJSON[T any](ctx context.Context, r *remote, path string) (T, error) {
	var v T
	data, err := r.c.Get(ctx, path)
	if err != nil {
		return v, err
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return v, fmt.Errorf("decode %s: %w", path, err)
	}
	return v, nil
}

func (r *remote) rankings(ctx context.Context, order string) (engine.ListView, error) {
	return getJSON[engine.ListView](ctx, r, "/api/rankings?order="+order)
}

func (r *remote) dashboard(ctx context.Context) (engine.Dashboard, error) {
	return getJSON[engine.Dashboard](ctx, r, "/api/dashboard")
}

func (r *remote) text(ctx context.Context, path string) (string, error) {
	data, err := r.c.Get(ctx, path)
	return string(data), err
}

// command posts to a command endpoint and echoes the notice the server
// showed for it. Failures the server already reported as a notice are not
// returned as errors.
func (r *remote) command(ctx context.Context, path string) error {
	_, err := r.c.Post(ctx, path, nil)
	notices, nerr := getJSON[[]notice.Notice](ctx, r, "/api/notices?limit=1")
	if nerr == nil && len(notices) > 0 {
		fmt.Fprintln(r.errOut, notices[0].Message)
		return nil
	}
	return err
}

// runCommand sends the command to a running server when there is one.
// Otherwise it runs local against storage directly; writes says whether
// local changes the data and must be saved on the way out.
func runCommand(cmd *cobra.Command, writes bool,
	viaServer func(ctx context.Context, r *remote) error,
	local func(ctx context.Context, a *app) error,
) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
	defer cancel()

	if r, ok := dialServer(ctx, cmd.ErrOrStderr()); ok {
		return viaServer(ctx, r)
	}

	a, err := openApp(ctx, nil, true)
	if err != nil {
		return err
	}
	err = local(ctx, a)
	if cerr := a.Close(ctx, writes); cerr != nil && err == nil {
		err = cerr
	}
	return err
}
