package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"net/http"
	"os"
	"slices"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/example/tablebook/internal/api"
	"github.com/example/tablebook/internal/booking"
	"github.com/example/tablebook/internal/config"
	"github.com/example/tablebook/internal/crypto"
	"github.com/example/tablebook/internal/logging"
	"github.com/example/tablebook/internal/session"
	"github.com/example/tablebook/internal/storage"
)

var (
	errSessionExpired = errors.New("session expired, run `tablebook login`")
	errNotSignedIn    = errors.New("not signed in, run `tablebook login`")
)

// cliEnv is what every CLI command that talks to the booking API needs.
// The session lives in the SQLite state file so it survives between runs.
type cliEnv struct {
	cfg   config.Config
	log   zerolog.Logger
	api   *api.Client
	sess  *session.Session
	state *storage.SQLite
}

func openCLI(cmd *cobra.Command) (*cliEnv, error) {
	cfg, err := config.FromEnv()
	if err != nil {
		return nil, err
	}
	log := logging.New(cfg.LogLevel, cfg.LogFormat, cmd.ErrOrStderr())

	state, err := storage.OpenSQLite(cfg.StatePath)
	if err != nil {
		return nil, err
	}
	var store storage.Store = state
	if len(cfg.StoreKey) > 0 {
		aead, err := crypto.New(cfg.StoreKey)
		if err != nil {
			_ = state.Close()
			return nil, err
		}
		store = storage.NewSealed(state, aead)
	}

	client := api.New(cfg.APIBaseURL, log)
	sess := session.New(store, client, log)
	sess.Init(cmd.Context())

	return &cliEnv{cfg: cfg, log: log, api: client, sess: sess, state: state}, nil
}

func (e *cliEnv) Close() {
	if err := e.state.Close(); err != nil {
		e.log.Warn().Err(err).Msg("close state file")
	}
}

func (e *cliEnv) requireLogin() error {
	if !e.sess.Authenticated() {
		return errNotSignedIn
	}
	return nil
}

// apiErr turns a rejected token into a hint to sign in again, dropping the
// stored session on the way.
func (e *cliEnv) apiErr(ctx context.Context, err error) error {
	if api.IsUnauthorized(err) {
		e.sess.Clear(ctx)
		return errSessionExpired
	}
	return err
}

func (e *cliEnv) findRestaurant(ctx context.Context, id string) (booking.Restaurant, error) {
	rs, err := e.api.ListRestaurants(ctx, e.sess.Token())
	if err != nil {
		return booking.Restaurant{}, e.apiErr(ctx, err)
	}
	for _, r := range rs {
		if r.ID == id || r.MicrositeName == id {
			return r, nil
		}
	}
	r, err := e.api.GetRestaurant(ctx, e.sess.Token(), id)
	if err != nil {
		if api.StatusCode(err) == http.StatusNotFound {
			return booking.Restaurant{}, fmt.Errorf("restaurant %q not found", id)
		}
		return booking.Restaurant{}, e.apiErr(ctx, err)
	}
	return r, nil
}

// describeInvalid lists field messages in a stable order.
func describeInvalid(errs booking.ValidationErrors) string {
	var parts []string
	for _, f := range slices.Sorted(maps.Keys(errs)) {
		parts = append(parts, f+": "+errs[f])
	}
	return strings.Join(parts, "; ")
}

// userMessage prefers the message the booking flow recorded for the user.
func userMessage(msg string, err error) error {
	if msg == "" {
		return err
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// readLine prompts on stderr and reads one line from stdin.
func readLine(cmd *cobra.Command, prompt string) (string, error) {
	fmt.Fprint(cmd.ErrOrStderr(), prompt)
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
