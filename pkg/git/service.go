// Package git runs git protocol services against local repositories.
package git

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/swadhinbiswas/opencodehub/pkg/proto"
	"golang.org/x/sync/errgroup"
)

// Service is a git protocol service.
type Service string

const (
	// UploadPackService is the upload-pack service.
	UploadPackService Service = "git-upload-pack"
	// ReceivePackService is the receive-pack service.
	ReceivePackService Service = "git-receive-pack"
)

// String returns the string representation of the service.
func (s Service) String() string {
	return string(s)
}

// Name returns the git subcommand name of the service.
func (s Service) Name() string {
	return strings.TrimPrefix(s.String(), "git-")
}

// ParseService parses a service string. Only upload-pack and receive-pack
// are supported.
func ParseService(s string) (Service, bool) {
	switch Service(s) {
	case UploadPackService, ReceivePackService:
		return Service(s), true
	default:
		return "", false
	}
}

// Handler runs the service against the given command.
func (s Service) Handler(ctx context.Context, cmd ServiceCommand) error {
	switch s {
	case UploadPackService, ReceivePackService:
		return gitServiceHandler(ctx, s, cmd)
	default:
		return fmt.Errorf("%w: %s", proto.ErrUnsupportedService, s)
	}
}

// ServiceCommand is used to run a git service command.
type ServiceCommand struct {
	Stdin   io.Reader
	Stdout  io.Writer
	Stderr  io.Writer
	Dir     string
	Env     []string
	Args    []string
	CmdFunc func(*exec.Cmd)
}

// gitServiceHandler runs a git service using the git binary. Both stdio
// directions are pumped concurrently; sequential pumping deadlocks on large
// transfers once the OS pipe buffers fill. Cancelling the context kills the
// subprocess, and both streams are drained before the call returns.
func gitServiceHandler(ctx context.Context, svc Service, scmd ServiceCommand) error {
	cmd := exec.CommandContext(ctx, "git", "-c", "uploadpack.allowFilter=true", svc.Name()) // nolint: gosec
	cmd.Dir = scmd.Dir
	if len(scmd.Args) > 0 {
		cmd.Args = append(cmd.Args, scmd.Args...)
	}

	cmd.Args = append(cmd.Args, ".")

	cmd.Env = os.Environ()
	if len(scmd.Env) > 0 {
		cmd.Env = append(cmd.Env, scmd.Env...)
	}

	// Bound how long Wait blocks on stdio after the context is cancelled.
	cmd.WaitDelay = 10 * time.Second

	if scmd.CmdFunc != nil {
		scmd.CmdFunc(cmd)
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return err
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return err
	}

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return err
	}

	if err := cmd.Start(); err != nil {
		return err
	}

	errg, _ := errgroup.WithContext(ctx)

	// stdin
	errg.Go(func() error {
		defer stdin.Close() // nolint: errcheck
		if scmd.Stdin == nil {
			return nil
		}
		_, err := io.Copy(stdin, scmd.Stdin)
		return err
	})

	// stdout
	errg.Go(func() error {
		out := scmd.Stdout
		if out == nil {
			out = io.Discard
		}
		_, err := io.Copy(out, stdout)
		return err
	})

	// stderr
	errg.Go(func() error {
		er := scmd.Stderr
		if er == nil {
			er = io.Discard
		}
		_, err := io.Copy(er, stderr)
		return err
	})

	return errors.Join(errg.Wait(), cmd.Wait())
}

// UploadPack runs the git upload-pack protocol against the provided repo.
func UploadPack(ctx context.Context, cmd ServiceCommand) error {
	return gitServiceHandler(ctx, UploadPackService, cmd)
}

// ReceivePack runs the git receive-pack protocol against the provided repo.
func ReceivePack(ctx context.Context, cmd ServiceCommand) error {
	return gitServiceHandler(ctx, ReceivePackService, cmd)
}
