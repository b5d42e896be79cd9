package main

import (
	"bytes"
	"context"
	"io"
	"os/exec"
	"strings"
)

// Command wraps exec.Cmd. Whatever stream is not piped to the caller is
// collected and returned by GetOutput once the process exited.
type Command struct {
	cmd    *exec.Cmd
	name   string
	output bytes.Buffer
	stdin  io.WriteCloser
	stdout io.ReadCloser
	waited bool
	err    error
}

func NewCommandContext(ctx context.Context, name string, args ...string) *Command {
	cmd := exec.CommandContext(ctx, name, args...)

	return &Command{cmd: cmd, name: name + " " + strings.Join(args, " ")}
}

func (c *Command) String() string {
	return c.name
}

func (c *Command) GetStdin() (io.WriteCloser, error) {
	if c.stdin == nil {
		stdin, err := c.cmd.StdinPipe()
		if err != nil {
			return nil, err
		}
		c.stdin = stdin
	}
	return c.stdin, nil
}

func (c *Command) GetStdout() (io.ReadCloser, error) {
	if c.stdout == nil {
		stdout, err := c.cmd.StdoutPipe()
		if err != nil {
			return nil, err
		}
		c.stdout = stdout
	}
	return c.stdout, nil
}

func (c *Command) Start() error {
	if c.stdout == nil {
		c.cmd.Stdout = &c.output
	}
	c.cmd.Stderr = &c.output

	return c.cmd.Start()
}

// Wait can be called more than once, later calls return the first result.
func (c *Command) Wait() error {
	if c.waited {
		return c.err
	}

	c.waited = true
	c.err = c.cmd.Wait()
	return c.err
}

func (c *Command) Kill() error {
	if c.cmd.Process == nil || c.waited {
		return nil
	}

	return c.cmd.Process.Kill()
}

func (c *Command) CombinedOutput() (string, error) {
	if err := c.Start(); err != nil {
		return "", err
	}

	err := c.Wait()
	return c.GetOutput(), err
}

func (c *Command) GetOutput() string {
	return strings.TrimSpace(c.output.String())
}
