// Package responder wraps the reasoning engine that drafts replies to
// classified events. The engine is a black box invoked as a subprocess;
// everything interesting about its output is arbitrary prose that gets
// posted back to the triggering platform.
package responder

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"github.com/RevCBH/vigil/internal/event"
)

// Request carries one classified event to the engine.
type Request struct {
	Event          event.Event
	Classification event.Classification

	// Instructions prepends handler-specific guidance to the prompt,
	// e.g. "draft a defect ticket" for the triage handler.
	Instructions string
}

// Reply is the engine's drafted response. Empty Content means the engine
// decided no reply is warranted.
type Reply struct {
	Content string
}

// Responder drafts a reply for a request.
type Responder interface {
	Respond(ctx context.Context, req Request) (*Reply, error)
}

// CLIResponder implements Responder by invoking the claude CLI.
type CLIResponder struct {
	binary  string
	timeout time.Duration
}

// NewCLIResponder creates a CLIResponder with default settings.
func NewCLIResponder() *CLIResponder {
	return &CLIResponder{binary: "claude", timeout: 2 * time.Minute}
}

// NewCLIResponderWithBinary creates a CLIResponder with a custom binary path.
func NewCLIResponderWithBinary(binary string, timeout time.Duration) *CLIResponder {
	return &CLIResponder{binary: binary, timeout: timeout}
}

// Respond runs the CLI with the rendered prompt and returns its stdout as
// the reply content.
func (c *CLIResponder) Respond(ctx context.Context, req Request) (*Reply, error) {
	if req.Event.ID == "" {
		return nil, ErrEmptyEvent
	}

	cmdCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		cmdCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(cmdCtx, c.binary, "-p", renderPrompt(req), "--output-format", "text")
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err != nil {
		if cmdCtx.Err() == context.DeadlineExceeded {
			return nil, ErrTimeout
		}
		exitCode := 0
		if exitErr, ok := err.(*exec.ExitError); ok {
			if status, ok := exitErr.Sys().(syscall.WaitStatus); ok {
				exitCode = status.ExitStatus()
			}
		}
		return nil, NewExecutionError(exitCode, fmt.Errorf("%s: %w", strings.TrimSpace(stderr.String()), err))
	}

	return &Reply{Content: strings.TrimSpace(stdout.String())}, nil
}

// renderPrompt flattens the event and its conversation history into the
// prompt text. History goes oldest first so the engine reads the thread
// the way a human would.
func renderPrompt(req Request) string {
	var b strings.Builder

	if req.Instructions != "" {
		b.WriteString(req.Instructions)
		b.WriteString("\n\n")
	}

	fmt.Fprintf(&b, "Source: %s\nTarget: %s\nFrom: %s\nClassified as: %s\n\n",
		req.Event.Source, req.Event.TargetRef, req.Event.Actor, req.Classification.Kind)

	if req.Event.Context.Description != "" {
		fmt.Fprintf(&b, "Item description:\n%s\n\n", req.Event.Context.Description)
	}
	if len(req.Event.Context.Comments) > 0 {
		fmt.Fprintf(&b, "Prior discussion (%d comments):\n", len(req.Event.Context.Comments))
		for i, c := range req.Event.Context.Comments {
			fmt.Fprintf(&b, "[%d] %s: %s\n", i+1, c.Author, c.Text)
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "Message requiring a response:\n%s\n", req.Event.Text)
	return b.String()
}

// Mock is a test implementation of Responder.
type Mock struct {
	// RespondFunc is called when Respond is invoked.
	RespondFunc func(ctx context.Context, req Request) (*Reply, error)

	// Requests records every request received.
	Requests []Request
}

// Respond delegates to RespondFunc, defaulting to an echo reply.
func (m *Mock) Respond(ctx context.Context, req Request) (*Reply, error) {
	m.Requests = append(m.Requests, req)
	if m.RespondFunc != nil {
		return m.RespondFunc(ctx, req)
	}
	return &Reply{Content: "ack: " + req.Event.ID}, nil
}
