// Copyright 2025 Veraxis Labs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/veraxis/scout/pkg/model"
	"github.com/veraxis/scout/pkg/runtime"
	"github.com/veraxis/scout/pkg/session"
	"github.com/veraxis/scout/pkg/trace"
)

// ResearchCmd answers a single research question from the terminal.
type ResearchCmd struct {
	Question string `arg:"" help:"Research question to investigate."`
	User     string `help:"User id that owns the session." default:"cli"`
	Session  string `help:"Existing session id to continue."`
	Topic    string `help:"Session topic (defaults to the question)."`
	Stream   *bool  `default:"true" negatable:"" help:"Print reasoning steps as they happen (--no-stream prints only the answer)."`
}

func (c *ResearchCmd) Run(cli *CLI) error {
	ctx, cancel := signalContext()
	defer cancel()

	cfg, err := loadConfig(cli.Config)
	if err != nil {
		return err
	}
	cli.applyLogging(cfg)

	rt, err := runtime.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to build runtime: %w", err)
	}
	defer rt.Close()

	sess, created, err := c.resolveSession(ctx, rt.Sessions())
	if err != nil {
		return err
	}

	color := term.IsTerminal(int(os.Stdout.Fd()))
	streaming := c.Stream == nil || *c.Stream

	var msg *model.Message
	if streaming {
		msg, err = rt.Engine().ResearchStream(ctx, sess.ID, c.Question, newStepRenderer(os.Stdout, color))
	} else {
		msg, err = rt.Engine().Research(ctx, sess.ID, c.Question)
	}
	if err != nil {
		return fmt.Errorf("research failed: %w", err)
	}

	printAnswer(os.Stdout, color, msg)

	// A session created for a one-shot question is done once answered;
	// a session resumed with --session stays open for the next turn.
	if created {
		if err := rt.Sessions().UpdateStatus(ctx, sess.ID, model.SessionCompleted, ""); err != nil {
			slog.Warn("Failed to close session", "session_id", sess.ID, "error", err)
		}
	} else {
		fmt.Printf("\nsession: %s\n", sess.ID)
	}
	return nil
}

func (c *ResearchCmd) resolveSession(ctx context.Context, svc *session.Service) (*model.ResearchSession, bool, error) {
	if c.Session != "" {
		sess, err := svc.Get(ctx, c.Session)
		if err != nil {
			return nil, false, fmt.Errorf("failed to resume session %s: %w", c.Session, err)
		}
		return sess, false, nil
	}

	topic := c.Topic
	if topic == "" {
		topic = c.Question
	}
	sess, err := svc.Create(ctx, c.User, topic)
	if err != nil {
		return nil, false, fmt.Errorf("failed to create session: %w", err)
	}
	return sess, true, nil
}

const (
	ansiBold   = "\033[1m"
	ansiDim    = "\033[2m"
	ansiRed    = "\033[31m"
	ansiGreen  = "\033[32m"
	ansiYellow = "\033[33m"
	ansiCyan   = "\033[36m"
	ansiReset  = "\033[0m"
)

// stepRenderer prints trace events as an indented reasoning transcript.
// It implements trace.Sink; the engine emits from the research goroutine,
// so writes are already serialized.
type stepRenderer struct {
	out   io.Writer
	color bool
}

func newStepRenderer(out io.Writer, color bool) *stepRenderer {
	return &stepRenderer{out: out, color: color}
}

func (r *stepRenderer) Emit(event trace.Event) {
	switch event.Type {
	case trace.TypeThought:
		r.printf(ansiCyan, "\n[step %d] %s\n", event.StepIndex+1, event.Content)
	case trace.TypeAction:
		r.printf(ansiYellow, "  -> %s\n", event.Content)
	case trace.TypeEvidence:
		r.printf(ansiGreen, "   + %s\n", event.Content)
	case trace.TypeObservation:
		r.printf(ansiDim, "     %s\n", clip(event.Content, 400))
	case trace.TypeError:
		r.printf(ansiRed, "   ! %s\n", event.Content)
	}
}

func (r *stepRenderer) printf(color, format string, args ...any) {
	if r.color {
		fmt.Fprint(r.out, color)
	}
	fmt.Fprintf(r.out, format, args...)
	if r.color {
		fmt.Fprint(r.out, ansiReset)
	}
}

// clip shortens long observations so the transcript stays readable.
func clip(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}

func printAnswer(out io.Writer, color bool, msg *model.Message) {
	bold, dim, reset := "", "", ""
	if color {
		bold, dim, reset = ansiBold, ansiDim, ansiReset
	}

	fmt.Fprintf(out, "\n%s%s%s\n", bold, strings.TrimSpace(msg.Content), reset)

	if msg.Chain == nil {
		return
	}
	if msg.Chain.Incomplete {
		fmt.Fprintf(out, "\n%snote: the research budget ran out, this answer may be incomplete%s\n", dim, reset)
	}
	fmt.Fprintf(out, "\n%sconfidence: %.2f (%d steps)%s\n", dim, msg.Chain.Confidence, len(msg.Chain.Steps), reset)
	if len(msg.Chain.Citations) > 0 {
		fmt.Fprintf(out, "%ssources:%s\n", dim, reset)
		for _, cit := range msg.Chain.Citations {
			src := cit.Source
			if src == "" {
				src = cit.DocumentID
			}
			fmt.Fprintf(out, "%s  [%s] %s%s\n", dim, cit.ChunkID, src, reset)
		}
	}
}
