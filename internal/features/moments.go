// Package features turns aligned scans into moment feature tables by calling
// an external moment calculator once per cloud.
package features

import (
	"bytes"
	"context"
	"math"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/kballard/go-shellquote"
)

// ErrToolInvocation is returned when the moment tool exits non-zero, times
// out or prints something that is not a single numeric line.
var ErrToolInvocation = errors.New("moment tool invocation failed")

// Request describes one moment computation.
type Request struct {
	Cloud string // path to the point cloud
	Nose  string // optional landmark file passed with -n
}

// MomentComputer computes the moment vector of one cloud.
type MomentComputer interface {
	Compute(ctx context.Context, req Request) ([]float64, error)
}

// ExecMomentComputer runs the moment tool as a subprocess:
//
//	<tool> [-m moment] -i <cloud> [-n <nose>] -o stdout -c <cut>
type ExecMomentComputer struct {
	command []string
	moment  string
	cut     string
	timeout time.Duration
}

// NewExecMomentComputer parses tool as a shell-quoted command line, so a
// wrapper such as "nice -n 10 ../bin/mcalc" also works. A zero timeout
// disables the per-call deadline.
func NewExecMomentComputer(tool, moment, cut string, timeout time.Duration) (*ExecMomentComputer, error) {
	command, err := shellquote.Split(tool)
	if err != nil {
		return nil, errors.Wrapf(err, "parse tool command %q", tool)
	}
	if len(command) == 0 {
		return nil, errors.New("empty tool command")
	}
	return &ExecMomentComputer{command: command, moment: moment, cut: cut, timeout: timeout}, nil
}

// CheckTool reports whether the tool binary can be found. A missing tool is
// a resource-level fault that should stop the run before any item starts.
func (e *ExecMomentComputer) CheckTool() error {
	if _, err := exec.LookPath(e.command[0]); err != nil {
		return errors.WithHint(errors.Wrapf(err, "moment tool %s", e.command[0]),
			"set tool_path in the config file or LATIN_TOOL_PATH")
	}
	return nil
}

// Args returns the argument vector for req, without the program name.
func (e *ExecMomentComputer) Args(req Request) []string {
	args := append([]string(nil), e.command[1:]...)
	if e.moment != "" {
		args = append(args, "-m", e.moment)
	}
	args = append(args, "-i", req.Cloud)
	if req.Nose != "" {
		args = append(args, "-n", req.Nose)
	}
	return append(args, "-o", "stdout", "-c", e.cut)
}

// Compute runs the tool for one cloud and parses its stdout.
func (e *ExecMomentComputer) Compute(ctx context.Context, req Request) ([]float64, error) {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, e.command[0], e.Args(req)...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			err = ctx.Err()
		}
		return nil, errors.Mark(errors.Wrapf(err, "%s on %s: %s", e.command[0], req.Cloud,
			strings.TrimSpace(stderr.String())), ErrToolInvocation)
	}
	return ParseMoments(stdout.String())
}

// ParseMoments parses one whitespace separated line of moments. Trailing
// whitespace is ignored; nan, -nan, inf and -inf are accepted.
func ParseMoments(out string) ([]float64, error) {
	out = strings.TrimRight(out, " \t\r\n")
	if out == "" {
		return nil, errors.Wrap(ErrToolInvocation, "empty output")
	}
	if strings.ContainsAny(out, "\n") {
		return nil, errors.Wrap(ErrToolInvocation, "expected a single output line")
	}
	fields := strings.Fields(out)
	moments := make([]float64, len(fields))
	for i, f := range fields {
		v, err := parseMoment(f)
		if err != nil {
			return nil, errors.Wrapf(ErrToolInvocation, "column %d: %q is not a number", i, f)
		}
		moments[i] = v
	}
	return moments, nil
}

func parseMoment(s string) (float64, error) {
	switch strings.ToLower(s) {
	case "nan", "-nan", "+nan":
		return math.NaN(), nil
	}
	return strconv.ParseFloat(s, 64)
}
