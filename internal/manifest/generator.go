// Package manifest invokes the external manifest generator. Generation is an
// opaque side effect: the generator writes into the release-state working
// tree and the promotion machine decides afterwards whether anything changed.
package manifest

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/chainctl/internal/logging"
)

// Generator renders deployment manifests for one (app, environment, zone).
type Generator interface {
	Generate(ctx context.Context, app, env, zone string) error
}

// outputTail caps how much generator output is attached to an error.
const outputTail = 2048

// ExecGenerator runs a configured command once per zone with the
// release-state working tree as its working directory. The app, environment
// and zone are appended as arguments and exported as CHAINCTL_APP,
// CHAINCTL_ENV and CHAINCTL_ZONE.
type ExecGenerator struct {
	argv    []string
	workdir string
	log     *logging.Logger
}

// NewExecGenerator builds an ExecGenerator. argv must name the command and
// any fixed leading arguments; workdir is the release-state working tree.
func NewExecGenerator(argv []string, workdir string, log *logging.Logger) (*ExecGenerator, error) {
	if len(argv) == 0 || argv[0] == "" {
		return nil, fmt.Errorf("generator command is empty")
	}
	if log == nil {
		log = logging.NewNop()
	}
	return &ExecGenerator{argv: argv, workdir: workdir, log: log}, nil
}

// Generate runs the generator command for one zone. A zone may be empty when
// the environment has no zone topology.
func (g *ExecGenerator) Generate(ctx context.Context, app, env, zone string) error {
	args := append([]string{}, g.argv[1:]...)
	args = append(args, app, env)
	if zone != "" {
		args = append(args, zone)
	}

	cmd := exec.CommandContext(ctx, g.argv[0], args...)
	cmd.Dir = g.workdir
	cmd.Env = append(os.Environ(),
		"CHAINCTL_APP="+app,
		"CHAINCTL_ENV="+env,
		"CHAINCTL_ZONE="+zone,
	)

	g.log.Debug(ctx, "running manifest generator",
		zap.String("command", g.argv[0]),
		zap.String("app", app),
		zap.String("environment", env),
		zap.String("zone", zone),
	)

	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("manifest generation for %s/%s zone %q: %w: %s",
			app, env, zone, err, tail(out))
	}
	return nil
}

func tail(out []byte) string {
	s := strings.TrimSpace(string(out))
	if len(s) > outputTail {
		s = "..." + s[len(s)-outputTail:]
	}
	return s
}
