package service

import (
	"bufio"
	"context"
	stderrs "errors"
	"io"
	"maps"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	perr "gridintake/internal/platform/errors"
	"gridintake/internal/platform/logger"
	"gridintake/internal/platform/sched"
	qdomain "gridintake/internal/services/queue/domain"
	"gridintake/internal/services/worker/domain"
)

// importScripts name the bundled import binary rather than a script file
var importScripts = map[string]bool{"gridintake-import": true, "import": true}

const datasetFlag = "--dataset"

// command resolves the executable and arguments of an import step
func (s *Service) command(imp *qdomain.ImportSpec, dataset string) (domain.Command, error) {
	if imp == nil || imp.Script == "" {
		return domain.Command{}, perr.InvalidArgf("import step needs a script")
	}
	if strings.ContainsAny(imp.Script, `/\`) || strings.HasPrefix(imp.Script, ".") {
		return domain.Command{}, perr.WithField(perr.InvalidArgf("script %q is not a plain name", imp.Script), "script")
	}
	path := filepath.Join(s.Cfg.ScriptDir, imp.Script)
	if importScripts[imp.Script] {
		path = s.Cfg.ImportBin
	}

	env := make([]string, 0, len(imp.Env))
	for _, k := range slices.Sorted(maps.Keys(imp.Env)) {
		env = append(env, k+"="+imp.Env[k])
	}
	return domain.Command{
		Path: path,
		Args: withDataset(imp.Args, dataset),
		Env:  env,
	}, nil
}

// withDataset points the --dataset argument at path, appending it when absent
func withDataset(args []string, path string) []string {
	out := slices.Clone(args)
	if path == "" {
		return out
	}
	for i, a := range out {
		switch {
		case a == datasetFlag && i+1 < len(out):
			out[i+1] = path
			return out
		case a == datasetFlag:
			return append(out, path)
		case strings.HasPrefix(a, datasetFlag+"="):
			out[i] = datasetFlag + "=" + path
			return out
		}
	}
	return append(out, datasetFlag, path)
}

// spawn runs c to completion at reduced priority, forwarding its output to the job log
// The child is not tied to ctx cancellation and runs in its own process group, so a
// shutdown or a Ctrl-C in the worker's terminal lets it finish
func (s *Service) spawn(ctx context.Context, c domain.Command) error {
	log := logger.C(ctx)

	cmd := exec.Command(c.Path, c.Args...)
	cmd.Env = append(os.Environ(), c.Env...)
	sched.Detach(cmd)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return perr.Wrap(err, perr.ErrorCodeUnavailable, "stdout pipe")
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return perr.Wrap(err, perr.ErrorCodeUnavailable, "stderr pipe")
	}
	if err := cmd.Start(); err != nil {
		return perr.Wrapf(err, perr.ErrorCodeUnavailable, "start %s", c.Path)
	}
	pid := cmd.Process.Pid
	log.Info().Int("pid", pid).Str("path", c.Path).Strs("args", c.Args).Msg("import started")

	if err := s.Lowerer.Lower(pid, s.Cfg.Priority); err != nil {
		log.Warn().Err(err).Int("pid", pid).Msg("could not lower child priority")
	}

	var (
		wg   sync.WaitGroup
		tail string
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		forward(stdout, func(line string) { log.Info().Str("stream", "stdout").Msg(line) })
	}()
	go func() {
		defer wg.Done()
		forward(stderr, func(line string) {
			tail = line
			log.Warn().Str("stream", "stderr").Msg(line)
		})
	}()
	wg.Wait()

	err = cmd.Wait()
	if err == nil {
		return nil
	}
	var ee *exec.ExitError
	if stderrs.As(err, &ee) && ee.ExitCode() >= 0 {
		return &domain.ExitError{Code: ee.ExitCode(), Tail: tail}
	}
	return perr.Wrapf(err, perr.ErrorCodeUnavailable, "wait pid %d", pid)
}

func forward(r io.Reader, emit func(string)) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64<<10), 1<<20)
	for sc.Scan() {
		if line := strings.TrimRight(sc.Text(), "\r"); line != "" {
			emit(line)
		}
	}
	// drain so the child never blocks on a full pipe after an overlong line
	_, _ = io.Copy(io.Discard, r)
}
