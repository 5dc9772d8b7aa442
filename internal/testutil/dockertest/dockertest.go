// Package dockertest drives throwaway docker containers for integration
// tests. A suite that needs a real backing service describes its container
// once and shares the build, run, and stop plumbing.
package dockertest

import (
	"fmt"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
)

// Container describes a disposable test container built from a Dockerfile
// kept at the repository root.
type Container struct {
	Dockerfile string
	Image      string
	Name       string
	HostPort   string
	GuestPort  string
}

// Start builds the image and launches the container, replacing any leftover
// instance from a previous run.
func (c Container) Start() error {
	if _, err := exec.LookPath("docker"); err != nil {
		return fmt.Errorf("docker executable not found: %w", err)
	}
	_ = c.Stop()
	root := repoRoot()
	if err := run("build", "-f", filepath.Join(root, c.Dockerfile), "-t", c.Image, root); err != nil {
		return err
	}
	return run(
		"run",
		"-d",
		"--rm",
		"--name", c.Name,
		"-p", fmt.Sprintf("%s:%s", c.HostPort, c.GuestPort),
		c.Image,
	)
}

// Stop halts the container. A container that is not running is not an error.
func (c Container) Stop() error {
	cmd := exec.Command("docker", "stop", c.Name)
	cmd.Dir = repoRoot()
	output, err := cmd.CombinedOutput()
	if err != nil {
		if strings.Contains(string(output), "No such container") {
			return nil
		}
		return fmt.Errorf("docker stop failed: %w: %s", err, output)
	}
	return nil
}

func run(args ...string) error {
	cmd := exec.Command("docker", args...)
	cmd.Dir = repoRoot()
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("docker %s failed: %w: %s", args[0], err, output)
	}
	return nil
}

func repoRoot() string {
	_, file, _, _ := runtime.Caller(0)
	return filepath.Clean(filepath.Join(filepath.Dir(file), "..", "..", ".."))
}
