package main

import (
	"fmt"
	"strings"

	charmlog "github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/BegaDeveloper/medqa/internal/logging"
	"github.com/BegaDeveloper/medqa/internal/publish"
	"github.com/BegaDeveloper/medqa/internal/runtimeconfig"
)

const (
	targetHub  = "hub"
	targetBolt = "bolt"
)

// commandContext carries the persistent flags and what is derived from them
// once a command starts.
type commandContext struct {
	envFile   string
	logLevel  string
	logFormat string

	fileConfig runtimeconfig.FileConfig
	logger     *charmlog.Logger
}

func (c *commandContext) prepare(cmd *cobra.Command) error {
	fileConfig, err := runtimeconfig.Load(c.envFile)
	if err != nil {
		return err
	}
	c.fileConfig = fileConfig

	level := c.stringSetting(cmd, "log-level", c.logLevel, "MEDQA_LOG_LEVEL", "info")
	format := c.stringSetting(cmd, "log-format", c.logFormat, "MEDQA_LOG_FORMAT", "")
	logger, err := logging.New(logging.Options{Level: level, Format: format, Output: cmd.ErrOrStderr()})
	if err != nil {
		return err
	}
	c.logger = logger
	return nil
}

// stringSetting prefers an explicitly set flag, then the environment, then
// the env file, then fallback.
func (c *commandContext) stringSetting(cmd *cobra.Command, flag string, value string, key string, fallback string) string {
	if cmd.Flags().Changed(flag) {
		return strings.TrimSpace(value)
	}
	return runtimeconfig.ResolveString(key, c.fileConfig.Values, fallback)
}

func (c *commandContext) pathSetting(cmd *cobra.Command, flag string, value string, key string, fallback string) (string, error) {
	expanded, err := runtimeconfig.ExpandPath(c.stringSetting(cmd, flag, value, key, fallback))
	if err != nil {
		return "", fmt.Errorf("--%s: %w", flag, err)
	}
	return expanded, nil
}

// targetFlags are shared by every command that talks to a dataset repository.
type targetFlags struct {
	username string
	repoName string
	private  string
	target   string
	boltPath string
	endpoint string
}

func (flags *targetFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&flags.username, "username", "", "Repository owner or namespace (env HF_USERNAME)")
	cmd.Flags().StringVar(&flags.repoName, "repo-name", "", "Dataset repository name (env HF_REPO_NAME)")
	cmd.Flags().StringVar(&flags.private, "private", "", "Whether the dataset repository should be private: 1, true, t, yes or y (env PRIVATE)")
	cmd.Flags().StringVar(&flags.target, "target", "", "Publish backend: hub or bolt (env MEDQA_TARGET)")
	cmd.Flags().StringVar(&flags.boltPath, "bolt-path", "", "Repository file for the bolt backend (env MEDQA_BOLT_PATH)")
	cmd.Flags().StringVar(&flags.endpoint, "endpoint", "", "Dataset hub base URL (env HF_ENDPOINT)")
}

type resolvedTarget struct {
	target   publish.Target
	backend  string
	boltPath string
	endpoint string
	token    string
}

func (c *commandContext) resolveTarget(cmd *cobra.Command, flags *targetFlags, defaultBoltPath string) (resolvedTarget, error) {
	resolved := resolvedTarget{
		target: publish.Target{
			Namespace: c.stringSetting(cmd, "username", flags.username, "HF_USERNAME", "mkieffer"),
			Name:      c.stringSetting(cmd, "repo-name", flags.repoName, "HF_REPO_NAME", "MedQA-USMLE"),
			Private:   runtimeconfig.ResolveBool("PRIVATE", c.fileConfig.Values, false),
		},
		backend:  strings.ToLower(c.stringSetting(cmd, "target", flags.target, "MEDQA_TARGET", targetHub)),
		endpoint: c.stringSetting(cmd, "endpoint", flags.endpoint, "HF_ENDPOINT", publish.DefaultEndpoint),
		token:    runtimeconfig.ResolveString("HF_TOKEN", c.fileConfig.Values, ""),
	}
	if cmd.Flags().Changed("private") {
		resolved.target.Private = runtimeconfig.ParseBool(flags.private)
	}
	boltPath, err := c.pathSetting(cmd, "bolt-path", flags.boltPath, "MEDQA_BOLT_PATH", defaultBoltPath)
	if err != nil {
		return resolvedTarget{}, err
	}
	resolved.boltPath = boltPath

	if resolved.backend != targetHub && resolved.backend != targetBolt {
		return resolvedTarget{}, fmt.Errorf("--target must be %q or %q, got %q", targetHub, targetBolt, resolved.backend)
	}
	if err := resolved.target.Validate(); err != nil {
		return resolvedTarget{}, err
	}
	return resolved, nil
}

type repository interface {
	publish.Publisher
	publish.Previewer
}

// open connects to the backend selected by resolved. The caller closes it.
func (resolved resolvedTarget) open() (repository, error) {
	if resolved.backend == targetBolt {
		store, err := publish.OpenBolt(resolved.boltPath)
		if err != nil {
			return nil, err
		}
		return store, nil
	}
	hub, err := publish.NewHub(publish.HubOptions{Endpoint: resolved.endpoint, Token: resolved.token})
	if err != nil {
		return nil, err
	}
	return hub, nil
}

func (resolved resolvedTarget) location() string {
	if resolved.backend == targetBolt {
		return fmt.Sprintf("%s (%s)", resolved.target.ID(), resolved.boltPath)
	}
	return publish.RepoURL(resolved.endpoint, resolved.target)
}
