package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedData(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	for _, name := range []string{"train", "test", "dev", "us_qbank"} {
		lines := make([]string, 0, 3)
		for position := 0; position < 3; position++ {
			lines = append(lines, fmt.Sprintf(`{"question":"%s %d","options":{"A":"yes","B":"no"},"answer_idx":"A"}`, name, position))
		}
		path := filepath.Join(dir, name+".jsonl")
		require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644))
	}
	return dir
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	stdout := bytes.Buffer{}
	stderr := bytes.Buffer{}
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	base := []string{"--env-file", filepath.Join(t.TempDir(), "missing.env"), "--log-level", "error", "--log-format", "text"}
	cmd.SetArgs(append(base, args...))
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), err
}

func TestPublishToBoltThenPreview(t *testing.T) {
	dataDir := seedData(t)
	outputDir := filepath.Join(t.TempDir(), "output")
	boltPath := filepath.Join(t.TempDir(), "hub.db")
	targetArgs := []string{"--target", "bolt", "--bolt-path", boltPath, "--username", "owner", "--repo-name", "medqa"}

	stdout, err := execute(t, append([]string{"--data-dir", dataDir, "--output-dir", outputDir}, targetArgs...)...)
	require.NoError(t, err)
	assert.Contains(t, stdout, "Duplicate questions")
	assert.Contains(t, stdout, "Dataset sizes (post-filter):")
	assert.Contains(t, stdout, "Dataset pushed to owner/medqa ("+boltPath+")")
	assert.FileExists(t, filepath.Join(outputDir, "us_qbank.jsonl"))

	stdout, err = execute(t, append([]string{"preview"}, targetArgs...)...)
	require.NoError(t, err)
	train := strings.Index(stdout, "Train example:")
	dev := strings.Index(stdout, "Dev example:")
	test := strings.Index(stdout, "Test example:")
	qbank := strings.Index(stdout, "US QBank example:")
	require.True(t, train >= 0 && train < dev && dev < test && test < qbank, stdout)
	assert.Contains(t, stdout, `"question": "train 0"`)
	assert.Contains(t, stdout, `"answer": "A"`)
}

func TestNoPublishSkipsTarget(t *testing.T) {
	outputDir := t.TempDir()
	stdout, err := execute(t, "--data-dir", seedData(t), "--output-dir", outputDir, "--no-publish", "--skip-duplicates", "--target", "nowhere")
	require.NoError(t, err)
	assert.NotContains(t, stdout, "Duplicate questions")
	assert.Contains(t, stdout, "Normalized splits written to "+outputDir)
}

func TestUnknownTargetIsRejected(t *testing.T) {
	_, err := execute(t, "--data-dir", seedData(t), "--output-dir", t.TempDir(), "--target", "nowhere")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--target")
}

func TestCheckReportsMissingFiles(t *testing.T) {
	_, err := execute(t, "check", "--data-dir", t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing data files")
}

func TestCheckPrintsSizes(t *testing.T) {
	stdout, err := execute(t, "check", "--data-dir", seedData(t))
	require.NoError(t, err)
	assert.Contains(t, stdout, "Dataset sizes (as loaded):")
	assert.Contains(t, stdout, "us_qbank")
}

func TestPublishSubcommandMatchesRoot(t *testing.T) {
	outputDir := t.TempDir()
	stdout, err := execute(t, "publish", "--data-dir", seedData(t), "--output-dir", outputDir, "--no-publish")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Normalized splits written to "+outputDir)
	assert.FileExists(t, filepath.Join(outputDir, "train.jsonl"))
}

func TestPrivateFlagTakesSeparateValue(t *testing.T) {
	testCases := []struct {
		args []string
		want bool
	}{
		{args: []string{"--private", "false"}, want: false},
		{args: []string{"--private", "yes"}, want: true},
		{args: []string{"--private", "Y"}, want: true},
		{args: []string{"--private=true"}, want: true},
		{args: []string{"--private", "no"}, want: false},
	}
	for _, testCase := range testCases {
		t.Run(strings.Join(testCase.args, " "), func(t *testing.T) {
			cmd := &cobra.Command{Use: "medqa"}
			flags := &targetFlags{}
			flags.register(cmd)
			require.NoError(t, cmd.ParseFlags(append([]string{"--username", "owner", "--repo-name", "medqa"}, testCase.args...)))

			resolved, err := (&commandContext{}).resolveTarget(cmd, flags, "hub.db")
			require.NoError(t, err)
			assert.Equal(t, testCase.want, resolved.target.Private)
		})
	}
}

func TestPrivateFlagValueIsNotACommand(t *testing.T) {
	for _, value := range []string{"false", "yes"} {
		_, err := execute(t, "--data-dir", seedData(t), "--output-dir", t.TempDir(), "--no-publish", "--private", value)
		require.NoError(t, err, value)
	}

	boltPath := filepath.Join(t.TempDir(), "hub.db")
	stdout, err := execute(t, "--data-dir", seedData(t), "--output-dir", t.TempDir(),
		"--target", "bolt", "--bolt-path", boltPath, "--username", "owner", "--repo-name", "medqa", "--private", "yes")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Dataset pushed to owner/medqa")
}

func TestPreviewFollowsOutputDirFlag(t *testing.T) {
	t.Setenv("MEDQA_BOLT_PATH", "")
	outputDir := filepath.Join(t.TempDir(), "output")
	targetArgs := []string{"--target", "bolt", "--username", "owner", "--repo-name", "medqa", "--output-dir", outputDir}

	_, err := execute(t, append([]string{"--data-dir", seedData(t)}, targetArgs...)...)
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(outputDir, "hub.db"))

	stdout, err := execute(t, append([]string{"preview"}, targetArgs...)...)
	require.NoError(t, err)
	assert.Contains(t, stdout, `"question": "dev 0"`)
	assert.NotContains(t, stdout, "(split not published)")
}
