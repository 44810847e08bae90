package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/okian/refeval/internal/adapters/dataset"
	"github.com/okian/refeval/internal/config"
	"github.com/okian/refeval/internal/domain/evaluation"
	"github.com/smartystreets/goconvey/convey"
)

const sampleDataset = `{"control_number": 1, "references": [{"record": {"$ref": "https://inspirehep.net/api/literature/2"}}, {"record": {"$ref": "https://inspirehep.net/api/literature/3"}}]}
{"control_number": 2, "references": []}
{"control_number": 3, "references": [{"reference": {"title": "unlinked"}}, {"record": {"$ref": "https://inspirehep.net/api/literature/1"}}]}
`

func writeSample(t *testing.T, name, content string) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, name+".jsonl"), []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write dataset: %v", err)
	}
	return dir
}

func unsetEnv() {
	for _, key := range []string{"REFEVAL_CONFIG", "REFEVAL_DATASET", "REFEVAL_DATA_DIR", "REFEVAL_LIMIT", "REFEVAL_LOG_LEVEL", "REFEVAL_METRICS_FILE", "REFEVAL_METRICS_SUBSYSTEM"} {
		_ = os.Unsetenv(key)
	}
}

func TestRun(t *testing.T) {
	convey.Convey("Given a sample dataset", t, func() {
		unsetEnv()
		dir := writeSample(t, "sample", sampleDataset)
		var stdout bytes.Buffer

		convey.Convey("When running the dummy recommender", func() {
			err := run(context.Background(), flags{dataset: "sample", dataDir: dir}, &stdout)

			// record 1: {1, 2} vs {2, 3} -> 1/2; record 2 unscored;
			// record 3: first entry unlinked so only {3} vs {1} -> 0.
			convey.Convey("Then it should print the aggregate score", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(stdout.String(), convey.ShouldEqual, "Score of the dummy recommender: 0.25\n")
			})
		})

		convey.Convey("When a metrics file is requested", func() {
			metricsFile := filepath.Join(t.TempDir(), "refeval.prom")
			err := run(context.Background(), flags{dataset: "sample", dataDir: dir, metricsFile: metricsFile}, &stdout)

			convey.Convey("Then the metrics should be written", func() {
				convey.So(err, convey.ShouldBeNil)
				data, readErr := os.ReadFile(metricsFile)
				convey.So(readErr, convey.ShouldBeNil)
				convey.So(string(data), convey.ShouldContainSubstring, "refeval_evaluator_aggregate_score")
				convey.So(string(data), convey.ShouldContainSubstring, `dataset="sample"`)
			})
		})

		convey.Convey("When the metrics subsystem is configured", func() {
			_ = os.Setenv("REFEVAL_METRICS_SUBSYSTEM", "nightly")
			defer unsetEnv()
			metricsFile := filepath.Join(t.TempDir(), "refeval.prom")
			err := run(context.Background(), flags{dataset: "sample", dataDir: dir, metricsFile: metricsFile}, &stdout)

			convey.Convey("Then metric names should use it", func() {
				convey.So(err, convey.ShouldBeNil)
				data, readErr := os.ReadFile(metricsFile)
				convey.So(readErr, convey.ShouldBeNil)
				convey.So(string(data), convey.ShouldContainSubstring, `refeval_nightly_aggregate_score{dataset="sample"} 0.25`)
			})
		})

		convey.Convey("When the dataset does not exist", func() {
			err := run(context.Background(), flags{dataset: "missing", dataDir: dir}, &stdout)

			convey.Convey("Then it should fail with a not-found error", func() {
				convey.So(errors.Is(err, dataset.ErrNotFound), convey.ShouldBeTrue)
				convey.So(stdout.Len(), convey.ShouldEqual, 0)
			})
		})

		convey.Convey("When the limit flag is negative", func() {
			err := run(context.Background(), flags{dataset: "sample", dataDir: dir, limit: -1, limitSet: true}, &stdout)

			convey.Convey("Then it should fail validation", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		})
	})

	convey.Convey("Given a dataset without any references", t, func() {
		unsetEnv()
		dir := writeSample(t, "bare", "{\"control_number\": 1}\n{\"control_number\": 2}\n")

		convey.Convey("Then the run should surface ErrNoEvaluableRecords", func() {
			err := run(context.Background(), flags{dataset: "bare", dataDir: dir}, &bytes.Buffer{})
			convey.So(errors.Is(err, evaluation.ErrNoEvaluableRecords), convey.ShouldBeTrue)
		})
	})
}

func TestRootCommand(t *testing.T) {
	convey.Convey("Given the root command", t, func() {
		unsetEnv()
		dir := writeSample(t, "sample", sampleDataset)
		var stdout bytes.Buffer
		cmd := newRootCmd(&stdout)

		convey.Convey("When invoked with flags", func() {
			cmd.SetArgs([]string{"--dataset", "sample", "--data-dir", dir, "-k", "1"})
			err := cmd.ExecuteContext(context.Background())

			// With limit 1 only the record itself is considered, which is never
			// among its own references here.
			convey.Convey("Then it should run the evaluation", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(stdout.String(), convey.ShouldEqual, "Score of the dummy recommender: 0\n")
			})
		})

		convey.Convey("When the limit flag is zero", func() {
			cmd.SetArgs([]string{"--dataset", "sample", "--data-dir", dir, "--limit", "0"})
			err := cmd.ExecuteContext(context.Background())

			convey.Convey("Then it should fail validation instead of using the default", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(stdout.Len(), convey.ShouldEqual, 0)
			})
		})

		convey.Convey("When the environment sets an invalid limit that the flag overrides", func() {
			_ = os.Setenv("REFEVAL_LIMIT", "0")
			defer unsetEnv()
			cmd.SetArgs([]string{"--dataset", "sample", "--data-dir", dir, "--limit", "10"})
			err := cmd.ExecuteContext(context.Background())

			convey.Convey("Then the flag should win", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(stdout.String(), convey.ShouldEqual, "Score of the dummy recommender: 0.25\n")
			})
		})

		convey.Convey("When invoking the version subcommand", func() {
			cmd.SetArgs([]string{"version"})
			err := cmd.ExecuteContext(context.Background())

			convey.Convey("Then it should print the version", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(strings.HasPrefix(stdout.String(), "refeval dev"), convey.ShouldBeTrue)
			})
		})
	})
}
