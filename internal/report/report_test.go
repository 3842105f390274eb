package report

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/Sudhan30/my-blog-site-cluster-infra-sub001/internal/models"
)

func sampleInput() BuildInput {
	started := time.Date(2025, 6, 12, 10, 0, 0, 0, time.UTC)
	return BuildInput{
		RunID: "run-1",
		Target: models.TargetSelector{
			Namespace:  "web",
			Autoscaler: "frontend",
		},
		StartedAt:   started,
		FinishedAt:  started.Add(14 * time.Minute),
		SampleCount: 168,
		Phases: []models.PhaseResult{
			{Name: "warmup", Kind: models.LoadHTTP, KindLabel: "http", StartedAt: started, StoppedAt: started.Add(2 * time.Minute), Requests: 24000},
			{Name: "burn", Kind: models.LoadCPU, KindLabel: "cpu", StartedAt: started.Add(2 * time.Minute), StoppedAt: started.Add(4 * time.Minute)},
		},
	}
}

func TestBuildVerdictPass(t *testing.T) {
	rep := Build(sampleInput())
	if rep.Verdict != models.VerdictPass {
		t.Errorf("expected pass, got %s", rep.Verdict)
	}
	if len(rep.Warnings) != 0 {
		t.Errorf("clean run must carry no warnings, got %v", rep.Warnings)
	}
}

func TestBuildVerdictFailOnViolation(t *testing.T) {
	in := sampleInput()
	in.Violations = []models.Violation{{Kind: models.ScaleUpDeadlineExceeded, Timestamp: in.StartedAt.Add(3 * time.Minute)}}

	rep := Build(in)
	if rep.Verdict != models.VerdictFail {
		t.Errorf("expected fail, got %s", rep.Verdict)
	}
}

func TestBuildAbortedOverridesViolations(t *testing.T) {
	in := sampleInput()
	in.Violations = []models.Violation{{Kind: models.BoundsViolation}}
	in.Aborted = true

	rep := Build(in)
	if rep.Verdict != models.VerdictAborted {
		t.Errorf("aborted must win over fail, got %s", rep.Verdict)
	}
	if len(rep.Violations) != 1 {
		t.Error("violations must still be carried as data")
	}
}

func TestBuildDerivesPhaseWarnings(t *testing.T) {
	in := sampleInput()
	in.Warnings = []string{"observation recorded 2 gaps"}
	in.Phases = append(in.Phases, models.PhaseResult{Name: "broken", KindLabel: "cpu", Error: "create failed"})
	in.Phases = append(in.Phases, models.PhaseResult{Name: "sticky", KindLabel: "cpu", ResourceLeaked: true})

	rep := Build(in)
	if len(rep.Warnings) != 3 {
		t.Fatalf("expected 3 warnings, got %v", rep.Warnings)
	}
	if rep.Warnings[0] != "observation recorded 2 gaps" {
		t.Error("caller warnings must come first")
	}
	if !strings.Contains(rep.Warnings[1], "broken") || !strings.Contains(rep.Warnings[2], "sticky") {
		t.Errorf("phase warnings missing: %v", rep.Warnings)
	}
}

func TestBuildCopiesInputSlices(t *testing.T) {
	in := sampleInput()
	in.Violations = []models.Violation{{Kind: models.BoundsViolation, Observed: "12 replicas"}}

	rep := Build(in)
	in.Phases[0].Name = "mutated"
	in.Violations[0].Observed = "mutated"

	if rep.Phases[0].Name != "warmup" || rep.Violations[0].Observed != "12 replicas" {
		t.Error("report must not alias the caller's slices")
	}
}

func TestBuildDeterministic(t *testing.T) {
	in := sampleInput()
	a, _ := json.Marshal(Build(in))
	b, _ := json.Marshal(Build(in))
	if !bytes.Equal(a, b) {
		t.Error("same input must yield the same report")
	}
}

func TestRenderSections(t *testing.T) {
	in := sampleInput()
	in.Violations = []models.Violation{{
		Kind:      models.ScaleUpDeadlineExceeded,
		Timestamp: in.StartedAt.Add(3 * time.Minute),
		Expected:  ">= 3 replicas within 3m0s",
		Observed:  "still 2 replicas at deadline",
	}}
	in.Warnings = []string{"phase \"sticky\" could not delete its workload"}

	out := Render(Build(in))
	for _, want := range []string{"FAIL", "warmup", "burn", "24000", "ScaleUpDeadlineExceeded", "sticky", "web/frontend"} {
		if !strings.Contains(out, want) {
			t.Errorf("rendered report missing %q:\n%s", want, out)
		}
	}
}

func TestRenderCPUPhaseHasNoRequestCount(t *testing.T) {
	out := Render(Build(sampleInput()))
	for _, line := range strings.Split(out, "\n") {
		if strings.Contains(line, "burn") && !strings.Contains(line, "-") {
			t.Errorf("cpu phase row must use placeholders for request counts: %q", line)
		}
	}
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteJSON(&buf, Build(sampleInput())); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if decoded["runId"] != "run-1" {
		t.Errorf("unexpected runId: %v", decoded["runId"])
	}
	if decoded["verdict"] != "pass" {
		t.Errorf("unexpected verdict: %v", decoded["verdict"])
	}
}
