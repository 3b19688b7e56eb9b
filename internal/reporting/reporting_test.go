package reporting

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"token-metadata-lab/internal/domain"
	"token-metadata-lab/internal/storage"
	"token-metadata-lab/internal/storage/memory"
)

func setupJournal(t *testing.T) *memory.RunJournal {
	t.Helper()
	ctx := context.Background()
	j := memory.NewRunJournal()

	run := &domain.Run{
		RunID:       "run-1",
		Mint:        "mint1",
		Payer:       "payer1",
		Authority:   "auth1",
		Recipient:   "recipient1",
		RPCEndpoint: "http://127.0.0.1:8899",
		Status:      domain.RunStatusRunning,
		StartSlot:   10,
		StartedAt:   1000,
	}
	if err := j.CreateRun(ctx, run); err != nil {
		t.Fatalf("CreateRun failed: %v", err)
	}

	steps := []*domain.StepRecord{
		{
			RunID: "run-1", StepIndex: 1, Name: domain.StepAirdrop, Status: domain.StepStatusSucceeded,
			Signatures: []string{"sigA"}, ExplorerURLs: []string{"https://solana.fm/tx/sigA?cluster=localnet-solana"},
			Slot: 11, Fee: 0, StartedAt: 1000, FinishedAt: 1500,
		},
		{
			RunID: "run-1", StepIndex: 2, Name: domain.StepCreateTokenAndMint, Status: domain.StepStatusSucceeded,
			Signatures: []string{"sigB", "sigC"}, ExplorerURLs: []string{"urlB", "urlC"},
			Slot: 14, Fee: 25000, StartedAt: 1500, FinishedAt: 2500,
		},
	}
	msg := "no metadata found"
	steps = append(steps, &domain.StepRecord{
		RunID: "run-1", StepIndex: 3, Name: domain.StepIncrementPoints, Status: domain.StepStatusFailed,
		StartedAt: 2500, FinishedAt: 2600, Error: &msg,
	})
	for _, s := range steps {
		if err := j.InsertStep(ctx, s); err != nil {
			t.Fatalf("InsertStep failed: %v", err)
		}
	}

	runErr := "step 3 (increment_points) failed: no metadata found"
	if err := j.FinishRun(ctx, "run-1", domain.RunStatusFailed, 2600, &runErr); err != nil {
		t.Fatalf("FinishRun failed: %v", err)
	}
	return j
}

func TestGenerator_Generate(t *testing.T) {
	j := setupJournal(t)
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	report, err := NewGenerator(j).WithClock(func() time.Time { return fixed }).Generate(context.Background(), "run-1")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	if !report.GeneratedAt.Equal(fixed) {
		t.Errorf("GeneratedAt = %v", report.GeneratedAt)
	}
	if report.Status != "FAILED" || report.Error == "" {
		t.Errorf("unexpected status/error: %s %q", report.Status, report.Error)
	}
	if len(report.Steps) != 3 {
		t.Fatalf("expected 3 steps, got %d", len(report.Steps))
	}

	want := Totals{Steps: 3, FailedSteps: 1, Transactions: 3, FeeLamports: 25000, DurationMs: 1600}
	if report.Totals != want {
		t.Errorf("Totals = %+v, want %+v", report.Totals, want)
	}
	if report.Steps[1].DurationMs != 1000 {
		t.Errorf("step 2 duration = %d", report.Steps[1].DurationMs)
	}
	if report.Steps[2].Error != "no metadata found" {
		t.Errorf("step 3 error = %q", report.Steps[2].Error)
	}
}

func TestGenerator_UnknownRun(t *testing.T) {
	_, err := NewGenerator(memory.NewRunJournal()).Generate(context.Background(), "missing")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRenderMarkdown(t *testing.T) {
	j := setupJournal(t)
	report, err := NewGenerator(j).Generate(context.Background(), "run-1")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	md := RenderMarkdown(report)

	for _, want := range []string{
		"# Token Lifecycle Run",
		"| Run ID | run-1 |",
		"| Status | FAILED |",
		"**Run failed:** step 3 (increment_points) failed: no metadata found",
		"| 2 | create_token_and_mint | SUCCEEDED | 14 | 25000 | 1000 |",
		"| 3 | increment_points | FAILED | 0 | 0 | 100 | no metadata found |",
		"- airdrop: [sigA](https://solana.fm/tx/sigA?cluster=localnet-solana)",
		"Steps: 3 (1 failed) | Transactions: 3 | Fees: 25000 lamports",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("markdown missing %q\n%s", want, md)
		}
	}
}

func TestRenderMarkdown_Empty(t *testing.T) {
	report := Build(&domain.Run{RunID: "r", Status: domain.RunStatusRunning}, nil, time.Unix(0, 0))
	md := RenderMarkdown(report)

	if !strings.Contains(md, "No steps recorded.") || !strings.Contains(md, "No transactions submitted.") {
		t.Errorf("unexpected markdown:\n%s", md)
	}
	if strings.Contains(md, "Finished (ms)") {
		t.Errorf("running report should not show finish time")
	}
}

func TestRenderCSV(t *testing.T) {
	j := setupJournal(t)
	report, err := NewGenerator(j).Generate(context.Background(), "run-1")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	out, err := RenderCSV(report)
	if err != nil {
		t.Fatalf("RenderCSV failed: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 4 {
		t.Fatalf("expected header + 3 rows, got %d:\n%s", len(lines), out)
	}
	if lines[0] != "run_id,step_index,name,status,signatures,slot,fee,duration_ms,detail,error" {
		t.Errorf("header = %q", lines[0])
	}
	if lines[2] != "run-1,2,create_token_and_mint,SUCCEEDED,sigB sigC,14,25000,1000,," {
		t.Errorf("row 2 = %q", lines[2])
	}
}

func TestConsole_ReportStep(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(&buf)

	c.ReportStep(&domain.StepRecord{
		Name:         domain.StepCreateTokenAndMint,
		Status:       domain.StepStatusSucceeded,
		ExplorerURLs: []string{"url1", "url2"},
	})
	c.ReportStep(&domain.StepRecord{Name: domain.StepTransferTokens, Status: domain.StepStatusFailed})
	c.Mint("mint-url")
	c.Balances(999, 1)

	want := "Token created and minted:\n   url1\n   url2\n" +
		"Mint account:\n   mint-url\n" +
		"Token balances:\n   payer: 999\n   recipient: 1\n"
	if buf.String() != want {
		t.Errorf("output = %q, want %q", buf.String(), want)
	}
}

func TestLabel(t *testing.T) {
	if got := Label(domain.StepRemoveTokenAuthority); got != "Authority removed:" {
		t.Errorf("Label = %q", got)
	}
	if got := Label("custom"); got != "custom:" {
		t.Errorf("Label = %q", got)
	}
}
