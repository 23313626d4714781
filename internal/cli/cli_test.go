package cli

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/FACorreiaa/wealth-tracker/internal/domain/import/parser"
	importservice "github.com/FACorreiaa/wealth-tracker/internal/domain/import/service"
	"github.com/FACorreiaa/wealth-tracker/internal/domain/ledger"
)

const export = `User_ID,UTC_Time,Account,Operation,Coin,Change,Remark
42,2024-03-01 10:00:00,Spot,Buy,BTC,0.1,
42,2024-03-01 10:00:00,Spot,Buy,EUR,-3000,
42,2024-03-01 12:00:00,Spot,Withdraw,ETH,-1,to ledger
42,2024-03-01 14:00:00,Spot,Transaction Buy,SOL,10,
42,2024-03-01 14:00:01,Spot,Transaction Spend,USDC,-1500,
`

func stage(t *testing.T) *importservice.Staged {
	t.Helper()
	staged, err := importservice.NewPipeline(importservice.DefaultConfig()).Stage([]byte(export), parser.Options{})
	if err != nil {
		t.Fatalf("Stage: %v", err)
	}
	return staged
}

func TestPreviewMarkdown(t *testing.T) {
	md := PreviewMarkdown(stage(t), "EUR")

	for _, want := range []string{
		"5 rows in 3 groups",
		"Needing a EUR value: 1",
		"| 0 | 2024-03-01 10:00:00 | +0.1 BTC, -3000 EUR | BTC |",
		"transfer, consider excluding",
		"**needs EUR**",
		"Cannot confirm: groups 2 need a EUR value.",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("markdown misses %q:\n%s", want, md)
		}
	}
}

func TestPreviewCmd_ApplyEdits(t *testing.T) {
	staged := stage(t)
	c := &previewCmd{}
	if err := c.exclude.Set("1"); err != nil {
		t.Fatal(err)
	}
	if err := c.eur.Set("2=1.400,50"); err != nil {
		t.Fatal(err)
	}

	snapshot, err := c.applyEdits(staged.Snapshot)
	if err != nil {
		t.Fatalf("applyEdits: %v", err)
	}
	if !snapshot.Excluded(1) {
		t.Errorf("group 1 should be excluded")
	}
	g, _ := snapshot.Group(2)
	if !g.EURAmount.Valid || !g.EURAmount.Decimal.Equal(decimal.RequireFromString("1400.50")) {
		t.Errorf("unexpected EUR amount %v", g.EURAmount)
	}
	if err := snapshot.Validate(); err != nil {
		t.Errorf("expected a confirmable snapshot, got %v", err)
	}
	if staged.Snapshot.Excluded(1) {
		t.Errorf("edits must not change the original snapshot")
	}

	staged.Snapshot = snapshot
	if md := PreviewMarkdown(staged, "EUR"); !strings.Contains(md, "Ready to confirm.") {
		t.Errorf("expected ready line:\n%s", md)
	}
}

func TestPreviewCmd_ApplyEdits_UnknownGroup(t *testing.T) {
	c := &previewCmd{exclude: listFlag{"7"}}
	if _, err := c.applyEdits(stage(t).Snapshot); err == nil {
		t.Fatalf("expected an unknown group to fail")
	}
}

func TestPreviewJSON(t *testing.T) {
	out := previewJSON(stage(t))
	if out.Stats.TotalGroups != 3 || len(out.Groups) != 3 {
		t.Fatalf("unexpected output: %+v", out.Stats)
	}
	if len(out.Unresolved) != 1 || out.Unresolved[0] != 2 {
		t.Fatalf("expected group 2 unresolved, got %v", out.Unresolved)
	}
}

func TestAssignFlag(t *testing.T) {
	var a assignFlag
	if err := a.Set("1400"); err == nil {
		t.Errorf("expected missing index to fail")
	}
	if err := a.Set("3=1,5"); err != nil || len(a) != 1 {
		t.Errorf("Set: %v %v", err, a)
	}
}

func TestPruCmd_Input(t *testing.T) {
	c := &pruCmd{principal: "1.500,00", qty: "0.05", feeMode: "separate", fee: "3,5"}
	in, err := c.input()
	if err != nil {
		t.Fatalf("input: %v", err)
	}
	if in.FeeMode != ledger.FeeSeparate || !in.FeeEUR.Equal(decimal.RequireFromString("3.5")) {
		t.Fatalf("unexpected input: %+v", in)
	}
	if !in.PrincipalEUR.Equal(decimal.NewFromInt(1500)) {
		t.Fatalf("unexpected principal %s", in.PrincipalEUR)
	}

	c.feeMode = "sometimes"
	if _, err := c.input(); err == nil {
		t.Fatalf("expected an unknown fee mode to fail")
	}
}

func TestCompletion(t *testing.T) {
	cmd := Completion()
	for _, name := range []string{"preview", "pru", "migrate"} {
		if _, ok := cmd.Sub[name]; !ok {
			t.Errorf("completion misses %q", name)
		}
	}
}
