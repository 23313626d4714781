package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/FACorreiaa/wealth-tracker/internal/domain/costbasis"
	"github.com/FACorreiaa/wealth-tracker/internal/domain/import/overlay"
	importservice "github.com/FACorreiaa/wealth-tracker/internal/domain/import/service"
	"github.com/FACorreiaa/wealth-tracker/internal/domain/ledger"
)

// PreviewMarkdown reports a staged export as a markdown document.
func PreviewMarkdown(staged *importservice.Staged, anchor string) string {
	snapshot := staged.Snapshot
	stats := snapshot.Stats()

	var b strings.Builder
	fmt.Fprintf(&b, "# Import preview\n\n")
	fmt.Fprintf(&b, "Layout `%s`, %d rows in %d groups.\n\n",
		shortFingerprint(staged.Parsed.Config.Fingerprint), stats.TotalRows, stats.TotalGroups)
	fmt.Fprintf(&b, "- Included: %d groups, %d rows\n", stats.IncludedGroups, stats.IncludedRows)
	fmt.Fprintf(&b, "- Needing a EUR value: %d\n\n", stats.GroupsNeedingEUR)

	b.WriteString("| # | Time | Operations | Asset | EUR | Status |\n")
	b.WriteString("|---:|---|---|---|---:|---|\n")
	for _, g := range snapshot.Groups() {
		fmt.Fprintf(&b, "| %d | %s | %s | %s | %s | %s |\n",
			g.Index,
			g.Timestamp.Format("2006-01-02 15:04:05"),
			escapeCell(g.Summary),
			g.PrimarySymbol,
			eurCell(g, anchor),
			groupStatus(g, snapshot.Excluded(g.Index)),
		)
	}

	b.WriteString("\n")
	b.WriteString(confirmationLine(snapshot.Validate()))
	b.WriteString("\n")
	return b.String()
}

func eurCell(g ledger.Group, anchor string) string {
	switch {
	case g.EURAmount.Valid:
		return costbasis.FormatPRU(g.EURAmount.Decimal, anchor)
	case g.AutoEURAmount.Valid:
		return costbasis.FormatPRU(g.AutoEURAmount.Decimal, anchor)
	case g.HintUSDCAmount.Valid:
		return "~" + g.HintUSDCAmount.Decimal.StringFixed(2) + " USDC"
	default:
		return "-"
	}
}

func groupStatus(g ledger.Group, excluded bool) string {
	switch {
	case excluded:
		return "excluded"
	case !g.Resolved():
		return "**needs EUR**"
	case g.SuggestExclude:
		return "transfer, consider excluding"
	default:
		return "ready"
	}
}

func confirmationLine(err error) string {
	var unresolved *overlay.UnresolvedError
	switch {
	case err == nil:
		return "Ready to confirm."
	case errors.As(err, &unresolved):
		idx := make([]string, len(unresolved.Indexes))
		for i, v := range unresolved.Indexes {
			idx[i] = fmt.Sprint(v)
		}
		return fmt.Sprintf("Cannot confirm: groups %s need a EUR value.", strings.Join(idx, ", "))
	default:
		return "Cannot confirm: " + err.Error() + "."
	}
}

func shortFingerprint(fp string) string {
	if len(fp) > 12 {
		return fp[:12]
	}
	return fp
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}
