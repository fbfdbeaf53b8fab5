package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/ethereum/go-ethereum/common"
	"github.com/yolodolo42/gasbridge/internal/bridge"
	"github.com/yolodolo42/gasbridge/internal/chain"
	"github.com/yolodolo42/gasbridge/internal/engine"
)

// ChainColumns is how many chain names are printed per row.
const ChainColumns = 5

// Columns lays items out row by row, cols per row, each column padded to the
// widest item.
func Columns(items []string, cols int) string {
	if len(items) == 0 {
		return ""
	}
	if cols < 1 {
		cols = 1
	}

	width := 0
	for _, item := range items {
		width = max(width, lipgloss.Width(item))
	}
	cell := ItemStyle.Width(width + 2)

	var b strings.Builder
	for start := 0; start < len(items); start += cols {
		end := min(start+cols, len(items))
		row := make([]string, 0, end-start)
		for _, item := range items[start:end] {
			row = append(row, cell.Render(item))
		}
		b.WriteString(strings.TrimRight(lipgloss.JoinHorizontal(lipgloss.Top, row...), " "))
		b.WriteString("\n")
	}
	return b.String()
}

// ChainList renders the supported chain names under a title.
func ChainList(title string, names []string) string {
	return TitleStyle.Render(title) + "\n" + Columns(names, ChainColumns)
}

// WalletList renders wallet addresses with their index.
func WalletList(addresses []common.Address) string {
	var b strings.Builder
	b.WriteString(TitleStyle.Render(fmt.Sprintf("%d wallets", len(addresses))))
	b.WriteString("\n")
	for i, addr := range addresses {
		fmt.Fprintf(&b, "%s %s\n", DimStyle.Render(fmt.Sprintf("%3d", i)), AddressStyle.Render(addr.Hex()))
	}
	return b.String()
}

// Summary renders the end-of-run report.
func Summary(summary engine.Summary, source *bridge.Chain) string {
	var b strings.Builder

	b.WriteString(TitleStyle.Render("Run summary"))
	b.WriteString(DimStyle.Render(" " + summary.RunID))
	b.WriteString("\n")

	counts := []string{
		SuccessStyle.Render(fmt.Sprintf("%s %d confirmed", SymbolCheck, summary.Count(engine.StatusConfirmed))),
		WarningStyle.Render(fmt.Sprintf("%s %d unconfirmed", SymbolWait, summary.Count(engine.StatusUnconfirmed))),
		DimStyle.Render(fmt.Sprintf("%s %d skipped", SymbolSkip, summary.Count(engine.StatusSkipped))),
		ErrorStyle.Render(fmt.Sprintf("%s %d failed", SymbolCross, summary.Count(engine.StatusFailed)+summary.Count(engine.StatusReverted))),
	}
	b.WriteString(strings.Join(counts, "  "))
	b.WriteString("\n")

	for _, o := range summary.Outcomes {
		b.WriteString(outcomeLine(o, source))
		b.WriteString("\n")
	}
	return b.String()
}

func outcomeLine(o engine.Outcome, source *bridge.Chain) string {
	symbol, style := SymbolCross, ErrorStyle
	switch o.Status {
	case engine.StatusConfirmed:
		symbol, style = SymbolCheck, SuccessStyle
	case engine.StatusUnconfirmed:
		symbol, style = SymbolWait, WarningStyle
	case engine.StatusSkipped:
		symbol, style = SymbolSkip, DimStyle
	}

	line := fmt.Sprintf("%s %3d %s %s", style.Render(symbol), o.Index, AddressStyle.Render(o.Address.Hex()), style.Render(string(o.Status)))
	if o.Amount != nil && source != nil {
		line += fmt.Sprintf(" %s %s", chain.FormatBalance(o.Amount, source.NativeDecimals()), source.Symbol)
	}
	if o.Sent() {
		link := o.TxURL
		if link == "" {
			link = o.TxHash.Hex()
		}
		line += "\n    " + SymbolTree + " " + DimStyle.Render(link)
	} else if o.Err != nil {
		line += "\n    " + SymbolTree + " " + DimStyle.Render(o.Err.Error())
	}
	return line
}
