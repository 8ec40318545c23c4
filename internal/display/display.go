// Package display renders orderbook snapshots for a terminal.
package display

import (
	"fmt"
	"io"
	"strings"
	"time"

	"main/internal/model"
)

const separator = "  ----------------------------"

// Clear resets the terminal before the next frame.
func Clear(w io.Writer) {
	fmt.Fprint(w, "\033[H\033[2J")
}

// Render prints asks (reversed so the touch meets in the middle), then bids,
// limited to depth levels per side.
func Render(w io.Writer, snap model.Snapshot, depth int, symbol string) {
	bids := snap.Bids
	if len(bids) > depth {
		bids = bids[:depth]
	}
	asks := snap.Asks
	if len(asks) > depth {
		asks = asks[:depth]
	}

	var sb strings.Builder
	sb.WriteByte('\n')
	if symbol != "" {
		fmt.Fprintf(&sb, "  %s\n", symbol)
	}
	sb.WriteString("  ASKS\n")
	sb.WriteString(separator + "\n")
	fmt.Fprintf(&sb, "  %12s  %12s\n", "Price", "Amount")
	sb.WriteString(separator + "\n")
	for i := len(asks) - 1; i >= 0; i-- {
		writeLevel(&sb, asks[i])
	}
	sb.WriteString(separator + "\n")
	for _, level := range bids {
		writeLevel(&sb, level)
	}
	sb.WriteString(separator + "\n")
	sb.WriteString("  BIDS\n")
	if snap.Timestamp != 0 {
		fmt.Fprintf(&sb, "  (updated: %s)\n", time.UnixMilli(snap.Timestamp).Format(time.TimeOnly))
	}
	sb.WriteByte('\n')

	io.WriteString(w, sb.String())
}

func writeLevel(sb *strings.Builder, level model.Level) {
	fmt.Fprintf(sb, "  %12.2f  %12.6f\n", level.Price(), level.Size())
}
