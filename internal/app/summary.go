package app

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"paperledger/internal/logger"
)

type StartupSummary struct {
	Env        string
	HTTPAddr   string
	Store      StoreSummary
	Pricing    PricingSummary
	Settlement SettlementSummary
	Events     string
	History    string
	Names      string
}

type StoreSummary struct {
	Driver string
	Target string
	Orders int64
}

type PricingSummary struct {
	Source   string
	Interval string
}

type SettlementSummary struct {
	Enabled  bool
	At       string
	Timezone string
}

// Print writes the summary through the logger, one line per entry.
func (s *StartupSummary) Print() {
	var buf bytes.Buffer
	s.Fprint(&buf)
	logger.InfoBlock(buf.String())
}

func (s *StartupSummary) Fprint(w io.Writer) {
	title := "STARTUP SUMMARY"
	fmt.Fprintln(w, strings.Repeat("=", 80))
	fmt.Fprintf(w, "%*s\n", 40+len(title)/2, title)
	fmt.Fprintln(w, strings.Repeat("=", 80))

	fmt.Fprintln(w, "[APP]")
	fmt.Fprintf(w, "  env:       %s\n", orDash(s.Env))
	fmt.Fprintf(w, "  http:      %s\n", orDash(s.HTTPAddr))
	fmt.Fprintln(w)

	fmt.Fprintln(w, "[LEDGER STORE]")
	fmt.Fprintf(w, "  driver:    %s\n", orDash(s.Store.Driver))
	fmt.Fprintf(w, "  target:    %s\n", orDash(s.Store.Target))
	fmt.Fprintf(w, "  orders:    %d\n", s.Store.Orders)
	fmt.Fprintf(w, "  history:   %s\n", orDash(s.History))
	fmt.Fprintf(w, "  names:     %s\n", orDash(s.Names))
	fmt.Fprintln(w)

	fmt.Fprintln(w, "[PRICING]")
	fmt.Fprintf(w, "  source:    %s\n", orDash(s.Pricing.Source))
	if s.Pricing.Interval != "" {
		fmt.Fprintf(w, "  refresh:   every %s\n", s.Pricing.Interval)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "[SETTLEMENT]")
	if s.Settlement.Enabled {
		fmt.Fprintf(w, "  daily at:  %s (%s)\n", s.Settlement.At, s.Settlement.Timezone)
	} else {
		fmt.Fprintln(w, "  (manual only)")
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "[EVENTS]")
	fmt.Fprintf(w, "  publisher: %s\n", orDash(s.Events))
	fmt.Fprintln(w, strings.Repeat("=", 80))
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}

// redactDSN keeps the host part of a postgres DSN and drops credentials.
func redactDSN(dsn string) string {
	dsn = strings.TrimSpace(dsn)
	if at := strings.LastIndex(dsn, "@"); at >= 0 {
		if scheme := strings.Index(dsn, "://"); scheme >= 0 && scheme < at {
			return dsn[:scheme+3] + "***" + dsn[at:]
		}
	}
	fields := strings.Fields(dsn)
	for i, f := range fields {
		if strings.HasPrefix(strings.ToLower(f), "password=") {
			fields[i] = "password=***"
		}
	}
	return strings.Join(fields, " ")
}
