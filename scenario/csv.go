package scenario

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ceerkle/dreichor-trading/journal"
	"github.com/ceerkle/dreichor-trading/market"
	"github.com/ceerkle/dreichor-trading/risk"
	"github.com/ceerkle/dreichor-trading/strategy"
)

// Row is one scripted tick.
type Row struct {
	Time      market.LogicalTime
	Market    *market.MarketID
	Attention strategy.AttentionInputs
	Gates     risk.Gates
	Reasons   []market.ReasonCode
	Feedback  *journal.FeedbackCategory
}

// LoadCSV reads a tick script from path.
//
// Format (header optional, trailing columns optional):
//
//	time,market,attention,gates,reasons,feedback
//	10,BTCUSDT,11111,-,ATTENTION_SUPERIOR,
//	11,,00000,F,SAFETY_TRIGGERED|HOLD_TIME_ACTIVE,RISK_COMFORT
//
// attention is five 0/1 flags in the order meaningfully higher, stability,
// confidence, persistence, switching costs. gates is any of H (halt all),
// B (block buy), F (force sell), or - for none. reasons are separated by |.
// feedback, when set, is a category applied to the tick's own decision.
func LoadCSV(path string) ([]Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadCSV(f)
}

func ReadCSV(in io.Reader) ([]Row, error) {
	r := csv.NewReader(in)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	var rows []Row
	line := 0
	for {
		rec, err := r.Read()
		if err == io.EOF {
			return rows, nil
		}
		if err != nil {
			return nil, err
		}
		line++
		if len(rec) == 0 || (len(rec) == 1 && strings.TrimSpace(rec[0]) == "") {
			continue
		}
		if line == 1 && strings.EqualFold(strings.TrimSpace(rec[0]), "time") {
			continue
		}
		row, err := parseRow(rec)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if n := len(rows); n > 0 && row.Time <= rows[n-1].Time {
			return nil, fmt.Errorf("line %d: logical time %s does not advance past %s", line, row.Time, rows[n-1].Time)
		}
		rows = append(rows, row)
	}
}

func parseRow(rec []string) (Row, error) {
	col := func(i int) string {
		if i < len(rec) {
			return strings.TrimSpace(rec[i])
		}
		return ""
	}

	var row Row
	t, err := market.ParseLogicalTime(col(0))
	if err != nil {
		return Row{}, fmt.Errorf("bad time %q: %w", col(0), err)
	}
	row.Time = t

	if m := col(1); m != "" {
		id, err := market.NewMarketID(m)
		if err != nil {
			return Row{}, err
		}
		row.Market = &id
	}

	if row.Attention, err = parseAttention(col(2)); err != nil {
		return Row{}, err
	}
	if row.Gates, err = parseGates(col(3)); err != nil {
		return Row{}, err
	}

	if s := col(4); s != "" {
		for _, part := range strings.Split(s, "|") {
			c, err := market.ParseReasonCode(strings.TrimSpace(part))
			if err != nil {
				return Row{}, err
			}
			row.Reasons = append(row.Reasons, c)
		}
	}

	if s := col(5); s != "" {
		c, err := journal.ParseFeedbackCategory(s)
		if err != nil {
			return Row{}, err
		}
		row.Feedback = &c
	}
	return row, nil
}

func parseAttention(s string) (strategy.AttentionInputs, error) {
	if s == "" {
		return strategy.AttentionInputs{}, nil
	}
	if len(s) != 5 {
		return strategy.AttentionInputs{}, fmt.Errorf("attention %q: want five 0/1 flags", s)
	}
	var flags [5]bool
	for i, c := range s {
		switch c {
		case '1':
			flags[i] = true
		case '0':
		default:
			return strategy.AttentionInputs{}, fmt.Errorf("attention %q: want five 0/1 flags", s)
		}
	}
	return strategy.AttentionInputs{
		MeaningfullyHigher:      flags[0],
		StabilityMeetsMinimum:   flags[1],
		ConfidenceSufficient:    flags[2],
		DifferencePersists:      flags[3],
		SwitchingCostsJustified: flags[4],
	}, nil
}

func parseGates(s string) (risk.Gates, error) {
	var g risk.Gates
	if s == "" || s == "-" {
		return g, nil
	}
	for _, c := range strings.ToUpper(s) {
		switch c {
		case 'H':
			g.HaltAll = true
		case 'B':
			g.BlockBuy = true
		case 'F':
			g.ForceSell = true
		default:
			return risk.Gates{}, fmt.Errorf("gates %q: unknown gate %q", s, c)
		}
	}
	return g, nil
}
