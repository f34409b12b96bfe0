package journal

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
)

var csvHeader = []string{"seq", "id", "type", "logical_time", "decision_id", "detail"}

// CSVExporter writes audit events as CSV rows for offline inspection.
type CSVExporter struct {
	w   *csv.Writer
	f   *os.File
	seq int
}

func NewCSV(path string) (*CSVExporter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	x, err := newCSVExporter(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	x.f = f
	return x, nil
}

func newCSVExporter(w io.Writer) (*CSVExporter, error) {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return nil, err
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return nil, err
	}
	return &CSVExporter{w: cw}, nil
}

func (x *CSVExporter) Record(e Event) error {
	x.seq++
	h := e.Base()
	ref, _ := DecisionRef(e)
	err := x.w.Write([]string{
		strconv.Itoa(x.seq),
		string(h.ID),
		string(h.Type),
		h.LogicalTime.String(),
		string(ref),
		Describe(e),
	})
	if err != nil {
		return err
	}
	x.w.Flush()
	return x.w.Error()
}

func (x *CSVExporter) Close() error {
	x.w.Flush()
	if err := x.w.Error(); err != nil {
		return err
	}
	if x.f != nil {
		return x.f.Close()
	}
	return nil
}

// WriteCSV exports events to w in log order.
func WriteCSV(w io.Writer, events []Event) error {
	x, err := newCSVExporter(w)
	if err != nil {
		return err
	}
	for _, e := range events {
		if err := x.Record(e); err != nil {
			return err
		}
	}
	return x.Close()
}

// Describe renders the type specific fields of e on one line.
func Describe(e Event) string {
	switch v := e.(type) {
	case DecisionEvaluated:
		return fmt.Sprintf("class=%s instance=%s", v.DecisionClass, v.StrategyInstanceID)
	case OrderIntentCreated:
		return fmt.Sprintf("side=%s market=%s intent=%s", v.Side, v.MarketID, v.OrderIntentID)
	case OrderIntentSkipped:
		return fmt.Sprintf("reason=%s", v.Reason)
	case SafetyEvaluated:
		if v.Result.Reason == "" {
			return fmt.Sprintf("result=%s", v.Result.Type)
		}
		return fmt.Sprintf("result=%s reason=%s", v.Result.Type, v.Result.Reason)
	case ExecutionAttempted:
		return fmt.Sprintf("plane=%s execution=%s", v.Plane, v.ExecutionID)
	case ExecutionOutcomeRecorded:
		return fmt.Sprintf("status=%s execution=%s", v.Status, v.ExecutionID)
	case LedgerUpdated:
		return fmt.Sprintf("plane=%s market=%s", v.Plane, v.MarketID)
	case UserFeedbackRecorded:
		return fmt.Sprintf("category=%s target=%s", v.Category, v.Target)
	}
	return ""
}
