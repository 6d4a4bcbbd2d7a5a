package export

import (
	"context"
	"fmt"

	"github.com/gocarina/gocsv"

	"journalbot/internal/domain/trade"
	"journalbot/pkg/errors"
)

// History is the source of events to export, implemented by trade.Service.
type History interface {
	Instruments(ctx context.Context, userID int64) ([]string, error)
	History(ctx context.Context, userID int64, instrument string) ([]trade.Event, error)
}

// CSVExporter renders a user's full trade history as a CSV document.
type CSVExporter struct {
	source History
}

// NewCSVExporter creates a new CSV exporter
func NewCSVExporter(source History) *CSVExporter {
	return &CSVExporter{source: source}
}

// Export returns the user's events across all instruments as CSV bytes,
// together with a filename for the attachment. A user with no history gets a
// header-only document.
func (e *CSVExporter) Export(ctx context.Context, userID int64) ([]byte, string, error) {
	instruments, err := e.source.Instruments(ctx, userID)
	if err != nil {
		return nil, "", errors.Wrap(err, "list instruments")
	}

	all := []trade.Event{}
	for _, instrument := range instruments {
		events, err := e.source.History(ctx, userID, instrument)
		if err != nil {
			return nil, "", errors.Wrap(err, "load trade history")
		}
		all = append(all, events...)
	}

	data, err := gocsv.MarshalBytes(&all)
	if err != nil {
		return nil, "", errors.Wrap(err, "marshal csv")
	}

	return data, fmt.Sprintf("trades_%d.csv", userID), nil
}
