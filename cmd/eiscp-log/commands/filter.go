package commands

import (
	"fmt"
	"io"
	"time"

	"github.com/eiscp-protocol/eiscp-go/pkg/log"
)

// FilterOptions selects which events the filter command keeps.
type FilterOptions struct {
	Output    string
	ConnID    string
	DeviceID  string
	Zone      string
	Command   string
	TimeStart string
	TimeEnd   string
	Layer     string
	Direction string
	Category  string
}

// buildFilter translates the flag strings into a log.Filter.
func (o FilterOptions) buildFilter() (log.Filter, error) {
	filter := log.Filter{
		ConnectionID: o.ConnID,
		DeviceID:     o.DeviceID,
		Zone:         o.Zone,
		Command:      o.Command,
	}

	parseTime := func(s, flag string) (*time.Time, error) {
		if s == "" {
			return nil, nil
		}
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return nil, fmt.Errorf("invalid %s format: %w", flag, err)
		}
		return &t, nil
	}

	var err error
	if filter.TimeStart, err = parseTime(o.TimeStart, "time-start"); err != nil {
		return log.Filter{}, err
	}
	if filter.TimeEnd, err = parseTime(o.TimeEnd, "time-end"); err != nil {
		return log.Filter{}, err
	}

	if o.Layer != "" {
		l, err := parseLayer(o.Layer)
		if err != nil {
			return log.Filter{}, err
		}
		filter.Layer = &l
	}
	if o.Direction != "" {
		d, err := parseDirection(o.Direction)
		if err != nil {
			return log.Filter{}, err
		}
		filter.Direction = &d
	}
	if o.Category != "" {
		c, err := parseCategory(o.Category)
		if err != nil {
			return log.Filter{}, err
		}
		filter.Category = &c
	}

	return filter, nil
}

// RunFilter copies the matching events from a capture file into a new one.
func RunFilter(path string, opts FilterOptions) error {
	filter, err := opts.buildFilter()
	if err != nil {
		return err
	}

	reader, err := log.NewFilteredReader(path, filter)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	logger, err := log.NewFileLogger(opts.Output)
	if err != nil {
		return fmt.Errorf("failed to create output logger: %w", err)
	}
	defer logger.Close()

	count := 0
	for {
		event, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}
		logger.Log(event)
		count++
	}

	fmt.Printf("Filtered %d events to %s\n", count, logger.Path())
	return nil
}
