package extract

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/vvka-141/stageswap/pkg/stageswap"
)

const (
	seriesKey  = "Time Series (Daily)"
	dateLayout = "2006-01-02"
)

// diagnosticKeys are the fields the provider uses to explain a missing series,
// in the order they are reported.
var diagnosticKeys = []string{"Note", "Error Message", "Information"}

type dailyBar struct {
	Open   string `json:"1. open"`
	High   string `json:"2. high"`
	Low    string `json:"3. low"`
	Close  string `json:"4. close"`
	Volume string `json:"5. volume"`
}

// ParseDaily converts a TIME_SERIES_DAILY body into records sorted newest first.
func ParseDaily(body []byte, symbol string) ([]stageswap.PriceRecord, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(body, &top); err != nil {
		return nil, stageswap.NewSourceUnavailable(string(body))
	}

	raw, ok := top[seriesKey]
	if !ok {
		return nil, stageswap.NewSourceUnavailable(diagnostic(top, body))
	}

	var series map[string]dailyBar
	if err := json.Unmarshal(raw, &series); err != nil {
		return nil, stageswap.NewSourceUnavailable(fmt.Sprintf("unrecognized %q shape: %v", seriesKey, err))
	}
	// An empty window would clear the target on a full refresh.
	if len(series) == 0 {
		return nil, stageswap.NewSourceUnavailable(fmt.Sprintf("empty %q for %s", seriesKey, symbol))
	}

	records := make([]stageswap.PriceRecord, 0, len(series))
	for day, bar := range series {
		rec, err := parseBar(day, bar, symbol)
		if err != nil {
			return nil, stageswap.NewSourceUnavailable(fmt.Sprintf("%s: %v", day, err))
		}
		records = append(records, rec)
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].Date.After(records[j].Date)
	})
	return records, nil
}

func parseBar(day string, bar dailyBar, symbol string) (stageswap.PriceRecord, error) {
	date, err := time.Parse(dateLayout, day)
	if err != nil {
		return stageswap.PriceRecord{}, fmt.Errorf("invalid date: %w", err)
	}

	var rec stageswap.PriceRecord
	for _, f := range []struct {
		name string
		in   string
		out  *float64
	}{
		{"open", bar.Open, &rec.Open},
		{"high", bar.High, &rec.High},
		{"low", bar.Low, &rec.Low},
		{"close", bar.Close, &rec.Close},
	} {
		if *f.out, err = strconv.ParseFloat(f.in, 64); err != nil {
			return stageswap.PriceRecord{}, fmt.Errorf("invalid %s %q", f.name, f.in)
		}
	}
	if rec.Volume, err = strconv.ParseInt(bar.Volume, 10, 64); err != nil {
		return stageswap.PriceRecord{}, fmt.Errorf("invalid volume %q", bar.Volume)
	}

	rec.Date = date
	rec.Symbol = symbol
	return rec, nil
}

func diagnostic(top map[string]json.RawMessage, body []byte) string {
	for _, key := range diagnosticKeys {
		raw, ok := top[key]
		if !ok {
			continue
		}
		var text string
		if err := json.Unmarshal(raw, &text); err != nil {
			text = string(raw)
		}
		if text != "" {
			return text
		}
	}
	return string(body)
}
