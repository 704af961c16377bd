package testhelper

import (
	"encoding/json"
	"fmt"
	"time"
)

// DailySeriesJSON renders a TIME_SERIES_DAILY payload with one bar per day
// for the days calendar days ending at last. Prices grow by one cent per day.
func DailySeriesJSON(symbol string, days int, last time.Time) []byte {
	series := make(map[string]map[string]string, days)
	for i := 0; i < days; i++ {
		day := last.AddDate(0, 0, -i)
		base := 150.0 + float64(days-i)/100
		series[day.Format("2006-01-02")] = map[string]string{
			"1. open":   fmt.Sprintf("%.4f", base),
			"2. high":   fmt.Sprintf("%.4f", base+1),
			"3. low":    fmt.Sprintf("%.4f", base-1),
			"4. close":  fmt.Sprintf("%.4f", base+0.5),
			"5. volume": fmt.Sprintf("%d", 1000000+i),
		}
	}

	payload := map[string]any{
		"Meta Data": map[string]string{
			"1. Information": "Daily Prices (open, high, low, close) and Volumes",
			"2. Symbol":      symbol,
		},
		"Time Series (Daily)": series,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		panic(err)
	}
	return body
}
