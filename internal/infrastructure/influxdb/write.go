package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WritePoint queues one point for batched delivery.
//
// The write is non-blocking; data is buffered and sent asynchronously.
// Points written while disconnected are silently dropped.
//
// Parameters:
//   - measurement: The measurement name (table)
//   - fields: Key-value pairs for the actual data
//   - timestamp: The exact time for this data point
func (c *Client) WritePoint(measurement string, fields map[string]interface{}, timestamp time.Time) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, nil, fields, timestamp)
	c.writeAPI.WritePoint(point)
}

// Flush forces delivery of all buffered points.
//
// Use before shutdown or in tests; normal operation relies on the
// batching interval.
func (c *Client) Flush() {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.Flush()
}
