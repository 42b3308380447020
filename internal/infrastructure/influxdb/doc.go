// Package influxdb wraps the InfluxDB v2 client for the archiver's
// write path. Reads go through the query-oriented influx package; this
// package only batches and ships points.
//
// The write API is non-blocking: points are buffered and flushed in the
// background, and write failures surface through an error callback
// rather than a return value.
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.Influx, cfg.Archiver)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.SetOnError(func(err error) {
//	    log.Warn("archive write failed", "error", err)
//	})
//	client.WritePoint(point)
package influxdb
