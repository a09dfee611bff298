// Package influxdb records telemetry history in InfluxDB.
//
// Every routed input-pin state and temperature reading can be written as a
// point tagged by item and endpoint, and every point carries the bridge
// tag. Writes are non-blocking, batched according to influxdb.batch_size
// and influxdb.flush_interval, and stamped with millisecond precision.
// Failed batches reach the SetOnError callback wrapped in ErrWriteFailed.
//
// Usage:
//
//	client, err := influxdb.Connect(cfg.InfluxDB, cfg.Bridge.ID)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	client.WriteTemperature("greenhouse", "10.0.0.12:8080", "28-0316a2", 22.5)
//
// The history is write-only from this runtime's point of view; cached
// device state is never restored from it.
package influxdb
