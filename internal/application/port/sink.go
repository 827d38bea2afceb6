package port

import "marketrelay/internal/domain/model"

// RecordSink presents records received from the bus.
type RecordSink interface {
	WriteRecord(topic string, rec model.Record) error
}
