package outbox

// Event is the domain event envelope written to the outbox table alongside
// the booking writes it describes. The Kafka topic name equals EventType.
type Event struct {
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

// Topics published by the booking flow.
const (
	TopicAppointmentRequested = "booking.appointment.requested.v1"
	TopicClientUpserted       = "booking.client.upserted.v1"
)
