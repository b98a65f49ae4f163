package audit

// Subscriber receives audit records from the bus.
type Subscriber interface {
	// Subscribe delivers raw record payloads on the returned channel.
	// Call the returned cancel function to unsubscribe and close the channel.
	Subscribe(topic string) (<-chan []byte, func(), error)
	Close() error
}
