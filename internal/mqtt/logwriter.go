package mqtt

// LogWriter implements io.Writer. Everything written to it is published to
// its topic. Delivery is not awaited so logging never blocks on the broker.
type LogWriter struct {
	client transport
	topic  string
}

func (w *LogWriter) Write(p []byte) (int, error) {
	// p may be reused by the caller once Write returns.
	payload := make([]byte, len(p))
	copy(payload, p)

	w.client.PublishNoWait(w.topic, 0, payload)
	return len(p), nil
}
