package i3ipc

// ErrorAction defines what the event loop does when a handler fails.
type ErrorAction int

const (
	// Disconnect stops the event loop and returns the error.
	Disconnect ErrorAction = iota
	// Continue drops the error and keeps reading events.
	Continue
)

// Default configuration values.
const (
	// defaultBufferSize is the default number of events queued by Run.
	defaultBufferSize = 16
	// defaultReadBufferSize is the minimum free space requested for each read.
	defaultReadBufferSize = 4096
	// defaultMaxPayloadLength is the largest payload accepted (64MB).
	defaultMaxPayloadLength = 64 * 1024 * 1024
)

// options holds the configuration for a connection.
type options struct {
	logger Logger

	// onError is called by Run when the event handler returns an error.
	onError func(error) ErrorAction

	bufferSize     int // size of the event queue used by Run
	readBufferSize int // bytes requested per read
	maxPayload     int // maximum size of a single payload
}

// Option is a function that configures connection options.
type Option func(*options)

// BufferSizeOption sets how many received events Run queues for the
// handler. Reading continues while the handler is busy until the queue fills.
func BufferSizeOption(size int) Option {
	return func(o *options) {
		o.bufferSize = size
	}
}

// ReadBufferSizeOption sets how many bytes are requested from the stream
// per read. Large payloads still arrive complete; this only sizes each read.
func ReadBufferSizeOption(size int) Option {
	return func(o *options) {
		o.readBufferSize = size
	}
}

// MessageMaxSize sets the largest payload the connection will send or accept.
// A received header announcing more fails with ErrMessageTooLarge.
func MessageMaxSize(size int) Option {
	return func(o *options) {
		o.maxPayload = size
	}
}

// OnErrorOption sets the callback consulted by Run when the event handler
// returns an error. Return Disconnect to stop, or Continue to keep reading.
func OnErrorOption(cb func(error) ErrorAction) Option {
	return func(o *options) {
		o.onError = cb
	}
}

// LoggerOption sets the logger. If not set, nothing is logged.
func LoggerOption(logger Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

func newOptions(opt []Option) options {
	var opts options
	for _, o := range opt {
		o(&opts)
	}
	checkOptions(&opts)
	return opts
}

// checkOptions fills in default values for unset options.
func checkOptions(opts *options) {
	if opts.bufferSize <= 0 {
		opts.bufferSize = defaultBufferSize
	}

	if opts.readBufferSize <= 0 {
		opts.readBufferSize = defaultReadBufferSize
	}

	if opts.maxPayload <= 0 {
		opts.maxPayload = defaultMaxPayloadLength
	}

	if opts.onError == nil {
		opts.onError = func(error) ErrorAction { return Disconnect }
	}

	if opts.logger == nil {
		opts.logger = defaultLogger()
	}
}
