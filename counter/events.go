package counter

// Event identifies a counter type together with the overflow threshold used
// when it is armed.
type Event struct {
	Name string
	// Type and Config are the perf_event_attr encoding. Generic is false
	// when the event has no portable perf encoding.
	Type      uint32
	Config    uint64
	Generic   bool
	Threshold uint64
}

func (e Event) String() string {
	return e.Name
}

// perf_event_attr type/config values, see linux/perf_event.h.
const (
	perfTypeHardware     = 0
	perfCountHWCPUCycles = 0
)

var (
	TotalCycles = Event{
		Name:      "PAPI_TOT_CYC",
		Type:      perfTypeHardware,
		Config:    perfCountHWCPUCycles,
		Generic:   true,
		Threshold: 8_000_000,
	}
	FPInstructions = Event{
		Name:      "PAPI_FP_INS",
		Threshold: 4_000_000,
	}
	FPAddInstructions = Event{
		Name:      "PAPI_FAD_INS",
		Threshold: 4_000_000,
	}
)

// DefaultEvents lists the events the overflow check knows about. Only the
// first one is armed.
var DefaultEvents = []Event{
	TotalCycles,
	FPInstructions,
	FPAddInstructions,
}
