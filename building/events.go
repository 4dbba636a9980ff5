package building

type EventKind int

const (
	CarArrived EventKind = iota
	DoorsOpened
	DoorsClosed
	CarParked
	CarWoke
	RiderAdmitted
	RiderRejected
	RiderExited
	CallPlaced
)

func (k EventKind) String() string {
	switch k {
	case CarArrived:
		return "carArrived"
	case DoorsOpened:
		return "doorsOpened"
	case DoorsClosed:
		return "doorsClosed"
	case CarParked:
		return "carParked"
	case CarWoke:
		return "carWoke"
	case RiderAdmitted:
		return "riderAdmitted"
	case RiderRejected:
		return "riderRejected"
	case RiderExited:
		return "riderExited"
	case CallPlaced:
		return "callPlaced"
	}
	return "unknown"
}

// Event is one observable engine transition, published on the building's
// event channel for logs, tests and the panel. Car is -1 for events not tied
// to a car.
type Event struct {
	Kind  EventKind
	Car   int
	Floor int
	Dir   Direction
	Rider string
}
