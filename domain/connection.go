package domain

type ConnectionState int

const (
	Disconnected ConnectionState = iota
	Connecting
	Open
	LoggedOut
)

func (s ConnectionState) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Open:
		return "open"
	case LoggedOut:
		return "logged_out"
	default:
		return "unknown"
	}
}

// Connection phases reported by the transport.
const (
	PhaseConnecting = "connecting"
	PhaseOpen       = "open"
	PhaseClose      = "close"
)

// ConnectionUpdate is a connection-state notification from the transport.
// QR and PairingCode carry out-of-band pairing material and are usually empty.
type ConnectionUpdate struct {
	Connection  string `json:"connection,omitempty"`
	QR          string `json:"qr,omitempty"`
	PairingCode string `json:"pairingCode,omitempty"`
	Me          string `json:"me,omitempty"`
	Reason      string `json:"reason,omitempty"`
	LoggedOut   bool   `json:"loggedOut,omitempty"`
}

func (u ConnectionUpdate) HasPairingMaterial() bool {
	return u.QR != "" || u.PairingCode != ""
}
