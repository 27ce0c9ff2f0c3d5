package source

import "time"

// DefaultAssemblyTimeout bounds how long a 14-bit MSB waits for its LSB
const DefaultAssemblyTimeout = 5 * time.Millisecond

// Controller numbers of the NRPN / RPN protocol
const (
	ccDataEntryMSB  = 6
	ccDataEntryLSB  = 38
	ccDataIncrement = 96
	ccDataDecrement = 97
	ccNRPNLSB       = 98
	ccNRPNMSB       = 99
	ccRPNLSB        = 100
	ccRPNMSB        = 101
)

// Assembler holds the partial state of composite (14-bit CC, NRPN/RPN)
// messages. Each mapping owns exactly one; it is never shared.
type Assembler struct {
	Timeout time.Duration

	msb      int // held data MSB, -1 if none
	deadline time.Duration

	paramMSB   int // selected parameter number parts, -1 if unset
	paramLSB   int
	registered bool
}

// NewAssembler creates an empty assembler with the default timeout
func NewAssembler() Assembler {
	a := Assembler{Timeout: DefaultAssemblyTimeout}
	a.Reset()
	return a
}

// Reset discards all partial state
func (a *Assembler) Reset() {
	a.msb = -1
	a.deadline = 0
	a.paramMSB = -1
	a.paramLSB = -1
	a.registered = false
}

// Pending reports whether an MSB is waiting for completion
func (a *Assembler) Pending() bool {
	return a.msb >= 0
}

// Expire drops a held MSB whose deadline has passed. Expiry is silent.
func (a *Assembler) Expire(now time.Duration) {
	if a.msb >= 0 && now > a.deadline {
		a.msb = -1
	}
}

func (a *Assembler) hold(msb int, now time.Duration) {
	timeout := a.Timeout
	if timeout <= 0 {
		timeout = DefaultAssemblyTimeout
	}
	a.msb = msb
	a.deadline = now + timeout
}

// complete combines the held MSB with lsb. It reports false when nothing
// is held or the MSB already timed out.
func (a *Assembler) complete(lsb int, now time.Duration) (int, bool) {
	a.Expire(now)
	if a.msb < 0 {
		return 0, false
	}
	v := a.msb<<7 | lsb
	a.msb = -1
	return v, true
}

func (a *Assembler) selectParameter(cc uint8, value int) {
	switch cc {
	case ccNRPNMSB:
		a.paramMSB, a.registered = value, false
	case ccNRPNLSB:
		a.paramLSB, a.registered = value, false
	case ccRPNMSB:
		a.paramMSB, a.registered = value, true
	case ccRPNLSB:
		a.paramLSB, a.registered = value, true
	}
	a.msb = -1
}

func (a *Assembler) parameter() (number int, registered bool, ok bool) {
	if a.paramMSB < 0 || a.paramLSB < 0 {
		return 0, false, false
	}
	return a.paramMSB<<7 | a.paramLSB, a.registered, true
}
