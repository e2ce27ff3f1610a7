package control

import "github.com/HonakerM/ebike/units"

// PID is a discrete PID loop. Error is measured minus target, so a positive
// output means the measurement is above target.
type PID struct {
	Kp, Ki, Kd float32
	Target     float32

	integral  float32
	lastError float32
}

func NewPID(kp, ki, kd, target float32) *PID {
	return &PID{Kp: kp, Ki: ki, Kd: kd, Target: target}
}

func (p *PID) SetGains(kp, ki, kd float32) {
	p.Kp, p.Ki, p.Kd = kp, ki, kd
}

func (p *PID) SetTarget(target float32) {
	p.Target = target
}

// Reset clears the integral and derivative history. Gains and target are kept.
func (p *PID) Reset() {
	p.integral = 0
	p.lastError = 0
}

// Update feeds one measurement taken elapsed after the previous one and
// returns the controller output. Elapsed is floored at 1ms.
func (p *PID) Update(measured float32, elapsed units.Duration) float32 {
	dt := float32(elapsed.Millis())
	if dt < 1 {
		dt = 1
	}

	err := measured - p.Target
	p.integral += err * dt
	derivative := (err - p.lastError) / dt
	p.lastError = err

	return p.Kp*err + p.Ki*p.integral + p.Kd*derivative
}

func (p *PID) Integral() float32 {
	return p.integral
}
